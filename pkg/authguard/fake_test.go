package authguard_test

import (
	"context"
	"sync"
	"time"

	"github.com/sacarolha/sacarolha/pkg/authguard"
)

type fakeIdentity struct {
	uid   string
	email string
}

func (f fakeIdentity) UID() string   { return f.uid }
func (f fakeIdentity) Email() string { return f.email }

// fakeProvider is a scriptable in-memory auth provider.
type fakeProvider struct {
	mu           sync.Mutex
	callbacks    map[int]func(authguard.Identity)
	nextID       int
	unsubscribes int
	signOuts     int

	cred       authguard.Credential
	refreshErr error

	// refreshGate, when non-nil, blocks ForceTokenRefresh until closed.
	refreshGate chan struct{}

	// refreshStarted, when non-nil, receives one signal as soon as a
	// refresh call begins.
	refreshStarted chan struct{}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		callbacks: make(map[int]func(authguard.Identity)),
		cred: authguard.Credential{
			Token:     "tok",
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
}

func (p *fakeProvider) SignIn(ctx context.Context, email, password string) (authguard.Identity, error) {
	return fakeIdentity{uid: "u1", email: email}, nil
}

func (p *fakeProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signOuts++
	return nil
}

func (p *fakeProvider) OnAuthStateChanged(cb func(authguard.Identity)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	p.callbacks[id] = cb
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if _, ok := p.callbacks[id]; ok {
			delete(p.callbacks, id)
			p.unsubscribes++
		}
	}
}

func (p *fakeProvider) ForceTokenRefresh(ctx context.Context, id authguard.Identity) (authguard.Credential, error) {
	p.mu.Lock()
	gate := p.refreshGate
	started := p.refreshStarted
	cred, err := p.cred, p.refreshErr
	p.mu.Unlock()
	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return authguard.Credential{}, err
	}
	return cred, nil
}

func (p *fakeProvider) SendPasswordReset(ctx context.Context, email string) error {
	return nil
}

// Emit delivers an auth-state notification to every registered callback,
// the way the real provider does after sign-in, sign-out, or restore.
func (p *fakeProvider) Emit(id authguard.Identity) {
	p.mu.Lock()
	cbs := make([]func(authguard.Identity), 0, len(p.callbacks))
	for _, cb := range p.callbacks {
		cbs = append(cbs, cb)
	}
	p.mu.Unlock()
	for _, cb := range cbs {
		cb(id)
	}
}

func (p *fakeProvider) signOutCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signOuts
}

func (p *fakeProvider) unsubscribeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unsubscribes
}

// transitions records every broadcast a subscriber observes.
type transitions struct {
	mu     sync.Mutex
	states []bool
	users  []authguard.Identity
}

func (r *transitions) callback() authguard.Callback {
	return func(user authguard.Identity, authenticated bool) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.users = append(r.users, user)
		r.states = append(r.states, authenticated)
	}
}

func (r *transitions) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func (r *transitions) last() (authguard.Identity, bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return nil, false, false
	}
	i := len(r.states) - 1
	return r.users[i], r.states[i], true
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(d time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}
