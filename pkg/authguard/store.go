package authguard

import (
	"log/slog"
	"sync"
)

// Phase is the resolution state of a Session.
type Phase int

const (
	// PhaseChecking is the initial phase. Protected content must not
	// render, and Authenticated must not be consulted, while checking.
	PhaseChecking Phase = iota

	// PhaseResolved means the authentication check reached a definite
	// answer. The phase never reverts to PhaseChecking within one
	// listener lifecycle.
	PhaseResolved
)

func (p Phase) String() string {
	switch p {
	case PhaseChecking:
		return "checking"
	case PhaseResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Session is the store's current belief about the visitor.
type Session struct {
	// User is the provider identity, nil when signed out or unresolved.
	User Identity

	// Authenticated is true only once a fresh, non-expired token has
	// been confirmed for User. Meaningless while Phase is PhaseChecking.
	Authenticated bool

	// Phase tells whether the check has reached a definite answer.
	Phase Phase
}

// Callback receives auth-state transitions. The user is nil when signed
// out. Callbacks run synchronously on the goroutine that performed the
// transition; they must return promptly.
type Callback func(user Identity, authenticated bool)

type subscriber struct {
	id uint64
	cb Callback
}

// Store is the single cache of authentication state. It is written only
// by the Listener; everything else subscribes and reads.
//
// All registered callbacks observe the same sequence of transitions in
// the same order: the session value is updated before any callback runs,
// and the subscriber set is snapshotted per transition.
type Store struct {
	mu      sync.Mutex
	session Session
	subs    []subscriber
	nextID  uint64
	closed  bool

	hint   func() bool
	logger *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger used for diagnostics.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a Store in PhaseChecking.
//
// hint is the persisted-session probe backing HasPersistedSessionHint;
// it may be nil when no local persistence exists.
func NewStore(hint func() bool, opts ...StoreOption) *Store {
	s := &Store{
		hint:   hint,
		logger: slog.Default().With("component", "authguard.store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session returns the current session value.
func (s *Store) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Subscribe registers cb for auth-state transitions and returns a cancel
// function. If the store has already resolved, cb is invoked immediately
// with the current values, so there is no missed-update window. Cancel is
// idempotent and a no-op for an already-removed callback.
func (s *Store) Subscribe(cb Callback) (cancel func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, cb: cb})
	replay := s.session.Phase == PhaseResolved
	current := s.session
	s.mu.Unlock()

	if replay {
		cb(current.User, current.Authenticated)
	}

	return func() { s.unsubscribe(id) }
}

func (s *Store) unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

// HasPersistedSessionHint reports whether local storage suggests a prior
// session. The hint is best-effort and non-authoritative: it never gates
// rendering, it only selects the optimistic "restoring session" loading
// message. It never blocks and never panics.
func (s *Store) HasPersistedSessionHint() (hinted bool) {
	if s.hint == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("persisted session hint panicked", "panic", r)
			hinted = false
		}
	}()
	return s.hint()
}

// resolve performs the single CHECKING → RESOLVED transition. It returns
// false, without touching the session, when another path already
// resolved; the caller must treat that as a no-op, never an overwrite.
func (s *Store) resolve(user Identity, authenticated bool) bool {
	s.mu.Lock()
	if s.closed || s.session.Phase != PhaseChecking {
		s.mu.Unlock()
		return false
	}
	s.session = Session{User: user, Authenticated: authenticated, Phase: PhaseResolved}
	subs, current := s.snapshotLocked()
	s.mu.Unlock()

	s.broadcast(subs, current)
	return true
}

// update records a post-resolution transition (sign-in or sign-out after
// the initial check). No-op while still checking or when nothing changed.
func (s *Store) update(user Identity, authenticated bool) {
	s.mu.Lock()
	if s.closed || s.session.Phase != PhaseResolved {
		s.mu.Unlock()
		return
	}
	if sameIdentity(s.session.User, user) && s.session.Authenticated == authenticated {
		s.mu.Unlock()
		return
	}
	s.session = Session{User: user, Authenticated: authenticated, Phase: PhaseResolved}
	subs, current := s.snapshotLocked()
	s.mu.Unlock()

	s.broadcast(subs, current)
}

// close makes resolve and update permanent no-ops. The listener calls it
// on teardown: a timer or validation callback that passed its own stopped
// check before Stop returned still cannot mutate a closed store, because
// the flag is checked under the same lock that guards the session.
func (s *Store) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Store) snapshotLocked() ([]subscriber, Session) {
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	return subs, s.session
}

func (s *Store) broadcast(subs []subscriber, current Session) {
	for _, sub := range subs {
		sub.cb(current.User, current.Authenticated)
	}
}

func sameIdentity(a, b Identity) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.UID() == b.UID()
}
