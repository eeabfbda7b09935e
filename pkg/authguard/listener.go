package authguard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultFailSafe is the canonical bound on how long the listener waits
// for the provider before forcing a definite logged-out resolution.
const DefaultFailSafe = 2 * time.Second

// ErrListenerStarted is returned by Start on reuse. A listener lifecycle
// runs once; a fresh check needs a fresh Store and Listener.
var ErrListenerStarted = errors.New("authguard: listener already started")

// Listener owns the store's mutations. It subscribes to the provider's
// auth-state notifications, validates present identities, and resolves
// the store exactly once, with a fail-safe timer as the bounded-wait
// fallback. Whichever of provider event and fail-safe settles first wins;
// the loser's later completion is dropped, never applied.
type Listener struct {
	provider  Provider
	store     *Store
	validator *Validator
	failSafe  time.Duration
	logger    *slog.Logger

	// onFailSafe, when set, is invoked after a fail-safe resolution.
	// Used for diagnostics counters.
	onFailSafe func()

	mu          sync.Mutex
	ctx         context.Context
	started     bool
	stopped     bool
	unsubscribe func()
	timer       *time.Timer
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithFailSafe overrides the fail-safe duration.
func WithFailSafe(d time.Duration) ListenerOption {
	return func(l *Listener) {
		if d > 0 {
			l.failSafe = d
		}
	}
}

// WithValidator replaces the default validator.
func WithValidator(v *Validator) ListenerOption {
	return func(l *Listener) {
		if v != nil {
			l.validator = v
		}
	}
}

// WithListenerLogger sets the logger used for diagnostics.
func WithListenerLogger(logger *slog.Logger) ListenerOption {
	return func(l *Listener) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithFailSafeHook registers fn to run after a fail-safe resolution.
func WithFailSafeHook(fn func()) ListenerOption {
	return func(l *Listener) {
		l.onFailSafe = fn
	}
}

// NewListener creates a Listener that resolves store through provider.
func NewListener(provider Provider, store *Store, opts ...ListenerOption) *Listener {
	l := &Listener{
		provider: provider,
		store:    store,
		failSafe: DefaultFailSafe,
		logger:   slog.Default().With("component", "authguard.listener"),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.validator == nil {
		l.validator = NewValidator(provider, WithValidatorLogger(l.logger))
	}
	return l
}

// Store returns the store this listener resolves.
func (l *Listener) Store() *Store { return l.store }

// Start subscribes to the provider and arms the fail-safe timer. ctx
// bounds the token-refresh calls made while handling notifications. A
// listener can be started at most once.
func (l *Listener) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	l.mu.Lock()
	if l.started || l.stopped {
		l.mu.Unlock()
		return ErrListenerStarted
	}
	l.started = true
	l.ctx = ctx
	l.timer = time.AfterFunc(l.failSafe, l.failSafeFired)
	l.mu.Unlock()

	// Subscribed after arming the timer so a provider that notifies
	// synchronously still finds the full lifecycle in place.
	unsubscribe := l.provider.OnAuthStateChanged(l.handleAuthEvent)

	l.mu.Lock()
	if l.stopped {
		// Torn down while subscribing; undo immediately.
		l.mu.Unlock()
		unsubscribe()
		return nil
	}
	l.unsubscribe = unsubscribe
	l.mu.Unlock()
	return nil
}

// Stop unsubscribes from the provider and cancels the fail-safe timer.
// Both happen even mid-check; any in-flight validation that completes
// afterwards is discarded without touching the store. Stop is idempotent.
func (l *Listener) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	unsubscribe := l.unsubscribe
	timer := l.timer
	l.unsubscribe = nil
	l.mu.Unlock()

	// Close the store before returning: a timer or validation callback
	// that already passed its stopped check must still find mutation
	// blocked.
	l.store.close()

	if unsubscribe != nil {
		unsubscribe()
	}
	if timer != nil {
		timer.Stop()
	}
}

// handleAuthEvent processes one provider notification.
func (l *Listener) handleAuthEvent(id Identity) {
	l.mu.Lock()
	if l.stopped || !l.started {
		l.mu.Unlock()
		return
	}
	ctx := l.ctx
	l.mu.Unlock()

	// Capture the phase before any slow work: a result computed for the
	// CHECKING phase must not be applied after someone else resolved.
	wasChecking := l.store.Session().Phase == PhaseChecking

	if id == nil {
		l.settle(nil, false, wasChecking)
		return
	}

	switch status := l.validator.Validate(ctx, id); status {
	case TokenValid:
		l.settle(id, true, wasChecking)
	case TokenExpired:
		// Stale local credential; clear it at the provider.
		if err := l.provider.SignOut(ctx); err != nil {
			l.logger.Warn("sign-out after expired token failed", "error", err)
		}
		l.settle(nil, false, wasChecking)
	default:
		l.settle(nil, false, wasChecking)
	}
}

// settle applies one definite outcome to the store, honoring teardown
// and the first-resolution-wins rule.
func (l *Listener) settle(user Identity, authenticated bool, wasChecking bool) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	timer := l.timer
	l.mu.Unlock()

	if wasChecking {
		if !l.store.resolve(user, authenticated) {
			// Another path won the race; this result is stale.
			l.logger.Debug("dropping stale auth resolution", "authenticated", authenticated)
			return
		}
		if timer != nil {
			timer.Stop()
		}
		l.logger.Info("auth state resolved",
			"authenticated", authenticated, "uid", uidOf(user))
		return
	}

	l.store.update(user, authenticated)
}

// failSafeFired forces a logged-out resolution when the provider never
// called back within the fail-safe window.
func (l *Listener) failSafeFired() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	if l.store.resolve(nil, false) {
		l.logger.Warn("auth check timed out, assuming signed out",
			"fail_safe", l.failSafe)
		if l.onFailSafe != nil {
			l.onFailSafe()
		}
	}
}

func uidOf(id Identity) string {
	if id == nil {
		return ""
	}
	return id.UID()
}
