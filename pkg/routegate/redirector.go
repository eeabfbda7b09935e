package routegate

import (
	"fmt"
	"log/slog"

	"github.com/sacarolha/sacarolha/pkg/authguard"
)

// Navigator performs the actual browser navigation. The gate only ever
// replaces the current history entry, never pushes, so back-navigation
// is not polluted with redirect hops.
type Navigator interface {
	Replace(path string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Replace(path string) { f(path) }

// Redirector reacts to (session, path) changes and issues at most one
// navigation side effect per distinct combination. Re-running it with
// unchanged inputs is deliberately harmless; redirect loops come from
// acting on every re-render, and the dedup key prevents exactly that.
//
// Redirector is not safe for concurrent use; it belongs to a single
// navigation loop.
type Redirector struct {
	class  Classification
	nav    Navigator
	logger *slog.Logger

	// onDecision, when set, observes every decision. Used for counters.
	onDecision func(Decision)

	lastKey string
	hasLast bool
}

// RedirectorOption configures a Redirector.
type RedirectorOption func(*Redirector)

// WithRedirectorLogger sets the logger used for diagnostics.
func WithRedirectorLogger(logger *slog.Logger) RedirectorOption {
	return func(r *Redirector) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDecisionHook registers fn to observe every decision.
func WithDecisionHook(fn func(Decision)) RedirectorOption {
	return func(r *Redirector) {
		r.onDecision = fn
	}
}

// NewRedirector creates a Redirector issuing navigations through nav.
func NewRedirector(class Classification, nav Navigator, opts ...RedirectorOption) *Redirector {
	r := &Redirector{
		class:  class,
		nav:    nav,
		logger: slog.Default().With("component", "routegate.redirector"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// React evaluates the gate for the current session and path, performs
// the redirect side effect when one is due, and returns the decision so
// the caller can render the loading placeholder or the screen.
func (r *Redirector) React(session authguard.Session, path string) Decision {
	decision := Decide(session, r.class, path)
	if r.onDecision != nil {
		r.onDecision(decision)
	}

	if decision.Action != ActionRedirect {
		// A later state change for the same path must be able to
		// redirect again, so only redirect decisions are deduped.
		r.hasLast = false
		return decision
	}

	key := decisionKey(session, path, decision.Target)
	if r.hasLast && r.lastKey == key {
		return decision
	}
	r.lastKey = key
	r.hasLast = true

	r.logger.Debug("replacing location",
		"from", path, "to", decision.Target, "authenticated", session.Authenticated)
	r.nav.Replace(decision.Target)
	return decision
}

func decisionKey(session authguard.Session, path, target string) string {
	uid := ""
	if session.User != nil {
		uid = session.User.UID()
	}
	return fmt.Sprintf("%d|%t|%s|%s|%s", session.Phase, session.Authenticated, uid, canonical(path), target)
}
