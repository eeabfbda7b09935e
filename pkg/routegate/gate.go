package routegate

import (
	"github.com/sacarolha/sacarolha/pkg/authguard"
)

// Action is what the navigation layer should do for the current attempt.
type Action int

const (
	// ActionLoading renders the loading placeholder only. No redirect,
	// no screen content.
	ActionLoading Action = iota

	// ActionRender renders the requested screen.
	ActionRender

	// ActionRedirect replaces the current location with Decision.Target.
	ActionRedirect
)

func (a Action) String() string {
	switch a {
	case ActionLoading:
		return "loading"
	case ActionRender:
		return "render"
	case ActionRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision is the gate's verdict for one (session, path) pair.
type Decision struct {
	Action Action

	// Target is the redirect destination when Action is ActionRedirect.
	Target string

	// ReturnTo preserves the originally requested path across a
	// redirect to the login screen, for post-login return.
	ReturnTo string
}

// Decide applies the gating table to the current session and path.
//
// An unresolved session always wins: no redirect and no render happens
// while the phase is still checking, whatever the path. Once resolved,
// unauthenticated visitors are sent to the login screen from protected
// paths (keeping the requested path for the post-login return), and
// authenticated visitors are bounced off the login screen to the landing
// screen. The root path renders nothing itself; it dispatches to login
// or landing by the same rules.
func Decide(session authguard.Session, class Classification, path string) Decision {
	if session.Phase == authguard.PhaseChecking {
		return Decision{Action: ActionLoading}
	}

	path = canonical(path)

	if class.IsRoot(path) {
		if session.Authenticated {
			return Decision{Action: ActionRedirect, Target: class.Landing()}
		}
		return Decision{Action: ActionRedirect, Target: class.Login()}
	}

	if !session.Authenticated {
		if class.Kind(path) == KindProtected {
			return Decision{Action: ActionRedirect, Target: class.Login(), ReturnTo: path}
		}
		return Decision{Action: ActionRender}
	}

	if class.IsLogin(path) {
		return Decision{Action: ActionRedirect, Target: class.Landing()}
	}
	return Decision{Action: ActionRender}
}
