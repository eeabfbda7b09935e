// Package routegate decides, per navigation attempt, whether a screen may
// render right now: show the loading placeholder, render the requested
// screen, or redirect elsewhere.
//
// The decision consumes two inputs only: the current authguard.Session
// and a static Classification partitioning paths into public and
// protected. The single most important rule is that an unresolved session
// always wins: while the phase is still checking, the gate never
// redirects and never renders protected content, eliminating both the
// flash of protected content and login redirect loops.
//
// Redirector turns decisions into at most one history-replace per
// distinct (session, path) pair, so re-evaluating the same state is
// harmless.
package routegate
