package authguard

import (
	"context"
	"time"
)

// Identity is the opaque handle the external provider uses for the
// currently signed-in user. The gating logic never inspects it beyond
// identity comparison and logging.
type Identity interface {
	// UID returns the provider-assigned user ID.
	UID() string

	// Email returns the sign-in email, if known.
	Email() string
}

// Credential is the result of a forced token refresh.
type Credential struct {
	// Token is the refreshed ID token.
	Token string

	// ExpiresAt is the token's expiry instant.
	ExpiresAt time.Time
}

// Provider abstracts the external authentication service. Implementations
// must be safe for concurrent use; callbacks registered through
// OnAuthStateChanged may be invoked from any goroutine.
type Provider interface {
	// SignIn authenticates with email and password.
	// Returns *AuthError on provider-reported failures.
	SignIn(ctx context.Context, email, password string) (Identity, error)

	// SignOut clears the provider's local credential.
	SignOut(ctx context.Context) error

	// OnAuthStateChanged registers a callback invoked whenever the
	// provider's view of the current user changes. The callback receives
	// nil when no user is signed in. The returned function unregisters
	// the callback; calling it more than once is a no-op.
	OnAuthStateChanged(cb func(Identity)) (unsubscribe func())

	// ForceTokenRefresh refreshes the credential for id and returns the
	// fresh token with its expiry. Any error means the credential could
	// not be confirmed.
	ForceTokenRefresh(ctx context.Context, id Identity) (Credential, error)

	// SendPasswordReset asks the provider to email a reset link.
	SendPasswordReset(ctx context.Context, email string) error
}
