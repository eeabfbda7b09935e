package authguard

import (
	"context"
	"log/slog"
	"time"
)

// TokenStatus is the outcome of a credential check.
type TokenStatus int

const (
	// TokenValid means the refreshed token expires strictly after now.
	TokenValid TokenStatus = iota

	// TokenExpired means the refresh succeeded but the token is already
	// past its expiry. The caller should issue an explicit sign-out to
	// clear the stale local credential.
	TokenExpired

	// TokenInvalid means the refresh itself failed. Indistinguishable
	// from signed-out for gating purposes.
	TokenInvalid
)

func (s TokenStatus) String() string {
	switch s {
	case TokenValid:
		return "valid"
	case TokenExpired:
		return "expired"
	case TokenInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Validator confirms that a provider identity still holds a fresh,
// non-expired credential. Every ambiguous or failing check resolves to
// not-authenticated; the validator never leaves a check undecided.
type Validator struct {
	provider Provider
	now      func() time.Time
	logger   *slog.Logger
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithValidatorClock overrides the time source, for tests.
func WithValidatorClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// WithValidatorLogger sets the logger used for diagnostics.
func WithValidatorLogger(logger *slog.Logger) ValidatorOption {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewValidator creates a Validator backed by provider.
func NewValidator(provider Provider, opts ...ValidatorOption) *Validator {
	v := &Validator{
		provider: provider,
		now:      time.Now,
		logger:   slog.Default().With("component", "authguard.validator"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate forces a token refresh for id and checks the returned expiry.
// A nil identity is TokenInvalid. Errors contacting the provider are
// absorbed here: they are logged and reported as TokenInvalid, never as
// authenticated and never re-raised.
func (v *Validator) Validate(ctx context.Context, id Identity) TokenStatus {
	if id == nil {
		return TokenInvalid
	}

	cred, err := v.provider.ForceTokenRefresh(ctx, id)
	if err != nil {
		v.logger.Debug("token refresh failed, treating as signed out",
			"uid", id.UID(), "error", err)
		return TokenInvalid
	}

	if !cred.ExpiresAt.After(v.now()) {
		v.logger.Debug("refreshed token already expired",
			"uid", id.UID(), "expires_at", cred.ExpiresAt)
		return TokenExpired
	}

	return TokenValid
}
