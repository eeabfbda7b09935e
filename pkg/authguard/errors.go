package authguard

import (
	"errors"
	"fmt"
)

// ErrorCode classifies provider-reported sign-in failures. The UI layer
// maps codes to user-facing messages; the gating logic itself never
// surfaces them.
type ErrorCode string

const (
	// CodeInvalidCredentials covers wrong email/password combinations.
	CodeInvalidCredentials ErrorCode = "invalid-credentials"

	// CodeUserDisabled means the account exists but is disabled.
	CodeUserDisabled ErrorCode = "user-disabled"

	// CodeUserNotFound means no account exists for the identifier.
	CodeUserNotFound ErrorCode = "user-not-found"

	// CodeRateLimited means the provider throttled the attempt.
	CodeRateLimited ErrorCode = "rate-limited"

	// CodeNetwork covers transport-level failures reaching the provider.
	CodeNetwork ErrorCode = "network"

	// CodeUnknown is used when the provider returned an unrecognized code.
	CodeUnknown ErrorCode = "unknown"
)

// AuthError is a provider-reported authentication failure.
type AuthError struct {
	Code ErrorCode

	// Raw is the provider's original error string, kept for diagnostics.
	Raw string

	cause error
}

func (e *AuthError) Error() string {
	if e.Raw != "" {
		return fmt.Sprintf("auth: %s (%s)", e.Code, e.Raw)
	}
	return fmt.Sprintf("auth: %s", e.Code)
}

func (e *AuthError) Unwrap() error { return e.cause }

// NewAuthError creates an AuthError with an optional underlying cause.
func NewAuthError(code ErrorCode, raw string, cause error) *AuthError {
	return &AuthError{Code: code, Raw: raw, cause: cause}
}

// CodeOf extracts the ErrorCode from err, or CodeUnknown when err is not
// an *AuthError.
func CodeOf(err error) ErrorCode {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}
