package authguard_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sacarolha/sacarolha/pkg/authguard"
)

func TestValidator_FreshTokenIsValid(t *testing.T) {
	provider := newFakeProvider()
	validator := authguard.NewValidator(provider)

	status := validator.Validate(context.Background(), fakeIdentity{uid: "u1"})
	if status != authguard.TokenValid {
		t.Fatalf("status = %v, want valid", status)
	}
}

func TestValidator_PastExpiryIsExpired(t *testing.T) {
	provider := newFakeProvider()
	provider.cred.ExpiresAt = time.Now().Add(-time.Minute)
	validator := authguard.NewValidator(provider)

	status := validator.Validate(context.Background(), fakeIdentity{uid: "u1"})
	if status != authguard.TokenExpired {
		t.Fatalf("status = %v, want expired", status)
	}
}

func TestValidator_ExpiryEqualToNowIsExpired(t *testing.T) {
	// "Strictly after now" means an exactly-now expiry fails closed.
	provider := newFakeProvider()
	now := time.Now()
	provider.cred.ExpiresAt = now
	validator := authguard.NewValidator(provider,
		authguard.WithValidatorClock(func() time.Time { return now }))

	status := validator.Validate(context.Background(), fakeIdentity{uid: "u1"})
	if status != authguard.TokenExpired {
		t.Fatalf("status = %v, want expired", status)
	}
}

func TestValidator_RefreshErrorFailsClosed(t *testing.T) {
	provider := newFakeProvider()
	provider.refreshErr = errors.New("network down")
	validator := authguard.NewValidator(provider)

	status := validator.Validate(context.Background(), fakeIdentity{uid: "u1"})
	if status != authguard.TokenInvalid {
		t.Fatalf("status = %v, want invalid", status)
	}
}

func TestValidator_NilIdentityIsInvalid(t *testing.T) {
	provider := newFakeProvider()
	validator := authguard.NewValidator(provider)

	if status := validator.Validate(context.Background(), nil); status != authguard.TokenInvalid {
		t.Fatalf("status = %v, want invalid", status)
	}
}
