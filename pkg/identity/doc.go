// Package identity implements authguard.Provider against a hosted
// identity toolkit: password sign-in, secure-token refresh, and
// password-reset mail over its REST endpoints.
//
// The client keeps the current user in memory and mirrors a small,
// non-authoritative hint of the last session to a local file. The hint
// backs Store.HasPersistedSessionHint and seeds Resume, which exchanges
// the stored refresh token for a fresh credential on startup; it never
// decides authentication by itself.
package identity
