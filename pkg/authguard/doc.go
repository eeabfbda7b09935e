// Package authguard decides whether the current visitor is authenticated,
// and guarantees that consumers never act on that answer before it is
// conclusively known.
//
// The package is built around three pieces:
//
//   - Validator forces a token refresh against the external identity
//     provider and checks the returned expiry. Any ambiguity or error
//     resolves to "not authenticated" (fail-closed).
//
//   - Store caches the session state {user, authenticated, phase} and
//     broadcasts every transition to all subscribers in a single
//     consistent order. While the phase is PhaseChecking the
//     authenticated flag is not meaningful and must not be read.
//
//   - Listener subscribes to the provider's auth-state notifications,
//     runs the validator, and resolves the store exactly once per
//     lifecycle. A fail-safe timer bounds the wait: if the provider
//     never calls back, the session resolves to logged-out.
//
// Typical wiring:
//
//	store := authguard.NewStore(provider.HasPersistedSession)
//	listener := authguard.NewListener(provider, store)
//	listener.Start(ctx)
//	defer listener.Stop()
//
//	cancel := store.Subscribe(func(user authguard.Identity, ok bool) {
//	    // react to transitions; first call happens at resolution
//	})
//	defer cancel()
//
// Only the Listener mutates the Store. UI-facing code subscribes and
// reads; it never writes.
package authguard
