package authguard_test

import (
	"context"
	"testing"

	"github.com/sacarolha/sacarolha/pkg/authguard"
)

func resolveThroughListener(t *testing.T, provider *fakeProvider, store *authguard.Store, id authguard.Identity) *authguard.Listener {
	t.Helper()
	listener := authguard.NewListener(provider, store)
	if err := listener.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(listener.Stop)
	provider.Emit(id)
	if store.Session().Phase != authguard.PhaseResolved {
		t.Fatal("expected session to resolve")
	}
	return listener
}

func TestStore_StartsChecking(t *testing.T) {
	store := authguard.NewStore(nil)

	session := store.Session()
	if session.Phase != authguard.PhaseChecking {
		t.Fatalf("phase = %v, want checking", session.Phase)
	}
	if session.User != nil {
		t.Error("expected no user before resolution")
	}
}

func TestStore_SubscribeBeforeResolutionIsDeferred(t *testing.T) {
	provider := newFakeProvider()
	store := authguard.NewStore(nil)

	var rec transitions
	cancel := store.Subscribe(rec.callback())
	defer cancel()

	if rec.count() != 0 {
		t.Fatalf("callback fired %d times before resolution", rec.count())
	}

	resolveThroughListener(t, provider, store, fakeIdentity{uid: "u1"})

	if rec.count() != 1 {
		t.Fatalf("callback fired %d times, want 1", rec.count())
	}
	user, authenticated, ok := rec.last()
	if !ok || !authenticated {
		t.Fatal("expected authenticated transition")
	}
	if user.UID() != "u1" {
		t.Errorf("uid = %q, want u1", user.UID())
	}
}

func TestStore_SubscribeAfterResolutionReplaysImmediately(t *testing.T) {
	provider := newFakeProvider()
	store := authguard.NewStore(nil)
	resolveThroughListener(t, provider, store, nil)

	var rec transitions
	cancel := store.Subscribe(rec.callback())
	defer cancel()

	if rec.count() != 1 {
		t.Fatalf("callback fired %d times, want immediate replay", rec.count())
	}
	if _, authenticated, _ := rec.last(); authenticated {
		t.Error("expected signed-out replay")
	}
}

func TestStore_AllSubscribersSeeSameSequence(t *testing.T) {
	provider := newFakeProvider()
	store := authguard.NewStore(nil)

	var a, b transitions
	cancelA := store.Subscribe(a.callback())
	defer cancelA()
	cancelB := store.Subscribe(b.callback())
	defer cancelB()

	resolveThroughListener(t, provider, store, fakeIdentity{uid: "u1"})
	provider.Emit(nil) // sign-out after resolution

	if a.count() != 2 || b.count() != 2 {
		t.Fatalf("counts = %d, %d, want 2, 2", a.count(), b.count())
	}
	for i := range a.states {
		if a.states[i] != b.states[i] {
			t.Fatalf("subscribers diverged at transition %d", i)
		}
	}
}

func TestStore_UnsubscribeStopsDelivery(t *testing.T) {
	provider := newFakeProvider()
	store := authguard.NewStore(nil)

	var rec transitions
	cancel := store.Subscribe(rec.callback())
	cancel()
	cancel() // second cancel is a no-op

	resolveThroughListener(t, provider, store, fakeIdentity{uid: "u1"})

	if rec.count() != 0 {
		t.Fatalf("callback fired %d times after unsubscribe", rec.count())
	}
}

func TestStore_HintNilIsFalse(t *testing.T) {
	store := authguard.NewStore(nil)
	if store.HasPersistedSessionHint() {
		t.Error("nil hint must report false")
	}
}

func TestStore_HintNeverPanics(t *testing.T) {
	store := authguard.NewStore(func() bool {
		panic("corrupt local storage")
	})
	if store.HasPersistedSessionHint() {
		t.Error("panicking hint must report false")
	}
}

func TestStore_HintDoesNotGateState(t *testing.T) {
	// A present hint must not move the store out of checking.
	store := authguard.NewStore(func() bool { return true })

	if !store.HasPersistedSessionHint() {
		t.Fatal("expected hint")
	}
	if store.Session().Phase != authguard.PhaseChecking {
		t.Error("hint must not resolve the session")
	}
}
