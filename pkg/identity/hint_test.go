package identity_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sacarolha/sacarolha/pkg/identity"
)

func TestHintFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	hints := identity.NewHintFile(path, nil)

	if _, ok := hints.Load(); ok {
		t.Fatal("expected no hint before save")
	}

	saved := identity.Hint{
		UID:          "u1",
		Email:        "ana@clube.com",
		RefreshToken: "refresh-1",
		LastSignIn:   time.Now(),
	}
	if err := hints.Save(saved); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, ok := hints.Load()
	if !ok {
		t.Fatal("expected hint after save")
	}
	if loaded.UID != saved.UID || loaded.RefreshToken != saved.RefreshToken {
		t.Errorf("loaded = %+v", loaded)
	}
	if !hints.HasRecent() {
		t.Error("fresh hint should read as recent")
	}
}

func TestHintFile_StaleHintIsNotRecent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	hints := identity.NewHintFile(path, nil)

	if err := hints.Save(identity.Hint{
		UID:        "u1",
		LastSignIn: time.Now().Add(-48 * time.Hour),
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if hints.HasRecent() {
		t.Error("a two-day-old sign-in is not a recent session")
	}
}

func TestHintFile_CorruptFileReadsAsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	hints := identity.NewHintFile(path, nil)
	if _, ok := hints.Load(); ok {
		t.Fatal("corrupt hint must read as absent")
	}
	if hints.HasRecent() {
		t.Fatal("corrupt hint must not read as recent")
	}
}

func TestHintFile_ClearIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	hints := identity.NewHintFile(path, nil)

	hints.Clear()
	if err := hints.Save(identity.Hint{UID: "u1", LastSignIn: time.Now()}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	hints.Clear()
	hints.Clear()

	if _, ok := hints.Load(); ok {
		t.Fatal("hint should be gone after clear")
	}
}
