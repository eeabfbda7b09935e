package identity

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// hintMaxAge bounds how long a persisted session is considered worth
// mentioning. Past it the hint reads as absent.
const hintMaxAge = 24 * time.Hour

// Hint is the locally persisted trace of the last session. It is
// best-effort data: reading it can only change a loading message, never
// an authentication decision.
type Hint struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	RefreshToken string    `json:"refresh_token"`
	LastSignIn   time.Time `json:"last_sign_in"`
}

// HintFile persists the Hint as JSON on disk.
type HintFile struct {
	path   string
	logger *slog.Logger
}

// NewHintFile creates a HintFile at path. An empty path places the file
// under the user cache directory.
func NewHintFile(path string, logger *slog.Logger) *HintFile {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			path = filepath.Join(dir, "sacarolha", "session.json")
		} else {
			path = filepath.Join(os.TempDir(), "sacarolha-session.json")
		}
	}
	return &HintFile{path: path, logger: logger.With("component", "identity.hint")}
}

// Load reads the hint. Missing or corrupt files report !ok; they are
// never an error worth surfacing.
func (h *HintFile) Load() (Hint, bool) {
	data, err := os.ReadFile(h.path)
	if err != nil {
		return Hint{}, false
	}
	var hint Hint
	if err := json.Unmarshal(data, &hint); err != nil {
		h.logger.Debug("discarding corrupt session hint", "path", h.path, "error", err)
		return Hint{}, false
	}
	if hint.UID == "" {
		return Hint{}, false
	}
	return hint, true
}

// Save writes the hint, creating parent directories as needed.
func (h *HintFile) Save(hint Hint) error {
	if err := os.MkdirAll(filepath.Dir(h.path), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(hint)
	if err != nil {
		return err
	}
	return os.WriteFile(h.path, data, 0o600)
}

// Clear removes the persisted hint. Missing files are fine.
func (h *HintFile) Clear() {
	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
		h.logger.Debug("clearing session hint failed", "path", h.path, "error", err)
	}
}

// HasRecent reports whether a hint exists with a sign-in inside the
// freshness window. Synchronous, non-blocking, never panics.
func (h *HintFile) HasRecent() bool {
	hint, ok := h.Load()
	if !ok {
		return false
	}
	return time.Since(hint.LastSignIn) < hintMaxAge
}
