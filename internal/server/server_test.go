package server_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sacarolha/sacarolha/internal/config"
	"github.com/sacarolha/sacarolha/internal/server"
	"github.com/sacarolha/sacarolha/pkg/authguard"
)

type stubProvider struct{}

func (stubProvider) SignIn(context.Context, string, string) (authguard.Identity, error) {
	return nil, errors.New("not implemented")
}
func (stubProvider) SignOut(context.Context) error { return nil }

func (stubProvider) OnAuthStateChanged(func(authguard.Identity)) func() { return func() {} }
func (stubProvider) ForceTokenRefresh(context.Context, authguard.Identity) (authguard.Credential, error) {
	return authguard.Credential{}, errors.New("not implemented")
}
func (stubProvider) SendPasswordReset(context.Context, string) error { return nil }
func (stubProvider) HasPersistedSession() bool                       { return false }

func newTestServer(t *testing.T, opts ...server.Option) *server.Server {
	t.Helper()
	cfg := config.Config{}
	cfg.Server.Addr = ":0"
	cfg.Server.FailSafe = time.Second
	factory := func(context.Context) (server.Provider, error) {
		return stubProvider{}, nil
	}
	return server.New(cfg, factory, nil, nil, opts...)
}

func TestServer_HealthzOK(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestServer_HealthzFailingProbe(t *testing.T) {
	srv := newTestServer(t, server.WithHealthcheck(func(context.Context) error {
		return errors.New("mongo down")
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestServer_AppPathsServeShell(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/", "/login", "/home", "/listagem"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want %d", path, rec.Code, http.StatusOK)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Fatalf("%s: content type = %q, want text/html", path, ct)
		}
		if !strings.Contains(rec.Body.String(), "/live") {
			t.Fatalf("%s: shell does not reference the live endpoint", path)
		}
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestServer_LiveRejectsPlainHTTP(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	// Without an upgrade handshake the endpoint must not serve content.
	if rec.Code == http.StatusOK {
		t.Fatalf("status = %d, want a handshake error", rec.Code)
	}
}
