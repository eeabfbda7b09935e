package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/sacarolha/sacarolha/pkg/authguard"
)

// Config holds the identity toolkit settings, loadable from the
// environment.
type Config struct {
	APIKey        string        `env:"IDENTITY_API_KEY,required"`
	Endpoint      string        `env:"IDENTITY_ENDPOINT" envDefault:"https://identitytoolkit.googleapis.com/v1"`
	TokenEndpoint string        `env:"IDENTITY_TOKEN_ENDPOINT" envDefault:"https://securetoken.googleapis.com/v1"`
	Timeout       time.Duration `env:"IDENTITY_TIMEOUT" envDefault:"10s"`
	HintPath      string        `env:"IDENTITY_HINT_PATH"`
}

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("identity: missing API key")

// ErrNoCurrentUser is returned when an operation needs a signed-in user
// and there is none.
var ErrNoCurrentUser = errors.New("identity: no current user")

// User is the provider-side identity handle.
type User struct {
	uid   string
	email string
}

func (u *User) UID() string   { return u.uid }
func (u *User) Email() string { return u.email }

// Client talks to the identity toolkit and implements
// authguard.Provider. Safe for concurrent use.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
	hints  *HintFile

	mu           sync.Mutex
	current      *User
	refreshToken string
	listeners    map[int]func(authguard.Identity)
	nextListener int
	resolved     bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for provider calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger.With("component", "identity")
		}
	}
}

// New creates a Client for cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &Client{
		cfg:       cfg,
		http:      &http.Client{Timeout: cfg.Timeout},
		logger:    slog.Default().With("component", "identity"),
		listeners: make(map[int]func(authguard.Identity)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.hints = NewHintFile(cfg.HintPath, c.logger)
	return c, nil
}

// HasPersistedSession reports the non-authoritative local hint of a
// prior session. Suitable as the hint func of authguard.NewStore.
func (c *Client) HasPersistedSession() bool {
	return c.hints.HasRecent()
}

// Resume restores the previous session, if any, by exchanging the
// persisted refresh token. It always settles the client's auth state:
// listeners are notified with the restored user or with nil. Call once
// at startup, after registering listeners.
func (c *Client) Resume(ctx context.Context) {
	hint, ok := c.hints.Load()
	if !ok || hint.RefreshToken == "" {
		c.setCurrent(nil, "")
		return
	}

	refreshed, err := c.exchangeRefreshToken(ctx, hint.RefreshToken)
	if err != nil {
		c.logger.Info("session restore failed, starting signed out", "error", err)
		c.hints.Clear()
		c.setCurrent(nil, "")
		return
	}

	user := &User{uid: refreshed.userID, email: hint.Email}
	if user.uid == "" {
		user.uid = hint.UID
	}
	c.setCurrent(user, refreshed.refreshToken)
}

// SignIn implements authguard.Provider.
func (c *Client) SignIn(ctx context.Context, email, password string) (authguard.Identity, error) {
	var resp struct {
		LocalID      string `json:"localId"`
		Email        string `json:"email"`
		IDToken      string `json:"idToken"`
		RefreshToken string `json:"refreshToken"`
		ExpiresIn    string `json:"expiresIn"`
	}
	err := c.postJSON(ctx, c.cfg.Endpoint+"/accounts:signInWithPassword?key="+url.QueryEscape(c.cfg.APIKey), map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	user := &User{uid: resp.LocalID, email: resp.Email}
	if err := c.hints.Save(Hint{
		UID:          user.uid,
		Email:        user.email,
		RefreshToken: resp.RefreshToken,
		LastSignIn:   time.Now(),
	}); err != nil {
		c.logger.Warn("persisting session hint failed", "error", err)
	}
	c.setCurrent(user, resp.RefreshToken)
	return user, nil
}

// SignOut implements authguard.Provider.
func (c *Client) SignOut(ctx context.Context) error {
	c.hints.Clear()
	c.setCurrent(nil, "")
	return nil
}

// OnAuthStateChanged implements authguard.Provider. Once the client has
// settled (after Resume, SignIn, or SignOut), new callbacks are invoked
// immediately with the current user.
func (c *Client) OnAuthStateChanged(cb func(authguard.Identity)) func() {
	c.mu.Lock()
	c.nextListener++
	id := c.nextListener
	c.listeners[id] = cb
	resolved := c.resolved
	current := c.current
	c.mu.Unlock()

	if resolved {
		cb(identityOrNil(current))
	}

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// ForceTokenRefresh implements authguard.Provider. It exchanges the
// stored refresh token and reports the fresh ID token with its expiry.
func (c *Client) ForceTokenRefresh(ctx context.Context, id authguard.Identity) (authguard.Credential, error) {
	ctx, span := otel.Tracer("sacarolha/identity").Start(ctx, "identity.token_refresh")
	defer span.End()

	c.mu.Lock()
	current := c.current
	refreshToken := c.refreshToken
	c.mu.Unlock()

	if current == nil || refreshToken == "" {
		return authguard.Credential{}, ErrNoCurrentUser
	}
	if id != nil && id.UID() != current.uid {
		return authguard.Credential{}, fmt.Errorf("identity: refresh for unknown user %q", id.UID())
	}

	refreshed, err := c.exchangeRefreshToken(ctx, refreshToken)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token refresh failed")
		return authguard.Credential{}, err
	}

	c.mu.Lock()
	c.refreshToken = refreshed.refreshToken
	c.mu.Unlock()

	return authguard.Credential{
		Token:     refreshed.idToken,
		ExpiresAt: refreshed.expiresAt,
	}, nil
}

// SendPasswordReset implements authguard.Provider.
func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	var resp struct {
		Email string `json:"email"`
	}
	return c.postJSON(ctx, c.cfg.Endpoint+"/accounts:sendOobCode?key="+url.QueryEscape(c.cfg.APIKey), map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}, &resp)
}

type refreshResult struct {
	idToken      string
	refreshToken string
	userID       string
	expiresAt    time.Time
}

func (c *Client) exchangeRefreshToken(ctx context.Context, refreshToken string) (refreshResult, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.TokenEndpoint+"/token?key="+url.QueryEscape(c.cfg.APIKey),
		strings.NewReader(form.Encode()))
	if err != nil {
		return refreshResult{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return refreshResult{}, authguard.NewAuthError(authguard.CodeNetwork, "", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return refreshResult{}, authguard.NewAuthError(authguard.CodeNetwork, "", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return refreshResult{}, providerError(body)
	}

	var resp struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		UserID       string `json:"user_id"`
		ExpiresIn    string `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return refreshResult{}, fmt.Errorf("identity: decoding token response: %w", err)
	}

	return refreshResult{
		idToken:      resp.IDToken,
		refreshToken: resp.RefreshToken,
		userID:       resp.UserID,
		expiresAt:    tokenExpiry(resp.IDToken, resp.ExpiresIn),
	}, nil
}

// tokenExpiry determines when the refreshed ID token expires. The exp
// claim inside the token is authoritative when present; the expires_in
// field is the fallback. An unreadable expiry reads as already expired,
// which fails closed downstream.
func tokenExpiry(idToken, expiresIn string) time.Time {
	if idToken != "" {
		claims := jwt.MapClaims{}
		// The provider signed this token upstream; only the expiry claim
		// is read here, so signature verification is not repeated.
		if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err == nil {
			if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
				return exp.Time
			}
		}
	}
	if secs, err := strconv.Atoi(expiresIn); err == nil && secs > 0 {
		return time.Now().Add(time.Duration(secs) * time.Second)
	}
	return time.Time{}
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return authguard.NewAuthError(authguard.CodeNetwork, "", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return authguard.NewAuthError(authguard.CodeNetwork, "", err)
	}
	if resp.StatusCode != http.StatusOK {
		return providerError(data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("identity: decoding response: %w", err)
		}
	}
	return nil
}

// providerError maps the toolkit's error payload to an AuthError code.
func providerError(body []byte) error {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)
	message := payload.Error.Message

	// Messages can carry suffixes like "TOO_MANY_ATTEMPTS_TRY_LATER :
	// retry later"; classify on the leading keyword.
	keyword, _, _ := strings.Cut(message, " ")

	var code authguard.ErrorCode
	switch keyword {
	case "EMAIL_NOT_FOUND":
		code = authguard.CodeUserNotFound
	case "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "INVALID_REFRESH_TOKEN", "TOKEN_EXPIRED":
		code = authguard.CodeInvalidCredentials
	case "USER_DISABLED":
		code = authguard.CodeUserDisabled
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		code = authguard.CodeRateLimited
	default:
		code = authguard.CodeUnknown
	}
	return authguard.NewAuthError(code, message, nil)
}

// setCurrent swaps the current user, marks the client settled, and
// notifies listeners.
func (c *Client) setCurrent(user *User, refreshToken string) {
	c.mu.Lock()
	c.current = user
	c.refreshToken = refreshToken
	c.resolved = true
	listeners := make([]func(authguard.Identity), 0, len(c.listeners))
	for _, cb := range c.listeners {
		listeners = append(listeners, cb)
	}
	c.mu.Unlock()

	id := identityOrNil(user)
	for _, cb := range listeners {
		cb(id)
	}
}

func identityOrNil(user *User) authguard.Identity {
	if user == nil {
		return nil
	}
	return user
}
