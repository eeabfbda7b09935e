package live

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sacarolha/sacarolha/pkg/authguard"
	"github.com/sacarolha/sacarolha/pkg/middleware"
	"github.com/sacarolha/sacarolha/pkg/routegate"
	"github.com/sacarolha/sacarolha/pkg/wine"
)

// Conn is the subset of *websocket.Conn the session needs. Tests supply
// an in-memory implementation.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// eventQueueSize bounds incoming events per session. Auth transitions and
// client frames share the queue; it only backs up if the loop stalls.
const eventQueueSize = 16

// event is one unit of work for the session loop.
type event struct {
	frame Frame
	// reevaluate is set for auth transitions: re-run the route gate
	// against the current path instead of handling a client frame.
	reevaluate bool
}

// Config carries per-session settings.
type Config struct {
	// Classification decides which paths are protected. Zero value means
	// the default route table.
	Classification routegate.Classification
	// FailSafe bounds how long the session may stay in the checking
	// phase. Zero means authguard.DefaultFailSafe.
	FailSafe time.Duration
	// InitialPath is gated as soon as the session starts, before any
	// client frame arrives. Empty means wait for the first navigate.
	InitialPath string
}

// Session is one live connection. A single goroutine (Run) owns all
// session state; the read loop and auth listener only feed its queue.
type Session struct {
	id       string
	conn     Conn
	provider authguard.Provider
	store    *authguard.Store
	config   Config

	wines   wine.Store
	metrics *middleware.Metrics
	logger  *slog.Logger

	redirector  *routegate.Redirector
	currentPath string
	// returnTo remembers the protected path a signed-out visitor was
	// bounced from, to land there after sign-in instead of the default
	// landing screen.
	returnTo string

	events chan event
	cancel context.CancelFunc
}

// Option configures a session.
type Option func(*Session)

// WithWineStore attaches the catalogue so list screens render with data.
func WithWineStore(store wine.Store) Option {
	return func(s *Session) { s.wines = store }
}

// WithMetrics attaches session metrics.
func WithMetrics(m *middleware.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// NewSession builds a live session over conn. The hint func reports
// whether a persisted session likely exists; it tunes the loading copy,
// never the gate itself.
func NewSession(conn Conn, provider authguard.Provider, hint func() bool, config Config, opts ...Option) *Session {
	if config.Classification.Login() == "" {
		config.Classification = routegate.Default()
	}
	s := &Session{
		id:       uuid.NewString(),
		conn:     conn,
		provider: provider,
		store:    authguard.NewStore(hint),
		config:   config,
		logger:   slog.Default(),
		events:   make(chan event, eventQueueSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session_id", s.id)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Run drives the session until the context is canceled or the
// connection closes. It owns the auth listener lifecycle: the listener
// starts with the session and is torn down before Run returns, so no
// auth event can mutate state afterwards.
func (s *Session) Run(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	defer s.cancel()

	if s.metrics != nil {
		s.metrics.SessionOpened()
		defer s.metrics.SessionClosed()
	}

	listenerOpts := []authguard.ListenerOption{
		authguard.WithListenerLogger(s.logger),
	}
	if s.config.FailSafe > 0 {
		listenerOpts = append(listenerOpts, authguard.WithFailSafe(s.config.FailSafe))
	}
	if s.metrics != nil {
		listenerOpts = append(listenerOpts, authguard.WithFailSafeHook(s.metrics.FailSafeFired))
	}
	listener := authguard.NewListener(s.provider, s.store, listenerOpts...)

	redirectorOpts := []routegate.RedirectorOption{
		routegate.WithRedirectorLogger(s.logger),
	}
	if s.metrics != nil {
		redirectorOpts = append(redirectorOpts, routegate.WithDecisionHook(func(d routegate.Decision) {
			s.metrics.ObserveDecision(d.Action.String())
		}))
	}
	s.redirector = routegate.NewRedirector(s.config.Classification, routegate.NavigatorFunc(s.sendReplace), redirectorOpts...)

	// Queue a re-evaluation on every auth transition. The callback runs
	// on the listener's goroutine; the loop below applies it.
	unsubscribe := s.store.Subscribe(func(_ authguard.Identity, _ bool) {
		select {
		case s.events <- event{reevaluate: true}:
		case <-ctx.Done():
		}
	})
	defer unsubscribe()

	if err := listener.Start(ctx); err != nil {
		return err
	}
	defer listener.Stop()

	go s.readLoop(ctx)

	if s.config.InitialPath != "" {
		s.handleNavigate(ctx, s.config.InitialPath)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			if ev.reevaluate {
				s.reevaluate(ctx)
				continue
			}
			s.dispatch(ctx, ev.frame)
		}
	}
}

// readLoop feeds client frames into the event queue. It runs on its own
// goroutine and cancels the session when the connection drops.
func (s *Session) readLoop(ctx context.Context) {
	defer s.cancel()

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("read error", "error", err)
			}
			return
		}

		frame, err := DecodeFrame(msg)
		if err != nil {
			s.logger.Error("frame decode error", "error", err)
			continue
		}

		select {
		case s.events <- event{frame: frame}:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) dispatch(ctx context.Context, frame Frame) {
	switch frame.Type {
	case FrameNavigate:
		s.handleNavigate(ctx, frame.Path)
	case FrameSignIn:
		s.handleSignIn(ctx, frame.Email, frame.Password)
	case FrameSignOut:
		s.handleSignOut(ctx)
	case FrameResetPassword:
		s.handleResetPassword(ctx, frame.Email)
	case FrameWineSave:
		s.handleWineSave(ctx, frame.Wine)
	case FrameWineDelete:
		s.handleWineDelete(ctx, frame.ID)
	case FrameWineGet:
		s.handleWineGet(ctx, frame.ID)
	default:
		s.logger.Warn("unknown frame type", "type", frame.Type)
	}
}

// handleNavigate gates a client navigation. A redirect decision emits
// only the replace frame; the client follows up with a navigate for the
// target, which is gated in turn.
func (s *Session) handleNavigate(ctx context.Context, path string) {
	start := time.Now()
	ctx, span := middleware.StartNavigationSpan(ctx, "sacarolha", path)
	defer span.End()
	s.currentPath = routegate.Canonical(path)

	decision := s.redirector.React(s.store.Session(), path)
	s.apply(ctx, decision)

	if s.metrics != nil {
		s.metrics.ObserveNavigation(path, time.Since(start))
	}
}

// reevaluate re-runs the gate for the current path after an auth
// transition. A sign-out while on a protected screen redirects to login;
// resolution while loading renders or redirects.
func (s *Session) reevaluate(ctx context.Context) {
	session := s.store.Session()

	// A sign-in with a remembered origin goes back there, not to the
	// default landing screen.
	if s.returnTo != "" && session.Phase == authguard.PhaseResolved && session.Authenticated {
		target := s.returnTo
		s.returnTo = ""
		s.sendReplace(target)
		return
	}

	if s.currentPath == "" {
		return
	}
	decision := s.redirector.React(session, s.currentPath)
	s.apply(ctx, decision)
}

func (s *Session) apply(ctx context.Context, decision routegate.Decision) {
	switch decision.Action {
	case routegate.ActionLoading:
		s.sendLoading()
	case routegate.ActionRender:
		s.sendRender(ctx)
	case routegate.ActionRedirect:
		// The redirector's navigator already wrote the replace frame.
		if decision.ReturnTo != "" {
			s.returnTo = routegate.Canonical(decision.ReturnTo)
		}
	}
}

func (s *Session) handleSignIn(ctx context.Context, email, password string) {
	_, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		code := string(authguard.CodeOf(err))
		s.logger.Warn("sign-in failed", "code", code)
		if s.metrics != nil {
			s.metrics.ObserveSignIn(false)
		}
		s.writeFrame(Frame{Type: FrameError, Code: code, Message: signInErrorMessage(authguard.CodeOf(err))})
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveSignIn(true)
	}
	// The provider notifies the listener; the resulting transition
	// re-gates the current path.
}

func (s *Session) handleSignOut(ctx context.Context) {
	if err := s.provider.SignOut(ctx); err != nil {
		s.logger.Error("sign-out failed", "error", err)
		s.writeFrame(Frame{Type: FrameError, Code: string(authguard.CodeOf(err)), Message: "Não foi possível sair. Tente novamente."})
	}
}

func (s *Session) handleResetPassword(ctx context.Context, email string) {
	if err := s.provider.SendPasswordReset(ctx, email); err != nil {
		s.logger.Warn("password reset failed", "error", err)
		s.writeFrame(Frame{Type: FrameError, Code: string(authguard.CodeOf(err)), Message: "Não foi possível enviar o email de redefinição."})
		return
	}
	s.writeFrame(Frame{Type: FrameNotice, Message: "Email de redefinição enviado."})
}

// handleWineSave creates the record when it carries no ID, updates it
// otherwise, and answers with the stored record.
func (s *Session) handleWineSave(ctx context.Context, record *wine.Record) {
	if s.wines == nil || record == nil {
		s.writeFrame(Frame{Type: FrameError, Message: "Catálogo indisponível."})
		return
	}

	var (
		saved wine.Record
		err   error
	)
	if record.ID == "" {
		saved, err = s.wines.Create(ctx, *record)
	} else {
		saved, err = s.wines.Update(ctx, *record)
	}
	if err != nil {
		s.logger.Warn("saving wine failed", "error", err)
		s.writeFrame(Frame{Type: FrameError, Message: wineErrorMessage(err)})
		return
	}

	s.writeFrame(Frame{Type: FrameWine, Wine: &saved})
	s.writeFrame(Frame{Type: FrameNotice, Message: "Vinho salvo."})
}

func (s *Session) handleWineDelete(ctx context.Context, id string) {
	if s.wines == nil || id == "" {
		s.writeFrame(Frame{Type: FrameError, Message: "Catálogo indisponível."})
		return
	}
	if err := s.wines.Delete(ctx, id); err != nil {
		s.logger.Warn("deleting wine failed", "id", id, "error", err)
		s.writeFrame(Frame{Type: FrameError, Message: wineErrorMessage(err)})
		return
	}
	s.writeFrame(Frame{Type: FrameNotice, Message: "Vinho removido."})
}

func (s *Session) handleWineGet(ctx context.Context, id string) {
	if s.wines == nil || id == "" {
		s.writeFrame(Frame{Type: FrameError, Message: "Catálogo indisponível."})
		return
	}
	record, err := s.wines.Get(ctx, id)
	if err != nil {
		s.writeFrame(Frame{Type: FrameError, Message: wineErrorMessage(err)})
		return
	}
	s.writeFrame(Frame{Type: FrameWine, Wine: &record})
}

func wineErrorMessage(err error) string {
	switch {
	case errors.Is(err, wine.ErrNotFound):
		return "Vinho não encontrado."
	case errors.Is(err, wine.ErrInvalidRecord):
		return "Dados do vinho inválidos."
	default:
		return "Não foi possível salvar. Tente novamente."
	}
}

func (s *Session) sendLoading() {
	message := "Verificando autenticação..."
	if s.store.HasPersistedSessionHint() {
		message = "Restaurando sessão..."
	}
	s.writeFrame(Frame{Type: FrameLoading, Message: message})
}

func (s *Session) sendRender(ctx context.Context) {
	frame := Frame{Type: FrameRender, Path: s.currentPath}
	if s.wines != nil && s.currentPath == "/listagem" {
		records, err := s.wines.List(ctx)
		if err != nil {
			s.logger.Error("listing wines", "error", err)
		} else {
			frame.Wines = records
		}
	}
	s.writeFrame(frame)
}

// sendReplace is the redirector's navigator: it pushes the history
// replacement down to the client.
func (s *Session) sendReplace(path string) {
	s.writeFrame(Frame{Type: FrameReplace, Path: path})
}

func (s *Session) writeFrame(frame Frame) {
	data, err := EncodeFrame(frame)
	if err != nil {
		s.logger.Error("frame encode error", "error", err)
		return
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Error("write error", "error", err)
		s.cancel()
	}
}

func signInErrorMessage(code authguard.ErrorCode) string {
	switch code {
	case authguard.CodeInvalidCredentials:
		return "Email ou senha incorretos."
	case authguard.CodeUserDisabled:
		return "Esta conta foi desativada."
	case authguard.CodeUserNotFound:
		return "Nenhuma conta encontrada para este email."
	case authguard.CodeRateLimited:
		return "Muitas tentativas. Aguarde alguns minutos."
	case authguard.CodeNetwork:
		return "Falha de conexão. Verifique sua internet."
	default:
		return "Não foi possível entrar. Tente novamente."
	}
}
