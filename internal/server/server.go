package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatroom-auth-service/internal/auth"
	"chatroom-auth-service/internal/chatroom"
	"chatroom-auth-service/internal/session"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"
)

// Authenticator is implemented by auth.Facade
type Authenticator interface {
	Register(ctx context.Context, in auth.RegisterInput) (auth.Result, error)
	Login(ctx context.Context, username, password string) (auth.Result, error)
	Logout(ctx context.Context, token session.Token) error
	ContinueSession(ctx context.Context, accountID int64, token session.Token) (auth.UserInfo, error)
}

// Chatrooms is implemented by chatroom.Controller
type Chatrooms interface {
	Create(ctx context.Context, s session.Session, name string, password *string) (chatroom.Chatroom, error)
	FetchByHumanID(ctx context.Context, s session.Session, humanID string, password *string) (chatroom.Chatroom, error)
	FetchKnown(ctx context.Context, s session.Session, ids []int64) ([]chatroom.Chatroom, error)
	Join(ctx context.Context, s session.Session, humanID string, password *string) (chatroom.Chatroom, error)
}

// Pinger reports storage health for /healthz
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server defines fields used in HTTP processing
type Server struct {
	logger        *zap.SugaredLogger
	httpServer    *http.Server
	afterShutdown []func()
}

// NewServer builds the API routes, wraps them with middlewares and applies options
func NewServer(logger *zap.SugaredLogger, authenticator Authenticator, chatrooms Chatrooms, db Pinger, opts ...Option) (*Server, error) {
	h := &handler{
		logger:    logger,
		auth:      authenticator,
		chatrooms: chatrooms,
		parsers:   &fastjson.ParserPool{},
	}

	cfg := &config{
		httpServer: &http.Server{
			Addr:              ":9000",
			ReadHeaderTimeout: 5 * time.Second,
		},
		handlers: map[string]http.Handler{
			"/api/register":             http.HandlerFunc(h.register),
			"/api/login":                http.HandlerFunc(h.login),
			"/api/session":              http.HandlerFunc(h.continueSession),
			"/api/logout":               http.HandlerFunc(h.logout),
			"/api/chatroom/fetch":       http.HandlerFunc(h.fetchChatroom),
			"/api/chatroom/fetch_known": http.HandlerFunc(h.fetchKnownChatrooms),
			"/api/chatroom/create":      http.HandlerFunc(h.createChatroom),
			"/api/chatroom/join":        http.HandlerFunc(h.joinChatroom),
		},
	}

	applyEnforcePOSTJSON().apply(cfg)
	for _, opt := range opts {
		opt.apply(cfg)
	}
	applyMetrics().apply(cfg)
	applyLog(logger.Desugar()).apply(cfg)

	cfg.handlers["/metrics"] = promhttp.Handler()
	cfg.handlers["/healthz"] = healthz(logger, db)

	registerHandlers().apply(cfg)
	applyCORS().apply(cfg)
	applyRecovery(logger).apply(cfg)

	return &Server{
		logger:        logger,
		httpServer:    cfg.httpServer,
		afterShutdown: cfg.afterShutdown,
	}, nil
}

// Handler exposes the fully wrapped handler, used by tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func healthz(logger *zap.SugaredLogger, db Pinger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			logger.Warnw("Health check failed", "error", err)
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

// Start calls ListenAndServe on http.Server instance inside Server struct
// and implements graceful shutdown via goroutine waiting for signals
func (s *Server) Start() error {
	idleConnsClosed := make(chan struct{})

	go func() {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Errorf("srv.Shutdown: %v", err)
		}
		s.logger.Info("HTTP server is stopped")

		close(idleConnsClosed)
	}()

	s.logger.Infof("Starting HTTP server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("s.httpServer.ListenAndServe: %w", err)
	}

	<-idleConnsClosed

	for _, f := range s.afterShutdown {
		f()
	}

	return nil
}
