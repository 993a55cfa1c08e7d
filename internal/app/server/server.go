package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Riyakuila/Chat-Flow/internal/app/server/handlers"
	"github.com/Riyakuila/Chat-Flow/pkg/middleware"
)

type Server struct {
	log      *slog.Logger
	name     string
	mux      *http.ServeMux
	srv      *http.Server
	tokens   middleware.TokenValidator
	ws       *handlers.WSHandler
	messages *handlers.MessageHandler
	users    *handlers.UserHandler
	health   *handlers.HealthHandler
}

func NewServer(
	log *slog.Logger,
	name, addr string,
	tokens middleware.TokenValidator,
	ws *handlers.WSHandler,
	messages *handlers.MessageHandler,
	users *handlers.UserHandler,
	health *handlers.HealthHandler,
) *Server {
	s := &Server{
		log:      log.With("component", "http_server"),
		name:     name,
		mux:      http.NewServeMux(),
		tokens:   tokens,
		ws:       ws,
		messages: messages,
		users:    users,
		health:   health,
	}
	s.routes()
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	auth := middleware.AuthMiddleware(s.tokens)

	s.mux.HandleFunc("GET /healthz", s.health.Handler)

	s.mux.Handle("GET /ws", auth(http.HandlerFunc(s.ws.Handler)))
	s.mux.Handle("POST /api/messages/{receiverId}", auth(http.HandlerFunc(s.messages.Send)))
	s.mux.Handle("GET /api/messages/{peerId}", auth(http.HandlerFunc(s.messages.History)))
	s.mux.Handle("POST /api/messages/{peerId}/read", auth(http.HandlerFunc(s.messages.MarkRead)))
	s.mux.Handle("GET /api/me", auth(http.HandlerFunc(s.users.Me)))
	s.mux.Handle("PUT /api/me/visibility", auth(http.HandlerFunc(s.users.SetVisibility)))
}

// Handler is the full middleware chain around the router.
func (s *Server) Handler() http.Handler {
	return middleware.TracerMiddleware(s.name)(middleware.RequestLogger(s.log)(s.mux))
}

// Start blocks until the server stops. A graceful shutdown is not an error.
func (s *Server) Start() error {
	s.log.Info("http server - start - listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests. Hijacked WebSocket connections are not
// tracked by net/http and must be closed by the caller.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
