package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Riyakuila/Chat-Flow/internal/app/server/ws"
	"github.com/Riyakuila/Chat-Flow/internal/config"
	"github.com/Riyakuila/Chat-Flow/internal/core/services"
	"github.com/Riyakuila/Chat-Flow/pkg/logging"
	"github.com/Riyakuila/Chat-Flow/pkg/middleware"
)

type WSHandler struct {
	log      *slog.Logger
	manager  services.IManagerService
	upgrader websocket.Upgrader
	opts     ws.Options
}

func NewWSHandler(log *slog.Logger, manager services.IManagerService, cfg config.RealtimeConfig) *WSHandler {
	return &WSHandler{
		log:     log.With("component", "ws_handler"),
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		opts: ws.Options{
			PingInterval: cfg.PingInterval,
			PongWait:     cfg.PongWait,
			WriteWait:    cfg.WriteWait,
			OutboxSize:   cfg.OutboxSize,
			ReadLimit:    int64(cfg.ReadLimit),
		},
	}
}

// Handler upgrades an authenticated request and serves the connection until
// it ends. Frames are dispatched sequentially from this goroutine so events
// of one connection are handled in the order they arrived.
func (s *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		log.ErrorContext(r.Context(), "ws handler - unauthorised missing user_id")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("user.id", userID))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already wrote the HTTP error
		log.WarnContext(r.Context(), "ws handler - upgrade - ws upgrade failed", logging.Err(err))
		return
	}
	// the session outlives the request handler's context
	ctx := context.WithoutCancel(r.Context())
	client := ws.NewClient(s.log, ws.NewWebSocket(conn, s.opts), userID)

	if err := s.manager.HandleConnect(ctx, userID, client); err != nil {
		log.ErrorContext(ctx, "ws handler - handle connect - failed", logging.Err(err))
		client.Close()
		return
	}
	defer s.manager.HandleDisconnect(ctx, userID, client)
	log.InfoContext(ctx, "ws handler - ws connection established", logging.Handle(client.ID()))

	client.ReadLoop(func(data []byte) {
		_ = s.manager.HandleFrame(ctx, userID, client, data)
	})
	log.InfoContext(ctx, "ws handler - ws connection closed", logging.Handle(client.ID()))
}

// originChecker allows requests without an Origin header (non-browser
// clients) and any origin when the list contains "*".
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
