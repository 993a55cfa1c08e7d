package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Riyakuila/Chat-Flow/pkg/logging"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

// Counter reports how many connections this process holds.
type Counter interface {
	Len() int
}

type HealthHandler struct {
	db    Pinger
	conns Counter
}

func NewHealthHandler(db Pinger, conns Counter) *HealthHandler {
	return &HealthHandler{db: db, conns: conns}
}

func (h *HealthHandler) Handler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			logging.FromContext(ctx).ErrorContext(ctx, "health handler - ping - database unreachable", logging.Err(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "connections": h.conns.Len()})
}
