package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Riyakuila/Chat-Flow/internal/core/domain"
	"github.com/Riyakuila/Chat-Flow/pkg/logging"
	"github.com/Riyakuila/Chat-Flow/pkg/middleware"
)

type PresenceService interface {
	Profile(ctx context.Context, userID string) (*domain.User, bool, error)
	SetVisibility(ctx context.Context, userID string, online bool) (*domain.User, error)
}

type UserHandler struct {
	presence PresenceService
}

func NewUserHandler(presence PresenceService) *UserHandler {
	return &UserHandler{presence: presence}
}

type userResponse struct {
	ID        string    `json:"id"`
	IsOnline  bool      `json:"isOnline"`
	Connected bool      `json:"connected"`
	LastSeen  time.Time `json:"lastSeen"`
}

// Me returns the caller's visibility flag and whether it is connected.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	user, connected, err := h.presence.Profile(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{
		ID:        user.ID,
		IsOnline:  user.IsOnline,
		Connected: connected,
		LastSeen:  user.LastSeen,
	})
}

func (h *UserHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req struct {
		Online *bool `json:"online"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Online == nil {
		log.WarnContext(r.Context(), "user handler - set visibility - bad request")
		writeJSON(w, http.StatusBadRequest, domain.ErrorMessage{Code: "Bad Request", Message: "online is required"})
		return
	}
	user, err := h.presence.SetVisibility(r.Context(), userID, *req.Online)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.VisibilityEvent{
		UserID:   user.ID,
		IsOnline: user.IsOnline,
		LastSeen: user.LastSeen,
	})
}
