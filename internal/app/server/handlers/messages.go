package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Riyakuila/Chat-Flow/internal/core/domain"
	"github.com/Riyakuila/Chat-Flow/internal/core/services"
	"github.com/Riyakuila/Chat-Flow/pkg/logging"
	"github.com/Riyakuila/Chat-Flow/pkg/middleware"
)

type MessageService interface {
	Relay(ctx context.Context, req services.RelayRequest) (*domain.Message, error)
	History(ctx context.Context, userID, peerID string, limit int) ([]domain.Message, error)
	MarkRead(ctx context.Context, readerID, peerID string) (int64, error)
}

// MessageHandler is the HTTP side door to the relay, used by clients that
// send without an open socket and to load history.
type MessageHandler struct {
	messages MessageService
}

func NewMessageHandler(messages MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

type sendRequest struct {
	Content  string `json:"content"`
	ClientID string `json:"id"`
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	senderID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.WarnContext(r.Context(), "message handler - send - bad request", logging.Err(err))
		writeError(w, domain.ErrInvalidMessage)
		return
	}
	msg, err := h.messages.Relay(r.Context(), services.RelayRequest{
		SenderID:   senderID,
		ReceiverID: r.PathValue("receiverId"),
		Content:    req.Content,
		ClientID:   req.ClientID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, domain.NewMessageView(msg))
}

func (h *MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, domain.ErrorMessage{Code: "Bad Request", Message: "limit must be a number"})
			return
		}
		limit = n
	}
	msgs, err := h.messages.History(r.Context(), userID, r.PathValue("peerId"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]domain.MessageView, 0, len(msgs))
	for i := range msgs {
		views = append(views, domain.NewMessageView(&msgs[i]))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	n, err := h.messages.MarkRead(r.Context(), userID, r.PathValue("peerId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}
