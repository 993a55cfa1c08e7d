package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Riyakuila/Chat-Flow/internal/core/domain"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps domain errors to HTTP status codes. Unexpected errors are
// reported without detail.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, domain.ErrInvalidMessage),
		errors.Is(err, domain.ErrInvalidUserID),
		errors.Is(err, domain.ErrEmptyContent):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrChatNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrForbidden):
		status, msg = http.StatusForbidden, err.Error()
	}
	writeJSON(w, status, domain.ErrorMessage{Code: http.StatusText(status), Message: msg})
}
