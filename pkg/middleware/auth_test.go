package middleware_test

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Riyakuila/Chat-Flow/pkg/middleware"
)

type staticTokens map[string]string

func (s staticTokens) ValidateToken(token string) (string, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return "", errors.New("unknown token")
}

func TestAuthMiddleware(t *testing.T) {
	var gotUser string
	h := middleware.AuthMiddleware(staticTokens{"good": "alice"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = middleware.UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		query  string
		status int
		user   string
	}{
		{name: "Success - bearer header", header: "Bearer good", status: http.StatusNoContent, user: "alice"},
		{name: "Success - lower case scheme", header: "bearer good", status: http.StatusNoContent, user: "alice"},
		{name: "Success - query token", query: "?token=good", status: http.StatusNoContent, user: "alice"},
		{name: "Failure - missing token", status: http.StatusUnauthorized},
		{name: "Failure - wrong scheme", header: "Basic good", status: http.StatusUnauthorized},
		{name: "Failure - unknown token", header: "Bearer bad", status: http.StatusUnauthorized},
		{name: "Failure - header wins over query", header: "Bearer bad", query: "?token=good", status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUser = ""
			req := httptest.NewRequest(http.MethodGet, "/ws"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.user, gotUser)
		})
	}
}

func TestTracerMiddlewareKeepsStatus(t *testing.T) {
	h := middleware.TracerMiddleware("test")(middleware.RequestLogger(discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
