package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Riyakuila/Chat-Flow/pkg/logging"
)

func TestContextLogger(t *testing.T) {
	t.Run("Success - attributes accumulate on the request logger", func(t *testing.T) {
		var buf bytes.Buffer
		ctx := logging.WithContext(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)).With("request_id", "r-1"))
		ctx = logging.With(ctx, logging.User("alice"))

		logging.FromContext(ctx).Info("ws handler - upgrade - accepted")

		assert.Contains(t, buf.String(), "request_id=r-1")
		assert.Contains(t, buf.String(), "user_id=alice")
	})

	t.Run("Success - no request logger falls back to the default", func(t *testing.T) {
		assert.Same(t, slog.Default(), logging.FromContext(context.Background()))
	})
}
