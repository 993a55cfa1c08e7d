package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/Riyakuila/Chat-Flow/internal/core/contracts"
	"github.com/Riyakuila/Chat-Flow/internal/core/domain"
)

var (
	tracer = otel.Tracer("chat-core")
	meter  = otel.Meter("chat-core")

	messagesPersisted, _ = meter.Int64Counter("messages_persisted_total",
		metric.WithDescription("Messages written to the store"))
	messagesDelivered, _ = meter.Int64Counter("messages_delivered_total",
		metric.WithDescription("Persisted messages forwarded to a live receiver"))
	typingRelayed, _ = meter.Int64Counter("typing_relayed_total",
		metric.WithDescription("Typing signals forwarded"))
	visibilityUpdates, _ = meter.Int64Counter("visibility_updates_total",
		metric.WithDescription("Visibility flag changes"))
	callTransitions, _ = meter.Int64Counter("call_transitions_total",
		metric.WithDescription("Call state transitions by target state"))
	connectionsOpened, _ = meter.Int64Counter("connections_opened_total",
		metric.WithDescription("Registered connections"))
	connectionsClosed, _ = meter.Int64Counter("connections_closed_total",
		metric.WithDescription("Effective unregisters"))
)

// push encodes one event and queues it on h.
func push(ctx context.Context, h contracts.Handle, event string, data any) error {
	frame, err := domain.Encode(event, data)
	if err != nil {
		return err
	}
	return h.Send(ctx, frame)
}
