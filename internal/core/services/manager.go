package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Riyakuila/Chat-Flow/internal/core/contracts"
	"github.com/Riyakuila/Chat-Flow/internal/core/domain"
	"github.com/Riyakuila/Chat-Flow/pkg/logging"
)

type IManagerService interface {
	// HandleConnect registers the connection, closing any connection it replaces.
	HandleConnect(ctx context.Context, userID string, h contracts.Handle) error
	// HandleFrame decodes one inbound frame and dispatches it.
	HandleFrame(ctx context.Context, userID string, h contracts.Handle, raw []byte) error
	// HandleDisconnect unregisters the connection if it is still current.
	HandleDisconnect(ctx context.Context, userID string, h contracts.Handle) bool
}

// ManagerService is the per-connection control point: every inbound event
// of one connection passes through Dispatch, one at a time.
type ManagerService struct {
	log      *slog.Logger
	registry contracts.ConnectionRegistry
	messages *MessageService
	presence *PresenceService
	calls    *CallService
}

func NewManagerService(
	log *slog.Logger,
	registry contracts.ConnectionRegistry,
	messages *MessageService,
	presence *PresenceService,
	calls *CallService,
) *ManagerService {
	return &ManagerService{
		log:      log.With("component", "manager"),
		registry: registry,
		messages: messages,
		presence: presence,
		calls:    calls,
	}
}

var _ contracts.Evictor = (*ManagerService)(nil)

func (c *ManagerService) HandleConnect(ctx context.Context, userID string, h contracts.Handle) error {
	ctx, span := tracer.Start(ctx, "ManagerService.HandleConnect", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("handle_id", h.ID()),
	))
	defer span.End()
	prior, err := c.registry.Register(userID, h)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "register failed")
		c.log.ErrorContext(ctx, "manager - handle connect - register failed", logging.User(userID), logging.Err(err))
		return err
	}
	connectionsOpened.Add(ctx, 1)
	if prior != nil {
		// Last connection wins. The old read loop exits and its disconnect
		// is ignored because the handle no longer matches.
		prior.Close()
		c.log.InfoContext(ctx, "manager - handle connect - replaced previous connection",
			logging.User(userID), logging.Handle(prior.ID()))
	}
	span.SetStatus(codes.Ok, "connected")
	c.log.InfoContext(ctx, "manager - handle connect - registered", logging.User(userID), logging.Handle(h.ID()))
	return nil
}

// HandleDisconnect is the single removal path for explicit close, logout
// and sweeper eviction. Calls are ended only when this handle was still
// the registered one.
func (c *ManagerService) HandleDisconnect(ctx context.Context, userID string, h contracts.Handle) bool {
	ctx, span := tracer.Start(ctx, "ManagerService.HandleDisconnect", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("handle_id", h.ID()),
	))
	defer span.End()
	removed := c.registry.Unregister(userID, h)
	h.Close()
	span.SetAttributes(attribute.Bool("removed", removed))
	if !removed {
		c.log.DebugContext(ctx, "manager - handle disconnect - stale handle ignored", logging.User(userID), logging.Handle(h.ID()))
		return false
	}
	connectionsClosed.Add(ctx, 1)
	ended := c.calls.EndAllFor(ctx, userID)
	c.log.InfoContext(ctx, "manager - handle disconnect - unregistered", logging.User(userID), "calls_ended", ended)
	return true
}

// Evict removes a connection found dead by the sweeper.
func (c *ManagerService) Evict(ctx context.Context, conn contracts.Connection) bool {
	return c.HandleDisconnect(ctx, conn.UserID, conn.Handle)
}

// CloseAll disconnects every registered connection. Used on shutdown.
func (c *ManagerService) CloseAll(ctx context.Context) int {
	n := 0
	for _, conn := range c.registry.Connections() {
		if c.HandleDisconnect(ctx, conn.UserID, conn.Handle) {
			n++
		}
	}
	return n
}

func (c *ManagerService) HandleFrame(ctx context.Context, userID string, h contracts.Handle, raw []byte) error {
	ev, err := domain.DecodeInbound(raw)
	if err != nil {
		c.log.WarnContext(ctx, "manager - handle frame - decode failed", logging.User(userID), logging.Err(err))
		code := "BAD_FRAME"
		if errors.Is(err, domain.ErrUnknownEvent) {
			code = "UNKNOWN_EVENT"
		}
		_ = push(ctx, h, domain.EventError, domain.ErrorMessage{Code: code, Message: err.Error()})
		return err
	}
	return c.Dispatch(ctx, userID, h, ev)
}

// Dispatch runs one typed event for the connection h of userID. A panic in
// a handler is contained to this event.
func (c *ManagerService) Dispatch(ctx context.Context, userID string, h contracts.Handle, ev domain.Inbound) (err error) {
	ctx, span := tracer.Start(ctx, "ManagerService.Dispatch", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("event", ev.EventName()),
	))
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch %s: panic: %v", ev.EventName(), r)
			span.SetStatus(codes.Error, "panic")
			c.log.ErrorContext(ctx, "manager - dispatch - recovered panic", logging.User(userID), logging.Event(ev.EventName()), logging.Err(err))
		}
	}()

	switch e := ev.(type) {
	case domain.JoinRoom:
		err = c.registry.JoinRoom(userID, h, e.RoomID)
		if err != nil {
			_ = push(ctx, h, domain.EventError, domain.ErrorMessage{Code: "JOIN_FAILED", Message: err.Error()})
		}

	case domain.SendMessage:
		err = c.handleSendMessage(ctx, userID, h, e)

	case domain.Typing:
		err = c.messages.RelayTyping(ctx, domain.TypingSignal{
			SenderID:   userID,
			ReceiverID: e.ReceiverID,
			IsTyping:   e.IsTyping,
		})

	case domain.SetVisibility:
		if e.UserID != "" && e.UserID != userID {
			err = domain.ErrForbidden
			_ = push(ctx, h, domain.EventError, domain.ErrorMessage{Code: "FORBIDDEN", Message: err.Error()})
			break
		}
		_, err = c.presence.SetVisibility(ctx, userID, e.Online)
		if err != nil {
			_ = push(ctx, h, domain.EventError, domain.ErrorMessage{Code: "VISIBILITY_FAILED", Message: "could not update visibility"})
		}

	case domain.CallUser:
		_, err = c.calls.Initiate(ctx, InitiateCall{
			CallID:     e.CallID,
			CallerID:   userID,
			CalleeID:   e.UserToCall,
			CallerName: e.Name,
			Signal:     e.SignalData,
			IsVideo:    e.IsVideo,
		})

	case domain.AnswerCall:
		_, err = c.calls.Answer(ctx, CallRef{CallID: e.CallID, UserID: userID, PeerID: e.To}, e.Signal)

	case domain.DeclineCall:
		err = c.calls.Decline(ctx, CallRef{CallID: e.CallID, UserID: userID, PeerID: e.To})

	case domain.EndCall:
		c.calls.End(ctx, CallRef{CallID: e.CallID, UserID: userID, PeerID: e.UserID})

	case domain.Logout:
		c.HandleDisconnect(ctx, userID, h)

	default:
		err = fmt.Errorf("%w: %T", domain.ErrUnknownEvent, ev)
	}

	if err != nil {
		span.RecordError(err)
		c.log.DebugContext(ctx, "manager - dispatch - event failed", logging.User(userID), logging.Event(ev.EventName()), logging.Err(err))
	}
	return err
}

func (c *ManagerService) handleSendMessage(ctx context.Context, userID string, h contracts.Handle, e domain.SendMessage) error {
	msg, err := c.messages.Relay(ctx, RelayRequest{
		SenderID:   userID,
		ReceiverID: e.ReceiverID,
		Content:    e.Content,
		ClientID:   e.ClientID,
	})
	if err != nil {
		reason := "failed to send message"
		if errors.Is(err, domain.ErrInvalidMessage) {
			reason = err.Error()
		}
		_ = push(ctx, h, domain.EventMessageError, domain.MessageError{ClientID: e.ClientID, Error: reason})
		return err
	}
	return push(ctx, h, domain.EventMessageAck, domain.MessageAck{
		ClientID:  e.ClientID,
		ID:        msg.ID,
		CreatedAt: msg.CreatedAt,
	})
}
