package services

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Riyakuila/Chat-Flow/internal/core/contracts"
	"github.com/Riyakuila/Chat-Flow/internal/core/domain"
	"github.com/Riyakuila/Chat-Flow/pkg/logging"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type IMessageService interface {
	// Relay persists the message and then forwards it to the receiver's
	// live connection, if any. Nothing is forwarded when persistence fails.
	Relay(ctx context.Context, req RelayRequest) (*domain.Message, error)
	// RelayTyping forwards a typing indicator; absent receivers are ignored.
	RelayTyping(ctx context.Context, sig domain.TypingSignal) error
	// History returns the latest messages between two users, oldest first.
	History(ctx context.Context, userID, peerID string, limit int) ([]domain.Message, error)
	// MarkRead flags messages from peerID to readerID as read.
	MarkRead(ctx context.Context, readerID, peerID string) (int64, error)
}

type RelayRequest struct {
	SenderID   string
	ReceiverID string
	Content    string
	ClientID   string
}

// Validate rejects only missing ids and empty content. Whitespace and notes
// to self are stored as sent.
func (r RelayRequest) Validate() error {
	if r.SenderID == "" || r.ReceiverID == "" {
		return fmt.Errorf("%w: %w", domain.ErrInvalidMessage, domain.ErrInvalidUserID)
	}
	if r.Content == "" {
		return fmt.Errorf("%w: %w", domain.ErrInvalidMessage, domain.ErrEmptyContent)
	}
	return nil
}

type MessageService struct {
	log      *slog.Logger
	registry contracts.Registry
	chats    domain.ChatRepository
	messages domain.MessageRepository
	tx       contracts.Transactor
}

func NewMessageService(
	log *slog.Logger,
	registry contracts.Registry,
	chats domain.ChatRepository,
	messages domain.MessageRepository,
	tx contracts.Transactor,
) *MessageService {
	return &MessageService{
		log:      log.With("component", "messages"),
		registry: registry,
		chats:    chats,
		messages: messages,
		tx:       tx,
	}
}

func (s *MessageService) Relay(ctx context.Context, req RelayRequest) (*domain.Message, error) {
	ctx, span := tracer.Start(ctx, "MessageService.Relay", trace.WithAttributes(
		attribute.String("sender_id", req.SenderID),
		attribute.String("receiver_id", req.ReceiverID),
		attribute.Int("content_size", len(req.Content)),
	))
	defer span.End()
	if err := req.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid message")
		return nil, err
	}
	msg := &domain.Message{
		ClientID:   req.ClientID,
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
	}
	// ensure thread -> insert -> bump last message, all or nothing
	if err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		chat, err := s.chats.EnsureChat(txCtx, req.SenderID, req.ReceiverID)
		if err != nil {
			return fmt.Errorf("ensure chat: %w", err)
		}
		msg.ChatID = chat.ID
		if err := s.messages.SaveMessage(txCtx, msg); err != nil {
			return fmt.Errorf("save message: %w", err)
		}
		if err := s.chats.TouchLastMessage(txCtx, chat, msg); err != nil {
			return fmt.Errorf("touch chat: %w", err)
		}
		return nil
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		s.log.ErrorContext(ctx, "messages - relay - persist failed",
			logging.User(req.SenderID), logging.Receiver(req.ReceiverID), logging.ClientMsg(req.ClientID), logging.Err(err))
		return nil, err
	}
	messagesPersisted.Add(ctx, 1)
	span.SetAttributes(attribute.String("message_id", msg.ID.String()))

	h, ok := s.registry.Lookup(req.ReceiverID)
	if !ok {
		s.log.DebugContext(ctx, "messages - relay - receiver offline, stored only",
			logging.Receiver(req.ReceiverID), "message_id", msg.ID)
		return msg, nil
	}
	if err := push(ctx, h, domain.EventNewMessage, domain.NewMessageView(msg)); err != nil {
		// Delivery is best effort; the message is already stored.
		s.log.WarnContext(ctx, "messages - relay - forward failed",
			logging.Receiver(req.ReceiverID), "message_id", msg.ID, logging.Err(err))
		return msg, nil
	}
	messagesDelivered.Add(ctx, 1)
	s.log.DebugContext(ctx, "messages - relay - forwarded", logging.Receiver(req.ReceiverID), "message_id", msg.ID)
	return msg, nil
}

func (s *MessageService) RelayTyping(ctx context.Context, sig domain.TypingSignal) error {
	if err := sig.Validate(); err != nil {
		return err
	}
	h, ok := s.registry.Lookup(sig.ReceiverID)
	if !ok {
		return nil
	}
	if err := push(ctx, h, domain.EventUserTyping, domain.TypingEvent{
		SenderID: sig.SenderID,
		IsTyping: sig.IsTyping,
	}); err != nil {
		s.log.DebugContext(ctx, "messages - relay typing - forward failed", logging.Receiver(sig.ReceiverID), logging.Err(err))
		return nil
	}
	typingRelayed.Add(ctx, 1, metric.WithAttributes(attribute.Bool("is_typing", sig.IsTyping)))
	return nil
}

func (s *MessageService) History(ctx context.Context, userID, peerID string, limit int) ([]domain.Message, error) {
	ctx, span := tracer.Start(ctx, "MessageService.History")
	defer span.End()
	if userID == "" || peerID == "" {
		return nil, domain.ErrInvalidUserID
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	msgs, err := s.messages.ListMessages(ctx, userID, peerID, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		s.log.ErrorContext(ctx, "messages - history - list messages failed", logging.User(userID), "peer_id", peerID, logging.Err(err))
		return nil, err
	}
	return msgs, nil
}

func (s *MessageService) MarkRead(ctx context.Context, readerID, peerID string) (int64, error) {
	if readerID == "" || peerID == "" {
		return 0, domain.ErrInvalidUserID
	}
	n, err := s.messages.MarkRead(ctx, readerID, peerID)
	if err != nil {
		s.log.ErrorContext(ctx, "messages - mark read - update failed", logging.User(readerID), "peer_id", peerID, logging.Err(err))
		return 0, err
	}
	return n, nil
}
