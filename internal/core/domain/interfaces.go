package domain

import (
	"context"
	"time"
)

// UserRepository persists the visibility flag.
type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*User, error)
	// UpdateVisibility stores the flag and last seen time. Unknown ids
	// yield ErrUserNotFound.
	UpdateVisibility(ctx context.Context, id string, online bool, lastSeen time.Time) (*User, error)
}

// ChatRepository handles the one to one thread bookkeeping.
type ChatRepository interface {
	// EnsureChat returns the thread between a and b, creating it if needed.
	EnsureChat(ctx context.Context, a, b string) (*Chat, error)
	TouchLastMessage(ctx context.Context, chat *Chat, msg *Message) error
}

// MessageRepository is the system of record for relayed messages.
type MessageRepository interface {
	// SaveMessage assigns ID and CreatedAt and stores the message.
	SaveMessage(ctx context.Context, msg *Message) error
	// ListMessages returns the newest limit messages between a and b,
	// oldest first.
	ListMessages(ctx context.Context, a, b string, limit int) ([]Message, error)
	// MarkRead flags messages sent to readerID by peerID as read and
	// returns how many changed.
	MarkRead(ctx context.Context, readerID, peerID string) (int64, error)
}
