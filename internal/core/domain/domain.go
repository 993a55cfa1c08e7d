package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the persisted identity with its user controlled visibility flag.
// IsOnline is independent of whether the user holds a live connection.
type User struct {
	ID        string
	IsOnline  bool
	LastSeen  time.Time
	CreatedAt time.Time
}

// Chat is the one to one thread between two users. UserA always sorts
// before UserB.
type Chat struct {
	ID            uuid.UUID
	UserA         string
	UserB         string
	LastMessageID uuid.NullUUID
	UpdatedAt     time.Time
}

// ChatPair orders two user ids the way chats are keyed.
func ChatPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// Message is a chat entry. ID and CreatedAt are assigned on persistence;
// ClientID is the optimistic id the sender attached and is never stored.
type Message struct {
	ID         uuid.UUID
	ChatID     uuid.UUID
	ClientID   string
	SenderID   string
	ReceiverID string
	Content    string
	IsRead     bool
	CreatedAt  time.Time
}

// TypingSignal is relayed only, never persisted.
type TypingSignal struct {
	SenderID   string
	ReceiverID string
	IsTyping   bool
}

func (t TypingSignal) Validate() error {
	if t.SenderID == "" || t.ReceiverID == "" {
		return ErrInvalidUserID
	}
	return nil
}
