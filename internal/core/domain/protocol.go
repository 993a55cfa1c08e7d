package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Events pushed to clients.
const (
	EventOnlineUsers  = "onlineUsers"
	EventUserOnline   = "userOnline"
	EventUserOffline  = "userOffline"
	EventNewMessage   = "newMessage"
	EventMessageAck   = "messageAck"
	EventMessageError = "messageError"
	EventUserTyping   = "userTyping"
	EventCallIncoming = "callIncoming"
	EventCallAccepted = "callAccepted"
	EventCallDeclined = "callDeclined"
	EventCallEnded    = "callEnded"
	EventCallError    = "callError"
	EventError        = "error"
)

// Reasons carried by callError.
const (
	ReasonUserOffline       = "USER_OFFLINE"
	ReasonCallNotFound      = "CALL_NOT_FOUND"
	ReasonInvalidTransition = "INVALID_STATE"
	ReasonInvalidRequest    = "INVALID_REQUEST"
)

// Envelope is the frame shape in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode wraps data in an envelope for the named event.
func Encode(event string, data any) ([]byte, error) {
	env := Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

// MessageView is the wire form of a persisted message.
type MessageView struct {
	ID         uuid.UUID `json:"id"`
	ClientID   string    `json:"clientId,omitempty"`
	ChatID     uuid.UUID `json:"chatId"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	IsRead     bool      `json:"isRead"`
	CreatedAt  time.Time `json:"createdAt"`
}

func NewMessageView(m *Message) MessageView {
	return MessageView{
		ID:         m.ID,
		ClientID:   m.ClientID,
		ChatID:     m.ChatID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		IsRead:     m.IsRead,
		CreatedAt:  m.CreatedAt,
	}
}

type MessageAck struct {
	ClientID  string    `json:"clientId"`
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

type MessageError struct {
	ClientID string `json:"clientId,omitempty"`
	Error    string `json:"error"`
}

// VisibilityEvent is the HTTP view of a visibility change. Over the socket
// userOnline and userOffline carry only the bare user id.
type VisibilityEvent struct {
	UserID   string    `json:"userId"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

type TypingEvent struct {
	SenderID string `json:"senderId"`
	IsTyping bool   `json:"isTyping"`
}

type CallIncoming struct {
	CallID  string          `json:"callId"`
	Signal  json.RawMessage `json:"signal"`
	From    string          `json:"from"`
	Name    string          `json:"name,omitempty"`
	IsVideo bool            `json:"isVideo"`
}

// CallNotice is the payload of callDeclined and callEnded.
type CallNotice struct {
	CallID string `json:"callId"`
	From   string `json:"from"`
}

type CallError struct {
	CallID  string `json:"callId,omitempty"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// ErrorMessage is WS-safe error
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
