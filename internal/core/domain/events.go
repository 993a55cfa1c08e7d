package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Events accepted from clients.
const (
	EventJoinRoom          = "joinRoom"
	EventSendMessage       = "sendMessage"
	EventTyping            = "typing"
	EventSetVisibleOnline  = "setVisibleOnline"
	EventSetVisibleOffline = "setVisibleOffline"
	EventCallUser          = "callUser"
	EventAnswerCall        = "answerCall"
	EventDeclineCall       = "declineCall"
	EventEndCall           = "endCall"
	EventLogout            = "logout"
)

// Inbound is the closed set of events a connection may send. Every
// connection decodes its frames into one of these and dispatches them from
// a single loop.
type Inbound interface {
	EventName() string
}

type JoinRoom struct {
	RoomID string `json:"chatId"`
}

type SendMessage struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
	ClientID   string `json:"id"`
}

type Typing struct {
	ReceiverID string `json:"receiverId"`
	IsTyping   bool   `json:"isTyping"`
}

type SetVisibility struct {
	UserID string `json:"userId"`
	Online bool   `json:"-"`
}

type CallUser struct {
	CallID     string          `json:"callId"`
	UserToCall string          `json:"userToCall"`
	SignalData json.RawMessage `json:"signalData"`
	IsVideo    bool            `json:"isVideo"`
	Name       string          `json:"name"`
}

type AnswerCall struct {
	CallID string          `json:"callId"`
	To     string          `json:"to"`
	Signal json.RawMessage `json:"signal"`
}

type DeclineCall struct {
	CallID string `json:"callId"`
	To     string `json:"to"`
}

type EndCall struct {
	CallID string `json:"callId"`
	UserID string `json:"userId"`
}

type Logout struct{}

func (JoinRoom) EventName() string    { return EventJoinRoom }
func (SendMessage) EventName() string { return EventSendMessage }
func (Typing) EventName() string      { return EventTyping }
func (AnswerCall) EventName() string  { return EventAnswerCall }
func (DeclineCall) EventName() string { return EventDeclineCall }
func (EndCall) EventName() string     { return EventEndCall }
func (CallUser) EventName() string    { return EventCallUser }
func (Logout) EventName() string      { return EventLogout }

func (s SetVisibility) EventName() string {
	if s.Online {
		return EventSetVisibleOnline
	}
	return EventSetVisibleOffline
}

// DecodeInbound parses one frame. Events whose payload is a single id
// accept either a bare JSON string or an object.
func DecodeInbound(frame []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	switch env.Event {
	case EventJoinRoom:
		var ev JoinRoom
		if err := decodeIDOrObject(env.Data, &ev.RoomID, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventSendMessage:
		var ev SendMessage
		if err := decodeObject(env.Data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventTyping:
		var ev Typing
		if err := decodeObject(env.Data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventSetVisibleOnline, EventSetVisibleOffline:
		ev := SetVisibility{Online: env.Event == EventSetVisibleOnline}
		if err := decodeIDOrObject(env.Data, &ev.UserID, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventCallUser:
		var ev CallUser
		if err := decodeObject(env.Data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventAnswerCall:
		var ev AnswerCall
		if err := decodeObject(env.Data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventDeclineCall:
		var ev DeclineCall
		if err := decodeIDOrObject(env.Data, &ev.To, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventEndCall:
		var ev EndCall
		if err := decodeIDOrObject(env.Data, &ev.UserID, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventLogout:
		return Logout{}, nil
	case "":
		return nil, fmt.Errorf("%w: missing event name", ErrMalformedEvent)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
}

func decodeObject(data json.RawMessage, out any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return nil
}

func decodeIDOrObject(data json.RawMessage, id *string, obj any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, id); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		return nil
	}
	if err := json.Unmarshal(trimmed, obj); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return nil
}
