package domain

import "errors"

var (
	ErrInvalidUserID     = errors.New("invalid user id")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidMessage    = errors.New("invalid message")
	ErrEmptyContent      = errors.New("message content is empty")
	ErrChatNotFound      = errors.New("chat not found")
	ErrInvalidRoomID     = errors.New("invalid room id")
	ErrCalleeOffline     = errors.New("user is not online")
	ErrCallNotFound      = errors.New("call not found")
	ErrCallExists        = errors.New("call already exists")
	ErrInvalidTransition = errors.New("invalid call state transition")
	ErrNotCallMember     = errors.New("user is not part of the call")
	ErrForbidden         = errors.New("operation not allowed for this connection")
	ErrUnknownEvent      = errors.New("unknown event")
	ErrMalformedEvent    = errors.New("malformed event")
	ErrConnectionClosed  = errors.New("connection closed")
)
