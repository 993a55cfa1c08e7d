package domain

import "time"

type CallState string

const (
	CallRinging  CallState = "ringing"
	CallAccepted CallState = "accepted"
	CallDeclined CallState = "declined"
	CallErrored  CallState = "errored"
	CallEnded    CallState = "ended"
)

// Terminal reports whether no further transition is possible.
func (s CallState) Terminal() bool {
	switch s {
	case CallDeclined, CallErrored, CallEnded:
		return true
	}
	return false
}

// CanTransition encodes the call state machine:
//
//	Ringing  -> Accepted | Declined | Errored | Ended
//	Accepted -> Ended
func (s CallState) CanTransition(to CallState) bool {
	switch s {
	case CallRinging:
		return to == CallAccepted || to == CallDeclined || to == CallErrored || to == CallEnded
	case CallAccepted:
		return to == CallEnded
	}
	return false
}

// CallSession is the signaling state of one call. It lives in memory only.
type CallSession struct {
	CallID    string
	CallerID  string
	CalleeID  string
	IsVideo   bool
	State     CallState
	CreatedAt time.Time
}

// Involves reports whether userID is the caller or the callee.
func (c *CallSession) Involves(userID string) bool {
	return c.CallerID == userID || c.CalleeID == userID
}

// Peer returns the other participant, or "" if userID is not part of the call.
func (c *CallSession) Peer(userID string) string {
	switch userID {
	case c.CallerID:
		return c.CalleeID
	case c.CalleeID:
		return c.CallerID
	}
	return ""
}
