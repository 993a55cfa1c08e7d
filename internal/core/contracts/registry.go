package contracts

import (
	"context"
	"time"
)

// Handle is the minimal interface the core needs from one live transport
// connection. Identity is by ID: two handles are the same connection only
// if their IDs match.
type Handle interface {
	ID() string
	// Send queues data for delivery. It never blocks on the network.
	Send(ctx context.Context, data []byte) error
	// Alive reports transport level liveness, not mere existence.
	Alive() bool
	Close()
}

// Connection is one registry entry.
type Connection struct {
	UserID        string
	Handle        Handle
	EstablishedAt time.Time
}

// PresenceChange is emitted once per registry mutation, in mutation order.
type PresenceChange struct {
	Seq     uint64
	Online  []string
	Targets []Connection
}

// Registry is the read side of the connection registry shared by the
// services. Mutation goes through the concrete registry only.
type Registry interface {
	// Lookup returns the live handle for userID.
	Lookup(userID string) (Handle, bool)
	// Snapshot returns the sorted set of connected user ids.
	Snapshot() []string
	// Connections returns a copy of every entry.
	Connections() []Connection
}

// Evictor removes a connection through the regular disconnect path.
type Evictor interface {
	Evict(ctx context.Context, conn Connection) bool
}

// ConnectionRegistry adds the mutating operations used by the connection
// lifecycle.
type ConnectionRegistry interface {
	Registry
	// Register replaces any connection of userID and returns the replaced
	// handle, if any.
	Register(userID string, handle Handle) (Handle, error)
	// Unregister removes userID only if handle is still the registered one.
	Unregister(userID string, handle Handle) bool
	JoinRoom(userID string, handle Handle, roomID string) error
}
