package contracts

import "context"

// PresenceMirror publishes the online set outside the process. It is a
// read model only; the registry stays authoritative.
type PresenceMirror interface {
	SyncOnline(ctx context.Context, conns []Connection) error
}
