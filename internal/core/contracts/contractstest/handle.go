// Package contractstest provides in-memory implementations of the core
// contracts for tests.
package contractstest

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Riyakuila/Chat-Flow/internal/core/domain"
)

// Handle records every frame sent to it.
type Handle struct {
	id     string
	mu     sync.Mutex
	frames [][]byte
	dead   atomic.Bool
	closed atomic.Bool
}

func NewHandle() *Handle {
	return &Handle{id: uuid.NewString()}
}

func (h *Handle) ID() string { return h.id }

func (h *Handle) Send(_ context.Context, data []byte) error {
	if h.closed.Load() {
		return domain.ErrConnectionClosed
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = append(h.frames, append([]byte(nil), data...))
	return nil
}

func (h *Handle) Alive() bool { return !h.dead.Load() && !h.closed.Load() }

func (h *Handle) Close() { h.closed.Store(true) }

// Kill makes the handle report dead without closing it, like a socket
// whose peer vanished without a close frame.
func (h *Handle) Kill() { h.dead.Store(true) }

func (h *Handle) Closed() bool { return h.closed.Load() }

// Envelopes decodes every frame received so far.
func (h *Handle) Envelopes() []domain.Envelope {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.Envelope, 0, len(h.frames))
	for _, f := range h.frames {
		var env domain.Envelope
		if err := json.Unmarshal(f, &env); err == nil {
			out = append(out, env)
		}
	}
	return out
}

// Events returns the payloads of every frame named event.
func (h *Handle) Events(event string) []json.RawMessage {
	var out []json.RawMessage
	for _, env := range h.Envelopes() {
		if env.Event == event {
			out = append(out, env.Data)
		}
	}
	return out
}

func (h *Handle) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = nil
}
