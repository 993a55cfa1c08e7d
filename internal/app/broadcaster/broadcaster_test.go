package broadcaster_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riyakuila/Chat-Flow/internal/app/broadcaster"
	"github.com/Riyakuila/Chat-Flow/internal/app/registry"
	"github.com/Riyakuila/Chat-Flow/internal/core/contracts"
	"github.com/Riyakuila/Chat-Flow/internal/core/contracts/contractstest"
	"github.com/Riyakuila/Chat-Flow/internal/core/domain"
)

type fakeMirror struct {
	mu    sync.Mutex
	syncs [][]string
	err   error
}

func (m *fakeMirror) SyncOnline(_ context.Context, conns []contracts.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(conns))
	for _, c := range conns {
		ids = append(ids, c.UserID)
	}
	m.syncs = append(m.syncs, ids)
	return m.err
}

func (m *fakeMirror) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.syncs)
}

func (m *fakeMirror) last() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncs[len(m.syncs)-1]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func onlineUsers(t *testing.T, h *contractstest.Handle) [][]string {
	t.Helper()
	var out [][]string
	for _, raw := range h.Events(domain.EventOnlineUsers) {
		var ids []string
		require.NoError(t, json.Unmarshal(raw, &ids))
		out = append(out, ids)
	}
	return out
}

func startBroadcaster(t *testing.T, mirror contracts.PresenceMirror) (*broadcaster.Broadcaster, *registry.Registry) {
	t.Helper()
	b := broadcaster.NewBroadcaster(discardLogger(), mirror, 16, time.Second)
	reg := registry.NewRegistry()
	reg.OnChange(b.Publish)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return b, reg
}

func TestBroadcasterDeliversSnapshotsInOrder(t *testing.T) {
	mirror := &fakeMirror{}
	_, reg := startBroadcaster(t, mirror)
	alice := contractstest.NewHandle()
	bob := contractstest.NewHandle()

	_, _ = reg.Register("alice", alice)
	_, _ = reg.Register("bob", bob)
	reg.Unregister("alice", alice)

	require.Eventually(t, func() bool {
		return len(onlineUsers(t, bob)) == 2 && mirror.count() > 0 && len(mirror.last()) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, [][]string{{"alice"}, {"alice", "bob"}}, onlineUsers(t, alice),
		"alice receives every change up to her own removal")
	assert.Equal(t, [][]string{{"alice", "bob"}, {"bob"}}, onlineUsers(t, bob))
	assert.Equal(t, []string{"bob"}, mirror.last())
}

// stallingMirror holds every sync until released, like a Redis that stopped
// answering.
type stallingMirror struct {
	release chan struct{}
	calls   atomic.Int32
}

func (m *stallingMirror) SyncOnline(ctx context.Context, _ []contracts.Connection) error {
	m.calls.Add(1)
	select {
	case <-m.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestBroadcasterStalledMirrorDoesNotHoldRegistry(t *testing.T) {
	mirror := &stallingMirror{release: make(chan struct{})}
	b := broadcaster.NewBroadcaster(discardLogger(), mirror, 4, time.Minute)
	reg := registry.NewRegistry()
	reg.OnChange(b.Publish)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx)
	}()
	t.Cleanup(func() {
		close(mirror.release)
		cancel()
		<-done
	})

	bob := contractstest.NewHandle()
	_, _ = reg.Register("bob", bob)
	require.Eventually(t, func() bool { return mirror.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	start := time.Now()
	for i := 0; i < 50; i++ {
		h := contractstest.NewHandle()
		_, _ = reg.Register("alice", h)
		reg.Unregister("alice", h)
		_, ok := reg.Lookup("bob")
		require.True(t, ok)
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond, "registry calls must not wait on the mirror")

	require.Eventually(t, func() bool {
		got := onlineUsers(t, bob)
		return len(got) > 1 && slices.Equal(got[len(got)-1], []string{"bob"})
	}, time.Second, 5*time.Millisecond, "onlineUsers keeps flowing while the mirror is stuck")
}

func TestPublishWithoutRunNeverBlocks(t *testing.T) {
	b := broadcaster.NewBroadcaster(discardLogger(), nil, 2, time.Second)

	finished := make(chan struct{})
	go func() {
		for i := 1; i <= 100; i++ {
			b.Publish(contracts.PresenceChange{Seq: uint64(i)})
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a backlog")
	}
}

func TestBroadcasterMirrorFailureDoesNotBlockDelivery(t *testing.T) {
	mirror := &fakeMirror{err: errors.New("redis down")}
	_, reg := startBroadcaster(t, mirror)
	alice := contractstest.NewHandle()
	bob := contractstest.NewHandle()

	_, _ = reg.Register("alice", alice)
	_, _ = reg.Register("bob", bob)

	require.Eventually(t, func() bool { return len(onlineUsers(t, bob)) == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, onlineUsers(t, alice), 2)
}

func TestBroadcasterSkipsClosedHandles(t *testing.T) {
	_, reg := startBroadcaster(t, nil)
	alice := contractstest.NewHandle()
	bob := contractstest.NewHandle()
	_, _ = reg.Register("alice", alice)
	alice.Close()

	_, _ = reg.Register("bob", bob)

	require.Eventually(t, func() bool { return len(onlineUsers(t, bob)) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"alice", "bob"}, onlineUsers(t, bob)[0])
}

func TestPublishAfterStopReturns(t *testing.T) {
	b := broadcaster.NewBroadcaster(discardLogger(), nil, 1, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, b.Run(ctx))

	finished := make(chan struct{})
	go func() {
		b.Publish(contracts.PresenceChange{Seq: 1})
		b.Publish(contracts.PresenceChange{Seq: 2})
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked after Run returned")
	}
}
