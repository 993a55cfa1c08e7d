package broadcaster

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Riyakuila/Chat-Flow/internal/core/contracts"
	"github.com/Riyakuila/Chat-Flow/internal/core/domain"
	"github.com/Riyakuila/Chat-Flow/pkg/logging"
)

var (
	meter                   = otel.Meter("presence-broadcaster")
	broadcastCounter, _     = meter.Int64Counter("presence_broadcasts_total", metric.WithDescription("Total onlineUsers broadcasts"))
	deliveryFailures, _     = meter.Int64Counter("presence_delivery_failures_total", metric.WithDescription("onlineUsers frames that could not be queued"))
	mirrorFailureCounter, _ = meter.Int64Counter("presence_mirror_failures_total", metric.WithDescription("Failed presence mirror syncs"))
	coalescedCounter, _     = meter.Int64Counter("presence_changes_coalesced_total", metric.WithDescription("Pending changes superseded by a newer snapshot"))
)

// Broadcaster turns registry changes into onlineUsers frames. Publish only
// appends to a pending list, so the registry notifier never waits on
// delivery or on the mirror. One goroutine drains the list, so clients see
// snapshots in mutation order.
type Broadcaster struct {
	log           *slog.Logger
	mirror        contracts.PresenceMirror
	mirrorTimeout time.Duration
	limit         int

	mu         sync.Mutex
	pending    []contracts.PresenceChange
	mirrorNext *contracts.PresenceChange
	stopped    bool
	wake       chan struct{}
	mirrorWake chan struct{}
}

// NewBroadcaster builds a broadcaster. mirror may be nil. A backlog longer
// than limit collapses to its newest change.
func NewBroadcaster(
	log *slog.Logger,
	mirror contracts.PresenceMirror,
	limit int,
	mirrorTimeout time.Duration,
) *Broadcaster {
	if limit <= 0 {
		limit = 256
	}
	if mirrorTimeout <= 0 {
		mirrorTimeout = time.Second
	}
	return &Broadcaster{
		log:           log.With("component", "broadcaster"),
		mirror:        mirror,
		mirrorTimeout: mirrorTimeout,
		limit:         limit,
		wake:          make(chan struct{}, 1),
		mirrorWake:    make(chan struct{}, 1),
	}
}

// Publish is the registry notifier. It never blocks and is a no-op once
// Run has stopped.
func (b *Broadcaster) Publish(change contracts.PresenceChange) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	if len(b.pending) >= b.limit {
		// Every change is a full snapshot, so the newest one supersedes the
		// backlog for every handle still connected.
		coalescedCounter.Add(context.Background(), int64(len(b.pending)))
		b.pending = b.pending[:0]
	}
	b.pending = append(b.pending, change)
	b.mu.Unlock()
	signal(b.wake)
}

// Run delivers pending changes until ctx is cancelled. The mirror is synced
// from a second goroutine that only ever sees the latest change.
func (b *Broadcaster) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer func() {
		b.mu.Lock()
		b.stopped = true
		b.pending = nil
		b.mu.Unlock()
		wg.Wait()
	}()
	if b.mirror != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.mirrorLoop(ctx)
		}()
	}
	b.log.InfoContext(ctx, "broadcaster - run - started")
	for {
		select {
		case <-ctx.Done():
			b.log.InfoContext(ctx, "broadcaster - run - stopped")
			return nil
		case <-b.wake:
			for _, change := range b.drain() {
				b.deliver(ctx, change)
			}
		}
	}
}

func (b *Broadcaster) drain() []contracts.PresenceChange {
	b.mu.Lock()
	defer b.mu.Unlock()
	batch := b.pending
	b.pending = nil
	return batch
}

func (b *Broadcaster) deliver(ctx context.Context, change contracts.PresenceChange) {
	frame, err := domain.Encode(domain.EventOnlineUsers, change.Online)
	if err != nil {
		b.log.ErrorContext(ctx, "broadcaster - deliver - encode failed", logging.Err(err))
		return
	}
	for _, target := range change.Targets {
		if err := target.Handle.Send(ctx, frame); err != nil {
			deliveryFailures.Add(ctx, 1)
			b.log.DebugContext(ctx, "broadcaster - deliver - send failed",
				logging.User(target.UserID), logging.Handle(target.Handle.ID()), logging.Err(err))
		}
	}
	broadcastCounter.Add(ctx, 1, metric.WithAttributes(attribute.Int("online", len(change.Online))))
	if b.mirror == nil {
		return
	}
	b.mu.Lock()
	b.mirrorNext = &change
	b.mu.Unlock()
	signal(b.mirrorWake)
}

func (b *Broadcaster) mirrorLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.mirrorWake:
			b.mu.Lock()
			change := b.mirrorNext
			b.mirrorNext = nil
			b.mu.Unlock()
			if change != nil {
				b.syncMirror(ctx, *change)
			}
		}
	}
}

func (b *Broadcaster) syncMirror(ctx context.Context, change contracts.PresenceChange) {
	mctx, cancel := context.WithTimeout(ctx, b.mirrorTimeout)
	defer cancel()
	if err := b.mirror.SyncOnline(mctx, change.Targets); err != nil {
		mirrorFailureCounter.Add(ctx, 1)
		b.log.WarnContext(ctx, "broadcaster - sync mirror - failed", "seq", change.Seq, logging.Err(err))
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
