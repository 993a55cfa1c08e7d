package worker

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/Riyakuila/Chat-Flow/internal/core/contracts"
	"github.com/Riyakuila/Chat-Flow/pkg/logging"
)

var (
	meter             = otel.Meter("sweeper")
	sweepEvictions, _ = meter.Int64Counter("sweeper_evictions_total",
		metric.WithDescription("Dead connections removed by the sweeper"))
)

// Sweeper reconciles the registry with transport liveness. Connections
// whose handle reports dead are removed through the regular disconnect path
// so presence and calls are updated the same way as on a clean close.
type Sweeper struct {
	log      *slog.Logger
	registry contracts.Registry
	evictor  contracts.Evictor
	interval time.Duration
}

func NewSweeper(
	log *slog.Logger,
	registry contracts.Registry,
	evictor contracts.Evictor,
	interval time.Duration,
) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Sweeper{
		log:      log.With("component", "sweeper"),
		registry: registry,
		evictor:  evictor,
		interval: interval,
	}
}

func (w *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.log.InfoContext(ctx, "sweeper - run - started", "interval", w.interval)
	for {
		select {
		case <-ctx.Done():
			w.log.InfoContext(ctx, "sweeper - run - stopped")
			return nil
		case <-ticker.C:
			if n := w.Sweep(ctx); n > 0 {
				w.log.InfoContext(ctx, "sweeper - sweep - evicted dead connections", "count", n)
			}
		}
	}
}

// Sweep makes one pass and returns how many connections it evicted. A
// handle replaced since the snapshot was taken is left alone by the
// identity check in unregister.
func (w *Sweeper) Sweep(ctx context.Context) int {
	evicted := 0
	for _, conn := range w.registry.Connections() {
		if conn.Handle.Alive() {
			continue
		}
		if w.evictor.Evict(ctx, conn) {
			evicted++
			w.log.DebugContext(ctx, "sweeper - sweep - evicted", logging.User(conn.UserID), logging.Handle(conn.Handle.ID()))
		}
	}
	if evicted > 0 {
		sweepEvictions.Add(ctx, int64(evicted))
	}
	return evicted
}
