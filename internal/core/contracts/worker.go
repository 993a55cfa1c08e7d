package contracts

import "context"

// BackgroundWorker is a long running loop started at boot and stopped by
// cancelling ctx.
type BackgroundWorker interface {
	Run(ctx context.Context) error
}
