package workers

import (
	"context"
	"log/slog"
	"time"
)

// ExpiryWorker runs the reconciler's prune pass on a fixed tick so stuck
// optimistic messages disappear even when no other source produces a
// merge. The thresholds themselves live in the reconciler.
type ExpiryWorker struct {
	log      *slog.Logger
	prune    func()
	interval time.Duration
}

func NewExpiryWorker(log *slog.Logger, prune func(), interval time.Duration) *ExpiryWorker {
	return &ExpiryWorker{log: log, prune: prune, interval: interval}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.prune()
		}
	}
}
