package transfer

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically evicts expired quick-transfer drops so they are
// removed even when nobody lists or downloads. Access paths still sweep
// lazily on their own.
type Sweeper struct {
	store    *Store
	interval time.Duration
	done     chan struct{}
}

// NewSweeper creates a sweeper over the given store.
func NewSweeper(store *Store, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins the sweep loop in a background goroutine.
func (sw *Sweeper) Start(ctx context.Context) {
	slog.Info("transfer sweeper started", "interval", sw.interval)

	go func() {
		ticker := time.NewTicker(sw.interval)
		defer ticker.Stop()

		// Run once immediately on start
		sw.store.Sweep()

		for {
			select {
			case <-ticker.C:
				sw.store.Sweep()
			case <-ctx.Done():
				slog.Info("transfer sweeper stopping")
				close(sw.done)
				return
			}
		}
	}()
}

// Wait blocks until the sweeper has fully stopped.
func (sw *Sweeper) Wait() {
	<-sw.done
}
