package scheduler

import (
	"context"
	"time"

	"github.com/portalstack/portal-server/internal/logger"
	"github.com/portalstack/portal-server/internal/store"
)

const (
	// DefaultPurgeThreshold is how long a soft-deleted service is kept before
	// it is removed for good.
	DefaultPurgeThreshold = 30 * 24 * time.Hour
)

// Purger permanently removes services that have been soft-deleted for longer
// than the threshold.
type Purger struct {
	store     store.Store
	logger    logger.Logger
	interval  time.Duration
	threshold time.Duration
	stopCh    chan struct{}
}

func NewPurger(st store.Store, log logger.Logger, interval, threshold time.Duration) *Purger {
	if threshold == 0 {
		threshold = DefaultPurgeThreshold
	}

	return &Purger{
		store:     st,
		logger:    log,
		interval:  interval,
		threshold: threshold,
		stopCh:    make(chan struct{}),
	}
}

// Start runs one purge immediately, then purges on every tick until Stop
// is called or the context is cancelled.
func (p *Purger) Start(ctx context.Context) error {
	if err := p.Purge(ctx); err != nil {
		p.logger.Warn("initial purge failed", logger.Error(err))
	}

	ticker := time.NewTicker(p.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := p.Purge(ctx); err != nil {
					p.logger.Error("purge failed", logger.Error(err))
				}
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop halts the periodic purge loop.
func (p *Purger) Stop() {
	close(p.stopCh)
}

// Purge removes services whose soft-delete timestamp is older than the
// threshold.
func (p *Purger) Purge(ctx context.Context) error {
	cutoff := time.Now().Add(-p.threshold)

	purged, err := p.store.PurgeDeletedBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	if purged > 0 {
		p.logger.Info("purged soft-deleted services",
			logger.Int("purged", purged),
			logger.String("older_than", p.threshold.String()))
	} else {
		p.logger.Debug("no soft-deleted services to purge")
	}

	return nil
}
