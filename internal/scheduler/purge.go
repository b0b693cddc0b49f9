// Package scheduler runs the periodic tombstone purge.
package scheduler

import (
	"context"
	"time"

	"github.com/omprakashjha/URLBookmarks/internal/logger"
	"github.com/omprakashjha/URLBookmarks/internal/repository"
)

// DefaultRetention is how long tombstones are kept before being
// garbage-collected.
const DefaultRetention = 30 * 24 * time.Hour

// Purger permanently removes soft-deleted records once they are older than
// the retention window. Tombstones must outlive the window so deletions have
// propagated to every device before the record disappears for good.
type Purger struct {
	store     *repository.Store
	log       logger.Logger
	interval  time.Duration
	retention time.Duration
	stopCh    chan struct{}
}

func NewPurger(store *repository.Store, log logger.Logger, interval, retention time.Duration) *Purger {
	if retention == 0 {
		retention = DefaultRetention
	}
	return &Purger{
		store:     store,
		log:       log.Named("purge"),
		interval:  interval,
		retention: retention,
		stopCh:    make(chan struct{}),
	}
}

// Start begins periodic purging. The first run happens immediately.
func (p *Purger) Start(ctx context.Context) {
	if err := p.Purge(); err != nil {
		p.log.Warn("initial tombstone purge failed", logger.Error(err))
	}
	ticker := time.NewTicker(p.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := p.Purge(); err != nil {
					p.log.Error("tombstone purge failed", logger.Error(err))
				}
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (p *Purger) Stop() {
	close(p.stopCh)
}

// Purge removes tombstones past the retention window.
func (p *Purger) Purge() error {
	purged, err := p.store.PurgeDeletedOlderThan(p.retention)
	if err != nil {
		return err
	}
	if purged > 0 {
		p.log.Info("purged expired tombstones", logger.Int64("purged", purged))
	}
	return nil
}
