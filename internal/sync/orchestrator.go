// Package sync coordinates bidirectional synchronization between the local
// record store and the remote backend: pushing local changes, pulling remote
// ones, and surfacing divergent edits as conflicts for explicit resolution.
package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"github.com/omprakashjha/URLBookmarks/internal/connectivity"
	"github.com/omprakashjha/URLBookmarks/internal/domain"
	"github.com/omprakashjha/URLBookmarks/internal/logger"
	"github.com/omprakashjha/URLBookmarks/internal/queue"
	"github.com/omprakashjha/URLBookmarks/internal/remote"
	"github.com/omprakashjha/URLBookmarks/internal/repository"
)

type State string

const (
	StateIdle      State = "idle"
	StateSyncing   State = "syncing"
	StateSuccess   State = "success"
	StateConflicts State = "conflictsDetected"
	StateError     State = "error"
)

// Status is the externally visible snapshot of the orchestrator state
// machine, published to subscribers on every transition.
type Status struct {
	State     State     `json:"state"`
	Conflicts int       `json:"conflicts,omitempty"`
	Error     string    `json:"error,omitempty"`
	LastSync  time.Time `json:"lastSync,omitempty"`
}

type Orchestrator struct {
	store        *repository.Store
	remote       remote.Client
	queue        *queue.Queue
	monitor      *connectivity.Monitor
	interval     time.Duration
	displayDelay time.Duration
	log          logger.Logger

	mu        gosync.Mutex
	state     State
	conflicts []domain.Conflict
	lastError string
	subs      []func(Status)
}

func New(
	store *repository.Store,
	remoteClient remote.Client,
	q *queue.Queue,
	monitor *connectivity.Monitor,
	interval time.Duration,
	displayDelay time.Duration,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:        store,
		remote:       remoteClient,
		queue:        q,
		monitor:      monitor,
		interval:     interval,
		displayDelay: displayDelay,
		log:          log.Named("sync"),
		state:        StateIdle,
	}
}

// Run wires the three sync triggers: the periodic timer, remote change
// notifications, and the offline-to-online connectivity edge. It returns
// immediately; triggers fire until the context is cancelled.
func (o *Orchestrator) Run(ctx context.Context) {
	o.remote.Subscribe(func() {
		go o.triggerSync(ctx, "remote change")
	})
	o.monitor.Subscribe(func(online bool) {
		if online {
			go o.triggerSync(ctx, "connectivity restored")
		}
	})
	ticker := time.NewTicker(o.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				o.triggerSync(ctx, "periodic")
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (o *Orchestrator) triggerSync(ctx context.Context, reason string) {
	o.log.Debug("sync triggered", logger.String("reason", reason))
	if err := o.Sync(ctx); err != nil &&
		!errors.Is(err, domain.ErrSyncInProgress) && !errors.Is(err, domain.ErrConflictsPending) {
		o.log.Warn("sync failed", logger.String("reason", reason), logger.Error(err))
	}
}

// Status returns the current state snapshot.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.statusLocked()
}

// Subscribe registers a callback invoked on every state transition.
func (o *Orchestrator) Subscribe(fn func(Status)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subs = append(o.subs, fn)
}

// PendingConflicts returns the conflicts awaiting resolution.
func (o *Orchestrator) PendingConflicts() []domain.Conflict {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]domain.Conflict{}, o.conflicts...)
}

// Sync runs one push/pull cycle. A call while a cycle is already running is a
// no-op (ErrSyncInProgress); a call while conflicts await resolution halts
// with ErrConflictsPending. While offline the cycle is skipped quietly, the
// next trigger re-attempts.
func (o *Orchestrator) Sync(ctx context.Context) error {
	o.mu.Lock()
	switch o.state {
	case StateSyncing:
		o.mu.Unlock()
		return domain.ErrSyncInProgress
	case StateConflicts:
		o.mu.Unlock()
		return domain.ErrConflictsPending
	}
	o.transitionLocked(StateSyncing)
	o.mu.Unlock()

	if !o.monitor.Online() {
		o.log.Debug("skipping sync while offline")
		o.setIdle()
		return nil
	}

	if _, err := o.queue.Drain(ctx); err != nil {
		o.setError(err)
		return err
	}

	lastSync, err := o.store.LastSyncDate()
	if err != nil {
		o.setError(err)
		return err
	}
	locals, err := o.store.ModifiedSince(lastSync)
	if err != nil {
		o.setError(err)
		return err
	}

	conflicts, clean, err := o.detectConflicts(ctx, lastSync, locals)
	if err != nil {
		o.setError(err)
		return err
	}
	if len(conflicts) > 0 {
		o.mu.Lock()
		o.conflicts = conflicts
		o.transitionLocked(StateConflicts)
		o.mu.Unlock()
		o.log.Info("divergent edits detected", logger.Int("conflicts", len(conflicts)))
		return domain.ErrConflictsPending
	}

	if err := o.pushPull(ctx, lastSync, clean); err != nil {
		o.setError(err)
		return err
	}
	o.setSuccess()
	return nil
}

// detectConflicts splits the locally modified records into those whose remote
// copy also changed since the last sync (conflicts) and those safe to push.
// True divergence detection belongs to the backend's change tags; comparing
// modification dates against the sync watermark is the documented contract
// here.
func (o *Orchestrator) detectConflicts(ctx context.Context, lastSync time.Time, locals []domain.Bookmark) ([]domain.Conflict, []domain.Bookmark, error) {
	conflicts := make([]domain.Conflict, 0)
	clean := make([]domain.Bookmark, 0, len(locals))
	for _, local := range locals {
		remoteCopy, err := o.remote.Get(ctx, local.ID)
		if errors.Is(err, domain.ErrNotFound) {
			clean = append(clean, local)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		if remoteCopy.Updated.After(lastSync) && contentDiffers(local, remoteCopy) {
			conflicts = append(conflicts, domain.Conflict{
				RecordID:   local.ID,
				Local:      local,
				Remote:     remoteCopy,
				Resolution: domain.ResolutionMerge,
			})
			continue
		}
		clean = append(clean, local)
	}
	return conflicts, clean, nil
}

func contentDiffers(a, b domain.Bookmark) bool {
	return a.Title != b.Title || a.Notes != b.Notes || a.Deleted != b.Deleted
}

// pushPull pushes the given local records, pulls remote changes since the
// watermark, merges them into the store and advances the watermark.
func (o *Orchestrator) pushPull(ctx context.Context, lastSync time.Time, locals []domain.Bookmark) error {
	pushed := make(map[string]bool, len(locals))
	for _, local := range locals {
		if local.Deleted {
			if err := o.remote.Delete(ctx, local.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
		} else {
			if _, err := o.remote.Save(ctx, local); err != nil {
				return err
			}
		}
		pushed[local.ID] = true
	}

	pulled, err := o.remote.Query(ctx, remote.Query{ModifiedSince: lastSync})
	if err != nil {
		return err
	}
	for _, remoteRecord := range pulled {
		if pushed[remoteRecord.ID] {
			continue
		}
		if err := o.store.Upsert(remoteRecord); err != nil {
			return err
		}
	}

	return o.store.SetLastSyncDate(time.Now())
}

// ResolveConflicts settles the pending conflicts and resumes the interrupted
// push/pull cycle. The resolutions map overrides the per-conflict default
// (merge) by record id; a failed resolution is counted and skipped, its
// siblings still resolve (partial-failure semantics). Returns the number of
// failed resolutions.
func (o *Orchestrator) ResolveConflicts(ctx context.Context, resolutions map[string]domain.Resolution) (int, error) {
	o.mu.Lock()
	if o.state != StateConflicts {
		o.mu.Unlock()
		return 0, nil
	}
	conflicts := o.conflicts
	o.conflicts = nil
	o.transitionLocked(StateSyncing)
	o.mu.Unlock()

	failed := 0
	for _, conflict := range conflicts {
		resolution := conflict.Resolution
		if chosen, ok := resolutions[conflict.RecordID]; ok {
			resolution = chosen
		}
		resolved := Resolve(conflict, resolution)
		if resolution != domain.ResolutionKeepLocal {
			if err := o.store.SaveResolved(resolved); err != nil {
				o.log.Warn("conflict resolution failed",
					logger.String("record_id", conflict.RecordID),
					logger.Error(err))
				failed++
				continue
			}
		}
		o.log.Info("conflict resolved",
			logger.String("record_id", conflict.RecordID),
			logger.String("resolution", string(resolution)))
	}

	// resume the halted cycle: everything still modified since the watermark
	// gets pushed without re-detection, then remote changes are pulled
	lastSync, err := o.store.LastSyncDate()
	if err != nil {
		o.setError(err)
		return failed, err
	}
	locals, err := o.store.ModifiedSince(lastSync)
	if err != nil {
		o.setError(err)
		return failed, err
	}
	if err := o.pushPull(ctx, lastSync, locals); err != nil {
		o.setError(err)
		return failed, err
	}
	o.setSuccess()
	return failed, nil
}

func (o *Orchestrator) setIdle() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitionLocked(StateIdle)
}

func (o *Orchestrator) setSuccess() {
	o.mu.Lock()
	o.lastError = ""
	o.transitionLocked(StateSuccess)
	o.mu.Unlock()
	o.revertAfterDelay(StateSuccess)
}

func (o *Orchestrator) setError(err error) {
	o.mu.Lock()
	o.lastError = err.Error()
	o.transitionLocked(StateError)
	o.mu.Unlock()
	o.revertAfterDelay(StateError)
}

// revertAfterDelay moves success/error back to idle after the display delay.
// A newer transition in the meantime wins, the revert only applies if the
// state is unchanged.
func (o *Orchestrator) revertAfterDelay(from State) {
	time.AfterFunc(o.displayDelay, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.state == from {
			o.transitionLocked(StateIdle)
		}
	})
}

func (o *Orchestrator) transitionLocked(state State) {
	o.state = state
	status := o.statusLocked()
	subs := append([]func(Status){}, o.subs...)
	go func() {
		for _, fn := range subs {
			fn(status)
		}
	}()
}

func (o *Orchestrator) statusLocked() Status {
	lastSync, _ := o.store.LastSyncDate()
	status := Status{State: o.state, Conflicts: len(o.conflicts), LastSync: lastSync}
	if o.state == StateError {
		status.Error = o.lastError
	}
	return status
}
