// Package queue implements the durable offline queue: mutations attempted
// while the backend was unreachable are persisted and replayed in order once
// connectivity returns.
package queue

import (
	"context"
	"errors"

	"github.com/omprakashjha/URLBookmarks/internal/connectivity"
	"github.com/omprakashjha/URLBookmarks/internal/domain"
	"github.com/omprakashjha/URLBookmarks/internal/logger"
	"github.com/omprakashjha/URLBookmarks/internal/remote"
	"github.com/omprakashjha/URLBookmarks/internal/repository"
)

const DefaultMaxRetries = 3

type Queue struct {
	store      *repository.Store
	remote     remote.Client
	monitor    *connectivity.Monitor
	maxRetries int
	onFailed   []func(domain.PendingOperation)
	log        logger.Logger
}

func New(store *repository.Store, remoteClient remote.Client, monitor *connectivity.Monitor, maxRetries int, log logger.Logger) *Queue {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Queue{
		store:      store,
		remote:     remoteClient,
		monitor:    monitor,
		maxRetries: maxRetries,
		log:        log.Named("queue"),
	}
}

// Enqueue persists a pending mutation at the tail of the queue.
func (q *Queue) Enqueue(op domain.PendingOperation) error {
	seq, err := q.store.EnqueueOperation(op)
	if err != nil {
		return err
	}
	q.log.Info("queued offline operation",
		logger.String("kind", string(op.Kind)),
		logger.String("record_id", op.RecordID),
		logger.Int64("seq", seq))
	return nil
}

// OnOperationFailed registers a callback fired when an operation exhausts its
// retry budget and is dropped. Dropped operations are never silent.
func (q *Queue) OnOperationFailed(fn func(domain.PendingOperation)) {
	q.onFailed = append(q.onFailed, fn)
}

// Len returns the number of pending operations.
func (q *Queue) Len() (int, error) {
	ops, err := q.store.PendingOperations()
	if err != nil {
		return 0, err
	}
	return len(ops), nil
}

// Drain replays pending operations against the remote backend in enqueue
// order. A failing operation is retried on later drains; once its retry count
// reaches the budget it is dropped and reported. Draining stops early when a
// retriable failure is hit or connectivity is lost, so operations for the
// same record are never applied out of order.
func (q *Queue) Drain(ctx context.Context) (int, error) {
	ops, err := q.store.PendingOperations()
	if err != nil {
		return 0, err
	}
	applied := 0
	for _, op := range ops {
		if !q.monitor.Online() {
			break
		}
		if err := q.apply(ctx, op); err != nil {
			op.RetryCount++
			if op.RetryCount >= q.maxRetries {
				q.log.Warn("dropping operation after retry budget exhausted",
					logger.String("kind", string(op.Kind)),
					logger.String("record_id", op.RecordID),
					logger.Int("retries", op.RetryCount),
					logger.Error(err))
				if removeErr := q.store.RemoveOperation(op.Seq); removeErr != nil {
					return applied, removeErr
				}
				for _, fn := range q.onFailed {
					fn(op)
				}
				continue
			}
			if persistErr := q.store.SetOperationRetryCount(op.Seq, op.RetryCount); persistErr != nil {
				return applied, persistErr
			}
			q.log.Warn("operation failed, will retry",
				logger.String("record_id", op.RecordID),
				logger.Int("retries", op.RetryCount),
				logger.Error(err))
			return applied, err
		}
		if err := q.store.RemoveOperation(op.Seq); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// apply pushes a single operation. Add pushes the record captured at enqueue
// time merged with any later local edits; update pushes the current local
// snapshot, which already contains this patch and every later one, so a stale
// earlier edit can never overwrite a newer state.
func (q *Queue) apply(ctx context.Context, op domain.PendingOperation) error {
	switch op.Kind {
	case domain.OperationAdd, domain.OperationUpdate:
		local, err := q.store.Get(op.RecordID)
		if errors.Is(err, domain.ErrNotFound) {
			// record purged locally in the meantime, nothing to push
			return nil
		}
		if err != nil {
			return err
		}
		if local.Deleted {
			// a queued delete follows, let it do the work
			return nil
		}
		_, err = q.remote.Save(ctx, local)
		return err
	case domain.OperationDelete:
		err := q.remote.Delete(ctx, op.RecordID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	default:
		// an unknown kind can never succeed, dropping it beats wedging the queue
		q.log.Error("unknown operation kind", logger.String("kind", string(op.Kind)))
		return nil
	}
}
