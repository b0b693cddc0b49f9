package repository

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/omprakashjha/URLBookmarks/internal/domain"
)

// EnqueueOperation appends a pending mutation to the durable offline queue.
// The assigned sequence number determines drain order.
func (store *Store) EnqueueOperation(op domain.PendingOperation) (int64, error) {
	payload, err := json.Marshal(op)
	if err != nil {
		return 0, err
	}
	result, err := store.db.Exec(
		"INSERT INTO pending_operations (id, record_id, kind, payload, enqueued_at, retry_count) VALUES (?, ?, ?, ?, ?, ?)",
		op.ID, op.RecordID, string(op.Kind), string(payload), op.EnqueuedAt.Unix(), op.RetryCount)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// PendingOperations returns the queue in enqueue order.
func (store *Store) PendingOperations() ([]domain.PendingOperation, error) {
	rows, err := store.db.Query(
		"SELECT seq, payload, retry_count FROM pending_operations ORDER BY seq")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ops := make([]domain.PendingOperation, 0)
	for rows.Next() {
		var seq int64
		var payload string
		var retryCount int
		if err := rows.Scan(&seq, &payload, &retryCount); err != nil {
			return nil, err
		}
		var op domain.PendingOperation
		if err := json.Unmarshal([]byte(payload), &op); err != nil {
			return nil, err
		}
		op.Seq = seq
		op.RetryCount = retryCount
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

func (store *Store) RemoveOperation(seq int64) error {
	_, err := store.db.Exec("DELETE FROM pending_operations WHERE seq = ?", seq)
	return err
}

func (store *Store) SetOperationRetryCount(seq int64, retryCount int) error {
	_, err := store.db.Exec("UPDATE pending_operations SET retry_count = ? WHERE seq = ?", retryCount, seq)
	return err
}

// NewPendingOperation builds a queue entry for a mutation attempted while the
// remote backend was unreachable.
func NewPendingOperation(kind domain.OperationKind, recordID string) domain.PendingOperation {
	return domain.PendingOperation{
		ID:         uuid.New().String(),
		RecordID:   recordID,
		Kind:       kind,
		EnqueuedAt: time.Now(),
	}
}
