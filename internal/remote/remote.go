// Package remote defines the contract with the cloud record backend. The
// backend is an opaque collaborator: the core only needs query, save, delete,
// a change notification callback and a health probe.
package remote

import (
	"context"
	"time"

	"github.com/omprakashjha/URLBookmarks/internal/domain"
)

// Query parameters for listing remote records. The zero value returns
// everything.
type Query struct {
	ModifiedSince time.Time
	Limit         int
	Offset        int
}

// Client is the remote record backend as seen by the sync core. Save is an
// upsert keyed by record id; Get returns domain.ErrNotFound for unknown ids.
// Implementations must be safe for concurrent use.
type Client interface {
	Query(ctx context.Context, q Query) ([]domain.Bookmark, error)
	Get(ctx context.Context, id string) (domain.Bookmark, error)
	Save(ctx context.Context, bookmark domain.Bookmark) (domain.Bookmark, error)
	Delete(ctx context.Context, id string) error

	// Subscribe registers a callback fired when the remote store changed.
	// Callbacks must not block; they run on the client's notification
	// goroutine.
	Subscribe(fn func())

	// Ping reports whether the backend is reachable. The connectivity
	// monitor drives its online/offline state from this.
	Ping(ctx context.Context) error
}
