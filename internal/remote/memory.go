package remote

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/omprakashjha/URLBookmarks/internal/domain"
)

// ErrUnavailable is returned by a Memory backend switched into failing mode.
var ErrUnavailable = errors.New("remote backend unavailable")

// Memory is an in-memory Client. It backs the local-only deployment mode when
// no remote URL is configured, and doubles as the backend fake in tests where
// it can simulate an outage and a second device editing records.
type Memory struct {
	mu      sync.Mutex
	records map[string]domain.Bookmark
	subs    []func()
	failing bool
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]domain.Bookmark)}
}

// SetFailing switches the backend into (or out of) simulated outage: every
// call returns ErrUnavailable while failing.
func (m *Memory) SetFailing(failing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = failing
}

func (m *Memory) Query(_ context.Context, q Query) ([]domain.Bookmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return nil, ErrUnavailable
	}
	result := make([]domain.Bookmark, 0)
	for _, bookmark := range m.records {
		if !q.ModifiedSince.IsZero() && !bookmark.Updated.After(q.ModifiedSince) {
			continue
		}
		result = append(result, bookmark)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Updated.Equal(result[j].Updated) {
			return result[i].ID < result[j].ID
		}
		return result[i].Updated.Before(result[j].Updated)
	})
	if q.Offset > 0 {
		if q.Offset >= len(result) {
			return []domain.Bookmark{}, nil
		}
		result = result[q.Offset:]
	}
	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

func (m *Memory) Get(_ context.Context, id string) (domain.Bookmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return domain.Bookmark{}, ErrUnavailable
	}
	bookmark, ok := m.records[id]
	if !ok {
		return domain.Bookmark{}, domain.ErrNotFound
	}
	return bookmark, nil
}

func (m *Memory) Save(_ context.Context, bookmark domain.Bookmark) (domain.Bookmark, error) {
	m.mu.Lock()
	if m.failing {
		m.mu.Unlock()
		return domain.Bookmark{}, ErrUnavailable
	}
	m.records[bookmark.ID] = bookmark
	subs := append([]func(){}, m.subs...)
	m.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
	return bookmark, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	if m.failing {
		m.mu.Unlock()
		return ErrUnavailable
	}
	delete(m.records, id)
	subs := append([]func(){}, m.subs...)
	m.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
	return nil
}

func (m *Memory) Subscribe(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

func (m *Memory) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return ErrUnavailable
	}
	return nil
}

// Seed installs a record directly, bypassing notification. Tests use it to
// stage the state of another device.
func (m *Memory) Seed(bookmark domain.Bookmark) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[bookmark.ID] = bookmark
}
