// Package connectivity tracks whether the remote record backend is reachable.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/omprakashjha/URLBookmarks/internal/logger"
)

// Pinger is the slice of the remote client the monitor needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor is a two-state machine, online and offline. State changes come from
// the embedding platform via SetOnline or from periodic probing of the remote
// backend. Subscribers are notified on every transition; the offline to
// online edge is what triggers queue draining.
type Monitor struct {
	mu     sync.Mutex
	online bool
	subs   []func(online bool)
	log    logger.Logger
}

func NewMonitor(initiallyOnline bool, log logger.Logger) *Monitor {
	return &Monitor{online: initiallyOnline, log: log.Named("connectivity")}
}

func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline records a reachability change. Subscribers run synchronously on
// the caller's goroutine, single-threaded callback dispatch is all this
// needs.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := append([]func(bool){}, m.subs...)
	m.mu.Unlock()
	m.log.Info("connectivity changed", logger.Bool("online", online))
	for _, fn := range subs {
		fn(online)
	}
}

func (m *Monitor) Subscribe(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// StartProbing drives the state from periodic pings of the backend until the
// context is cancelled.
func (m *Monitor) StartProbing(ctx context.Context, pinger Pinger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.SetOnline(pinger.Ping(ctx) == nil)
			case <-ctx.Done():
				return
			}
		}
	}()
}
