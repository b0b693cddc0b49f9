package connectivity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omprakashjha/URLBookmarks/internal/logger"
)

func TestSetOnlineNotifiesOnEdgesOnly(t *testing.T) {
	monitor := NewMonitor(true, logger.NewNop())

	var transitions []bool
	monitor.Subscribe(func(online bool) {
		transitions = append(transitions, online)
	})

	monitor.SetOnline(true) // no change, no notification
	monitor.SetOnline(false)
	monitor.SetOnline(false) // still offline, no notification
	monitor.SetOnline(true)

	assert.Equal(t, []bool{false, true}, transitions)
	assert.True(t, monitor.Online())
}

type fakePinger struct {
	failing atomic.Bool
}

func (p *fakePinger) Ping(context.Context) error {
	if p.failing.Load() {
		return errors.New("unreachable")
	}
	return nil
}

func TestProbingDrivesState(t *testing.T) {
	monitor := NewMonitor(true, logger.NewNop())
	pinger := &fakePinger{}
	pinger.failing.Store(true)

	edges := make(chan bool, 4)
	monitor.Subscribe(func(online bool) { edges <- online })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	monitor.StartProbing(ctx, pinger, 5*time.Millisecond)

	select {
	case online := <-edges:
		require.False(t, online, "a failing ping must flip the monitor offline")
	case <-time.After(time.Second):
		t.Fatal("no offline edge observed")
	}

	pinger.failing.Store(false)
	select {
	case online := <-edges:
		require.True(t, online, "a succeeding ping must flip the monitor online")
	case <-time.After(time.Second):
		t.Fatal("no online edge observed")
	}
}
