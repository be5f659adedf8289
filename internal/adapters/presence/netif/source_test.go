package netif

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/offlinectl/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProbe struct {
	online atomic.Bool
	fail   atomic.Bool
}

func (p *fakeProbe) probe() (bool, error) {
	if p.fail.Load() {
		return false, errors.New("netlink unavailable")
	}
	return p.online.Load(), nil
}

func awaitTransition(t *testing.T, ch <-chan bool) bool {
	t.Helper()

	select {
	case online := <-ch:
		return online
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for presence transition")
		return false
	}
}

func TestSourceReportsTransitionsOnPoll(t *testing.T) {
	t.Parallel()

	probe := &fakeProbe{}
	probe.online.Store(true)
	clock := mocks.NewFakeClock(time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC))

	source := NewSource(Options{Interval: time.Second, Probe: probe.probe, Clock: clock})
	assert.True(t, source.Online())

	events := make(chan bool, 4)
	source.Subscribe(func(online bool) { events <- online })

	source.Start(context.Background())
	t.Cleanup(source.Close)

	probe.online.Store(false)
	clock.Advance(time.Second)
	assert.False(t, awaitTransition(t, events))
	assert.False(t, source.Online())

	probe.online.Store(true)
	clock.Advance(time.Second)
	assert.True(t, awaitTransition(t, events))
}

func TestSourceKeepsStateWhenProbeFails(t *testing.T) {
	t.Parallel()

	probe := &fakeProbe{}
	probe.fail.Store(true)
	clock := mocks.NewFakeClock(time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC))

	source := NewSource(Options{Interval: time.Second, Probe: probe.probe, Clock: clock})
	assert.True(t, source.Online(), "an unreadable interface table is not treated as offline")

	events := make(chan bool, 4)
	source.Subscribe(func(online bool) { events <- online })
	source.Start(context.Background())
	t.Cleanup(source.Close)

	clock.Advance(time.Second)
	probe.fail.Store(false)
	probe.online.Store(false)
	clock.Advance(time.Second)

	assert.False(t, awaitTransition(t, events))
}

func TestSourceCloseStopsPolling(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	clock := mocks.NewFakeClock(time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC))
	source := NewSource(Options{Interval: time.Second, Clock: clock, Probe: func() (bool, error) {
		calls.Add(1)
		return true, nil
	}})

	source.Start(context.Background())
	source.Close()
	source.Close()

	before := calls.Load()
	clock.Advance(10 * time.Second)
	assert.Equal(t, before, calls.Load())
}

func TestHasUsableInterfaceDoesNotError(t *testing.T) {
	t.Parallel()

	_, err := HasUsableInterface()
	require.NoError(t, err)
}
