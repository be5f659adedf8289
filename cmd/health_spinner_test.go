package cmd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bnema/offlinectl/internal/adapters/kv/memory"
	"github.com/bnema/offlinectl/internal/adapters/presence/static"
	"github.com/bnema/offlinectl/internal/application"
	"github.com/bnema/offlinectl/internal/domain"
	"github.com/bnema/offlinectl/internal/ports/mocks"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type healthCheckerFunc func(ctx context.Context) error

func (f healthCheckerFunc) Check(ctx context.Context) error {
	return f(ctx)
}

func TestHealthCheckLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status application.Status
		want   string
	}{
		{
			name: "before any update",
			want: "Checking server health...",
		},
		{
			name: "first attempt",
			status: application.Status{
				Server:     domain.ServerStatus{Checking: true, Phase: domain.ProbePhaseChecking},
				MaxRetries: 3,
			},
			want: "Checking server health...",
		},
		{
			name: "retrying",
			status: application.Status{
				Server: domain.ServerStatus{
					Checking:   true,
					Phase:      domain.ProbePhaseRetrying,
					RetryCount: 2,
					LastError:  "unexpected status 503",
				},
				MaxRetries:  3,
				NextBackoff: 4 * time.Second,
			},
			want: "Server unreachable, retry 2/3 after 4s backoff (unexpected status 503)...",
		},
		{
			name: "retrying without error text",
			status: application.Status{
				Server:      domain.ServerStatus{Checking: true, Phase: domain.ProbePhaseRetrying, RetryCount: 1},
				MaxRetries:  1,
				NextBackoff: 2 * time.Second,
			},
			want: "Server unreachable, retry 1/1 after 2s backoff...",
		},
		{
			name: "settled",
			status: application.Status{
				Server:     domain.ServerStatus{Phase: domain.ProbePhaseSettled, LastError: "down"},
				MaxRetries: 3,
			},
			want: "Checking server health...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, healthCheckLabel(tt.status))
		})
	}
}

func TestHealthSpinnerModelFollowsProgressUntilDone(t *testing.T) {
	t.Parallel()

	next := func() tea.Msg { return nil }
	model := newHealthSpinnerModel(nil, next)
	assert.Contains(t, model.View(), "Checking server health...")

	updated, cmd := model.Update(checkProgressMsg(application.Status{
		Server:      domain.ServerStatus{Checking: true, Phase: domain.ProbePhaseRetrying, RetryCount: 1, LastError: "refused"},
		MaxRetries:  3,
		NextBackoff: 2 * time.Second,
	}))
	require.NotNil(t, cmd)
	assert.Nil(t, cmd())
	assert.Contains(t, updated.View(), "Server unreachable, retry 1/3 after 2s backoff (refused)...")

	checkErr := errors.New("interrupted")
	final, cmd := updated.Update(checkDoneMsg{err: checkErr})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, final.View())

	result, ok := final.(healthSpinnerModel)
	require.True(t, ok)
	assert.ErrorIs(t, result.err, checkErr)
}

func TestWatchCheckProgressDeliversRetryingSnapshot(t *testing.T) {
	t.Parallel()

	clock := mocks.NewFakeClock(time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC))
	prober := application.NewProber(healthCheckerFunc(func(context.Context) error {
		return errors.New("connection refused")
	}), application.ProbeConfig{
		Interval:    time.Minute,
		Timeout:     time.Second,
		MaxRetries:  3,
		BackoffBase: time.Second,
	}, clock, nil)
	service := application.NewOfflineService(memory.NewStore(), prober, static.NewSource(true), clock, nil)
	t.Cleanup(service.Close)

	next, stop := watchCheckProgress(service.Subscribe, service.Snapshot)
	t.Cleanup(stop)

	require.NoError(t, service.Start(context.Background()))
	_, ok := clock.WaitForAfter(2 * time.Second)
	require.True(t, ok)

	msgs := make(chan tea.Msg, 1)
	go func() { msgs <- next() }()

	select {
	case msg := <-msgs:
		progress, ok := msg.(checkProgressMsg)
		require.True(t, ok, "unexpected message %T", msg)
		status := application.Status(progress)
		assert.Equal(t, domain.ProbePhaseRetrying, status.Server.Phase)
		assert.Equal(t, 1, status.Server.RetryCount)
		assert.Equal(t, "Server unreachable, retry 1/3 after 2s backoff (connection refused)...", healthCheckLabel(status))
	case <-time.After(2 * time.Second):
		t.Fatal("no progress update was delivered")
	}
}

func TestWatchCheckProgressStopReleasesPendingRead(t *testing.T) {
	t.Parallel()

	var unsubscribed bool
	subscribe := func(func(domain.ConnectivityState)) func() {
		return func() { unsubscribed = true }
	}
	next, stop := watchCheckProgress(subscribe, func() application.Status { return application.Status{} })

	msgs := make(chan tea.Msg, 1)
	go func() { msgs <- next() }()

	stop()
	stop()

	select {
	case msg := <-msgs:
		assert.Nil(t, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("pending read was not released by stop")
	}
	assert.True(t, unsubscribed)
}
