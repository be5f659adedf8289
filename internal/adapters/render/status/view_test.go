package status

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/bnema/offlinectl/internal/application"
	"github.com/bnema/offlinectl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var renderNow = time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)

func onlineStatus() application.Status {
	server := domain.ServerStatus{
		Reachable:   true,
		Phase:       domain.ProbePhaseSettled,
		LastChecked: renderNow.Add(-5 * time.Second),
		Attempts:    1,
		LastLatency: 12 * time.Millisecond,
	}

	return application.Status{
		State:      domain.NewConnectivityState(true, server, 0),
		Server:     server,
		MaxRetries: 3,
		Interval:   30 * time.Second,
		Endpoint:   "http://127.0.0.1:8080/api/health",
	}
}

func TestRenderOnlineStatus(t *testing.T) {
	output, err := Render(onlineStatus(), RenderOptions{Now: renderNow})

	require.NoError(t, err)
	assert.Contains(t, output, "Connectivity")
	assert.Contains(t, output, "endpoint: http://127.0.0.1:8080/api/health")
	assert.Contains(t, output, "state: online")
	assert.Contains(t, output, "network: present")
	assert.Contains(t, output, "server: reachable")
	assert.Contains(t, output, "last checked: 10:59:55 (5s ago)")
	assert.Contains(t, output, "attempts: 1  latency: 12ms")
	assert.Contains(t, output, "queued actions: 0")
	assert.Contains(t, output, "No queued actions.")
	assert.NotContains(t, output, "[stale]")
	assert.NotContains(t, output, "retries:")
	assert.NotContains(t, output, "pending sync")
}

func TestRenderServerUnreachableWithQueue(t *testing.T) {
	status := onlineStatus()
	status.Server.Reachable = false
	status.Server.Attempts = 4
	status.Server.LastError = "connection refused"
	status.Queue = []domain.QueuedAction{
		{ID: "1771066800000", Type: "send_message", Payload: json.RawMessage(`null`), Timestamp: renderNow.Add(-2 * time.Minute).UnixMilli()},
		{ID: "1771066800001", Type: "send_payment", Payload: json.RawMessage(`null`), Timestamp: renderNow.Add(-time.Minute).UnixMilli()},
	}
	status.State = domain.NewConnectivityState(true, status.Server, len(status.Queue))

	output, err := Render(status, RenderOptions{Now: renderNow})

	require.NoError(t, err)
	assert.Contains(t, output, "state: server-unreachable")
	assert.Contains(t, output, "server-unreachable, 2 actions queued")
	assert.Contains(t, output, "server: unreachable")
	assert.Contains(t, output, "last error: connection refused")
	assert.Contains(t, output, "queued actions: 2")
	assert.Contains(t, output, "1771066800000 send_message (2m ago)")
	assert.Contains(t, output, "1771066800001 send_payment (1m ago)")
}

func TestRenderOfflineWinsOverChecking(t *testing.T) {
	status := onlineStatus()
	status.Server.Checking = true
	status.State = domain.NewConnectivityState(false, status.Server, 0)

	output, err := Render(status, RenderOptions{Now: renderNow})

	require.NoError(t, err)
	assert.Contains(t, output, "state: offline")
	assert.Contains(t, output, "network: absent")
}

func TestRenderShowsRetryProgressWhileChecking(t *testing.T) {
	status := onlineStatus()
	status.Server.Checking = true
	status.Server.Phase = domain.ProbePhaseRetrying
	status.Server.RetryCount = 2
	status.State = domain.NewConnectivityState(true, status.Server, 0)

	output, err := Render(status, RenderOptions{Now: renderNow})

	require.NoError(t, err)
	assert.Contains(t, output, "state: checking")
	assert.Contains(t, output, "retries: [========----] 2/3")
}

func TestRenderMarksStaleLastCheck(t *testing.T) {
	status := onlineStatus()
	status.Server.LastChecked = renderNow.Add(-2 * time.Hour)
	status.State = domain.NewConnectivityState(true, status.Server, 0)

	output, err := Render(status, RenderOptions{Now: renderNow})
	require.NoError(t, err)
	assert.Contains(t, output, "(2h ago)")
	assert.Contains(t, output, "[stale]")

	output, err = Render(status, RenderOptions{Now: renderNow, StaleAfter: 3 * time.Hour})
	require.NoError(t, err)
	assert.NotContains(t, output, "[stale]")
}

func TestRenderWithoutNowPrintsAbsoluteTimes(t *testing.T) {
	status := onlineStatus()
	status.Queue = []domain.QueuedAction{{ID: "1", Type: "sync", Timestamp: renderNow.UnixMilli()}}
	status.State = domain.NewConnectivityState(true, status.Server, 1)

	output, err := Render(status, RenderOptions{})

	require.NoError(t, err)
	assert.Contains(t, output, "last checked: 2026-02-14T10:59:55Z")
	assert.Contains(t, output, "(2026-02-14T11:00:00Z)")
	assert.NotContains(t, output, "[stale]")
}

func TestRenderNeverChecked(t *testing.T) {
	server := domain.InitialServerStatus()
	output, err := Render(application.Status{
		State:  domain.NewConnectivityState(true, server, 0),
		Server: server,
	}, RenderOptions{Now: renderNow})

	require.NoError(t, err)
	assert.Contains(t, output, "last checked: never")
	assert.NotContains(t, output, "endpoint:")
	assert.NotContains(t, output, "attempts:")
}

func TestRetryLineWithRetriesDisabled(t *testing.T) {
	assert.Equal(t, "retries: disabled", retryLine(0, 0, newStyles()))
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want string
	}{
		{age: 0, want: "just now"},
		{age: 45 * time.Second, want: "45s ago"},
		{age: 3 * time.Minute, want: "3m ago"},
		{age: 5 * time.Hour, want: "5h ago"},
		{age: 50 * time.Hour, want: "2d ago"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatAge(tt.age))
	}
}

func TestRenderProgressBarClampsToWidth(t *testing.T) {
	s := newStyles()

	assert.Equal(t, "[----]", renderProgressBar(-10, 4, s))
	assert.Equal(t, "[==--]", renderProgressBar(50, 4, s))
	assert.Equal(t, "[====]", renderProgressBar(250, 4, s))
	assert.Empty(t, renderProgressBar(50, 0, s))
}

func TestInterpolateColorFadesToGrey(t *testing.T) {
	assert.Equal(t, "240", string(interpolateColor(0, 0, 10)))
	assert.Equal(t, "255", string(interpolateColor(10, 0, 10)))
	assert.Equal(t, "255", string(interpolateColor(1, 5, 5)))
	assert.Equal(t, "240", string(freshnessColor(time.Minute, time.Minute)))
	assert.Equal(t, "255", string(freshnessColor(0, time.Minute)))
}
