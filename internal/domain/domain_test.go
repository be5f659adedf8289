package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewActionNormalize(t *testing.T) {
	tests := []struct {
		name        string
		action      NewAction
		wantPayload string
		wantErr     bool
	}{
		{name: "object payload", action: NewAction{Type: "send_message", Payload: json.RawMessage(`{"text":"hi"}`)}, wantPayload: `{"text":"hi"}`},
		{name: "empty payload becomes null", action: NewAction{Type: "ping"}, wantPayload: "null"},
		{name: "type is trimmed", action: NewAction{Type: "  ping  ", Payload: json.RawMessage(`1`)}, wantPayload: "1"},
		{name: "blank type rejected", action: NewAction{Type: "   "}, wantErr: true},
		{name: "invalid json rejected", action: NewAction{Type: "ping", Payload: json.RawMessage(`{nope`)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.action.Normalize()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAction)
				return
			}

			require.NoError(t, err)
			assert.JSONEq(t, tt.wantPayload, string(got.Payload))
		})
	}
}

func TestQueuedActionJSONShape(t *testing.T) {
	action := QueuedAction{ID: "1700000000000", Type: "send_message", Payload: json.RawMessage(`{"a":1}`), Timestamp: 1700000000000}

	data, err := json.Marshal(action)
	require.NoError(t, err)

	assert.JSONEq(t, `{"id":"1700000000000","type":"send_message","payload":{"a":1},"timestamp":1700000000000}`, string(data))
}

func TestCacheEntryJSONOmitsKey(t *testing.T) {
	entry := CacheEntry{Key: "profile", Data: json.RawMessage(`{"name":"x"}`), Timestamp: 42}

	data, err := json.Marshal(entry)
	require.NoError(t, err)

	assert.JSONEq(t, `{"data":{"name":"x"},"timestamp":42}`, string(data))
}

func TestCacheEntryStaleness(t *testing.T) {
	saved := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	entry := CacheEntry{Timestamp: saved.UnixMilli()}

	assert.Equal(t, 5*time.Minute, entry.Age(saved.Add(5*time.Minute)))
	assert.Equal(t, time.Duration(0), entry.Age(saved.Add(-time.Minute)))
	assert.False(t, entry.IsStale(saved.Add(5*time.Minute), 10*time.Minute))
	assert.True(t, entry.IsStale(saved.Add(11*time.Minute), 10*time.Minute))
	assert.False(t, entry.IsStale(saved.Add(24*time.Hour), 0))
	assert.True(t, CacheEntry{}.IsStale(saved, time.Minute))
}

func TestConnectivityStateDerivesOnline(t *testing.T) {
	tests := []struct {
		name      string
		network   bool
		server    ServerStatus
		wantOn    bool
		wantLabel ConnectivityLabel
	}{
		{name: "both up", network: true, server: ServerStatus{Reachable: true}, wantOn: true, wantLabel: LabelOnline},
		{name: "network down", network: false, server: ServerStatus{Reachable: true}, wantOn: false, wantLabel: LabelOffline},
		{name: "server down", network: true, server: ServerStatus{Reachable: false}, wantOn: false, wantLabel: LabelServerUnreachable},
		{name: "checking", network: true, server: ServerStatus{Reachable: true, Checking: true}, wantOn: true, wantLabel: LabelChecking},
		{name: "both down", network: false, server: ServerStatus{}, wantOn: false, wantLabel: LabelOffline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := NewConnectivityState(tt.network, tt.server, 0)
			assert.Equal(t, tt.wantOn, state.Online)
			assert.Equal(t, tt.wantLabel, state.Label())
		})
	}
}

func TestConnectivityStateBanner(t *testing.T) {
	assert.Equal(t, "", NewConnectivityState(true, ServerStatus{Reachable: true}, 0).Banner())
	assert.Equal(t, "offline", NewConnectivityState(false, ServerStatus{Reachable: true}, 0).Banner())
	assert.Equal(t, "offline, 1 action queued", NewConnectivityState(false, ServerStatus{Reachable: true}, 1).Banner())
	assert.Equal(t, "server-unreachable, 3 actions queued", NewConnectivityState(true, ServerStatus{}, 3).Banner())
	assert.Equal(t, "2 actions pending sync", NewConnectivityState(true, ServerStatus{Reachable: true}, 2).Banner())
}

func TestInitialServerStatusAssumesReachable(t *testing.T) {
	status := InitialServerStatus()
	assert.True(t, status.Reachable)
	assert.False(t, status.Checking)
	assert.Equal(t, ProbePhaseIdle, status.Phase)
}
