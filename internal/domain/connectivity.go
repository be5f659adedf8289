package domain

import (
	"fmt"
	"time"
)

type ProbePhase string

const (
	ProbePhaseIdle     ProbePhase = "idle"
	ProbePhaseChecking ProbePhase = "checking"
	ProbePhaseRetrying ProbePhase = "retrying"
	ProbePhaseSettled  ProbePhase = "settled"
)

type ServerStatus struct {
	Reachable   bool
	Checking    bool
	LastChecked time.Time
	RetryCount  int
	Phase       ProbePhase

	// Diagnostics for the cycle currently in flight or the last settled one.
	Attempts    int
	LastError   string
	LastLatency time.Duration
}

func InitialServerStatus() ServerStatus {
	return ServerStatus{Reachable: true, Phase: ProbePhaseIdle}
}

type ConnectivityLabel string

const (
	LabelOnline            ConnectivityLabel = "online"
	LabelChecking          ConnectivityLabel = "checking"
	LabelServerUnreachable ConnectivityLabel = "server-unreachable"
	LabelOffline           ConnectivityLabel = "offline"
)

type ConnectivityState struct {
	NetworkPresent  bool
	ServerReachable bool
	Online          bool
	Checking        bool
	LastChecked     time.Time
	RetryCount      int
	QueueLength     int
}

func NewConnectivityState(networkPresent bool, server ServerStatus, queueLength int) ConnectivityState {
	return ConnectivityState{
		NetworkPresent:  networkPresent,
		ServerReachable: server.Reachable,
		Online:          networkPresent && server.Reachable,
		Checking:        server.Checking,
		LastChecked:     server.LastChecked,
		RetryCount:      server.RetryCount,
		QueueLength:     queueLength,
	}
}

func (s ConnectivityState) Label() ConnectivityLabel {
	switch {
	case !s.NetworkPresent:
		return LabelOffline
	case s.Checking:
		return LabelChecking
	case !s.ServerReachable:
		return LabelServerUnreachable
	default:
		return LabelOnline
	}
}

// Banner is the one-line summary shown while actions are pending or the client is offline.
func (s ConnectivityState) Banner() string {
	switch {
	case !s.Online && s.QueueLength > 0:
		return fmt.Sprintf("%s, %s queued", s.Label(), pluralActions(s.QueueLength))
	case !s.Online:
		return string(s.Label())
	case s.QueueLength > 0:
		return fmt.Sprintf("%s pending sync", pluralActions(s.QueueLength))
	default:
		return ""
	}
}

func pluralActions(n int) string {
	if n == 1 {
		return "1 action"
	}

	return fmt.Sprintf("%d actions", n)
}
