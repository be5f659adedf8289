package application

import (
	"time"

	"github.com/bnema/offlinectl/internal/domain"
)

// Status is a point-in-time view of the engine for presentation.
type Status struct {
	State      domain.ConnectivityState
	Server     domain.ServerStatus
	MaxRetries int
	Interval   time.Duration
	Endpoint   string
	Queue      []domain.QueuedAction

	// NextBackoff is the wait before the pending retry; zero unless retrying.
	NextBackoff time.Duration
}
