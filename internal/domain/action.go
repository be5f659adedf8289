package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// QueuedAction is a unit of deferred work recorded while the client is offline.
// Entries are never mutated after they are appended.
type QueuedAction struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

type NewAction struct {
	Type    string
	Payload json.RawMessage
}

func (a NewAction) Normalize() (NewAction, error) {
	kind := strings.TrimSpace(a.Type)
	if kind == "" {
		return NewAction{}, fmt.Errorf("%w: type is empty", ErrInvalidAction)
	}

	payload, err := NormalizePayload(a.Payload)
	if err != nil {
		return NewAction{}, fmt.Errorf("%w: %w", ErrInvalidAction, err)
	}

	return NewAction{Type: kind, Payload: payload}, nil
}

// NormalizePayload trims data, maps an empty blob to null, and rejects invalid JSON.
// The result never aliases data.
func NormalizePayload(data json.RawMessage) (json.RawMessage, error) {
	payload := bytes.TrimSpace(data)
	if len(payload) == 0 {
		payload = []byte("null")
	}
	if !json.Valid(payload) {
		return nil, errors.New("payload is not valid JSON")
	}

	cloned := make(json.RawMessage, len(payload))
	copy(cloned, payload)

	return cloned, nil
}

func CloneActions(actions []QueuedAction) []QueuedAction {
	out := make([]QueuedAction, len(actions))
	copy(out, actions)
	return out
}
