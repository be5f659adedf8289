package domain

import (
	"encoding/json"
	"time"
)

type CacheEntry struct {
	Key       string          `json:"-"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

func (e CacheEntry) SavedAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

func (e CacheEntry) Age(now time.Time) time.Duration {
	if e.Timestamp <= 0 {
		return 0
	}

	age := now.Sub(e.SavedAt())
	if age < 0 {
		return 0
	}

	return age
}

func (e CacheEntry) IsStale(now time.Time, maxAge time.Duration) bool {
	if e.Timestamp <= 0 {
		return true
	}

	if maxAge <= 0 {
		return false
	}

	return e.Age(now) > maxAge
}
