package query

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of one cache entry.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusFetching
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusFetching:
		return "fetching"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Entry is a point-in-time copy of one cached query.
type Entry struct {
	Key         Key
	Data        json.RawMessage
	Status      Status
	FetchedAt   time.Time
	StaleAfter  time.Duration
	Err         error
	LastAccess  time.Time
	Invalidated bool
}

// HasData reports whether a successful fetch (or hydration) populated Data.
func (e Entry) HasData() bool {
	return e.Data != nil
}

// InFlight reports whether a fetch is running for the entry.
func (e Entry) InFlight() bool {
	return e.Status == StatusLoading || e.Status == StatusFetching
}

// IsStale reports whether a read at now would trigger a refresh.
func (e Entry) IsStale(now time.Time) bool {
	if !e.HasData() || e.Invalidated || e.FetchedAt.IsZero() {
		return true
	}
	return now.Sub(e.FetchedAt) >= e.StaleAfter
}

// Decode unmarshals the entry's data into T. ok is false when the entry has
// no data yet.
func Decode[T any](e Entry) (value T, ok bool, err error) {
	if !e.HasData() {
		return value, false, nil
	}
	if err := json.Unmarshal(e.Data, &value); err != nil {
		return value, false, fmt.Errorf("decode %s: %w", e.Key, err)
	}
	return value, true, nil
}

// Record is the persisted subset of an entry.
type Record struct {
	Key        Key
	Data       json.RawMessage
	FetchedAt  time.Time
	StaleAfter time.Duration
}
