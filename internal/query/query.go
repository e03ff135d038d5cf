package query

import (
	"context"
	"time"
)

// Query binds a key to its fetcher and ttl so UI components can read and
// refetch one resource without knowing how it is loaded.
type Query struct {
	m          *Manager
	key        Key
	fetcher    Fetcher
	staleAfter time.Duration
}

// Bind returns a handle for key.
func (m *Manager) Bind(key Key, fetcher Fetcher, staleAfter time.Duration) *Query {
	return &Query{m: m, key: key, fetcher: fetcher, staleAfter: staleAfter}
}

// Key returns the bound key.
func (q *Query) Key() Key { return q.key }

// StaleAfter returns the bound ttl.
func (q *Query) StaleAfter() time.Duration { return q.staleAfter }

// Get reads the entry, applying the staleness rule.
func (q *Query) Get() Entry {
	return q.m.Get(q.key, q.fetcher, q.staleAfter)
}

// Peek reads the entry with no side effects.
func (q *Query) Peek() Entry {
	e, _ := q.m.Peek(q.key)
	return e
}

// Refetch forces a fetch, binding the handle's fetcher first so it also works
// for entries that were only hydrated from disk or were cleared.
func (q *Query) Refetch() {
	if q.fetcher == nil {
		return
	}
	q.m.mu.Lock()
	defer q.m.mu.Unlock()
	rec := q.m.recordLocked(q.key)
	rec.fetcher = q.fetcher
	rec.entry.StaleAfter = q.staleAfter
	rec.entry.LastAccess = q.m.now()
	if rec.done == nil {
		q.m.startLocked(rec)
	}
}

// Await waits for the bound key to settle.
func (q *Query) Await(ctx context.Context) (Entry, error) {
	return q.m.Await(ctx, q.key)
}
