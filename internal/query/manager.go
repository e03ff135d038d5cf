package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultRetention is how long an entry survives GC without being read.
const DefaultRetention = 24 * time.Hour

// ErrUnboundQuery is returned for keys that have no entry with a fetcher.
var ErrUnboundQuery = errors.New("query has no bound fetcher")

// Fetcher loads one resource. The returned value is JSON-encoded into
// Entry.Data; a json.RawMessage is stored as-is.
type Fetcher func(ctx context.Context) (any, error)

// Persister mirrors successful cache state to durable storage. Persist must
// not block; Restore runs once, before any fetch starts.
type Persister interface {
	Restore(ctx context.Context) ([]Record, error)
	Persist(records []Record)
	Clear(ctx context.Context) error
}

// Options configure a Manager.
type Options struct {
	Persister Persister
	Logger    *zap.Logger
	Now       func() time.Time // nil uses time.Now
	Retention time.Duration    // zero uses DefaultRetention
}

// Manager owns the mapping from query key to cache entry. Reads are
// side-effecting: Get may start a background fetch for a missing or stale
// entry while returning the current state immediately.
type Manager struct {
	ctx       context.Context
	cancel    context.CancelFunc
	persister Persister
	logger    *zap.Logger
	now       func() time.Time
	retention time.Duration

	mu       sync.Mutex
	records  map[string]*record
	seq      uint64
	clearing int // durable clears in progress; snapshots are held back
	subs     map[int]chan struct{}
	nextSub  int

	wg sync.WaitGroup
}

type record struct {
	entry   Entry
	fetcher Fetcher
	seq     uint64        // sequence of the latest started fetch
	done    chan struct{} // non-nil while a fetch is in flight

	// invalidSeq is the last sequence issued when Invalidate was called.
	// Only a fetch started after it clears the invalidation.
	invalidSeq uint64
}

// New builds a Manager and hydrates it from opts.Persister before returning.
// Background fetches run under ctx; Close cancels them.
func New(ctx context.Context, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	retention := opts.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}

	base, cancel := context.WithCancel(ctx)
	m := &Manager{
		ctx:       base,
		cancel:    cancel,
		persister: opts.Persister,
		logger:    logger.Named("query"),
		now:       now,
		retention: retention,
		records:   make(map[string]*record),
		subs:      make(map[int]chan struct{}),
	}
	m.hydrate(ctx)
	return m
}

func (m *Manager) hydrate(ctx context.Context) {
	if m.persister == nil {
		return
	}
	restored, err := m.persister.Restore(ctx)
	if err != nil {
		m.logger.Warn("restore cache snapshot failed", zap.Error(err))
		return
	}
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range restored {
		if r.Key.IsZero() || r.Data == nil {
			continue
		}
		m.records[r.Key.Hash()] = &record{entry: Entry{
			Key:        r.Key,
			Data:       r.Data,
			Status:     StatusSuccess,
			FetchedAt:  r.FetchedAt,
			StaleAfter: r.StaleAfter,
			LastAccess: now,
		}}
	}
	m.logger.Debug("cache hydrated", zap.Int("entries", len(m.records)))
}

// Get returns the current entry for key. A missing entry starts a fetch in
// the loading state; an entry whose data is older than staleAfter (or was
// invalidated) starts a background fetch in the fetching state and keeps its
// data. A fresh entry, or one with a fetch already in flight, is returned with
// no network activity. fetcher and staleAfter replace the values bound by
// earlier calls.
func (m *Manager) Get(key Key, fetcher Fetcher, staleAfter time.Duration) Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	rec := m.recordLocked(key)
	rec.entry.StaleAfter = staleAfter
	rec.entry.LastAccess = now
	if fetcher != nil {
		rec.fetcher = fetcher
	}
	if rec.done == nil && rec.fetcher != nil && rec.entry.IsStale(now) {
		m.startLocked(rec)
	}
	return rec.entry
}

// Peek returns the entry for key without touching access time or starting a
// fetch.
func (m *Manager) Peek(key Key) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key.Hash()]
	if !ok {
		return Entry{Key: key}, false
	}
	return rec.entry, true
}

// Entries peeks several keys at once. Missing keys come back as idle entries.
func (m *Manager) Entries(keys ...Key) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(keys))
	for i, k := range keys {
		if rec, ok := m.records[k.Hash()]; ok {
			out[i] = rec.entry
		} else {
			out[i] = Entry{Key: k}
		}
	}
	return out
}

// Invalidate marks key stale so the next Get refetches it.
func (m *Manager) Invalidate(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key.Hash()]
	if !ok {
		return
	}
	rec.entry.Invalidated = true
	rec.invalidSeq = m.seq
	m.notifyLocked()
}

// Refetch forces one fetch cycle for key even when its data is fresh. It
// attaches to an in-flight fetch instead of starting a second one.
func (m *Manager) Refetch(key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key.Hash()]
	if !ok || rec.fetcher == nil {
		return fmt.Errorf("refetch %s: %w", key, ErrUnboundQuery)
	}
	rec.entry.LastAccess = m.now()
	if rec.done == nil {
		m.startLocked(rec)
	}
	return nil
}

// Await blocks until no fetch is in flight for key and returns the settled
// entry. An entry that settled in the error state returns its error.
func (m *Manager) Await(ctx context.Context, key Key) (Entry, error) {
	for {
		m.mu.Lock()
		rec, ok := m.records[key.Hash()]
		if !ok {
			m.mu.Unlock()
			return Entry{Key: key}, fmt.Errorf("await %s: %w", key, ErrUnboundQuery)
		}
		entry, done := rec.entry, rec.done
		m.mu.Unlock()

		if done == nil {
			if entry.Status == StatusError {
				return entry, entry.Err
			}
			return entry, nil
		}
		select {
		case <-done:
		case <-ctx.Done():
			return entry, ctx.Err()
		}
	}
}

// Clear empties durable storage and then the in-memory cache, so a crash
// between the two steps cannot bring cleared data back. Snapshots are held
// back while the durable clear runs, and reads are not blocked by its I/O.
// Fetches started before the clear still complete, but their results are
// dropped. Memory is emptied even when the durable clear fails.
func (m *Manager) Clear(ctx context.Context) error {
	var err error
	if m.persister != nil {
		m.mu.Lock()
		m.clearing++
		m.mu.Unlock()

		err = m.persister.Clear(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.persister != nil {
		m.clearing--
	}
	dropped := len(m.records)
	m.records = make(map[string]*record)
	m.notifyLocked()
	m.logger.Info("cache cleared", zap.Int("entries", dropped))

	if err != nil {
		return fmt.Errorf("clear durable cache: %w", err)
	}
	return nil
}

// GC drops entries that have not been read within the retention window and
// have no fetch in flight. It returns the number removed.
func (m *Manager) GC() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.retention)
	removed := 0
	for hash, rec := range m.records {
		if rec.done == nil && rec.entry.LastAccess.Before(cutoff) {
			delete(m.records, hash)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debug("cache gc", zap.Int("removed", removed))
		m.notifyLocked()
		m.persistLocked()
	}
	return removed
}

// Len reports the number of entries.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Keys returns every cached key ordered by its serialized form.
func (m *Manager) Keys() []Key {
	m.mu.Lock()
	keys := make([]Key, 0, len(m.records))
	for _, rec := range m.records {
		keys = append(keys, rec.entry.Key)
	}
	m.mu.Unlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i].Hash() < keys[j].Hash() })
	return keys
}

// Subscribe returns a channel that receives a signal after every state
// change. Signals coalesce: a slow reader sees at most one pending signal and
// should re-read state when it wakes. Call the returned func to unsubscribe.
func (m *Manager) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// Wait blocks until every background fetch started so far has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Close cancels in-flight fetches and waits for their goroutines.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) recordLocked(key Key) *record {
	rec, ok := m.records[key.Hash()]
	if !ok {
		rec = &record{entry: Entry{Key: key}}
		m.records[key.Hash()] = rec
	}
	return rec
}

func (m *Manager) startLocked(rec *record) {
	m.seq++
	seq := m.seq
	done := make(chan struct{})
	rec.seq = seq
	rec.done = done
	rec.entry.Err = nil
	if rec.entry.HasData() {
		rec.entry.Status = StatusFetching
	} else {
		rec.entry.Status = StatusLoading
	}

	key, fetcher := rec.entry.Key, rec.fetcher
	m.logger.Debug("fetch started",
		zap.Stringer("key", key),
		zap.Uint64("seq", seq),
		zap.Stringer("status", rec.entry.Status))
	m.notifyLocked()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(done)
		data, err := runFetch(m.ctx, fetcher)
		m.complete(key, seq, data, err)
	}()
}

func (m *Manager) complete(key Key, seq uint64, data json.RawMessage, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key.Hash()]
	if !ok || rec.seq != seq {
		m.logger.Debug("fetch result discarded", zap.Stringer("key", key), zap.Uint64("seq", seq))
		return
	}
	rec.done = nil

	if err != nil {
		rec.entry.Status = StatusError
		rec.entry.Err = err
		m.logger.Warn("fetch failed", zap.Stringer("key", key), zap.Error(err))
		m.notifyLocked()
		return
	}

	rec.entry.Data = data
	rec.entry.FetchedAt = m.now()
	rec.entry.Status = StatusSuccess
	rec.entry.Err = nil
	if seq > rec.invalidSeq {
		rec.entry.Invalidated = false
	}
	m.logger.Debug("fetch completed", zap.Stringer("key", key), zap.Int("bytes", len(data)))
	m.notifyLocked()
	m.persistLocked()
}

// persistLocked hands the persister the current successful state. It runs
// under the lock so snapshots reach the persister in mutation order.
func (m *Manager) persistLocked() {
	if m.persister == nil || m.clearing > 0 {
		return
	}
	records := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		if !rec.entry.HasData() {
			continue
		}
		records = append(records, Record{
			Key:        rec.entry.Key,
			Data:       rec.entry.Data,
			FetchedAt:  rec.entry.FetchedAt,
			StaleAfter: rec.entry.StaleAfter,
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Key.Hash() < records[j].Key.Hash() })
	m.persister.Persist(records)
}

func (m *Manager) notifyLocked() {
	for _, ch := range m.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func runFetch(ctx context.Context, fetcher Fetcher) (json.RawMessage, error) {
	value, err := fetcher(ctx)
	if err != nil {
		return nil, err
	}
	if raw, ok := value.(json.RawMessage); ok && raw != nil {
		if !json.Valid(raw) {
			return nil, fmt.Errorf("fetch result is not valid JSON")
		}
		return raw, nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode fetch result: %w", err)
	}
	return encoded, nil
}
