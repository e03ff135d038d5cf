// Package persist mirrors the query cache to a durable key/value store as a
// single versioned snapshot.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/five82/gridwatch/internal/kvstore"
	"github.com/five82/gridwatch/internal/query"
)

const (
	// StorageKey is the fixed key the snapshot is stored under.
	StorageKey = "gridwatch-query-cache"

	snapshotVersion = 1

	// DefaultMaxAge matches the cache retention window.
	DefaultMaxAge   = 24 * time.Hour
	DefaultDebounce = 250 * time.Millisecond
	flushTimeout    = 5 * time.Second
	clearRetry      = 5 * time.Second
)

// Snapshot is the persisted envelope. Only successful state is stored:
// status, errors and in-flight fetches never reach disk.
type Snapshot struct {
	Version int             `json:"version"`
	Buster  string          `json:"buster,omitempty"`
	SavedAt time.Time       `json:"savedAt"`
	Entries []SnapshotEntry `json:"entries"`
}

// SnapshotEntry is one persisted cache entry.
type SnapshotEntry struct {
	Key          query.Key       `json:"key"`
	Data         json.RawMessage `json:"data"`
	FetchedAt    time.Time       `json:"fetchedAt"`
	StaleAfterMs int64           `json:"staleAfterMs"`
}

// UnmarshalJSON decodes the key through query.ParseKey.
func (e *SnapshotEntry) UnmarshalJSON(raw []byte) error {
	var wire struct {
		Key          json.RawMessage `json:"key"`
		Data         json.RawMessage `json:"data"`
		FetchedAt    time.Time       `json:"fetchedAt"`
		StaleAfterMs int64           `json:"staleAfterMs"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return err
	}
	key, err := query.ParseKey(wire.Key)
	if err != nil {
		return err
	}
	*e = SnapshotEntry{Key: key, Data: wire.Data, FetchedAt: wire.FetchedAt, StaleAfterMs: wire.StaleAfterMs}
	return nil
}

// Options configure a Bridge.
type Options struct {
	Key      string        // empty uses StorageKey
	Buster   string        // snapshots with a different buster are discarded
	MaxAge   time.Duration // zero uses DefaultMaxAge
	Debounce time.Duration // zero uses DefaultDebounce; negative writes synchronously
	Logger   *zap.Logger
	Now      func() time.Time
}

// Bridge implements query.Persister over a kvstore.Store. Failures are logged
// and swallowed: losing the durable cache degrades to fetching fresh data.
type Bridge struct {
	store    kvstore.Store
	key      string
	buster   string
	maxAge   time.Duration
	debounce time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	pending []query.Record
	dirty   bool
	cleared bool // a Clear has not reached the store yet
	gen     uint64
	timer   *time.Timer

	// writeMu serializes saves and removes so a clear cannot be overtaken
	// by a save that started before it. Flush holds it for the whole write.
	writeMu sync.Mutex
}

var _ query.Persister = (*Bridge)(nil)

// New returns a Bridge writing to store.
func New(store kvstore.Store, opts Options) *Bridge {
	b := &Bridge{
		store:    store,
		key:      opts.Key,
		buster:   opts.Buster,
		maxAge:   opts.MaxAge,
		debounce: opts.Debounce,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if b.key == "" {
		b.key = StorageKey
	}
	if b.maxAge <= 0 {
		b.maxAge = DefaultMaxAge
	}
	if b.debounce == 0 {
		b.debounce = DefaultDebounce
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	b.logger = b.logger.Named("persist")
	if b.now == nil {
		b.now = time.Now
	}
	return b
}

// Restore loads the snapshot and returns its entries. A snapshot that cannot
// be decoded, has another version or buster, or is older than MaxAge is
// removed. Entries fetched longer than MaxAge ago are dropped.
func (b *Bridge) Restore(ctx context.Context) ([]query.Record, error) {
	raw, ok, err := b.store.Load(ctx, b.key)
	if err != nil {
		b.logger.Warn("load snapshot failed", zap.Error(err))
		return nil, nil
	}
	if !ok {
		return nil, nil
	}

	snap, err := Decode(raw)
	if err != nil {
		b.logger.Warn("discarding unreadable snapshot", zap.Error(err))
		b.discard(ctx)
		return nil, nil
	}
	now := b.now()
	switch {
	case snap.Version != snapshotVersion:
		b.logger.Info("discarding snapshot", zap.Int("version", snap.Version))
		b.discard(ctx)
		return nil, nil
	case snap.Buster != b.buster:
		b.logger.Info("discarding snapshot", zap.String("buster", snap.Buster))
		b.discard(ctx)
		return nil, nil
	case now.Sub(snap.SavedAt) > b.maxAge:
		b.logger.Info("discarding expired snapshot", zap.Time("saved_at", snap.SavedAt))
		b.discard(ctx)
		return nil, nil
	}

	records := make([]query.Record, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		if e.Data == nil || now.Sub(e.FetchedAt) > b.maxAge {
			continue
		}
		records = append(records, query.Record{
			Key:        e.Key,
			Data:       e.Data,
			FetchedAt:  e.FetchedAt,
			StaleAfter: time.Duration(e.StaleAfterMs) * time.Millisecond,
		})
	}
	b.logger.Debug("snapshot restored",
		zap.Int("entries", len(records)),
		zap.Int("expired", len(snap.Entries)-len(records)))
	return records, nil
}

// Persist records the latest state and schedules a write. Only the newest
// state pending at write time is saved.
func (b *Bridge) Persist(records []query.Record) {
	b.mu.Lock()
	b.pending = records
	b.dirty = true
	if b.debounce < 0 {
		b.mu.Unlock()
		b.flushPending()
		return
	}
	if b.timer == nil {
		b.timer = time.AfterFunc(b.debounce, b.flushPending)
	}
	b.mu.Unlock()
}

// Flush writes pending state immediately. It waits for a write already in
// progress, so once it returns nothing is left in flight. A clear that could
// not reach the store earlier is retried first.
func (b *Bridge) Flush(ctx context.Context) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	records, dirty, cleared, gen := b.pending, b.dirty, b.cleared, b.gen
	b.dirty = false
	b.mu.Unlock()

	if cleared && !dirty {
		return b.clearLocked(ctx, gen)
	}
	if !dirty {
		return nil
	}
	if err := b.writeLocked(ctx, records, gen); err != nil {
		b.mu.Lock()
		if gen == b.gen && !b.dirty {
			b.dirty = true
		}
		b.mu.Unlock()
		return err
	}
	b.mu.Lock()
	if gen == b.gen {
		b.cleared = false
	}
	b.mu.Unlock()
	return nil
}

// Clear drops pending writes and removes the snapshot. When the remove
// fails an empty snapshot is written in its place; if that fails too the
// clear stays pending and the next Flush retries it, so cleared entries are
// never restored.
func (b *Bridge) Clear(ctx context.Context) error {
	b.mu.Lock()
	b.gen++
	gen := b.gen
	b.pending = nil
	b.dirty = false
	b.cleared = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return b.clearLocked(ctx, gen)
}

// clearLocked removes the snapshot for generation gen. The caller holds
// writeMu.
func (b *Bridge) clearLocked(ctx context.Context, gen uint64) error {
	err := b.store.Remove(ctx, b.key)
	if err != nil {
		b.logger.Warn("remove snapshot failed, writing empty snapshot", zap.Error(err))
		raw, encErr := Encode(b.snapshot(nil))
		if encErr == nil {
			encErr = b.store.Save(ctx, b.key, raw)
		}
		if encErr != nil {
			b.logger.Warn("clear snapshot failed", zap.Error(encErr))
			b.retryLater()
			return err
		}
	}

	b.mu.Lock()
	if gen == b.gen {
		b.cleared = false
	}
	b.mu.Unlock()
	return nil
}

// retryLater schedules a flush so a pending clear is retried even if no
// further state arrives.
func (b *Bridge) retryLater() {
	if b.debounce < 0 {
		return
	}
	b.mu.Lock()
	if b.timer == nil {
		b.timer = time.AfterFunc(max(b.debounce, clearRetry), b.flushPending)
	}
	b.mu.Unlock()
}

func (b *Bridge) flushPending() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	_ = b.Flush(ctx)
}

// writeLocked saves records unless a Clear happened after they were taken.
// The caller holds writeMu.
func (b *Bridge) writeLocked(ctx context.Context, records []query.Record, gen uint64) error {
	b.mu.Lock()
	stale := gen != b.gen
	b.mu.Unlock()
	if stale {
		return nil
	}

	raw, err := Encode(b.snapshot(records))
	if err != nil {
		b.logger.Warn("encode snapshot failed", zap.Error(err))
		return err
	}
	if err := b.store.Save(ctx, b.key, raw); err != nil {
		b.logger.Warn("save snapshot failed", zap.Error(err))
		return err
	}
	b.logger.Debug("snapshot saved", zap.Int("entries", len(records)), zap.Int("bytes", len(raw)))
	return nil
}

func (b *Bridge) snapshot(records []query.Record) Snapshot {
	snap := Snapshot{
		Version: snapshotVersion,
		Buster:  b.buster,
		SavedAt: b.now(),
		Entries: make([]SnapshotEntry, 0, len(records)),
	}
	for _, r := range records {
		snap.Entries = append(snap.Entries, SnapshotEntry{
			Key:          r.Key,
			Data:         r.Data,
			FetchedAt:    r.FetchedAt,
			StaleAfterMs: r.StaleAfter.Milliseconds(),
		})
	}
	return snap
}

func (b *Bridge) discard(ctx context.Context) {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := b.store.Remove(ctx, b.key); err != nil {
		b.logger.Warn("remove snapshot failed", zap.Error(err))
	}
}

// Load reads and decodes the snapshot without applying any expiry rules.
// It reports false when no snapshot is stored.
func Load(ctx context.Context, store kvstore.Store, key string) (Snapshot, bool, error) {
	if key == "" {
		key = StorageKey
	}
	raw, ok, err := store.Load(ctx, key)
	if err != nil || !ok {
		return Snapshot{}, false, err
	}
	snap, err := Decode(raw)
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

// Encode serializes a snapshot.
func Encode(s Snapshot) ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return raw, nil
}

// Decode parses a serialized snapshot.
func Decode(raw []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}
