package persist

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/five82/gridwatch/internal/kvstore"
	"github.com/five82/gridwatch/internal/query"
)

var t0 = time.Date(2024, 9, 30, 8, 0, 0, 0, time.UTC)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sampleRecords() []query.Record {
	return []query.Record{
		{
			Key:        query.NewKey("power-usage"),
			Data:       json.RawMessage(`[{"time":"2024-07-01","predicted":10.7,"actual":10.9}]`),
			FetchedAt:  t0.Add(-5 * time.Minute),
			StaleAfter: 0,
		},
		{
			Key:        query.NewKey("grid-events-metadata"),
			Data:       json.RawMessage(`{"totalCount":17,"totalPages":4,"pageSize":5}`),
			FetchedAt:  t0.Add(-30 * time.Minute),
			StaleAfter: time.Hour,
		},
		{
			Key:        query.NewKey("grid-events", 2),
			Data:       json.RawMessage(`{"data":[],"pagination":{"page":2}}`),
			FetchedAt:  t0.Add(-time.Minute),
			StaleAfter: 0,
		},
	}
}

func TestBridge_RoundTripKeepsPersistedFields(t *testing.T) {
	store := kvstore.NewMemoryStore()
	writer := New(store, Options{Debounce: -1, Now: fixedNow(t0)})
	want := sampleRecords()
	writer.Persist(want)

	reader := New(store, Options{Now: fixedNow(t0.Add(time.Minute))})
	got, err := reader.Restore(context.Background())
	if err != nil {
		t.Fatalf("Restore returned error: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Restore returned %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Key.Equal(want[i].Key) {
			t.Fatalf("record %d key = %s, want %s", i, got[i].Key, want[i].Key)
		}
		if string(got[i].Data) != string(want[i].Data) {
			t.Fatalf("record %d data = %s, want %s", i, got[i].Data, want[i].Data)
		}
		if !got[i].FetchedAt.Equal(want[i].FetchedAt) {
			t.Fatalf("record %d fetchedAt = %v, want %v", i, got[i].FetchedAt, want[i].FetchedAt)
		}
		if got[i].StaleAfter != want[i].StaleAfter {
			t.Fatalf("record %d staleAfter = %v, want %v", i, got[i].StaleAfter, want[i].StaleAfter)
		}
	}
}

func TestBridge_SnapshotLayout(t *testing.T) {
	store := kvstore.NewMemoryStore()
	New(store, Options{Debounce: -1, Buster: "v3", Now: fixedNow(t0)}).Persist(sampleRecords()[1:2])

	raw, ok, err := store.Load(context.Background(), StorageKey)
	if err != nil || !ok {
		t.Fatalf("snapshot not stored under %q: ok=%v err=%v", StorageKey, ok, err)
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("snapshot is not JSON: %v", err)
	}
	for _, field := range []string{"version", "buster", "savedAt", "entries"} {
		if _, ok := generic[field]; !ok {
			t.Fatalf("snapshot missing %q: %s", field, raw)
		}
	}
	entry := generic["entries"].([]any)[0].(map[string]any)
	for _, field := range []string{"key", "data", "fetchedAt", "staleAfterMs"} {
		if _, ok := entry[field]; !ok {
			t.Fatalf("entry missing %q: %s", field, raw)
		}
	}
	for _, field := range []string{"status", "error"} {
		if _, ok := entry[field]; ok {
			t.Fatalf("entry persisted transient field %q", field)
		}
	}
	if entry["staleAfterMs"].(float64) != float64(time.Hour.Milliseconds()) {
		t.Fatalf("staleAfterMs = %v, want %d", entry["staleAfterMs"], time.Hour.Milliseconds())
	}
}

func TestBridge_DebounceWritesLatestState(t *testing.T) {
	store := kvstore.NewMemoryStore()
	b := New(store, Options{Debounce: time.Hour, Now: fixedNow(t0)})
	records := sampleRecords()

	b.Persist(records[:1])
	b.Persist(records)
	if _, ok, _ := store.Load(context.Background(), StorageKey); ok {
		t.Fatalf("snapshot written before debounce elapsed")
	}
	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	snap, ok, err := Load(context.Background(), store, "")
	if err != nil || !ok {
		t.Fatalf("Load ok=%v err=%v", ok, err)
	}
	if len(snap.Entries) != len(records) {
		t.Fatalf("snapshot has %d entries, want %d", len(snap.Entries), len(records))
	}
}

func TestBridge_DebounceTimerEventuallyWrites(t *testing.T) {
	store := kvstore.NewMemoryStore()
	b := New(store, Options{Debounce: 10 * time.Millisecond, Now: fixedNow(t0)})
	b.Persist(sampleRecords())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok, _ := store.Load(context.Background(), StorageKey); ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("debounced snapshot never written")
}

func TestBridge_ClearDropsPendingAndRemovesSnapshot(t *testing.T) {
	store := kvstore.NewMemoryStore()
	b := New(store, Options{Debounce: time.Hour, Now: fixedNow(t0)})
	b.Persist(sampleRecords())
	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	b.Persist(sampleRecords())
	if err := b.Clear(context.Background()); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("Flush after Clear: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("store has %d keys after Clear, want 0", store.Len())
	}
}

func TestBridge_WriteFromBeforeClearIsDropped(t *testing.T) {
	store := kvstore.NewMemoryStore()
	b := New(store, Options{Debounce: time.Hour, Now: fixedNow(t0)})

	b.Persist(sampleRecords())
	b.mu.Lock()
	records, gen := b.pending, b.gen
	b.mu.Unlock()

	if err := b.Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	b.writeMu.Lock()
	err := b.writeLocked(context.Background(), records, gen)
	b.writeMu.Unlock()
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("pre-clear write landed after Clear")
	}
}

func TestBridge_RestoreDiscardsInvalidSnapshots(t *testing.T) {
	current := func(mutate func(*Snapshot)) []byte {
		b := New(kvstore.NewMemoryStore(), Options{Buster: "b1", Now: fixedNow(t0)})
		s := b.snapshot(sampleRecords())
		mutate(&s)
		raw, err := Encode(s)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		return raw
	}

	tests := []struct {
		name string
		raw  []byte
	}{
		{"garbage", []byte("{not-json")},
		{"version", current(func(s *Snapshot) { s.Version = 99 })},
		{"buster", current(func(s *Snapshot) { s.Buster = "old" })},
		{"expired", current(func(s *Snapshot) { s.SavedAt = t0.Add(-25 * time.Hour) })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := kvstore.NewMemoryStore()
			if err := store.Save(context.Background(), StorageKey, tt.raw); err != nil {
				t.Fatalf("Save: %v", err)
			}
			b := New(store, Options{Buster: "b1", Now: fixedNow(t0)})
			got, err := b.Restore(context.Background())
			if err != nil || len(got) != 0 {
				t.Fatalf("Restore = %d records err=%v, want none", len(got), err)
			}
			if store.Len() != 0 {
				t.Fatalf("invalid snapshot left in store")
			}
		})
	}
}

func TestBridge_RestoreDropsExpiredEntries(t *testing.T) {
	store := kvstore.NewMemoryStore()
	records := sampleRecords()
	records[0].FetchedAt = t0.Add(-30 * time.Hour)
	New(store, Options{Debounce: -1, Now: fixedNow(t0)}).Persist(records)

	got, _ := New(store, Options{Now: fixedNow(t0)}).Restore(context.Background())
	if len(got) != len(records)-1 {
		t.Fatalf("Restore returned %d records, want %d", len(got), len(records)-1)
	}
	for _, r := range got {
		if r.Key.Equal(query.NewKey("power-usage")) {
			t.Fatalf("expired power-usage entry was restored")
		}
	}
}

type failingStore struct{ err error }

func (f failingStore) Load(context.Context, string) ([]byte, bool, error) { return nil, false, f.err }
func (f failingStore) Save(context.Context, string, []byte) error         { return f.err }
func (f failingStore) Remove(context.Context, string) error               { return f.err }

func TestBridge_StoreFailuresAreSwallowed(t *testing.T) {
	boom := &kvstore.PersistenceError{Op: "save", Key: StorageKey, Err: errors.New("disk full")}
	b := New(failingStore{err: boom}, Options{Debounce: -1})

	got, err := b.Restore(context.Background())
	if err != nil || got != nil {
		t.Fatalf("Restore = %v, %v; want nil, nil", got, err)
	}
	b.Persist(sampleRecords())
	if err := b.Clear(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Clear error = %v, want %v", err, boom)
	}
}

func TestBridge_WithManagerSurvivesRestartAndClear(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewFileStore(afero.NewMemMapFs(), "/cache")
	now := time.Now()

	first := query.New(ctx, query.Options{Persister: New(store, Options{Debounce: -1})})
	key := query.NewKey("grid-events", 1)
	calls := 0
	fetch := func(context.Context) (any, error) {
		calls++
		return map[string]any{"data": []string{"evt-001"}}, nil
	}
	first.Get(key, fetch, time.Hour)
	first.Wait()
	first.Close()

	second := query.New(ctx, query.Options{Persister: New(store, Options{Debounce: -1})})
	e := second.Get(key, fetch, time.Hour)
	if e.Status != query.StatusSuccess || !e.HasData() {
		t.Fatalf("restored entry status=%s hasData=%v, want cached success", e.Status, e.HasData())
	}
	if e.FetchedAt.Before(now.Add(-time.Second)) {
		t.Fatalf("restored FetchedAt = %v, want recent", e.FetchedAt)
	}
	if calls != 1 {
		t.Fatalf("fetch calls = %d, want 1 (fresh restored data)", calls)
	}

	if err := second.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	second.Close()

	third := query.New(ctx, query.Options{Persister: New(store, Options{Debounce: -1})})
	defer third.Close()
	if third.Len() != 0 {
		t.Fatalf("entries resurrected after Clear: %d", third.Len())
	}
	if e := third.Get(key, fetch, time.Hour); e.Status != query.StatusLoading {
		t.Fatalf("Get after Clear status = %s, want loading", e.Status)
	}
	third.Wait()
}

// flakyStore wraps a MemoryStore and fails removes, and optionally saves,
// while it is down.
type flakyStore struct {
	*kvstore.MemoryStore

	mu          sync.Mutex
	failRemoves int
	failSaves   bool
}

func (s *flakyStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	fail := s.failRemoves > 0
	if fail {
		s.failRemoves--
	}
	s.mu.Unlock()
	if fail {
		return &kvstore.PersistenceError{Op: "remove", Key: key, Err: errors.New("transient remove failure")}
	}
	return s.MemoryStore.Remove(ctx, key)
}

func (s *flakyStore) Save(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	fail := s.failSaves
	s.mu.Unlock()
	if fail {
		return &kvstore.PersistenceError{Op: "save", Key: key, Err: errors.New("store down")}
	}
	return s.MemoryStore.Save(ctx, key, value)
}

func (s *flakyStore) recover() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRemoves = 0
	s.failSaves = false
}

func seedManager(t *testing.T, store kvstore.Store) *query.Manager {
	t.Helper()
	m := query.New(context.Background(), query.Options{Persister: New(store, Options{Debounce: -1})})
	m.Get(query.NewKey("power-usage"), func(context.Context) (any, error) { return []string{"old"}, nil }, time.Hour)
	m.Wait()
	return m
}

func TestBridge_FailedRemoveWritesEmptySnapshot(t *testing.T) {
	store := &flakyStore{MemoryStore: kvstore.NewMemoryStore()}
	m := seedManager(t, store)

	store.mu.Lock()
	store.failRemoves = 1
	store.mu.Unlock()
	if err := m.Clear(context.Background()); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	m.Close()

	restarted := query.New(context.Background(), query.Options{Persister: New(store, Options{Debounce: -1})})
	defer restarted.Close()
	if n := restarted.Len(); n != 0 {
		t.Fatalf("restored %d entries after Clear, want 0", n)
	}
}

func TestBridge_ClearRetriedByFlushAfterStoreRecovers(t *testing.T) {
	store := &flakyStore{MemoryStore: kvstore.NewMemoryStore()}
	m := seedManager(t, store)
	bridge := New(store, Options{Debounce: -1})

	store.mu.Lock()
	store.failRemoves, store.failSaves = 1, true
	store.mu.Unlock()
	if err := bridge.Clear(context.Background()); err == nil {
		t.Fatalf("Clear returned nil with the store down")
	}
	m.Close()

	store.recover()
	if err := bridge.Flush(context.Background()); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("snapshot still stored after retried clear")
	}
	restarted := query.New(context.Background(), query.Options{Persister: New(store, Options{Debounce: -1})})
	defer restarted.Close()
	if n := restarted.Len(); n != 0 {
		t.Fatalf("restored %d entries after Clear, want 0", n)
	}
}

// gatedStore blocks every Save until released.
type gatedStore struct {
	*kvstore.MemoryStore
	entered chan struct{}
	release chan struct{}
}

func (s *gatedStore) Save(ctx context.Context, key string, value []byte) error {
	s.entered <- struct{}{}
	<-s.release
	return s.MemoryStore.Save(ctx, key, value)
}

func TestBridge_FlushWaitsForWriteInProgress(t *testing.T) {
	store := &gatedStore{
		MemoryStore: kvstore.NewMemoryStore(),
		entered:     make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
	b := New(store, Options{Debounce: time.Millisecond, Now: fixedNow(t0)})
	b.Persist(sampleRecords())

	select {
	case <-store.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("debounced write never started")
	}

	flushed := make(chan error, 1)
	go func() { flushed <- b.Flush(context.Background()) }()
	select {
	case err := <-flushed:
		t.Fatalf("Flush returned %v while a write was in progress", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	if err := <-flushed; err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	if _, ok, _ := store.Load(context.Background(), StorageKey); !ok {
		t.Fatalf("snapshot missing after Flush returned")
	}
}
