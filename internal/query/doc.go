// Package query implements the client-side query cache behind the dashboard.
//
// # Overview
//
// A Manager maps query keys (ordered tuples such as ["grid-events", 2]) to
// cache entries. Callers read through Get, which returns the current entry
// immediately and, as a side effect, may start a fetch:
//
//	no entry             -> create, status loading, fetch
//	fetch in flight      -> return as-is (the caller attaches to it)
//	no data yet          -> status loading, fetch
//	data older than ttl  -> status fetching, fetch in background, keep data
//	fresh                -> return as-is, no network
//
// A ttl of zero means every read revalidates. Long ttls (one hour for the
// events metadata) mean the entry is rarely refetched.
//
// # Entry States
//
//	idle ──Get──> loading ──ok──> success ──stale Get──> fetching ──ok──> success
//	                  │                                     │
//	                  └──err──> error <──────────err────────┘
//
// An error keeps whatever data an earlier cycle stored, so the UI can still
// show last-known-good values. There is no automatic retry; Refetch (or a later
// Get) starts the next attempt and clears the error.
//
// # Ordering
//
// Every started fetch takes a sequence number from a manager-wide counter and
// records it on its key. A completion is applied only while its sequence is
// still the key's latest; after Clear, or once a newer fetch has started, a
// late completion is dropped.
//
// # Persistence
//
// A Persister (see package persist) hydrates the manager inside New, before
// any fetch starts, and receives the full set of successful records after
// every success and GC. Clear empties memory first and then the persister
// while holding the lock, so a snapshot of cleared entries can never be
// written afterwards.
//
// # Notification
//
// Subscribe returns a coalescing channel that fires after every state change.
// The UI waits on it and re-reads entries with Peek or Entries.
package query
