// Package app is the composition root for gridwatch.
//
// # Overview
//
// Open wires configuration, logging, the durable store, the persistence
// bridge, the query manager, the grid API client and the dashboard. Every
// CLI command goes through it (or through a lighter store-only variant for
// the cache commands), so all of them see the same store layout.
//
// # Data Flow
//
//	┌──────────────┐
//	│   Open()     │ Initialize everything
//	└──────┬───────┘
//	       │
//	       ├─────> config.Load()          Read gridwatch config
//	       ├─────> logging.NewFileLogger  JSON log file (or no-op)
//	       ├─────> openStore()            file / memory / redis, optional zstd
//	       ├─────> persist.New()          Snapshot bridge
//	       ├─────> query.New()            Hydrates from the snapshot
//	       └─────> dashboard.New()        Keys, ttls and fetchers
//
//	Run:     StartJanitor() + ui.Run()  (blocks)
//	Prewarm: Dashboard.Prewarm(page 1), then every other page, then Flush
//	Mock:    mockapi.ListenAndServe()   (blocks)
//
// # Janitor
//
// While the dashboard runs, a background goroutine calls Manager.GC at the
// configured janitor_every interval, dropping entries nobody has read within
// the retention window.
//
// # Shutdown
//
// Runtime.Close cancels in-flight fetches, flushes the pending snapshot and
// then closes the store and the log file. Errors from each step are combined
// with multierr.
package app
