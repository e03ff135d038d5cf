// Package ui is the Bubble Tea dashboard for gridwatch.
//
// The screen is a header with the cache status indicator and the Refresh and
// Clear Cache actions, a power-usage chart, a paginated grid-events table and
// an optional activity pane that tails the JSON log file.
//
// The model never fetches directly. Page changes and startup call
// dashboard.Load, which reads through the query cache and may start fetches.
// Redraws use dashboard.Peek, which has no side effects. The model subscribes
// to the cache and re-peeks whenever it signals a change, so the indicator
// moves through loading, updating and fresh as fetches settle.
//
// Theme, page and legend visibility are saved to the prefs file on change.
package ui
