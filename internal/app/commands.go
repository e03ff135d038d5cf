package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.uber.org/zap"

	"github.com/five82/gridwatch/internal/config"
	"github.com/five82/gridwatch/internal/mockapi"
	"github.com/five82/gridwatch/internal/persist"
	"github.com/five82/gridwatch/internal/prefs"
	"github.com/five82/gridwatch/internal/ui"
)

// Run boots the dashboard TUI until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) (err error) {
	r, err := Open(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("shutdown: %w", cerr)
		}
	}()

	StartJanitor(ctx, r.Manager, r.Config.JanitorEvery, r.Logger.Named("janitor"))

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = config.PrefsPath()
	}
	userPrefs, err := prefs.Load(prefsPath)
	if err != nil {
		r.Logger.Warn("load prefs failed", zap.Error(err))
		userPrefs = prefs.Default()
	}
	if opts.Page > 0 {
		userPrefs.Page = opts.Page
	}

	return ui.Run(ui.Options{
		Context:   ctx,
		Dashboard: r.Dashboard,
		Logger:    r.Logger,
		Prefs:     userPrefs,
		PrefsPath: prefsPath,
		LogPath:   r.Config.LogPath,
	})
}

// Prewarm fetches power usage, metadata and every event page, waits for all
// of them and writes the snapshot.
func Prewarm(ctx context.Context, opts Options, w io.Writer) (err error) {
	r, err := Open(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("shutdown: %w", cerr)
		}
	}()

	start := time.Now()
	if err := r.Dashboard.Prewarm(ctx, 1); err != nil {
		return err
	}
	total := r.Dashboard.Peek(1).TotalPages()
	rest := make([]int, 0, max(total-1, 0))
	for p := 2; p <= total; p++ {
		rest = append(rest, p)
	}
	if err := r.Dashboard.Prewarm(ctx, rest...); err != nil {
		return err
	}
	if err := r.Bridge.Flush(ctx); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	_, err = fmt.Fprintf(w, "prewarmed %d queries (%d event pages) from %s in %s\n",
		r.Manager.Len(), total, r.Client.BaseURL(), time.Since(start).Round(time.Millisecond))
	return err
}

// Mock serves the mock API until ctx is cancelled. listen overrides the
// configured address; ready, if set, receives the bound address.
func Mock(ctx context.Context, opts Options, listen string, ready func(net.Addr)) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if listen == "" {
		listen = cfg.Listen
	}
	r := &Runtime{Config: cfg}
	if err := r.openLogger(); err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	handler := mockapi.NewHandler(mockapi.Options{Logger: r.Logger})
	return mockapi.ListenAndServe(ctx, listen, handler, ready)
}

// CacheShow prints a summary of the persisted snapshot.
func CacheShow(ctx context.Context, opts Options, w io.Writer) error {
	r, err := openStoreOnly(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	snap, ok, err := persist.Load(ctx, r.Store, "")
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if !ok {
		_, err = fmt.Fprintln(w, "no persisted cache")
		return err
	}
	_, err = io.WriteString(w, renderSnapshot(snap, r.Config, time.Now())+"\n")
	return err
}

// CacheClear removes the persisted snapshot.
func CacheClear(ctx context.Context, opts Options, w io.Writer) error {
	r, err := openStoreOnly(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	bridge := persist.New(r.Store, persist.Options{Buster: r.Config.Buster, Logger: r.Logger})
	if err := bridge.Clear(ctx); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	_, err = fmt.Fprintln(w, "persisted cache cleared")
	return err
}

// openStoreOnly wires config, logging and the store without a manager, so
// inspecting the snapshot does not hydrate or rewrite it.
func openStoreOnly(ctx context.Context, opts Options) (*Runtime, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	r := &Runtime{Config: cfg}
	if err := r.openLogger(); err != nil {
		return nil, err
	}
	if err := r.openStore(ctx); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

func renderSnapshot(snap persist.Snapshot, cfg config.Config, now time.Time) string {
	header := fmt.Sprintf("snapshot saved %s ago · %d entries · store %s",
		formatAge(now.Sub(snap.SavedAt)), len(snap.Entries), cfg.Store)
	switch {
	case snap.Buster != cfg.Buster:
		header += fmt.Sprintf(" · buster %q does not match %q, will be discarded", snap.Buster, cfg.Buster)
	case now.Sub(snap.SavedAt) > cfg.Retention:
		header += " · expired, will be discarded"
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("KEY", "AGE", "TTL", "STATE", "BYTES")
	for _, e := range snap.Entries {
		ttl := time.Duration(e.StaleAfterMs) * time.Millisecond
		age := now.Sub(e.FetchedAt)
		state := "fresh"
		if age >= ttl {
			state = "stale"
		}
		if age > cfg.Retention {
			state = "expired"
		}
		t.Row(e.Key.String(), formatAge(age), formatTTL(ttl), state, strconv.Itoa(len(e.Data)))
	}
	return header + "\n" + t.Render()
}

func formatAge(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	return d.Truncate(time.Second).String()
}

func formatTTL(d time.Duration) string {
	if d <= 0 {
		return "0 (always stale)"
	}
	return d.String()
}
