package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/five82/gridwatch/internal/config"
	"github.com/five82/gridwatch/internal/dashboard"
	"github.com/five82/gridwatch/internal/gridapi"
	"github.com/five82/gridwatch/internal/kvstore"
	"github.com/five82/gridwatch/internal/logging"
	"github.com/five82/gridwatch/internal/persist"
	"github.com/five82/gridwatch/internal/query"
)

const (
	redisPrefix  = "gridwatch:"
	closeTimeout = 5 * time.Second
)

// Options configure the gridwatch application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses ~/.config/gridwatch/prefs.toml
	Page       int    // zero resumes the saved page
	APIBase    string // overrides api_base
	Store      string // overrides store
}

// Runtime holds the wired components shared by every command.
type Runtime struct {
	Config    config.Config
	Logger    *zap.Logger
	Store     kvstore.Store
	Bridge    *persist.Bridge
	Manager   *query.Manager
	Client    *gridapi.Client
	Dashboard *dashboard.Dashboard

	closers []func() error
}

// Open loads configuration and builds the cache stack. The manager hydrates
// from the persisted snapshot before Open returns.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
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

	client, err := gridapi.NewClient(cfg.APIBase)
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("init api client: %w", err)
	}
	r.Client = client.WithDelay(cfg.DelayMS)

	r.Bridge = persist.New(r.Store, persist.Options{
		Buster:   cfg.Buster,
		MaxAge:   cfg.Retention,
		Debounce: cfg.PersistDebounce,
		Logger:   r.Logger,
	})
	r.Manager = query.New(ctx, query.Options{
		Persister: r.Bridge,
		Logger:    r.Logger,
		Retention: cfg.Retention,
	})
	r.Dashboard = dashboard.New(r.Manager, r.Client, cfg.PageSize)

	r.Logger.Info("gridwatch started",
		zap.String("api", r.Client.BaseURL()),
		zap.String("store", cfg.Store),
		zap.Int("restored", r.Manager.Len()))
	return r, nil
}

func loadConfig(opts Options) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if v := strings.TrimSpace(opts.APIBase); v != "" {
		cfg.APIBase = v
	}
	if v := strings.TrimSpace(opts.Store); v != "" {
		cfg.Store = v
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (r *Runtime) openLogger() error {
	level, err := logging.ParseLevel(r.Config.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger, closeLog, err := logging.NewFileLogger(r.Config.LogPath, level)
	if err != nil {
		return err
	}
	r.Logger = logger.Named("gridwatch")
	r.closers = append(r.closers, closeLog)
	return nil
}

// openStore selects the durable backend and optionally wraps it with zstd.
func (r *Runtime) openStore(ctx context.Context) error {
	var store kvstore.Store
	switch r.Config.Store {
	case config.StoreMemory:
		store = kvstore.NewMemoryStore()
	case config.StoreRedis:
		pool := kvstore.NewRedisPool(r.Config.RedisAddr)
		r.closers = append(r.closers, pool.Close)
		conn, err := pool.GetContext(ctx)
		if err != nil {
			return fmt.Errorf("connect redis %s: %w", r.Config.RedisAddr, err)
		}
		_ = conn.Close()
		store = kvstore.NewRedisStore(pool, redisPrefix)
	default:
		store = kvstore.NewFileStore(afero.NewOsFs(), filepath.Clean(r.Config.CacheDir))
	}

	if r.Config.Compress {
		compressed, err := kvstore.NewCompressed(store)
		if err != nil {
			return err
		}
		r.closers = append(r.closers, compressed.Close)
		store = compressed
	}
	r.Store = store
	return nil
}

// Close stops in-flight fetches, writes any pending snapshot and releases
// the store and log file. Closers run in reverse order of acquisition.
func (r *Runtime) Close() error {
	var err error
	if r.Manager != nil {
		r.Manager.Close()
	}
	if r.Bridge != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		err = multierr.Append(err, r.Bridge.Flush(ctx))
		cancel()
	}
	if r.Logger != nil {
		r.Logger.Info("gridwatch stopped")
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, r.closers[i]())
	}
	r.closers = nil
	return err
}
