package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/mattn/go-isatty"

	"github.com/five82/gridwatch/internal/app"
)

var version = "dev"

// Globals are flags shared by every command.
type Globals struct {
	Config  string           `help:"Config file path." placeholder:"PATH" default:"~/.config/gridwatch/config.toml"`
	API     string           `help:"Override api_base from the config." placeholder:"ADDR"`
	Store   string           `help:"Override the cache store (file, memory or redis)." placeholder:"KIND"`
	Version kong.VersionFlag `help:"Show version." short:"V"`
}

func (g *Globals) options() app.Options {
	return app.Options{ConfigPath: g.Config, APIBase: g.API, Store: g.Store}
}

// CLI is the top-level command structure for gridwatch.
type CLI struct {
	Globals

	Dashboard DashboardCmd `cmd:"" default:"withargs" help:"Open the grid dashboard (default)."`
	Mock      MockCmd      `cmd:"" help:"Serve the mock grid API."`
	Prewarm   PrewarmCmd   `cmd:"" help:"Fetch every dashboard query and persist the cache."`
	Cache     CacheCmd     `cmd:"" help:"Inspect or clear the persisted cache."`
}

// DashboardCmd runs the TUI.
type DashboardCmd struct {
	Page int `help:"Events page to open on. Defaults to the last viewed page."`
}

func (d *DashboardCmd) Run(ctx context.Context, g *Globals) error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return errors.New("dashboard requires a terminal (TTY)")
	}
	opts := g.options()
	opts.Page = d.Page
	return app.Run(ctx, opts)
}

// MockCmd serves the mock API.
type MockCmd struct {
	Listen string `help:"Address to listen on. Defaults to listen from the config." placeholder:"ADDR"`
}

func (m *MockCmd) Run(ctx context.Context, g *Globals, out io.Writer) error {
	return app.Mock(ctx, g.options(), m.Listen, func(addr net.Addr) {
		fmt.Fprintf(out, "mock grid API listening on http://%s\n", addr)
	})
}

// PrewarmCmd fills the persisted cache.
type PrewarmCmd struct{}

func (PrewarmCmd) Run(ctx context.Context, g *Globals, out io.Writer) error {
	return app.Prewarm(ctx, g.options(), out)
}

// CacheCmd groups the persisted cache commands.
type CacheCmd struct {
	Show  CacheShowCmd  `cmd:"" help:"Summarize the persisted snapshot."`
	Clear CacheClearCmd `cmd:"" help:"Remove the persisted snapshot."`
}

type CacheShowCmd struct{}

func (CacheShowCmd) Run(ctx context.Context, g *Globals, out io.Writer) error {
	return app.CacheShow(ctx, g.options(), out)
}

type CacheClearCmd struct{}

func (CacheClearCmd) Run(ctx context.Context, g *Globals, out io.Writer) error {
	return app.CacheClear(ctx, g.options(), out)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var cli CLI
	parser, err := newParser(&cli, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "gridwatch: %v\n", err)
		return 1
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "gridwatch: %v\n", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kctx.BindTo(ctx, (*context.Context)(nil))
	kctx.BindTo(stdout, (*io.Writer)(nil))
	if err := kctx.Run(&cli.Globals); err != nil {
		fmt.Fprintf(stderr, "gridwatch: %v\n", err)
		return 1
	}
	return 0
}

func newParser(cli *CLI, stdout, stderr io.Writer) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("gridwatch"),
		kong.Description("Terminal dashboard for grid power usage and events, backed by a persisted query cache."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
		kong.Writers(stdout, stderr),
	)
}
