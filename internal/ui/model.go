package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/five82/gridwatch/internal/dashboard"
	"github.com/five82/gridwatch/internal/logtail"
	"github.com/five82/gridwatch/internal/prefs"
)

const (
	defaultTick     = time.Second
	activityLines   = 6
	clearTimeout    = 10 * time.Second
	minChartHeight  = 6
	eventsTableRows = 5
)

// Options configures the UI.
type Options struct {
	Context   context.Context
	Dashboard *dashboard.Dashboard
	Logger    *zap.Logger
	Prefs     prefs.Prefs
	PrefsPath string // empty disables saving preferences
	LogPath   string // empty hides the activity pane
	Tick      time.Duration
}

// Model is the root Bubble Tea model.
type Model struct {
	ctx       context.Context
	dash      *dashboard.Dashboard
	logger    *zap.Logger
	prefsPath string
	logPath   string
	tick      time.Duration

	changes     <-chan struct{}
	unsubscribe func()

	keys    keyMap
	help    help.Model
	spinner spinner.Model
	events  table.Model

	theme        Theme
	page         int
	showHelp     bool
	showLegend   bool
	showActivity bool
	width        int
	height       int
	ready        bool

	snap     dashboard.Snapshot
	activity []string
	notice   string
}

// New creates the model and subscribes to cache changes. Call Close when
// the program exits.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	page := opts.Prefs.Page
	if page < 1 {
		page = 1
	}

	theme := GetTheme(opts.Prefs.Theme)
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Warning))

	m := Model{
		ctx:        ctx,
		dash:       opts.Dashboard,
		logger:     logger.Named("ui"),
		prefsPath:  opts.PrefsPath,
		logPath:    opts.LogPath,
		tick:       tick,
		keys:       DefaultKeyMap(),
		help:       help.New(),
		spinner:    sp,
		events:     newEventsTable(theme),
		theme:      theme,
		page:       page,
		showLegend: opts.Prefs.ShowLegend,
	}
	if m.dash != nil {
		m.changes, m.unsubscribe = m.dash.Manager().Subscribe()
		m.snap = m.dash.Peek(page)
	}
	return m
}

// Close releases the cache subscription.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		tickCmd(m.tick),
		m.loadCmd(m.page),
		waitForChange(m.changes),
	}
	if m.logPath != "" {
		cmds = append(cmds, activityCmd(m.logPath))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case changeMsg:
		m.setSnapshot(m.peek())
		next, cmd := m.clampToTotal()
		return next, tea.Batch(cmd, waitForChange(m.changes))

	case snapshotMsg:
		if msg.Page == m.page {
			m.setSnapshot(dashboard.Snapshot(msg))
		}
		return m.clampToTotal()

	case clearedMsg:
		m.notice = ""
		if msg.err != nil {
			m.notice = "Clear cache failed: " + msg.err.Error()
		}
		m.setSnapshot(m.peek())
		return m, nil

	case tickMsg:
		m.setSnapshot(m.peek())
		cmds := []tea.Cmd{tickCmd(m.tick)}
		if m.showActivity && m.logPath != "" {
			cmds = append(cmds, activityCmd(m.logPath))
		}
		return m, tea.Batch(cmds...)

	case activityMsg:
		m.activity = msg
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.events.SetStyles(tableStyles(m.theme))
		m.spinner.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Warning))
		m.savePrefs()
		return m, nil

	case key.Matches(msg, m.keys.Legend):
		m.showLegend = !m.showLegend
		m.savePrefs()
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.Activity):
		m.showActivity = !m.showActivity
		m.layout()
		if m.showActivity && m.logPath != "" {
			return m, activityCmd(m.logPath)
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		if m.snap.Busy() || m.dash == nil {
			return m, nil
		}
		return m, m.refreshCmd(m.page)

	case key.Matches(msg, m.keys.Clear):
		if m.snap.Busy() || m.dash == nil {
			return m, nil
		}
		return m, m.clearCmd(m.page)

	case key.Matches(msg, m.keys.NextPage):
		return m.setPage(m.page + 1)
	case key.Matches(msg, m.keys.PrevPage):
		return m.setPage(m.page - 1)
	case key.Matches(msg, m.keys.FirstPage):
		return m.setPage(1)
	case key.Matches(msg, m.keys.LastPage):
		return m.setPage(m.snap.TotalPages())
	case key.Matches(msg, m.keys.GotoPage):
		return m.setPage(int(msg.Runes[0] - '0'))
	}

	var cmd tea.Cmd
	m.events, cmd = m.events.Update(msg)
	return m, cmd
}

// setPage moves to page, clamped to the known page count.
func (m Model) setPage(page int) (tea.Model, tea.Cmd) {
	page = clampPage(page, m.snap.TotalPages())
	if page == m.page {
		return m, nil
	}
	m.page = page
	m.notice = ""
	m.savePrefs()
	m.setSnapshot(m.peek())
	m.events.GotoTop()
	return m, m.loadCmd(page)
}

// clampToTotal moves back into range once metadata shows the current page
// no longer exists, e.g. a saved page from a larger dataset.
func (m Model) clampToTotal() (tea.Model, tea.Cmd) {
	if !m.snap.Metadata.HasData() || m.page <= m.snap.TotalPages() {
		return m, nil
	}
	return m.setPage(m.snap.TotalPages())
}

func (m *Model) setSnapshot(s dashboard.Snapshot) {
	m.snap = s
	m.events.SetRows(eventRows(s))
}

func (m Model) peek() dashboard.Snapshot {
	if m.dash == nil {
		return dashboard.Snapshot{Page: m.page}
	}
	return m.dash.Peek(m.page)
}

func (m Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	p := prefs.Prefs{Theme: m.theme.Name, Page: m.page, ShowLegend: m.showLegend}
	if err := prefs.Save(m.prefsPath, p); err != nil {
		m.logger.Warn("save prefs failed", zap.Error(err))
	}
}

// layout sizes the events table to the terminal.
func (m *Model) layout() {
	if m.width <= 0 {
		return
	}
	m.events.SetColumns(eventColumns(m.width - 4))
	m.events.SetWidth(m.width - 4)
	m.events.SetHeight(eventsTableRows + 1)
	m.help.Width = m.width
}

// Messages

type tickMsg time.Time

type changeMsg struct{}

type snapshotMsg dashboard.Snapshot

type clearedMsg struct{ err error }

type activityMsg []string

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForChange blocks until the cache signals a change. Signals coalesce, so
// one message may stand for several updates.
func waitForChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		<-ch
		return changeMsg{}
	}
}

func (m Model) loadCmd(page int) tea.Cmd {
	if m.dash == nil {
		return nil
	}
	dash := m.dash
	return func() tea.Msg {
		return snapshotMsg(dash.Load(page))
	}
}

func (m Model) refreshCmd(page int) tea.Cmd {
	dash := m.dash
	return func() tea.Msg {
		dash.Refresh(page)
		return snapshotMsg(dash.Peek(page))
	}
}

func (m Model) clearCmd(page int) tea.Cmd {
	dash, parent, logger := m.dash, m.ctx, m.logger
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, clearTimeout)
		defer cancel()
		err := dash.Clear(ctx, page)
		if err != nil {
			logger.Warn("clear cache failed", zap.Error(err))
		}
		return clearedMsg{err: err}
	}
}

func activityCmd(path string) tea.Cmd {
	return func() tea.Msg {
		entries, err := logtail.Tail(path, activityLines)
		if err != nil {
			return activityMsg{"activity unavailable: " + err.Error()}
		}
		lines := make([]string, 0, len(entries))
		for _, e := range entries {
			lines = append(lines, logtail.Format(e))
		}
		return activityMsg(lines)
	}
}

// Run starts the Bubble Tea program and blocks until the user quits or ctx
// is cancelled.
func Run(opts Options) error {
	m := New(opts)
	defer m.Close()

	ctx := m.ctx
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
