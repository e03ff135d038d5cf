package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/gridwatch/internal/query"
	"github.com/five82/gridwatch/internal/status"
)

func (m Model) renderMain() string {
	sections := []string{m.renderHeader()}
	if m.showLegend {
		sections = append(sections, m.renderLegend())
	}
	if m.notice != "" {
		sections = append(sections, m.theme.Styles().DangerText.Render(m.notice))
	}
	sections = append(sections, m.renderPowerPanel(), m.renderEventsPanel())
	if m.showActivity {
		sections = append(sections, m.renderActivity())
	}
	sections = append(sections, m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderHeader draws the logo, the cache status indicator and the action
// buttons. Buttons are greyed out while any query is fetching.
func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	st := m.snap.Status()

	dot := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.StatusColor(st))).Render("●")
	if st == status.Loading || st == status.Updating {
		dot = m.spinner.View()
	}
	indicator := dot + " " + styles.Text.Bold(true).Render(st.Label())
	if desc := strings.TrimPrefix(st.Description(), st.Label()); desc != "" {
		indicator += styles.MutedText.Render(desc)
	}

	button := styles.Button
	if m.snap.Busy() {
		button = styles.ButtonDisabled
	}
	parts := []string{
		styles.Logo.Render("gridwatch"),
		indicator,
		button.Render("r Refresh"),
		button.Render("C Clear Cache"),
		styles.FaintText.Render("L legend  ? help"),
	}
	return styles.Header.Width(m.width).Render(strings.Join(parts, "   "))
}

func (m Model) renderLegend() string {
	styles := m.theme.Styles()
	var lines []string
	for _, st := range status.All() {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.StatusColor(st))).Render("●")
		lines = append(lines, dot+" "+styles.Text.Bold(true).Render(st.Label()+":")+" "+styles.MutedText.Render(st.Hint()))
	}
	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(lipgloss.Color(m.theme.Border)).
		PaddingLeft(1).
		MarginLeft(2).
		Render(strings.Join(lines, "\n"))
}

func (m Model) panel(title, subtitle, body string) string {
	styles := m.theme.Styles()
	head := styles.Title.Render(title)
	if subtitle != "" {
		head += "  " + styles.FaintText.Render(subtitle)
	}
	return styles.Panel.Width(max(m.width-2, 20)).Render(head + "\n" + body)
}

func (m Model) renderPowerPanel() string {
	styles := m.theme.Styles()
	e := m.snap.Power
	var body string
	if points, ok := m.snap.PowerData(); ok {
		body = m.renderChart(points, max(m.width-6, 30), m.chartHeight())
	} else {
		body = m.placeholder(e, "power usage")
	}
	sub := "Predicted vs actual daily load (GW), July to September 2024"
	if age := entryAge(e); age != "" {
		sub += " · " + age
	}
	if e.Status == query.StatusError && e.HasData() {
		sub += " · " + styles.DangerText.Render("refresh failed")
	}
	return m.panel("Power Usage", sub, body)
}

func (m Model) renderEventsPanel() string {
	styles := m.theme.Styles()
	e := m.snap.Events
	total := m.snap.TotalPages()

	var body string
	if page, ok := m.snap.EventsData(); ok {
		if len(page.Data) == 0 {
			body = styles.MutedText.Render("No events on this page.")
		} else {
			body = m.events.View()
		}
		if summary := m.severitySummary(page.Data); summary != "" {
			body += "\n" + summary
		}
	} else {
		body = m.placeholder(e, "events")
	}
	body += "\n\n" + m.renderPagination(total)

	sub := fmt.Sprintf("Page %d of %d", m.page, total)
	if age := entryAge(e); age != "" {
		sub += " · " + age
	}
	if e.Status == query.StatusError && e.HasData() {
		sub += " · " + styles.DangerText.Render("refresh failed")
	}
	return m.panel("Grid Events", sub, body)
}

// placeholder renders the body of a panel whose data is not available.
func (m Model) placeholder(e query.Entry, what string) string {
	styles := m.theme.Styles()
	switch {
	case e.InFlight():
		return m.spinner.View() + " " + styles.MutedText.Render("Loading "+what+"...")
	case e.Status == query.StatusError:
		msg := "Failed to load " + what
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return styles.DangerText.Render(msg) + "\n" + styles.FaintText.Render("Press r to retry.")
	default:
		return styles.FaintText.Render("No data yet.")
	}
}

func (m Model) renderActivity() string {
	styles := m.theme.Styles()
	body := styles.FaintText.Render("No activity logged.")
	if len(m.activity) > 0 {
		lines := make([]string, len(m.activity))
		for i, l := range m.activity {
			lines[i] = truncate(l, max(m.width-6, 20))
		}
		body = styles.MutedText.Render(strings.Join(lines, "\n"))
	}
	return m.panel("Activity", m.logPath, body)
}

func (m Model) renderFooter() string {
	cached := 0
	if m.dash != nil {
		cached = m.dash.Manager().Len()
	}
	info := m.theme.Styles().FaintText.Render(fmt.Sprintf("%d cached  ·  %s", cached, m.theme.Name))
	return m.help.ShortHelpView(m.keys.ShortHelp()) + "   " + info
}

// chartHeight gives the chart whatever rows the other sections leave over.
func (m Model) chartHeight() int {
	used := 1 + 2 + 2 + 4 + (eventsTableRows + 2) + 4 + 1
	if m.showLegend {
		used += 4
	}
	if m.showActivity {
		used += activityLines + 3
	}
	return min(max(m.height-used, minChartHeight), 16)
}

func entryAge(e query.Entry) string {
	if e.FetchedAt.IsZero() {
		return ""
	}
	age := time.Since(e.FetchedAt).Truncate(time.Second)
	if age < time.Second {
		return "fetched just now"
	}
	return "fetched " + age.String() + " ago"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
