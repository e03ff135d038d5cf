package ui

import (
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/gridwatch/internal/dashboard"
	"github.com/five82/gridwatch/internal/gridapi"
)

func newEventsTable(theme Theme) table.Model {
	t := table.New(
		table.WithColumns(eventColumns(100)),
		table.WithFocused(true),
		table.WithHeight(eventsTableRows+1),
	)
	t.SetStyles(tableStyles(theme))
	return t
}

func tableStyles(theme Theme) table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(theme.Border)).
		BorderBottom(true).
		Foreground(lipgloss.Color(theme.Muted)).
		Bold(true)
	s.Cell = s.Cell.Foreground(lipgloss.Color(theme.Text))
	s.Selected = s.Selected.
		Foreground(lipgloss.Color(theme.SelectionText)).
		Background(lipgloss.Color(theme.SelectionBg)).
		Bold(false)
	return s
}

// eventColumns splits width between the fixed columns and the two free-text
// columns.
func eventColumns(width int) []table.Column {
	const fixed = 14 + 20 + 9 + 16  // time, type, severity, location
	rest := max(width-fixed-12, 20) // cell padding
	desc := rest * 3 / 5
	return []table.Column{
		{Title: "Time", Width: 14},
		{Title: "Type", Width: 20},
		{Title: "Severity", Width: 9},
		{Title: "Location", Width: 16},
		{Title: "Description", Width: desc},
		{Title: "Impact", Width: rest - desc},
	}
}

func eventRows(s dashboard.Snapshot) []table.Row {
	page, ok := s.EventsData()
	if !ok {
		return nil
	}
	rows := make([]table.Row, 0, len(page.Data))
	for _, e := range page.Data {
		location := e.Location
		if location == "" {
			location = "-"
		}
		rows = append(rows, table.Row{
			formatEventTime(e.Timestamp),
			e.Type.Label(),
			strings.ToUpper(string(e.Severity)),
			location,
			e.Description,
			e.Impact,
		})
	}
	return rows
}

func formatEventTime(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.UTC().Format("Jan 02 15:04")
}

// severitySummary counts the events on the page per severity, highest
// first, e.g. "1 critical · 2 high".
func (m Model) severitySummary(events []gridapi.GridEvent) string {
	styles := m.theme.Styles()
	counts := make(map[gridapi.Severity]int)
	for _, e := range events {
		counts[e.Severity]++
	}
	var parts []string
	for _, sev := range []gridapi.Severity{gridapi.SeverityCritical, gridapi.SeverityHigh, gridapi.SeverityMedium, gridapi.SeverityLow} {
		if n := counts[sev]; n > 0 {
			parts = append(parts, styles.SeverityStyle(sev).Render(strconv.Itoa(n)+" "+string(sev)))
		}
	}
	return strings.Join(parts, styles.FaintText.Render(" · "))
}
