package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/gridwatch/internal/gridapi"
	"github.com/five82/gridwatch/internal/status"
)

// Theme defines colors and styles for the UI.
type Theme struct {
	Name string

	// Base colors
	Background string
	Surface    string
	SurfaceAlt string

	// Table colors
	SelectionBg   string
	SelectionText string

	// Border colors
	Border      string
	BorderFocus string

	// Text colors
	Text    string
	Muted   string
	Faint   string
	Accent  string
	Success string
	Warning string
	Danger  string
	Info    string

	// Chart series
	Predicted string
	Actual    string

	// Severity badge colors, keyed by gridapi.Severity
	SeverityColors map[gridapi.Severity]string
}

// Styles returns Lipgloss styles for this theme.
func (t Theme) Styles() Styles {
	return Styles{
		Text:        lipgloss.NewStyle().Foreground(lipgloss.Color(t.Text)),
		MutedText:   lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)),
		FaintText:   lipgloss.NewStyle().Foreground(lipgloss.Color(t.Faint)),
		AccentText:  lipgloss.NewStyle().Foreground(lipgloss.Color(t.Accent)),
		SuccessText: lipgloss.NewStyle().Foreground(lipgloss.Color(t.Success)).Bold(true),
		WarningText: lipgloss.NewStyle().Foreground(lipgloss.Color(t.Warning)),
		DangerText:  lipgloss.NewStyle().Foreground(lipgloss.Color(t.Danger)).Bold(true),

		Header: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Surface)).
			Foreground(lipgloss.Color(t.Text)).
			Padding(0, 1),

		Logo: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Warning)).
			Bold(true),

		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Border)).
			Padding(0, 1),

		Title: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Accent)).
			Bold(true),

		Predicted: lipgloss.NewStyle().Foreground(lipgloss.Color(t.Predicted)),
		Actual:    lipgloss.NewStyle().Foreground(lipgloss.Color(t.Actual)),

		Button: lipgloss.NewStyle().
			Background(lipgloss.Color(t.SurfaceAlt)).
			Foreground(lipgloss.Color(t.Text)).
			Padding(0, 1),
		ButtonDisabled: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Surface)).
			Foreground(lipgloss.Color(t.Faint)).
			Padding(0, 1),

		severity: t.SeverityColors,
		theme:    t,
	}
}

// Styles contains pre-built Lipgloss styles for the theme.
type Styles struct {
	Text        lipgloss.Style
	MutedText   lipgloss.Style
	FaintText   lipgloss.Style
	AccentText  lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style

	Header lipgloss.Style
	Logo   lipgloss.Style
	Panel  lipgloss.Style
	Title  lipgloss.Style

	Predicted lipgloss.Style
	Actual    lipgloss.Style

	Button         lipgloss.Style
	ButtonDisabled lipgloss.Style

	severity map[gridapi.Severity]string
	theme    Theme
}

// SeverityStyle returns the badge style for a severity.
func (s Styles) SeverityStyle(sev gridapi.Severity) lipgloss.Style {
	color := s.severity[sev]
	if color == "" {
		color = s.theme.Muted
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(sev == gridapi.SeverityCritical)
}

// StatusColor is the indicator dot color for an aggregate status.
func (t Theme) StatusColor(st status.Status) string {
	switch st {
	case status.Loading:
		return t.Danger
	case status.Updating:
		return t.Warning
	case status.Fresh:
		return t.Success
	default:
		return t.Faint
	}
}

// Theme definitions

var themes = map[string]Theme{
	"Nightfox": nightfoxTheme(),
	"Kanagawa": kanagawaTheme(),
	"Slate":    slateTheme(),
}

var themeOrder = []string{"Nightfox", "Kanagawa", "Slate"}

// GetTheme returns a theme by name.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return nightfoxTheme()
}

// NextTheme returns the next theme name in the cycle.
func NextTheme(current string) string {
	for i, name := range themeOrder {
		if name == current {
			return themeOrder[(i+1)%len(themeOrder)]
		}
	}
	return themeOrder[0]
}

// ThemeNames returns available theme names.
func ThemeNames() []string {
	return themeOrder
}

func nightfoxTheme() Theme {
	// Nightfox palette: https://github.com/EdenEast/nightfox.nvim
	return Theme{
		Name: "Nightfox",

		Background: "#131a24", // bg0
		Surface:    "#192330", // bg1
		SurfaceAlt: "#212e3f", // bg2

		SelectionBg:   "#2b3b51", // sel0
		SelectionText: "#cdcecf", // fg1

		Border:      "#39506d", // bg4
		BorderFocus: "#719cd6", // blue

		Text:    "#cdcecf", // fg1
		Muted:   "#738091", // comment
		Faint:   "#71839b", // fg3
		Accent:  "#719cd6", // blue
		Success: "#81b29a", // green
		Warning: "#f4a261", // orange
		Danger:  "#c94f6d", // red
		Info:    "#63cdcf", // cyan

		Predicted: "#9d79d6", // magenta
		Actual:    "#63cdcf", // cyan

		SeverityColors: map[gridapi.Severity]string{
			gridapi.SeverityLow:      "#719cd6", // blue
			gridapi.SeverityMedium:   "#dbc074", // yellow
			gridapi.SeverityHigh:     "#f4a261", // orange
			gridapi.SeverityCritical: "#c94f6d", // red
		},
	}
}

func kanagawaTheme() Theme {
	// Kanagawa palette: https://github.com/rebelot/kanagawa.nvim
	return Theme{
		Name: "Kanagawa",

		Background: "#16161D", // sumiInk0
		Surface:    "#1F1F28", // sumiInk3
		SurfaceAlt: "#2A2A37", // sumiInk4

		SelectionBg:   "#2D4F67", // waveBlue1
		SelectionText: "#DCD7BA", // fujiWhite

		Border:      "#54546D", // sumiInk6
		BorderFocus: "#7E9CD8", // crystalBlue

		Text:    "#DCD7BA", // fujiWhite
		Muted:   "#C8C093", // oldWhite
		Faint:   "#727169", // fujiGray
		Accent:  "#7E9CD8", // crystalBlue
		Success: "#98BB6C", // springGreen
		Warning: "#FFA066", // surimiOrange
		Danger:  "#E46876", // waveRed
		Info:    "#7FB4CA", // springBlue

		Predicted: "#957FB8", // oniViolet
		Actual:    "#7FB4CA", // springBlue

		SeverityColors: map[gridapi.Severity]string{
			gridapi.SeverityLow:      "#7E9CD8", // crystalBlue
			gridapi.SeverityMedium:   "#E6C384", // carpYellow
			gridapi.SeverityHigh:     "#FFA066", // surimiOrange
			gridapi.SeverityCritical: "#E46876", // waveRed
		},
	}
}

func slateTheme() Theme {
	// Tailwind CSS Slate/Sky palette: https://tailwindcss.com/docs/colors
	return Theme{
		Name: "Slate",

		Background: "#020617", // slate-950
		Surface:    "#0f172a", // slate-900
		SurfaceAlt: "#1e293b", // slate-800

		SelectionBg:   "#0284c7", // sky-600
		SelectionText: "#f8fafc", // slate-50

		Border:      "#334155", // slate-700
		BorderFocus: "#38bdf8", // sky-400

		Text:    "#f1f5f9", // slate-100
		Muted:   "#94a3b8", // slate-400
		Faint:   "#64748b", // slate-500
		Accent:  "#38bdf8", // sky-400
		Success: "#22c55e", // green-500
		Warning: "#f97316", // orange-500
		Danger:  "#ef4444", // red-500
		Info:    "#06b6d4", // cyan-500

		Predicted: "#a78bfa", // violet-400
		Actual:    "#22d3ee", // cyan-400

		SeverityColors: map[gridapi.Severity]string{
			gridapi.SeverityLow:      "#60a5fa", // blue-400
			gridapi.SeverityMedium:   "#facc15", // yellow-400
			gridapi.SeverityHigh:     "#fb923c", // orange-400
			gridapi.SeverityCritical: "#f87171", // red-400
		},
	}
}
