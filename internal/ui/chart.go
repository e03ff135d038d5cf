package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/five82/gridwatch/internal/gridapi"
)

const (
	markPredicted = '·'
	markActual    = '•'
	axisWidth     = 6
)

// chartGrid plots both series onto a width×height grid of runes. Each column
// samples the point at its proportional index; both series share one scale.
func chartGrid(points []gridapi.PowerDataPoint, width, height int) (grid [][]rune, lo, hi float64) {
	if len(points) == 0 || width <= 0 || height <= 0 {
		return nil, 0, 0
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, p := range points {
		lo = math.Min(lo, math.Min(p.Predicted, p.Actual))
		hi = math.Max(hi, math.Max(p.Predicted, p.Actual))
	}
	if hi == lo {
		hi = lo + 1
	}

	grid = make([][]rune, height)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", width))
	}
	row := func(v float64) int {
		frac := (v - lo) / (hi - lo)
		return height - 1 - int(math.Round(frac*float64(height-1)))
	}
	for c := 0; c < width; c++ {
		p := points[c*len(points)/width]
		grid[row(p.Predicted)][c] = markPredicted
		grid[row(p.Actual)][c] = markActual
	}
	return grid, lo, hi
}

func (m Model) renderChart(points []gridapi.PowerDataPoint, width, height int) string {
	styles := m.theme.Styles()
	plotWidth := width - axisWidth - 1
	grid, lo, hi := chartGrid(points, plotWidth, height)
	if grid == nil {
		return ""
	}

	var b strings.Builder
	for r, line := range grid {
		label := ""
		switch r {
		case 0:
			label = fmt.Sprintf("%.1f", hi)
		case len(grid) - 1:
			label = fmt.Sprintf("%.1f", lo)
		}
		b.WriteString(styles.FaintText.Render(fmt.Sprintf("%*s", axisWidth, label)))
		b.WriteString(styles.FaintText.Render("│"))
		for _, ch := range line {
			switch ch {
			case markActual:
				b.WriteString(styles.Actual.Render(string(ch)))
			case markPredicted:
				b.WriteString(styles.Predicted.Render(string(ch)))
			default:
				b.WriteRune(ch)
			}
		}
		b.WriteByte('\n')
	}

	first, last := points[0].Time, points[len(points)-1].Time
	gap := max(plotWidth-len(first)-len(last), 1)
	b.WriteString(strings.Repeat(" ", axisWidth+1))
	b.WriteString(styles.FaintText.Render(first + strings.Repeat(" ", gap) + last))
	b.WriteByte('\n')

	b.WriteString(styles.Predicted.Render(string(markPredicted) + " predicted"))
	b.WriteString("   ")
	b.WriteString(styles.Actual.Render(string(markActual) + " actual"))
	b.WriteString("   ")
	b.WriteString(styles.MutedText.Render(powerSummary(points)))
	return b.String()
}

// powerSummary reports the peak load and the largest forecast miss.
func powerSummary(points []gridapi.PowerDataPoint) string {
	if len(points) == 0 {
		return ""
	}
	peak, miss := points[0], points[0]
	for _, p := range points[1:] {
		if p.Actual > peak.Actual {
			peak = p
		}
		if math.Abs(p.Actual-p.Predicted) > math.Abs(miss.Actual-miss.Predicted) {
			miss = p
		}
	}
	return fmt.Sprintf("peak %.1f GW on %s · largest miss %+.1f GW on %s",
		peak.Actual, peak.Time, miss.Actual-miss.Predicted, miss.Time)
}
