package ui

import (
	"strconv"
	"strings"
)

// ellipsis marks a gap in the page list returned by pageNumbers.
const ellipsis = 0

const maxPageButtons = 5

// pageNumbers lists the page buttons to show. Up to five pages are listed in
// full; beyond that the first and last page frame a window of current±1,
// with ellipsis entries where pages are skipped.
func pageNumbers(current, total int) []int {
	if total <= maxPageButtons {
		pages := make([]int, 0, total)
		for i := 1; i <= total; i++ {
			pages = append(pages, i)
		}
		return pages
	}

	pages := []int{1}
	start := max(2, current-1)
	end := min(total-1, current+1)
	if start > 2 {
		pages = append(pages, ellipsis)
	}
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	if end < total-1 {
		pages = append(pages, ellipsis)
	}
	return append(pages, total)
}

// clampPage keeps page within [1, total].
func clampPage(page, total int) int {
	if total < 1 {
		total = 1
	}
	return min(max(page, 1), total)
}

func (m Model) renderPagination(total int) string {
	styles := m.theme.Styles()
	var parts []string

	prev := "‹ Prev"
	if m.page <= 1 {
		parts = append(parts, styles.FaintText.Render(prev))
	} else {
		parts = append(parts, styles.MutedText.Render(prev))
	}
	for _, p := range pageNumbers(m.page, total) {
		switch {
		case p == ellipsis:
			parts = append(parts, styles.FaintText.Render("…"))
		case p == m.page:
			parts = append(parts, styles.AccentText.Bold(true).Underline(true).Render(strconv.Itoa(p)))
		default:
			parts = append(parts, styles.Text.Render(strconv.Itoa(p)))
		}
	}
	next := "Next ›"
	if m.page >= total {
		parts = append(parts, styles.FaintText.Render(next))
	} else {
		parts = append(parts, styles.MutedText.Render(next))
	}
	return strings.Join(parts, "  ")
}
