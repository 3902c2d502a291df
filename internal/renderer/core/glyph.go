package core

import (
	"strings"

	"github.com/rivo/uniseg"
)

// Glyph is one user-perceived character: a grapheme cluster and the number
// of terminal columns it occupies.
type Glyph struct {
	Runes []rune
	Width int
}

// Glyphs splits s into grapheme clusters. Clusters of zero width (control
// characters, stray combining marks) are dropped.
func Glyphs(s string) []Glyph {
	glyphs := make([]Glyph, 0, len(s))
	state := -1
	for len(s) > 0 {
		var cluster string
		var width int
		cluster, s, width, state = uniseg.FirstGraphemeClusterInString(s, state)
		if width <= 0 {
			continue
		}
		if width > 2 {
			width = 2
		}
		glyphs = append(glyphs, Glyph{Runes: []rune(cluster), Width: width})
	}
	return glyphs
}

// FitString lays s out into at most maxWidth columns without padding.
// A glyph that would straddle the limit is dropped rather than split.
// It returns the cells and the number of columns they occupy.
func FitString(s string, maxWidth int, style Style) ([]Cell, int) {
	if maxWidth <= 0 {
		return nil, 0
	}
	cells := make([]Cell, 0, maxWidth)
	for _, g := range Glyphs(s) {
		if len(cells)+g.Width > maxWidth {
			break
		}
		lead := Cell{Rune: g.Runes[0], Width: g.Width, Style: style}
		if len(g.Runes) > 1 {
			lead.Combining = g.Runes[1:]
		}
		cells = append(cells, lead)
		if g.Width == 2 {
			cells = append(cells, ContinuationCell(style))
		}
	}
	return cells, len(cells)
}

// CellsFromString is FitString padded with blanks to exactly maxWidth cells.
func CellsFromString(s string, maxWidth int, style Style) []Cell {
	cells, used := FitString(s, maxWidth, style)
	for ; used < maxWidth; used++ {
		cells = append(cells, NewStyledCell(' ', style))
	}
	return cells
}

// StringWidth returns the number of columns s occupies.
func StringWidth(s string) int {
	w := 0
	for _, g := range Glyphs(s) {
		w += g.Width
	}
	return w
}

// StringFromCells converts cells back to a string, skipping continuations.
func StringFromCells(cells []Cell) string {
	runes := make([]rune, 0, len(cells))
	for _, c := range cells {
		if c.IsContinuation() {
			continue
		}
		runes = append(runes, c.Rune)
		runes = append(runes, c.Combining...)
	}
	return string(runes)
}

// ExpandTabs replaces each tab in s with spaces up to the next multiple of
// tabWidth columns.
func ExpandTabs(s string, tabWidth int) string {
	if tabWidth <= 0 || !strings.Contains(s, "\t") {
		return s
	}
	var b strings.Builder
	col := 0
	for _, seg := range strings.SplitAfter(s, "\t") {
		text, isTab := strings.CutSuffix(seg, "\t")
		b.WriteString(text)
		col += StringWidth(text)
		if isTab {
			pad := tabWidth - col%tabWidth
			b.WriteString(strings.Repeat(" ", pad))
			col += pad
		}
	}
	return b.String()
}
