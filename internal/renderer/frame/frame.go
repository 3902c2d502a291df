// Package frame implements the bordered, scrollable panel primitive.
//
// A Frame owns a rectangle of terminal cells. Each call to Render redraws
// the whole rectangle: a titled top border, one interior row per visible
// content line, a scrollbar track in the second-to-last column, and a bottom
// border. Rectangles too small for a full box fall back to single-stroke
// borders that never write outside the rectangle.
package frame

import "github.com/dshills/vmdb/internal/renderer/core"

// Box-drawing characters.
const (
	runeTopLeft     = '┌'
	runeTopRight    = '┐'
	runeBottomLeft  = '└'
	runeBottomRight = '┘'
	runeHorizontal  = '─'
	runeVertical    = '│'
	runeThumb       = '│'
)

// Theme holds the styles a frame draws with.
type Theme struct {
	Border  core.Style
	Title   core.Style
	Thumb   core.Style
	Content core.Style
}

// DefaultTheme uses the terminal's default colors everywhere.
func DefaultTheme() Theme {
	return Theme{
		Border:  core.DefaultStyle(),
		Title:   core.DefaultStyle().WithAttributes(core.AttrBold),
		Thumb:   core.DefaultStyle(),
		Content: core.DefaultStyle(),
	}
}

// Frame is a titled, bordered, scrollable panel.
type Frame struct {
	title      string
	bounds     core.Rect
	scroll     int
	contentLen int
	theme      Theme
	unpadded   bool
}

// New creates a frame. Negative dimensions are clamped to zero.
func New(title string, bounds core.Rect) *Frame {
	f := &Frame{title: title, theme: DefaultTheme()}
	f.SetBounds(bounds)
	return f
}

// Title returns the frame title.
func (f *Frame) Title() string { return f.title }

// SetTitle replaces the frame title.
func (f *Frame) SetTitle(title string) { f.title = title }

// SetTheme replaces the frame's styles.
func (f *Frame) SetTheme(t Theme) { f.theme = t }

// SetPadding controls the blank column between the left border and the
// content. Frames are padded by default.
func (f *Frame) SetPadding(padded bool) { f.unpadded = !padded }

// pad is the width of the left border plus padding.
func (f *Frame) pad() int {
	if f.unpadded {
		return 1
	}
	return 2
}

// Bounds returns the frame rectangle.
func (f *Frame) Bounds() core.Rect { return f.bounds }

// SetBounds moves and resizes the frame.
func (f *Frame) SetBounds(r core.Rect) {
	r.Width = max(0, r.Width)
	r.Height = max(0, r.Height)
	f.bounds = r
}

// Contains reports whether the terminal cell (x, y) lies in the frame.
func (f *Frame) Contains(x, y int) bool {
	return f.bounds.Contains(x, y)
}

// InnerWidth is the number of content columns per interior row.
func (f *Frame) InnerWidth() int {
	return max(0, f.bounds.Width-f.pad()-2)
}

// InnerHeight is the number of interior rows.
func (f *Frame) InnerHeight() int {
	return max(0, f.bounds.Height-2)
}

// ContentOrigin returns the terminal cell where the first content line starts.
func (f *Frame) ContentOrigin() (x, y int) {
	return f.bounds.X + f.pad(), f.bounds.Y + 1
}

// ScrollOffset returns the index of the first visible content line.
func (f *Frame) ScrollOffset() int { return f.scroll }

// ContentLength returns the number of lines passed to the last Render.
func (f *Frame) ContentLength() int { return f.contentLen }

// MaxScroll returns the largest valid scroll offset as of the last Render.
func (f *Frame) MaxScroll() int {
	return max(0, f.contentLen-f.InnerHeight())
}

// SetScrollOffset sets the scroll offset, clamped to the valid range as of
// the last Render. Render clamps again against the new content.
func (f *Frame) SetScrollOffset(n int) {
	f.scroll = min(max(0, n), f.MaxScroll())
}

// ScrollTo sets the scroll offset for content of n lines, clamped.
func (f *Frame) ScrollTo(offset, n int) {
	f.contentLen = max(0, n)
	f.SetScrollOffset(offset)
}

// ScrollDown moves the view one line further into the content.
func (f *Frame) ScrollDown() { f.SetScrollOffset(f.scroll + 1) }

// ScrollUp moves the view one line back.
func (f *Frame) ScrollUp() { f.SetScrollOffset(f.scroll - 1) }

// thumb returns the interior rows [start, start+extent) covered by the
// scrollbar thumb.
func (f *Frame) thumb() (start, extent int) {
	inner := f.InnerHeight()
	if f.contentLen == 0 || inner == 0 {
		return 0, 0
	}
	extent = max(1, inner/f.contentLen)
	start = f.scroll * inner / f.contentLen
	return start, extent
}

// Render draws the frame and the visible part of lines onto s.
func (f *Frame) Render(s core.Surface, lines []string) {
	f.RenderFunc(s, len(lines), func(i int) string { return lines[i] })
}

// RenderFunc is Render for content of n lines that is produced on demand.
// line is called only for the visible indexes.
func (f *Frame) RenderFunc(s core.Surface, n int, line func(i int) string) {
	f.contentLen = max(0, n)
	f.SetScrollOffset(f.scroll)

	w, h := f.bounds.Width, f.bounds.Height
	if w == 0 || h == 0 {
		return
	}

	f.drawTop(s)
	if h == 1 {
		return
	}

	thumbStart, thumbExtent := f.thumb()
	for row := 1; row < h-1; row++ {
		idx := f.scroll + row - 1
		text := ""
		if idx < f.contentLen {
			text = line(idx)
		}
		inThumb := row-1 >= thumbStart && row-1 < thumbStart+thumbExtent
		f.drawInterior(s, row, text, inThumb)
	}

	f.drawBottom(s, h-1)
}

func (f *Frame) set(s core.Surface, col, row int, r rune, style core.Style) {
	s.SetCell(f.bounds.X+col, f.bounds.Y+row, core.NewStyledCell(r, style))
}

func (f *Frame) drawTop(s core.Surface) {
	w := f.bounds.Width
	border := f.theme.Border

	switch w {
	case 1:
		f.set(s, 0, 0, runeTopLeft, border)
		return
	case 2:
		f.set(s, 0, 0, runeTopLeft, border)
		f.set(s, 1, 0, runeHorizontal, border)
		return
	case 3, 4:
		f.set(s, 0, 0, runeTopLeft, border)
		for col := 1; col < w-1; col++ {
			f.set(s, col, 0, runeHorizontal, border)
		}
		f.set(s, w-1, 0, runeTopRight, border)
		return
	}

	f.set(s, 0, 0, runeTopLeft, border)
	f.set(s, 1, 0, runeHorizontal, border)
	f.set(s, 2, 0, ' ', border)

	col := 3
	cells, used := core.FitString(f.title, w-4, f.theme.Title)
	for i, c := range cells {
		s.SetCell(f.bounds.X+col+i, f.bounds.Y, c)
	}
	col += used
	if col < w-1 {
		f.set(s, col, 0, ' ', border)
		col++
	}
	for ; col < w-1; col++ {
		f.set(s, col, 0, runeHorizontal, border)
	}
	f.set(s, w-1, 0, runeTopRight, border)
}

func (f *Frame) drawBottom(s core.Surface, row int) {
	w := f.bounds.Width
	border := f.theme.Border

	f.set(s, 0, row, runeBottomLeft, border)
	switch w {
	case 1:
		return
	case 2:
		f.set(s, 1, row, runeHorizontal, border)
		return
	}
	for col := 1; col < w-1; col++ {
		f.set(s, col, row, runeHorizontal, border)
	}
	f.set(s, w-1, row, runeBottomRight, border)
}

func (f *Frame) drawInterior(s core.Surface, row int, line string, inThumb bool) {
	w := f.bounds.Width
	border := f.theme.Border

	f.set(s, 0, row, runeVertical, border)
	if w == 1 {
		return
	}
	f.set(s, w-1, row, runeVertical, border)
	if w == 2 {
		return
	}
	if inThumb {
		f.set(s, w-2, row, runeThumb, f.theme.Thumb)
	} else {
		f.set(s, w-2, row, ' ', f.theme.Thumb)
	}
	if w == 3 {
		return
	}
	pad := f.pad()
	if pad == 2 {
		f.set(s, 1, row, ' ', f.theme.Content)
	}

	for i, c := range core.CellsFromString(line, w-pad-2, f.theme.Content) {
		s.SetCell(f.bounds.X+pad+i, f.bounds.Y+row, c)
	}
}
