package widgets

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Box is a styled cell rectangle with an optional label on its bottom row.
type Box struct {
	X, Y, W, H int
	Label      string
	Style      lipgloss.Style
}

// Canvas composes boxes into a fixed size text block. Boxes are placed in
// screen cells; anything outside the canvas is clipped and where boxes
// overlap the first one placed keeps the cells.
type Canvas struct {
	Width, Height int
	boxes         []Box
}

func NewCanvas(width, height int) *Canvas {
	return &Canvas{Width: width, Height: height}
}

// Place adds a box.
func (c *Canvas) Place(x, y, w, h int, label string, style lipgloss.Style) {
	if w <= 0 || h <= 0 {
		return
	}
	c.boxes = append(c.boxes, Box{X: x, Y: y, W: w, H: h, Label: label, Style: style})
}

// Render draws the canvas line by line.
func (c *Canvas) Render() string {
	lines := make([]string, 0, c.Height)
	for y := 0; y < c.Height; y++ {
		lines = append(lines, c.renderLine(y))
	}
	return strings.Join(lines, "\n")
}

func (c *Canvas) renderLine(y int) string {
	var row []int
	for i, b := range c.boxes {
		if y >= b.Y && y < b.Y+b.H {
			row = append(row, i)
		}
	}
	sort.SliceStable(row, func(i, j int) bool { return c.boxes[row[i]].X < c.boxes[row[j]].X })

	var out strings.Builder
	cursor := 0
	for _, i := range row {
		b := c.boxes[i]
		start, end := max(b.X, cursor, 0), min(b.X+b.W, c.Width)
		if start >= end {
			continue
		}
		out.WriteString(strings.Repeat(" ", start-cursor))

		text := strings.Repeat(" ", end-start)
		if y == b.Y+b.H-1 && start == b.X && end == b.X+b.W {
			text = Fit(b.Label, b.W)
		}
		out.WriteString(b.Style.Render(text))
		cursor = end
	}
	if cursor < c.Width {
		out.WriteString(strings.Repeat(" ", c.Width-cursor))
	}
	return out.String()
}

// Fit centers s in exactly w cells, truncating wide text.
func Fit(s string, w int) string {
	if w <= 0 {
		return ""
	}
	s = runewidth.Truncate(s, w, "")
	left := (w - runewidth.StringWidth(s)) / 2
	return runewidth.FillRight(strings.Repeat(" ", left)+s, w)
}
