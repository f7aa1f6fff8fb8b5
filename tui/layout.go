package tui

import (
	"go-midikeys/geometry"
	"go-midikeys/keys"
	"go-midikeys/theme"
)

// placed is one key laid out in screen cells.
type placed struct {
	key  keys.Key
	kind theme.KeyKind
	x, y int
	w, h int
}

func (p placed) rect() geometry.Rect {
	// cells are inclusive on both edges
	return geometry.Rect{
		Left:   float64(p.x),
		Top:    float64(p.y),
		Right:  float64(p.x + p.w - 1),
		Bottom: float64(p.y + p.h - 1),
	}
}

// screen is the current placement of every key. It is shared by pointer so
// bounds closures handed to the engine always see the latest layout.
type screen struct {
	items  []placed // paint and hit-test order: black keys before white
	rects  map[keys.ID]geometry.Rect
	width  int
	height int
}

const (
	topHeight   = 2
	pianoHeight = 4
	blackHeight = 2
	sideHeight  = 2
	rowGap      = 1
)

// layoutKeys places l with the given key width. Rows are stacked top keys,
// piano, side buttons. White keys sit edge to edge; black keys straddle the
// boundary of the white keys around them.
func layoutKeys(l keys.Layout, keyWidth int) *screen {
	if keyWidth < 3 {
		keyWidth = 3
	}
	s := &screen{rects: make(map[keys.ID]geometry.Rect)}
	y := 0

	if top := l.Top(); len(top) > 0 {
		for i, k := range top {
			s.add(placed{key: k, kind: theme.KindTop, x: i * (keyWidth + 1), y: y, w: keyWidth, h: topHeight})
		}
		y += topHeight + rowGap
	}

	if piano := l.Piano(); len(piano) > 0 {
		var whites, blacks []placed
		wx := 0
		bw := keyWidth/2 + 1
		for _, k := range piano {
			if keys.IsBlack(k.Label) {
				// centered on the edge of the previous white key
				blacks = append(blacks, placed{key: k, kind: theme.KindBlack, x: wx - bw/2, y: y, w: bw, h: blackHeight})
				continue
			}
			whites = append(whites, placed{key: k, kind: theme.KindWhite, x: wx, y: y, w: keyWidth, h: pianoHeight})
			wx += keyWidth
		}
		for _, p := range blacks {
			s.add(p)
		}
		for _, p := range whites {
			s.add(p)
		}
		y += pianoHeight + rowGap
	}

	if side := l.Side(); len(side) > 0 {
		w := keyWidth*2 + 1
		for i, k := range side {
			s.add(placed{key: k, kind: theme.KindButton, x: i * (w + 1), y: y, w: w, h: sideHeight})
		}
		y += sideHeight
	}

	s.height = y
	return s
}

func (s *screen) add(p placed) {
	if p.x < 0 {
		p.w += p.x
		p.x = 0
	}
	s.items = append(s.items, p)
	s.rects[p.key.ID] = p.rect()
	if right := p.x + p.w; right > s.width {
		s.width = right
	}
}

// bounds returns the live bounds function for id.
func (s *screen) bounds(id keys.ID) geometry.BoundsFunc {
	return func() (geometry.Rect, bool) {
		r, ok := s.rects[id]
		return r, ok
	}
}

// hit returns the topmost key at cell (x, y) relative to the keyboard.
func (s *screen) hit(x, y int) (keys.ID, bool) {
	p := geometry.Point{X: float64(x), Y: float64(y)}
	for _, it := range s.items {
		if s.rects[it.key.ID].Contains(p) {
			return it.key.ID, true
		}
	}
	return "", false
}
