package keys

import "fmt"

// Button describes an auxiliary button. Buttons with a control number send
// CC messages, the rest send the note their label maps to.
type Button struct {
	Label   string
	Control *int
}

// Layout describes which keys exist. Geometry is the host's business.
type Layout struct {
	TopKeys     int // Key1..KeyN across the top
	FirstOctave int
	Octaves     int
	Buttons     []Button
}

// DefaultLayout is the full controller: 15 top keys over three
// octaves starting at C4, plus four side buttons on CC 20-23.
func DefaultLayout() Layout {
	l := Layout{TopKeys: 15, FirstOctave: 4, Octaves: 3}
	for i := 0; i < 4; i++ {
		cc := 20 + i
		l.Buttons = append(l.Buttons, Button{Label: fmt.Sprintf("Side%d", i+1), Control: &cc})
	}
	return l
}

// Top returns the top row keys, left to right.
func (l Layout) Top() []Key {
	out := make([]Key, 0, l.TopKeys)
	for i := 1; i <= l.TopKeys; i++ {
		out = append(out, NewButton(fmt.Sprintf("Key%d", i)))
	}
	return out
}

// Piano returns the chromatic keys, lowest first.
func (l Layout) Piano() []Key {
	out := make([]Key, 0, l.Octaves*12)
	for o := 0; o < l.Octaves; o++ {
		for _, pc := range PitchClasses {
			out = append(out, NewNote(pc, l.FirstOctave+o))
		}
	}
	return out
}

// Side returns the auxiliary buttons.
func (l Layout) Side() []Key {
	out := make([]Key, 0, len(l.Buttons))
	for _, b := range l.Buttons {
		if b.Control != nil {
			out = append(out, NewControl(b.Label, *b.Control))
		} else {
			out = append(out, NewButton(b.Label))
		}
	}
	return out
}

// All returns every key in the layout.
func (l Layout) All() []Key {
	var out []Key
	out = append(out, l.Top()...)
	out = append(out, l.Piano()...)
	out = append(out, l.Side()...)
	return out
}
