package keys

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ID identifies one key element. At most one registry entry exists per ID.
type ID string

// Key is one interactive element: a pitch key or a control button.
type Key struct {
	ID     ID
	Label  string // pitch class ("C#") or button name ("Side3")
	Octave int

	// CC keys send control change Control instead of a note.
	CC      bool
	Control int
}

// NewNote returns a pitch key for label and octave.
func NewNote(label string, octave int) Key {
	return Key{ID: ID(fmt.Sprintf("%s%d", label, octave)), Label: label, Octave: octave}
}

// NewButton returns a note-sending button such as "Key3".
func NewButton(label string) Key {
	return Key{ID: ID(label), Label: label}
}

// NewControl returns a button that sends control change cc.
func NewControl(label string, cc int) Key {
	return Key{ID: ID(label), Label: label, CC: true, Control: cc}
}

// Note is the MIDI note number this key plays.
func (k Key) Note() int {
	return MapKeyToMIDINote(k.Label, k.Octave)
}

// ErrOutOfRange marks a key whose note or controller is not a MIDI data byte.
var ErrOutOfRange = errors.New("out of MIDI range")

// Validate reports whether the key's message can be sent at all.
func (k Key) Validate() error {
	if k.CC {
		if k.Control < 0 || k.Control > 127 {
			return fmt.Errorf("%s: cc %d %w", k.Name(), k.Control, ErrOutOfRange)
		}
		return nil
	}
	if n := k.Note(); n < 0 || n > 127 {
		return fmt.Errorf("%s: note %d %w", k.Name(), n, ErrOutOfRange)
	}
	return nil
}

// Name is the human readable name used in debug messages.
func (k Key) Name() string {
	if IsPitchClass(k.Label) {
		return fmt.Sprintf("%s%d", k.Label, k.Octave)
	}
	return k.Label
}

// PitchClasses in chromatic order, index = semitone above C.
var PitchClasses = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var pitchIndex = func() map[string]int {
	m := make(map[string]int, len(PitchClasses))
	for i, name := range PitchClasses {
		m[name] = i
	}
	return m
}()

// Button prefixes and the note each range starts at.
var buttonBase = map[string]int{
	"Key":    0,
	"Button": 16,
	"Side":   40,
	"Left":   60,
	"Far":    60,
	"Final":  80,
}

const (
	otherButtonBase = 100
	fallbackNote    = 60 // middle C
)

var buttonPattern = regexp.MustCompile(`^([A-Za-z]+)(\d+)$`)

// IsPitchClass reports whether label is one of the twelve pitch class names.
func IsPitchClass(label string) bool {
	_, ok := pitchIndex[label]
	return ok
}

// IsBlack reports whether label is a sharp.
func IsBlack(label string) bool {
	i, ok := pitchIndex[label]
	if !ok {
		return false
	}
	switch i {
	case 1, 3, 6, 8, 10:
		return true
	}
	return false
}

// MapKeyToMIDINote maps a key label and octave to a MIDI note number.
//
// Pitch classes map to index + octave*12 (so "C#", 5 is 61) whatever the
// octave; Key.Validate catches results outside 0..127. Button labels of the
// form <Prefix><N> map to a per-prefix base plus N, ignoring octave. Labels
// that match neither form, or buttons whose number falls outside 0..127, map
// to middle C.
func MapKeyToMIDINote(label string, octave int) int {
	if i, ok := pitchIndex[label]; ok {
		return i + octave*12
	}
	m := buttonPattern.FindStringSubmatch(label)
	if m == nil {
		return fallbackNote
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		// too many digits for an int
		return fallbackNote
	}
	base, ok := buttonBase[m[1]]
	if !ok {
		base = otherButtonBase
	}
	if n > 127-base {
		return fallbackNote
	}
	return base + n
}
