package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// MIDI message types
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
	CC      uint8 = 0xB0
)

// Event is one outgoing channel message, already range checked.
type Event struct {
	Type     uint8 // NoteOn, NoteOff, CC
	Channel  uint8 // 0-15
	Note     uint8 // note number, or controller for CC
	Velocity uint8 // velocity, or value for CC
}

// Message encodes the event as raw MIDI bytes.
func (e Event) Message() gomidi.Message {
	switch e.Type {
	case NoteOn:
		return gomidi.NoteOn(e.Channel, e.Note, e.Velocity)
	case NoteOff:
		return gomidi.NoteOffVelocity(e.Channel, e.Note, e.Velocity)
	case CC:
		return gomidi.ControlChange(e.Channel, e.Note, e.Velocity)
	}
	return nil
}

func (e Event) String() string {
	switch e.Type {
	case NoteOn:
		return fmt.Sprintf("NoteOn ch=%d note=%d vel=%d", e.Channel, e.Note, e.Velocity)
	case NoteOff:
		return fmt.Sprintf("NoteOff ch=%d note=%d vel=%d", e.Channel, e.Note, e.Velocity)
	case CC:
		return fmt.Sprintf("CC ch=%d cc=%d val=%d", e.Channel, e.Note, e.Velocity)
	}
	return fmt.Sprintf("unknown 0x%02X", e.Type)
}
