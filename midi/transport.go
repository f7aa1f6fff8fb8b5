package midi

import (
	"fmt"
	"sync"

	"go-midikeys/debug"
)

// Target supplies the port messages go to. It may return nil when no output
// is selected.
type Target interface {
	Active() OutPort
}

// Transport sends note and control change messages to the active output.
// Out of range arguments are rejected with a warning rather than clamped,
// and every failure degrades to a logged no-op. Safe for concurrent use.
type Transport struct {
	mu     sync.Mutex
	target Target
	sink   debug.Sink
}

// NewTransport returns a transport sending to target. A nil target means the
// platform has no MIDI support; every send is a no-op.
func NewTransport(target Target, sink debug.Sink) *Transport {
	if sink == nil {
		sink = debug.Discard
	}
	return &Transport{target: target, sink: sink}
}

// SendNoteOn sends a note on. note, velocity 0-127, channel 0-15.
func (t *Transport) SendNoteOn(note, velocity, channel int) {
	t.send("Note On", NoteOn, "note", note, "velocity", velocity, channel)
}

// SendNoteOff sends a note off. note, velocity 0-127, channel 0-15.
func (t *Transport) SendNoteOff(note, velocity, channel int) {
	t.send("Note Off", NoteOff, "note", note, "velocity", velocity, channel)
}

// SendControlChange sends a control change. controller, value 0-127,
// channel 0-15.
func (t *Transport) SendControlChange(controller, value, channel int) {
	t.send("Control Change", CC, "controller", controller, "control value", value, channel)
}

func (t *Transport) send(what string, typ uint8, aName string, a int, bName string, b int, channel int) {
	if err := checkRange(aName, a, 127); err != nil {
		t.warn(what, err)
		return
	}
	if err := checkRange(bName, b, 127); err != nil {
		t.warn(what, err)
		return
	}
	if err := checkRange("channel", channel, 15); err != nil {
		t.warn(what, err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var port OutPort
	if t.target != nil {
		port = t.target.Active()
	}
	if port == nil {
		debug.LogEvery(50, "midi", "Cannot send MIDI %s: No MIDI output available", what)
		return
	}

	ev := Event{Type: typ, Channel: uint8(channel), Note: uint8(a), Velocity: uint8(b)}
	if err := port.Send(ev.Message()); err != nil {
		debug.Warn("midi", "Failed to send MIDI %s to %s: %v", what, port.String(), err)
		t.sink.Emit(debug.KindError, fmt.Sprintf("Failed to send MIDI %s: %v", what, err))
		return
	}
	debug.Log("midi", "sent %s to %s", ev, port.String())
}

func (t *Transport) warn(what string, err error) {
	msg := fmt.Sprintf("Cannot send MIDI %s: %v", what, err)
	debug.Warn("midi", "%s", msg)
	t.sink.Emit(debug.KindWarning, msg)
}

func checkRange(name string, v, max int) error {
	if v < 0 || v > max {
		return fmt.Errorf("invalid MIDI %s: %d. Must be between 0 and %d", name, v, max)
	}
	return nil
}
