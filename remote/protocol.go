// Package remote serves the key engine to browser and tablet clients over a
// websocket. The client owns the key elements and their layout; it reports
// bounds and raw pointer events, and the server answers with pressed state
// and debug events.
package remote

import (
	"errors"

	"go-midikeys/engine"
	"go-midikeys/geometry"
	"go-midikeys/keys"
	"go-midikeys/midi"
)

// Client to server message types.
const (
	TypeMount       = "mount"
	TypeBounds      = "bounds"
	TypeUnmount     = "unmount"
	TypeTouchStart  = "touchstart"
	TypeTouchMove   = "touchmove"
	TypeTouchEnd    = "touchend"
	TypeTouchCancel = "touchcancel"
	TypeMouseDown   = "mousedown"
	TypeMouseUp     = "mouseup"
	TypeMouseEnter  = "mouseenter"
	TypeMouseLeave  = "mouseleave"
	TypeDevices     = "devices"
	TypeSelect      = "select"
)

// Server to client message types.
const (
	TypeState = "state"
	TypeDebug = "debug"
	TypeError = "error"
)

var (
	ErrUnknownType = errors.New("unknown message type")
	ErrUnknownKey  = errors.New("unknown key")
	ErrNoDevices   = errors.New("device selection unavailable")
)

// Message is one JSON text frame in either direction. Only the fields the
// type needs are set.
type Message struct {
	Type string  `json:"type" yaml:"type"`
	ID   keys.ID `json:"id,omitempty" yaml:"id,omitempty"`

	// mount
	Label   string `json:"label,omitempty" yaml:"label,omitempty"`
	Octave  int    `json:"octave,omitempty" yaml:"octave,omitempty"`
	Control *int   `json:"cc,omitempty" yaml:"cc,omitempty"`

	// mount, bounds
	Bounds *geometry.Rect `json:"bounds,omitempty" yaml:"bounds,omitempty"`

	// touch events: changed contacts and every contact still down
	Changed []engine.Touch `json:"changed,omitempty" yaml:"changed,omitempty"`
	Touches []engine.Touch `json:"touches,omitempty" yaml:"touches,omitempty"`

	// mouseenter: pressed button mask, bit 0 is the primary button
	Buttons int `json:"buttons,omitempty" yaml:"buttons,omitempty"`

	// state; always encoded so a release reads as an explicit false
	Pressed bool `json:"pressed" yaml:"pressed,omitempty"`

	// debug, error
	Kind    string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	// devices, select
	Devices []midi.DeviceInfo `json:"devices,omitempty" yaml:"devices,omitempty"`
	Device  string            `json:"device,omitempty" yaml:"device,omitempty"`
}

// key builds the key a mount message describes.
func (m Message) key() keys.Key {
	var k keys.Key
	switch {
	case m.Control != nil:
		k = keys.NewControl(m.Label, *m.Control)
	case keys.IsPitchClass(m.Label):
		k = keys.NewNote(m.Label, m.Octave)
	default:
		k = keys.NewButton(m.Label)
		k.Octave = m.Octave
	}
	if m.ID != "" {
		k.ID = m.ID
	}
	return k
}
