// Package engine turns pointer and touch input over registered key bounds
// into exactly one MIDI "on" and one "off" per press.
//
// An Engine is single threaded: every method must be called from the same
// goroutine (the host's event loop). Each key is either Released or Pressed,
// and Pressed holds exactly while an "on" has been sent without its "off".
package engine

import (
	"fmt"
	"time"

	"go-midikeys/debug"
	"go-midikeys/geometry"
	"go-midikeys/keys"
)

// Output is the MIDI transport the engine drives.
type Output interface {
	SendNoteOn(note, velocity, channel int)
	SendNoteOff(note, velocity, channel int)
	SendControlChange(controller, value, channel int)
}

// Source says which input modality owns a press.
type Source int

const (
	SourceNone Source = iota
	SourceMouse
	SourceTouch
	SourceHost // pressed directly by the host (keyboard shortcut, script)
)

func (s Source) String() string {
	switch s {
	case SourceMouse:
		return "mouse"
	case SourceTouch:
		return "touch"
	case SourceHost:
		return "host"
	}
	return "none"
}

// State is a read-only view of one key.
type State struct {
	Key     keys.Key
	Pressed bool
	Source  Source
	Contact int // owning touch id when Source is SourceTouch
}

type keyState struct {
	key     keys.Key
	pressed bool
	source  Source
	contact int
	invalid error // set for keys whose message cannot be sent; they never press
}

// Engine owns per-key state and drives the output.
type Engine struct {
	reg    *geometry.Registry
	out    Output
	states map[keys.ID]*keyState

	channel  int
	velocity int
	sink     debug.Sink
	onChange func(id keys.ID, pressed bool)
	now      func() time.Time

	// touch reconciliation throttle
	interval   time.Duration
	lastSweep  time.Time
	pending    []Touch
	hasPending bool

	mouseHeld bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithChannel sets the MIDI channel (0-15). Default 0.
func WithChannel(ch int) Option {
	return func(e *Engine) { e.channel = ch }
}

// WithVelocity sets the note on velocity. Default 127.
func WithVelocity(v int) Option {
	return func(e *Engine) { e.velocity = v }
}

// WithSink sets where debug events go.
func WithSink(s debug.Sink) Option {
	return func(e *Engine) {
		if s != nil {
			e.sink = s
		}
	}
}

// WithRate bounds touch move reconciliation to hz sweeps per second.
// hz <= 0 disables throttling. Default 60.
func WithRate(hz int) Option {
	return func(e *Engine) {
		if hz <= 0 {
			e.interval = 0
			return
		}
		e.interval = time.Second / time.Duration(hz)
	}
}

// WithClock replaces time.Now, for tests and replays.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithOnChange registers a callback run after every press or release.
func WithOnChange(fn func(id keys.ID, pressed bool)) Option {
	return func(e *Engine) { e.onChange = fn }
}

// DefaultRate is the touch reconciliation rate in Hz.
const DefaultRate = 60

// New creates an engine over reg. A nil reg gets a fresh registry; a nil out
// discards MIDI.
func New(reg *geometry.Registry, out Output, opts ...Option) *Engine {
	if reg == nil {
		reg = geometry.NewRegistry()
	}
	if out == nil {
		out = nopOutput{}
	}
	e := &Engine{
		reg:      reg,
		out:      out,
		states:   make(map[keys.ID]*keyState),
		velocity: 127,
		sink:     debug.Discard,
		now:      time.Now,
		interval: time.Second / DefaultRate,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the geometry registry the engine sweeps.
func (e *Engine) Registry() *geometry.Registry {
	return e.reg
}

// Mount creates k's state and registers its bounds. Mounting an id that is
// already mounted replaces its key and bounds but keeps a press in progress.
// A key outside the MIDI range is mounted with a warning and never presses.
func (e *Engine) Mount(k keys.Key, bounds geometry.BoundsFunc) {
	st, ok := e.states[k.ID]
	if !ok {
		st = &keyState{}
		e.states[k.ID] = st
	} else if st.pressed && st.key != k {
		// the message it sent no longer matches; turn it off first
		e.release(st, fmt.Sprintf("%s remounted", st.key.Name()), st.source)
	}
	st.key = k
	st.invalid = k.Validate()
	if st.invalid != nil {
		e.sink.Emit(debug.KindWarning, "Cannot play key "+st.invalid.Error())
	}
	e.reg.Register(k.ID, geometry.Entry{Bounds: bounds})
}

// Unmount releases id if it is pressed, then drops its state and bounds.
func (e *Engine) Unmount(id keys.ID) {
	if st, ok := e.states[id]; ok && st.pressed {
		e.release(st, fmt.Sprintf("%s unmounted", st.key.Name()), st.source)
	}
	delete(e.states, id)
	e.reg.Unregister(id)
}

// Key returns the mounted key for id.
func (e *Engine) Key(id keys.ID) (keys.Key, bool) {
	st, ok := e.states[id]
	if !ok {
		return keys.Key{}, false
	}
	return st.key, true
}

// Pressed reports whether id is currently pressed.
func (e *Engine) Pressed(id keys.ID) bool {
	st, ok := e.states[id]
	return ok && st.pressed
}

// State returns a snapshot of id.
func (e *Engine) State(id keys.ID) (State, bool) {
	st, ok := e.states[id]
	if !ok {
		return State{}, false
	}
	return st.view(), true
}

// PressedKeys lists pressed ids in registration order.
func (e *Engine) PressedKeys() []keys.ID {
	var out []keys.ID
	for _, id := range e.reg.IDs() {
		if e.Pressed(id) {
			out = append(out, id)
		}
	}
	return out
}

// Press presses id on behalf of the host. It is a no-op when id is unknown
// or already pressed.
func (e *Engine) Press(id keys.ID) bool {
	st, ok := e.states[id]
	if !ok {
		return false
	}
	return e.press(st, SourceHost, 0, fmt.Sprintf("press %s", st.key.Name()), debug.KindInfo)
}

// Release releases a host press of id.
func (e *Engine) Release(id keys.ID) bool {
	st, ok := e.states[id]
	if !ok || st.source != SourceHost {
		return false
	}
	return e.release(st, fmt.Sprintf("release %s", st.key.Name()), SourceHost)
}

// ReleaseAll releases every pressed key regardless of who pressed it, and
// drops any deferred touch sweep. Use it on shutdown or output changes.
func (e *Engine) ReleaseAll(reason string) int {
	n := 0
	for _, st := range e.ordered() {
		if st.pressed && e.release(st, fmt.Sprintf("%s: released %s", reason, st.key.Name()), st.source) {
			n++
		}
	}
	e.pending, e.hasPending = nil, false
	e.mouseHeld = false
	return n
}

// press is the Released -> Pressed transition. It returns false without side
// effects when the key is already pressed or cannot be sent.
func (e *Engine) press(st *keyState, src Source, contact int, cause string, kind debug.Kind) bool {
	if st.pressed || st.invalid != nil {
		return false
	}
	k := st.key
	if k.CC {
		e.out.SendControlChange(k.Control, 127, e.channel)
		e.sink.Emit(debug.KindMIDI, fmt.Sprintf("CC %d ON (127)", k.Control))
	} else {
		note := k.Note()
		e.out.SendNoteOn(note, e.velocity, e.channel)
		e.sink.Emit(debug.KindMIDI, fmt.Sprintf("Note %s ON (%d)", k.Name(), note))
	}
	e.sink.Emit(kind, cause)

	st.pressed = true
	st.source = src
	st.contact = contact
	if e.onChange != nil {
		e.onChange(k.ID, true)
	}
	return true
}

// release is the Pressed -> Released transition, guarded the same way.
func (e *Engine) release(st *keyState, cause string, src Source) bool {
	if !st.pressed {
		return false
	}
	k := st.key
	if k.CC {
		e.out.SendControlChange(k.Control, 0, e.channel)
		e.sink.Emit(debug.KindMIDI, fmt.Sprintf("CC %d OFF (0)", k.Control))
	} else {
		note := k.Note()
		e.out.SendNoteOff(note, 0, e.channel)
		e.sink.Emit(debug.KindMIDI, fmt.Sprintf("Note %s OFF (%d)", k.Name(), note))
	}
	e.sink.Emit(kindOf(src), cause)

	st.pressed = false
	st.source = SourceNone
	st.contact = 0
	if e.onChange != nil {
		e.onChange(k.ID, false)
	}
	return true
}

// ordered returns key states in registration order, followed by any whose
// bounds were unregistered behind the engine's back.
func (e *Engine) ordered() []*keyState {
	out := make([]*keyState, 0, len(e.states))
	seen := make(map[keys.ID]bool, len(e.states))
	for _, id := range e.reg.IDs() {
		if st, ok := e.states[id]; ok {
			out = append(out, st)
			seen[id] = true
		}
	}
	for id, st := range e.states {
		if !seen[id] {
			out = append(out, st)
		}
	}
	return out
}

func (st *keyState) view() State {
	return State{Key: st.key, Pressed: st.pressed, Source: st.source, Contact: st.contact}
}

func kindOf(src Source) debug.Kind {
	switch src {
	case SourceMouse:
		return debug.KindMouse
	case SourceTouch:
		return debug.KindTouch
	}
	return debug.KindInfo
}

type nopOutput struct{}

func (nopOutput) SendNoteOn(int, int, int)        {}
func (nopOutput) SendNoteOff(int, int, int)       {}
func (nopOutput) SendControlChange(int, int, int) {}
