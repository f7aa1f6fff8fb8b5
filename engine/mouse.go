package engine

import (
	"fmt"

	"go-midikeys/debug"
	"go-midikeys/keys"
)

// The mouse has a single contact and no identifier, so a drag across keys is
// followed through per-element enter/leave instead of a global sweep. A mouse
// press is only ever released by the mouse path.

// MouseDown handles a primary button press over id.
func (e *Engine) MouseDown(id keys.ID) bool {
	e.mouseHeld = true
	st, ok := e.states[id]
	if !ok {
		return false
	}
	return e.press(st, SourceMouse, 0, fmt.Sprintf("mousedown on %s", st.key.Name()), debug.KindMouse)
}

// MouseUp handles a button release over id.
func (e *Engine) MouseUp(id keys.ID) bool {
	e.mouseHeld = false
	st, ok := e.states[id]
	if !ok || st.source != SourceMouse {
		return false
	}
	return e.release(st, fmt.Sprintf("mouseup on %s", st.key.Name()), SourceMouse)
}

// MouseEnter handles the pointer entering id. With the primary button held
// this presses the key (drag-on).
func (e *Engine) MouseEnter(id keys.ID, buttonHeld bool) bool {
	e.mouseHeld = buttonHeld
	if !buttonHeld {
		return false
	}
	st, ok := e.states[id]
	if !ok {
		return false
	}
	return e.press(st, SourceMouse, 0, fmt.Sprintf("mouseenter on %s", st.key.Name()), debug.KindMouse)
}

// MouseLeave handles the pointer leaving id.
func (e *Engine) MouseLeave(id keys.ID) bool {
	st, ok := e.states[id]
	if !ok || st.source != SourceMouse {
		return false
	}
	return e.release(st, fmt.Sprintf("mouseleave on %s", st.key.Name()), SourceMouse)
}

// MouseUpAll handles a button release outside every key: anything the mouse
// holds is released.
func (e *Engine) MouseUpAll() int {
	e.mouseHeld = false
	n := 0
	for _, st := range e.ordered() {
		if st.pressed && st.source == SourceMouse &&
			e.release(st, fmt.Sprintf("mouseup released %s", st.key.Name()), SourceMouse) {
			n++
		}
	}
	return n
}

// MouseHeld reports whether the engine believes the primary button is down.
func (e *Engine) MouseHeld() bool {
	return e.mouseHeld
}
