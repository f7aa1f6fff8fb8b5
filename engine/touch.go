package engine

import (
	"fmt"
	"time"

	"go-midikeys/debug"
	"go-midikeys/geometry"
	"go-midikeys/keys"
)

// Touch is one active contact as the host reports it.
type Touch struct {
	ID int     `json:"id" yaml:"id"`
	X  float64 `json:"x" yaml:"x"`
	Y  float64 `json:"y" yaml:"y"`
}

func (t Touch) Point() geometry.Point {
	return geometry.Point{X: t.X, Y: t.Y}
}

// Touch input follows the document-level model: every call carries the full
// list of contacts still on the surface, so reconciliation always works from
// the true current state and a skipped frame can only delay a transition.

// TouchStart handles new contacts. changed are the contacts that just
// landed, active every contact now on the surface (changed included).
func (e *Engine) TouchStart(changed, active []Touch) {
	e.logContacts("touchstart", changed)
	e.reconcile(active, "touchstart")
}

// TouchMove handles contacts moving. Sweeps are limited to the configured
// rate; a move arriving too soon is kept and applied by the next Tick or the
// next touch event, whichever comes first.
func (e *Engine) TouchMove(active []Touch) bool {
	now := e.now()
	if e.interval > 0 && !e.lastSweep.IsZero() && now.Sub(e.lastSweep) < e.interval {
		e.pending = append(e.pending[:0], active...)
		e.hasPending = true
		return false
	}
	e.reconcile(active, "touchmove")
	return true
}

// TouchEnd handles contacts lifting. active is what remains.
func (e *Engine) TouchEnd(changed, active []Touch) {
	e.logContacts("touchend", changed)
	e.reconcile(active, "touchend")
}

// TouchCancel is treated exactly like TouchEnd.
func (e *Engine) TouchCancel(changed, active []Touch) {
	e.logContacts("touchcancel", changed)
	e.reconcile(active, "touchcancel")
}

// Tick applies a throttled move once the rate allows. Hosts call it every
// frame. It reports whether a sweep ran.
func (e *Engine) Tick(now time.Time) bool {
	if !e.hasPending {
		return false
	}
	if e.interval > 0 && now.Sub(e.lastSweep) < e.interval {
		return false
	}
	active := e.pending
	e.pending, e.hasPending = nil, false
	e.reconcileAt(now, active, "touchmove")
	return true
}

// Pending reports whether a throttled move is waiting for Tick.
func (e *Engine) Pending() bool {
	return e.hasPending
}

// Sweep reconciles active immediately, ignoring the rate limit.
func (e *Engine) Sweep(active []Touch) {
	e.reconcile(active, "sweep")
}

func (e *Engine) reconcile(active []Touch, phase string) {
	e.reconcileAt(e.now(), active, phase)
}

// reconcileAt brings every touch-owned key in line with the contacts in
// active. Releases run before presses so a glide from one key to the next
// always turns the old key off before the new one on.
func (e *Engine) reconcileAt(now time.Time, active []Touch, phase string) {
	e.pending, e.hasPending = nil, false
	e.lastSweep = now

	// contacts covering each key, in active-list order
	covers := make(map[keys.ID][]Touch)
	for _, t := range active {
		for _, id := range e.reg.Covering(t.Point()) {
			covers[id] = append(covers[id], t)
		}
	}

	for _, st := range e.ordered() {
		if !st.pressed || st.source != SourceTouch || len(covers[st.key.ID]) > 0 {
			continue
		}
		msg := fmt.Sprintf("Touch left %s", st.key.Name())
		if len(active) == 0 {
			msg = fmt.Sprintf("Touch ended %s", st.key.Name())
		}
		e.release(st, msg, SourceTouch)
	}

	for _, id := range e.reg.IDs() {
		ts := covers[id]
		st, ok := e.states[id]
		if len(ts) == 0 || !ok {
			continue
		}
		if !st.pressed {
			t := ts[0]
			b, _ := e.reg.Bounds(id)
			e.press(st, SourceTouch, t.ID, fmt.Sprintf("%s: Touch entered %s at %s - bounds: %s",
				phase, st.key.Name(), t.Point(), b), debug.KindTouch)
			continue
		}
		if st.source == SourceTouch && !hasContact(ts, st.contact) {
			// owner slid off but another contact still holds the key
			debug.Log("touch", "%s handed from contact %d to %d", st.key.Name(), st.contact, ts[0].ID)
			st.contact = ts[0].ID
		}
	}
}

func (e *Engine) logContacts(phase string, ts []Touch) {
	if len(ts) == 0 || !debug.Enabled() {
		return
	}
	for _, t := range ts {
		debug.Log("touch", "%s contact %d at %s", phase, t.ID, t.Point())
	}
}

func hasContact(ts []Touch, id int) bool {
	for _, t := range ts {
		if t.ID == id {
			return true
		}
	}
	return false
}
