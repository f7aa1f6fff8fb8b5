package geometry

import "go-midikeys/keys"

// BoundsFunc returns a key's current bounding box, or false when the host
// cannot measure it (not laid out yet, hidden, torn down).
type BoundsFunc func() (Rect, bool)

// Static returns a BoundsFunc that always reports r.
func Static(r Rect) BoundsFunc {
	return func() (Rect, bool) { return r, true }
}

// Entry is what the registry knows about a mounted key: only how to find its
// bounds. Key state lives in the engine.
type Entry struct {
	Bounds BoundsFunc
}

// Registry maps key ids to their geometry so a sweep can answer "which keys
// does this point overlap" without asking the renderer. It is not safe for
// concurrent use; one registry belongs to one input loop.
type Registry struct {
	entries map[keys.ID]Entry
	order   []keys.ID // registration order, for deterministic sweeps
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[keys.ID]Entry)}
}

// Register inserts or replaces the entry for id. Call it once the key's
// bounds are measurable.
func (r *Registry) Register(id keys.ID, e Entry) {
	if _, exists := r.entries[id]; !exists {
		r.order = append(r.order, id)
	}
	r.entries[id] = e
}

// Unregister removes id. Unknown ids are ignored.
func (r *Registry) Unregister(id keys.ID) {
	if _, exists := r.entries[id]; !exists {
		return
	}
	delete(r.entries, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Has reports whether id is registered.
func (r *Registry) Has(id keys.ID) bool {
	_, ok := r.entries[id]
	return ok
}

// Len is the number of registered keys.
func (r *Registry) Len() int {
	return len(r.order)
}

// IDs returns registered ids in registration order.
func (r *Registry) IDs() []keys.ID {
	out := make([]keys.ID, len(r.order))
	copy(out, r.order)
	return out
}

// Bounds returns the current bounds of id. Missing entries and unmeasured
// keys report false.
func (r *Registry) Bounds(id keys.ID) (Rect, bool) {
	e, ok := r.entries[id]
	if !ok || e.Bounds == nil {
		return Rect{}, false
	}
	b, ok := e.Bounds()
	if !ok || b.Empty() {
		return Rect{}, false
	}
	return b, true
}

// Covering returns the ids whose bounds contain p, in registration order.
func (r *Registry) Covering(p Point) []keys.ID {
	var out []keys.ID
	for _, id := range r.order {
		if b, ok := r.Bounds(id); ok && b.Contains(p) {
			out = append(out, id)
		}
	}
	return out
}

// Sweep reports for every registered key whether any of points lies inside
// its bounds.
func (r *Registry) Sweep(points []Point) map[keys.ID]bool {
	out := make(map[keys.ID]bool, len(r.order))
	for _, id := range r.order {
		b, ok := r.Bounds(id)
		covered := false
		if ok {
			for _, p := range points {
				if b.Contains(p) {
					covered = true
					break
				}
			}
		}
		out[id] = covered
	}
	return out
}
