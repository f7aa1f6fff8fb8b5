package debug

import (
	"sync"
	"time"
)

// Kind classifies a debug event for display.
type Kind string

const (
	KindMIDI    Kind = "midi"
	KindTouch   Kind = "touch"
	KindMouse   Kind = "mouse"
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindSuccess Kind = "success"
	KindInfo    Kind = "info"
)

// Sink receives human readable events. Emit must not block.
type Sink interface {
	Emit(kind Kind, message string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(kind Kind, message string)

func (f SinkFunc) Emit(kind Kind, message string) { f(kind, message) }

// Discard drops everything.
var Discard Sink = SinkFunc(func(Kind, string) {})

// Multi fans an event out to every sink in order.
type Multi []Sink

func (m Multi) Emit(kind Kind, message string) {
	for _, s := range m {
		if s != nil {
			s.Emit(kind, message)
		}
	}
}

// FileSink forwards events to the debug log, warnings and errors at warn level.
var FileSink Sink = SinkFunc(func(kind Kind, message string) {
	switch kind {
	case KindWarning, KindError:
		Warn(string(kind), "%s", message)
	default:
		Log(string(kind), "%s", message)
	}
})

// Event is one console line.
type Event struct {
	Seq     uint64
	Time    time.Time
	Kind    Kind
	Message string
}

// DefaultConsoleSize is how many events the console keeps.
const DefaultConsoleSize = 100

// Console keeps the most recent events for display. Safe for concurrent use.
type Console struct {
	mu     sync.Mutex
	events []Event
	size   int
	seq    uint64
	now    func() time.Time
}

// NewConsole creates a console keeping at most size events
// (DefaultConsoleSize when size <= 0).
func NewConsole(size int) *Console {
	if size <= 0 {
		size = DefaultConsoleSize
	}
	return &Console{size: size, now: time.Now}
}

func (c *Console) Emit(kind Kind, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = append(c.events, Event{Seq: c.seq, Time: c.now(), Kind: kind, Message: message})
	c.seq++
	if len(c.events) > c.size {
		// drop the oldest; copy so the backing array doesn't grow forever
		n := copy(c.events, c.events[len(c.events)-c.size:])
		c.events = c.events[:n]
	}
}

// Events returns a snapshot, oldest first.
func (c *Console) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Tail returns up to n of the newest events, oldest first.
func (c *Console) Tail(n int) []Event {
	ev := c.Events()
	if n < len(ev) {
		ev = ev[len(ev)-n:]
	}
	return ev
}

// Clear drops all events. Sequence numbers keep counting.
func (c *Console) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}
