package remote

import (
	"fmt"
	"time"

	"go-midikeys/debug"
	"go-midikeys/engine"
	"go-midikeys/geometry"
	"go-midikeys/keys"
	"go-midikeys/midi"
)

// Devices is the part of midi.DeviceManager a session can drive.
type Devices interface {
	Devices() []midi.DeviceInfo
	Select(id string) error
}

// Session is one client's engine. Like the engine it is not safe for
// concurrent use: a server runs each session on its own goroutine.
type Session struct {
	eng     *engine.Engine
	devices Devices
	send    func(Message)
	bounds  map[keys.ID]geometry.Rect
}

// NewSession creates a session driving out. send receives every message
// for the client; sink (may be nil) also gets the debug events. devices may
// be nil, in which case device messages are answered with an error.
func NewSession(out engine.Output, devices Devices, sink debug.Sink, send func(Message), opts ...engine.Option) *Session {
	s := &Session{
		devices: devices,
		send:    send,
		bounds:  make(map[keys.ID]geometry.Rect),
	}
	toClient := debug.SinkFunc(func(kind debug.Kind, message string) {
		s.send(Message{Type: TypeDebug, Kind: string(kind), Message: message})
	})
	opts = append(opts,
		engine.WithSink(debug.Multi{sink, toClient}),
		engine.WithOnChange(func(id keys.ID, pressed bool) {
			s.send(Message{Type: TypeState, ID: id, Pressed: pressed})
		}),
	)
	s.eng = engine.New(nil, out, opts...)
	return s
}

// Engine exposes the session's engine.
func (s *Session) Engine() *engine.Engine {
	return s.eng
}

// Handle applies one client message.
func (s *Session) Handle(msg Message) error {
	switch msg.Type {
	case TypeMount:
		k := msg.key()
		if k.ID == "" {
			return fmt.Errorf("mount: missing id and label")
		}
		if err := k.Validate(); err != nil {
			return fmt.Errorf("mount: %w", err)
		}
		if msg.Bounds != nil {
			s.bounds[k.ID] = *msg.Bounds
		}
		s.eng.Mount(k, s.boundsOf(k.ID))

	case TypeBounds:
		if _, ok := s.eng.Key(msg.ID); !ok {
			return fmt.Errorf("bounds: %w: %s", ErrUnknownKey, msg.ID)
		}
		if msg.Bounds == nil {
			delete(s.bounds, msg.ID)
		} else {
			s.bounds[msg.ID] = *msg.Bounds
		}

	case TypeUnmount:
		s.eng.Unmount(msg.ID)
		delete(s.bounds, msg.ID)

	case TypeTouchStart:
		s.eng.TouchStart(msg.Changed, msg.Touches)
	case TypeTouchMove:
		s.eng.TouchMove(msg.Touches)
	case TypeTouchEnd:
		s.eng.TouchEnd(msg.Changed, msg.Touches)
	case TypeTouchCancel:
		s.eng.TouchCancel(msg.Changed, msg.Touches)

	case TypeMouseDown:
		s.eng.MouseDown(msg.ID)
	case TypeMouseUp:
		if msg.ID == "" {
			s.eng.MouseUpAll()
		} else {
			s.eng.MouseUp(msg.ID)
		}
	case TypeMouseEnter:
		s.eng.MouseEnter(msg.ID, msg.Buttons&1 != 0)
	case TypeMouseLeave:
		s.eng.MouseLeave(msg.ID)

	case TypeDevices:
		if s.devices == nil {
			return ErrNoDevices
		}
		s.send(Message{Type: TypeDevices, Devices: s.devices.Devices()})

	case TypeSelect:
		if s.devices == nil {
			return ErrNoDevices
		}
		s.eng.ReleaseAll("output change")
		if err := s.devices.Select(msg.Device); err != nil {
			return err
		}
		s.send(Message{Type: TypeDevices, Devices: s.devices.Devices()})

	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
	return nil
}

// Tick runs a throttled touch sweep once it is due.
func (s *Session) Tick(now time.Time) {
	s.eng.Tick(now)
}

// Close releases everything the client still holds.
func (s *Session) Close() {
	s.eng.ReleaseAll("disconnect")
}

func (s *Session) boundsOf(id keys.ID) geometry.BoundsFunc {
	return func() (geometry.Rect, bool) {
		r, ok := s.bounds[id]
		return r, ok
	}
}
