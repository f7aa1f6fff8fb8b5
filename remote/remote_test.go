package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"go-midikeys/engine"
	"go-midikeys/geometry"
	"go-midikeys/keys"
	"go-midikeys/midi"
)

// recOutput is shared between a server's sessions and the test goroutine.
type recOutput struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recOutput) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, s)
}

func (r *recOutput) SendNoteOn(note, velocity, channel int)  { r.add(fmt.Sprintf("on:%d", note)) }
func (r *recOutput) SendNoteOff(note, velocity, channel int) { r.add(fmt.Sprintf("off:%d", note)) }
func (r *recOutput) SendControlChange(controller, value, channel int) {
	r.add(fmt.Sprintf("cc:%d=%d", controller, value))
}

func (r *recOutput) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.msgs, " ")
}

type fakeDevices struct {
	list     []midi.DeviceInfo
	selected string
}

func (f *fakeDevices) Devices() []midi.DeviceInfo { return f.list }
func (f *fakeDevices) Select(id string) error {
	for i := range f.list {
		if f.list[i].ID == id {
			f.selected = id
			for j := range f.list {
				f.list[j].Selected = j == i
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", midi.ErrUnknownDevice, id)
}

func rect(l, t, r, b float64) *geometry.Rect {
	return &geometry.Rect{Left: l, Top: t, Right: r, Bottom: b}
}

func mountC4D4(t *testing.T, s *Session) {
	t.Helper()
	for _, m := range []Message{
		{Type: TypeMount, Label: "C", Octave: 4, Bounds: rect(0, 0, 10, 10)},
		{Type: TypeMount, Label: "D", Octave: 4, Bounds: rect(20, 0, 30, 10)},
	} {
		if err := s.Handle(m); err != nil {
			t.Fatal(err)
		}
	}
}

func newTestSession(devices Devices) (*Session, *recOutput, *[]Message) {
	out := &recOutput{}
	var sent []Message
	s := NewSession(out, devices, nil, func(m Message) { sent = append(sent, m) }, engine.WithRate(0))
	return s, out, &sent
}

func states(msgs []Message) string {
	var parts []string
	for _, m := range msgs {
		if m.Type == TypeState {
			parts = append(parts, fmt.Sprintf("%s=%v", m.ID, m.Pressed))
		}
	}
	return strings.Join(parts, " ")
}

func TestSessionTouchGlide(t *testing.T) {
	s, out, sent := newTestSession(nil)
	mountC4D4(t, s)

	steps := []Message{
		{Type: TypeTouchStart, Changed: []engine.Touch{{ID: 1, X: 5, Y: 5}}, Touches: []engine.Touch{{ID: 1, X: 5, Y: 5}}},
		{Type: TypeTouchMove, Touches: []engine.Touch{{ID: 1, X: 25, Y: 5}}},
		{Type: TypeTouchEnd, Changed: []engine.Touch{{ID: 1, X: 25, Y: 5}}},
	}
	for _, m := range steps {
		if err := s.Handle(m); err != nil {
			t.Fatal(err)
		}
	}
	if got := out.String(); got != "on:48 off:48 on:50 off:50" {
		t.Fatalf("midi = %q", got)
	}
	if got := states(*sent); got != "C4=true C4=false D4=true D4=false" {
		t.Fatalf("states = %q", got)
	}
	var debugs int
	for _, m := range *sent {
		if m.Type == TypeDebug {
			debugs++
		}
	}
	if debugs != 8 {
		t.Fatalf("got %d debug messages, want 8", debugs)
	}
}

func TestSessionBoundsUpdate(t *testing.T) {
	s, out, _ := newTestSession(nil)
	mountC4D4(t, s)

	// C4 moves away from the contact while it is held
	touch := []engine.Touch{{ID: 1, X: 5, Y: 5}}
	_ = s.Handle(Message{Type: TypeTouchStart, Changed: touch, Touches: touch})
	if err := s.Handle(Message{Type: TypeBounds, ID: "C4", Bounds: rect(100, 0, 110, 10)}); err != nil {
		t.Fatal(err)
	}
	_ = s.Handle(Message{Type: TypeTouchMove, Touches: touch})
	if got := out.String(); got != "on:48 off:48" {
		t.Fatalf("midi = %q", got)
	}

	err := s.Handle(Message{Type: TypeBounds, ID: "nope", Bounds: rect(0, 0, 1, 1)})
	if !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("err = %v", err)
	}
}

func TestSessionMouseAndButtons(t *testing.T) {
	s, out, _ := newTestSession(nil)
	mountC4D4(t, s)
	cc := 20
	if err := s.Handle(Message{Type: TypeMount, Label: "Side1", Control: &cc, Bounds: rect(40, 0, 50, 10)}); err != nil {
		t.Fatal(err)
	}

	for _, m := range []Message{
		{Type: TypeMouseEnter, ID: "C4"}, // hover only
		{Type: TypeMouseDown, ID: "C4"},
		{Type: TypeMouseLeave, ID: "C4"},
		{Type: TypeMouseEnter, ID: "Side1", Buttons: 1},
		{Type: TypeMouseUp}, // released outside every key
	} {
		if err := s.Handle(m); err != nil {
			t.Fatal(err)
		}
	}
	if got := out.String(); got != "on:48 off:48 cc:20=127 cc:20=0" {
		t.Fatalf("midi = %q", got)
	}
}

func TestSessionRejectsUnsendableMount(t *testing.T) {
	s, out, sent := newTestSession(nil)
	cc := 200
	for _, m := range []Message{
		{Type: TypeMount, Label: "Side1", Control: &cc, Bounds: rect(0, 0, 10, 10)},
		{Type: TypeMount, Label: "B", Octave: 11, Bounds: rect(20, 0, 30, 10)},
	} {
		if err := s.Handle(m); !errors.Is(err, keys.ErrOutOfRange) {
			t.Fatalf("mount %s: err = %v", m.Label, err)
		}
	}
	if s.Engine().Registry().Len() != 0 {
		t.Fatal("rejected key was mounted")
	}

	touch := []engine.Touch{{ID: 1, X: 5, Y: 5}, {ID: 2, X: 25, Y: 5}}
	_ = s.Handle(Message{Type: TypeTouchStart, Changed: touch, Touches: touch})
	_ = s.Handle(Message{Type: TypeMouseDown, ID: "Side1"})
	if out.String() != "" || len(*sent) != 0 {
		t.Fatalf("midi %q, sent %+v", out, *sent)
	}
}

func TestReleaseStateCarriesPressed(t *testing.T) {
	data, err := json.Marshal(Message{Type: TypeState, ID: "C4"})
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != `{"type":"state","id":"C4","pressed":false}` {
		t.Fatalf("got %s", got)
	}
}

func TestSessionUnmountAndClose(t *testing.T) {
	s, out, _ := newTestSession(nil)
	mountC4D4(t, s)
	_ = s.Handle(Message{Type: TypeMouseDown, ID: "C4"})
	_ = s.Handle(Message{Type: TypeUnmount, ID: "C4"})
	_ = s.Handle(Message{Type: TypeMouseDown, ID: "D4"})
	s.Close()
	if got := out.String(); got != "on:48 off:48 on:50 off:50" {
		t.Fatalf("midi = %q", got)
	}
}

func TestSessionDevices(t *testing.T) {
	dev := &fakeDevices{list: []midi.DeviceInfo{{ID: "A", Name: "A", Selected: true}, {ID: "B", Name: "B"}}}
	s, out, sent := newTestSession(dev)
	mountC4D4(t, s)
	_ = s.Handle(Message{Type: TypeMouseDown, ID: "C4"})

	if err := s.Handle(Message{Type: TypeSelect, Device: "B"}); err != nil {
		t.Fatal(err)
	}
	if dev.selected != "B" || out.String() != "on:48 off:48" {
		t.Fatalf("selected %q, midi %q", dev.selected, out)
	}
	last := (*sent)[len(*sent)-1]
	if last.Type != TypeDevices || len(last.Devices) != 2 || !last.Devices[1].Selected {
		t.Fatalf("last message = %+v", last)
	}

	if err := s.Handle(Message{Type: TypeSelect, Device: "Z"}); !errors.Is(err, midi.ErrUnknownDevice) {
		t.Fatalf("err = %v", err)
	}

	noDev, _, _ := newTestSession(nil)
	if err := noDev.Handle(Message{Type: TypeDevices}); !errors.Is(err, ErrNoDevices) {
		t.Fatalf("err = %v", err)
	}
}

func TestSessionUnknownType(t *testing.T) {
	s, _, _ := newTestSession(nil)
	if err := s.Handle(Message{Type: "jump"}); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("err = %v", err)
	}
	if err := s.Handle(Message{Type: TypeMount}); err == nil {
		t.Fatal("mount without label accepted")
	}
}

func dial(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServerChecksOrigin(t *testing.T) {
	srv := NewServer(&recOutput{}, nil, nil, 60)
	srv.AllowOrigins("http://192.168.1.20:3000/")
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	url := "ws" + strings.TrimPrefix(ts.URL, "http")

	for origin, ok := range map[string]bool{
		ts.URL:                       true, // same host
		"http://192.168.1.20:3000":   true,
		"https://attacker.example":   false,
		"http://127.0.0.1.example:1": false,
	} {
		conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {origin}})
		if ok && err != nil {
			t.Errorf("%s: %v", origin, err)
		}
		if !ok && !errors.Is(err, websocket.ErrBadHandshake) {
			t.Errorf("%s: err = %v, want bad handshake", origin, err)
		}
		if conn != nil {
			conn.Close()
		}
	}
}

// next reads until a message of type typ arrives.
func next(t *testing.T, conn *websocket.Conn, typ string) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var m Message
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if m.Type == typ {
			return m
		}
	}
}

func TestServerTouchRoundTrip(t *testing.T) {
	out := &recOutput{}
	conn := dial(t, NewServer(out, nil, nil, 60))

	send := func(m Message) {
		if err := conn.WriteJSON(m); err != nil {
			t.Fatal(err)
		}
	}
	send(Message{Type: TypeMount, Label: "C", Octave: 4, Bounds: rect(0, 0, 10, 10)})
	touch := []engine.Touch{{ID: 7, X: 5, Y: 5}}
	send(Message{Type: TypeTouchStart, Changed: touch, Touches: touch})

	m := next(t, conn, TypeState)
	if m.ID != "C4" || !m.Pressed {
		t.Fatalf("state = %+v", m)
	}
	send(Message{Type: TypeTouchEnd, Changed: touch})
	m = next(t, conn, TypeState)
	if m.ID != "C4" || m.Pressed {
		t.Fatalf("state = %+v", m)
	}
	if got := out.String(); got != "on:48 off:48" {
		t.Fatalf("midi = %q", got)
	}
}

func TestServerReportsErrors(t *testing.T) {
	conn := dial(t, NewServer(&recOutput{}, nil, nil, 60))

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	if m := next(t, conn, TypeError); !strings.Contains(m.Message, "bad message") {
		t.Fatalf("error = %+v", m)
	}
	// the connection survives a bad frame
	if err := conn.WriteJSON(Message{Type: "jump"}); err != nil {
		t.Fatal(err)
	}
	if m := next(t, conn, TypeError); !strings.Contains(m.Message, "unknown message type") {
		t.Fatalf("error = %+v", m)
	}
}

func TestServerDisconnectReleases(t *testing.T) {
	out := &recOutput{}
	conn := dial(t, NewServer(out, nil, nil, 60))

	_ = conn.WriteJSON(Message{Type: TypeMount, Label: "C", Octave: 4, Bounds: rect(0, 0, 10, 10)})
	_ = conn.WriteJSON(Message{Type: TypeMouseDown, ID: "C4"})
	next(t, conn, TypeState)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for out.String() != "on:48 off:48" {
		if time.Now().After(deadline) {
			t.Fatalf("midi = %q", out)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
