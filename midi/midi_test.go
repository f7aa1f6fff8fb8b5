package midi

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"go-midikeys/debug"
)

type fakePort struct {
	name   string
	open   bool
	closes int
	sent   [][]byte
	err    error
}

func (p *fakePort) Open() error    { p.open = true; return nil }
func (p *fakePort) Close() error   { p.open = false; p.closes++; return nil }
func (p *fakePort) IsOpen() bool   { return p.open }
func (p *fakePort) String() string { return p.name }
func (p *fakePort) Send(data []byte) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, append([]byte(nil), data...))
	return nil
}

type fakeLister struct {
	mu    sync.Mutex
	ports []OutPort
}

func (l *fakeLister) Outs() ([]OutPort, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]OutPort(nil), l.ports...), nil
}
func (l *fakeLister) Close() error { return nil }
func (l *fakeLister) set(ports ...OutPort) {
	l.mu.Lock()
	l.ports = ports
	l.mu.Unlock()
}

type staticTarget struct{ port OutPort }

func (s staticTarget) Active() OutPort { return s.port }

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Emit(k debug.Kind, m string) {
	r.mu.Lock()
	r.events = append(r.events, string(k)+": "+m)
	r.mu.Unlock()
}

func (r *recorder) count(kind debug.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if strings.HasPrefix(e, string(kind)+":") {
			n++
		}
	}
	return n
}

func TestTransportEncodes(t *testing.T) {
	port := &fakePort{name: "out"}
	tr := NewTransport(staticTarget{port}, nil)

	tr.SendNoteOn(61, 127, 0)
	tr.SendNoteOff(61, 0, 2)
	tr.SendControlChange(20, 127, 15)

	want := [][]byte{
		{0x90, 61, 127},
		{0x82, 61, 0},
		{0xBF, 20, 127},
	}
	if len(port.sent) != len(want) {
		t.Fatalf("sent %d messages: %x", len(port.sent), port.sent)
	}
	for i := range want {
		if !bytes.Equal(port.sent[i], want[i]) {
			t.Errorf("message %d = % X, want % X", i, port.sent[i], want[i])
		}
	}
}

func TestTransportRejectsOutOfRange(t *testing.T) {
	port := &fakePort{name: "out"}
	rec := &recorder{}
	tr := NewTransport(staticTarget{port}, rec)

	tr.SendControlChange(128, 50, 0)
	tr.SendNoteOn(-1, 100, 0)
	tr.SendNoteOn(60, 128, 0)
	tr.SendNoteOff(60, 0, 16)

	if len(port.sent) != 0 {
		t.Fatalf("out of range values were sent: %x", port.sent)
	}
	if n := rec.count(debug.KindWarning); n != 4 {
		t.Fatalf("warnings = %d: %v", n, rec.events)
	}
}

func TestTransportRangeWarningWithoutOutput(t *testing.T) {
	rec := &recorder{}
	tr := NewTransport(nil, rec)
	tr.SendControlChange(128, 50, 0)
	if rec.count(debug.KindWarning) != 1 {
		t.Fatalf("events = %v", rec.events)
	}
	// in range but no output: silent no-op
	tr.SendNoteOn(60, 127, 0)
	if len(rec.events) != 1 {
		t.Fatalf("events = %v", rec.events)
	}
}

func TestTransportSendError(t *testing.T) {
	port := &fakePort{name: "out", err: errors.New("boom")}
	rec := &recorder{}
	tr := NewTransport(staticTarget{port}, rec)
	tr.SendNoteOn(60, 127, 0)
	if rec.count(debug.KindError) != 1 {
		t.Fatalf("events = %v", rec.events)
	}
}

func TestEventMessage(t *testing.T) {
	ev := Event{Type: CC, Channel: 1, Note: 7, Velocity: 64}
	if got := ev.Message(); !bytes.Equal(got, []byte{0xB1, 7, 64}) {
		t.Fatalf("cc = % X", got)
	}
	if ev.String() != "CC ch=1 cc=7 val=64" {
		t.Fatalf("string = %s", ev)
	}
	if (Event{Type: 0x10}).Message() != nil {
		t.Fatal("unknown type should encode to nil")
	}
}

func TestDeviceManagerSelectsPreferred(t *testing.T) {
	a, b := &fakePort{name: "Midi Through"}, &fakePort{name: "IAC Driver Bus 1"}
	l := &fakeLister{}
	l.set(a, b)
	dm := NewDeviceManager(l, nil, "iac")
	dm.Scan()

	if dm.ActiveID() != "IAC Driver Bus 1" {
		t.Fatalf("active = %q", dm.ActiveID())
	}
	if !b.open {
		t.Fatal("selected port not opened")
	}
	devs := dm.Devices()
	if len(devs) != 2 || devs[0].Selected || !devs[1].Selected || devs[0].State != StateConnected {
		t.Fatalf("devices = %+v", devs)
	}
}

func TestDeviceManagerFallback(t *testing.T) {
	a, b, c := &fakePort{name: "A"}, &fakePort{name: "B"}, &fakePort{name: "C"}
	l := &fakeLister{}
	l.set(a, b, c)
	rec := &recorder{}
	dm := NewDeviceManager(l, rec, "")
	dm.Scan()
	if err := dm.Select("B"); err != nil {
		t.Fatal(err)
	}
	if a.open || !b.open {
		t.Fatalf("switch should close A and open B: a=%v b=%v", a.open, b.open)
	}

	// active disconnects: first remaining wins
	l.set(a, c)
	dm.Scan()
	if dm.ActiveID() != "A" {
		t.Fatalf("fallback active = %q", dm.ActiveID())
	}

	// everything gone
	l.set()
	dm.Scan()
	if dm.Active() != nil || dm.ActiveID() != "" {
		t.Fatalf("active = %q", dm.ActiveID())
	}
	if rec.count(debug.KindError) == 0 {
		t.Fatalf("no error for missing outputs: %v", rec.events)
	}

	// a device appearing again is picked up
	l.set(c)
	dm.Scan()
	if dm.ActiveID() != "C" {
		t.Fatalf("reconnect active = %q", dm.ActiveID())
	}
}

func TestDeviceManagerSelectUnknown(t *testing.T) {
	dm := NewDeviceManager(&fakeLister{}, nil, "")
	dm.Scan()
	if err := dm.Select("nope"); !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("err = %v", err)
	}
}

func TestDeviceManagerUnsupported(t *testing.T) {
	rec := &recorder{}
	dm := NewDeviceManager(nil, rec, "")
	dm.Scan()
	if dm.Supported() || dm.Active() != nil || len(dm.Devices()) != 0 {
		t.Fatal("nil lister should report nothing")
	}
	if rec.count(debug.KindError) != 1 {
		t.Fatalf("events = %v", rec.events)
	}
	// transport over an unsupported manager is inert
	NewTransport(dm, rec).SendNoteOn(60, 127, 0)
}

func TestDeviceManagerEvents(t *testing.T) {
	l := &fakeLister{}
	l.set(&fakePort{name: "A"})
	dm := NewDeviceManager(l, nil, "")
	dm.Scan()

	var types []DeviceEventType
	for len(dm.Events()) > 0 {
		types = append(types, (<-dm.Events()).Type)
	}
	if len(types) != 2 || types[0] != DeviceConnected || types[1] != DeviceSelected {
		t.Fatalf("events = %v", types)
	}
}

func TestDeviceManagerMarksActiveDisconnect(t *testing.T) {
	l := &fakeLister{}
	l.set(&fakePort{name: "A"}, &fakePort{name: "B"}, &fakePort{name: "C"})
	dm := NewDeviceManager(l, nil, "")
	dm.Scan()
	for len(dm.Events()) > 0 {
		<-dm.Events()
	}

	l.set(&fakePort{name: "A"}, &fakePort{name: "C"})
	dm.Scan()
	l.set(&fakePort{name: "C"})
	dm.Scan()

	lost := map[string]bool{}
	for len(dm.Events()) > 0 {
		ev := <-dm.Events()
		if ev.Type == DeviceDisconnected {
			lost[ev.ID] = ev.WasActive
		}
	}
	if len(lost) != 2 || lost["B"] || !lost["A"] {
		t.Fatalf("disconnects = %v", lost)
	}
	if dm.ActiveID() != "C" {
		t.Fatalf("active = %q", dm.ActiveID())
	}
}
