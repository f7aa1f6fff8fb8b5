package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConsoleKeepsNewest(t *testing.T) {
	c := NewConsole(3)
	for i := 0; i < 5; i++ {
		c.Emit(KindInfo, fmt.Sprintf("m%d", i))
	}
	ev := c.Events()
	if len(ev) != 3 {
		t.Fatalf("len = %d", len(ev))
	}
	if ev[0].Message != "m2" || ev[2].Message != "m4" {
		t.Fatalf("events = %+v", ev)
	}
	if ev[0].Seq != 2 || ev[2].Seq != 4 {
		t.Fatalf("seq = %d..%d", ev[0].Seq, ev[2].Seq)
	}
	if tail := c.Tail(2); len(tail) != 2 || tail[1].Message != "m4" {
		t.Fatalf("tail = %+v", tail)
	}

	c.Clear()
	c.Emit(KindMIDI, "after")
	ev = c.Events()
	if len(ev) != 1 || ev[0].Seq != 5 || ev[0].Kind != KindMIDI {
		t.Fatalf("after clear = %+v", ev)
	}
}

func TestConsoleDefaultSize(t *testing.T) {
	c := NewConsole(0)
	for i := 0; i < DefaultConsoleSize+10; i++ {
		c.Emit(KindTouch, "x")
	}
	if n := len(c.Events()); n != DefaultConsoleSize {
		t.Fatalf("len = %d", n)
	}
}

func TestMulti(t *testing.T) {
	var got []string
	rec := SinkFunc(func(k Kind, m string) { got = append(got, string(k)+":"+m) })
	Multi{rec, nil, Discard, rec}.Emit(KindWarning, "w")
	if strings.Join(got, ",") != "warning:w,warning:w" {
		t.Fatalf("got %v", got)
	}
}

func TestFileLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "debug.log")
	if err := Enable(path); err != nil {
		t.Fatal(err)
	}
	Log("touch", "entered %s", "C4")
	FileSink.Emit(KindWarning, "invalid controller 128")
	Disable()
	Log("touch", "dropped after disable")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{"Debug logging started", "entered C4", "invalid controller 128", "WARN"} {
		if !strings.Contains(s, want) {
			t.Errorf("log missing %q:\n%s", want, s)
		}
	}
	if strings.Contains(s, "dropped") {
		t.Errorf("log written after Disable:\n%s", s)
	}
}
