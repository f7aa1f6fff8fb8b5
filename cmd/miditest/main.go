package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go-midikeys/debug"
	"go-midikeys/engine"
	"go-midikeys/keys"
	"go-midikeys/midi"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	var err error
	switch os.Args[1] {
	case "list":
		err = listPorts()
	case "note":
		err = sendNote(os.Args[2:])
	case "cc":
		err = sendCC(os.Args[2:])
	case "poll":
		err = pollDevices()
	case "replay":
		err = replay(os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                        - List MIDI output ports")
	fmt.Println("  note <label> <octave> [port] - Play one key for half a second")
	fmt.Println("  cc <controller> <value> [port] - Send a control change")
	fmt.Println("  poll                        - Poll for device changes")
	fmt.Println("  replay <script.yaml> [port]  - Replay a gesture script (dry run without port)")
}

// printSink writes events to stdout.
var printSink = debug.SinkFunc(func(kind debug.Kind, message string) {
	fmt.Printf("[%s] %-7s %s\n", time.Now().Format("15:04:05"), kind, message)
})

func listPorts() error {
	fmt.Println("=== MIDI Output Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	lister, err := midi.NewDriverLister()
	if err != nil {
		return err
	}
	defer lister.Close()

	type result struct {
		outs []midi.OutPort
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		outs, err := lister.Outs()
		ch <- result{outs: outs, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return r.err
		}
		for i, p := range r.outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! The MIDI service is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
	}
	return nil
}

// staticTarget pins a transport to one port.
type staticTarget struct{ port midi.OutPort }

func (t staticTarget) Active() midi.OutPort { return t.port }

// openOutput opens the first port whose name starts with prefix (any port
// when prefix is empty).
func openOutput(prefix string) (*midi.Transport, func(), error) {
	lister, err := midi.NewDriverLister()
	if err != nil {
		return nil, nil, err
	}
	outs, err := lister.Outs()
	if err != nil {
		lister.Close()
		return nil, nil, err
	}
	for _, p := range outs {
		if !strings.HasPrefix(strings.ToLower(p.String()), strings.ToLower(prefix)) {
			continue
		}
		if err := p.Open(); err != nil {
			lister.Close()
			return nil, nil, fmt.Errorf("open %s: %w", p, err)
		}
		fmt.Printf("Using output: %s\n", p.String())
		closeFn := func() {
			p.Close()
			lister.Close()
		}
		return midi.NewTransport(staticTarget{p}, printSink), closeFn, nil
	}
	lister.Close()
	return nil, nil, fmt.Errorf("%w: no output matching %q", midi.ErrUnknownDevice, prefix)
}

func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func sendNote(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: note <label> <octave> [port]")
	}
	octave, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("octave: %w", err)
	}
	tr, closeFn, err := openOutput(argAt(args, 2))
	if err != nil {
		return err
	}
	defer closeFn()

	eng := engine.New(nil, tr, engine.WithSink(printSink))
	k := keyFor(args[0], octave)
	eng.Mount(k, nil)
	eng.Press(k.ID)
	time.Sleep(500 * time.Millisecond)
	eng.Release(k.ID)
	return nil
}

func keyFor(label string, octave int) keys.Key {
	if keys.IsPitchClass(label) {
		return keys.NewNote(label, octave)
	}
	k := keys.NewButton(label)
	k.Octave = octave
	return k
}

func sendCC(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: cc <controller> <value> [port]")
	}
	cc, err1 := strconv.Atoi(args[0])
	val, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		return fmt.Errorf("controller and value must be numbers")
	}
	tr, closeFn, err := openOutput(argAt(args, 2))
	if err != nil {
		return err
	}
	defer closeFn()

	// out of range values are reported by the transport
	tr.SendControlChange(cc, val, 0)
	return nil
}

func pollDevices() error {
	fmt.Println("Polling for device changes...")
	fmt.Println("Connect/disconnect devices to test. Ctrl+C to exit.")

	lister, err := midi.NewDriverLister()
	if err != nil {
		return err
	}
	dm := midi.NewDeviceManager(lister, printSink, "")
	go dm.Run(context.Background())

	for ev := range dm.Events() {
		switch ev.Type {
		case midi.DeviceConnected:
			fmt.Printf("  + %s\n", ev.ID)
		case midi.DeviceDisconnected:
			fmt.Printf("  - %s\n", ev.ID)
		case midi.DeviceSelected:
			fmt.Printf("  > %s\n", ev.ID)
		}
		fmt.Printf("    active: %q\n", ev.Active)
	}
	return nil
}

func replay(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: replay <script.yaml> [port]")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	script, err := LoadScript(f)
	if err != nil {
		return err
	}

	var out engine.Output
	if len(args) > 1 {
		tr, closeFn, err := openOutput(args[1])
		if err != nil {
			return err
		}
		defer closeFn()
		out = tr
	}
	return Replay(script, out, os.Stdout)
}
