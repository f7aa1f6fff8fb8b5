package midi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go-midikeys/debug"
)

// ErrUnknownDevice is returned by Select for ids not currently present.
var ErrUnknownDevice = errors.New("unknown MIDI output")

// Port states reported in DeviceInfo.
const (
	StateConnected    = "connected"
	StateDisconnected = "disconnected"
)

// DeviceInfo describes one output for a device picker.
type DeviceInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
	State        string `json:"state"`
	Selected     bool   `json:"selected"`
}

// DeviceEvent is emitted when outputs connect, disconnect or the active
// output changes.
type DeviceEvent struct {
	Type   DeviceEventType
	ID     string
	Active string // id of the active output after the event ("" for none)
	// WasActive marks the disconnect of the output that was active.
	WasActive bool
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
	DeviceSelected
)

// DeviceManager tracks available MIDI outputs (hot-plug) and which one is
// active. It implements Target for a Transport.
type DeviceManager struct {
	lister    Lister
	sink      debug.Sink
	preferred string

	mu       sync.RWMutex
	ports    map[string]OutPort
	order    []string // scan order, for "first remaining" fallback
	active   OutPort
	activeID string
	scanned  bool

	events   chan DeviceEvent
	pollRate time.Duration
}

// NewDeviceManager creates a device manager. lister may be nil when the
// driver failed to open; the manager then reports no devices and the
// unsupported platform once to sink. preferred is a port name (or prefix)
// to select on first sight.
func NewDeviceManager(lister Lister, sink debug.Sink, preferred string) *DeviceManager {
	if sink == nil {
		sink = debug.Discard
	}
	dm := &DeviceManager{
		lister:    lister,
		sink:      sink,
		preferred: preferred,
		ports:     make(map[string]OutPort),
		events:    make(chan DeviceEvent, 16),
		pollRate:  time.Second,
	}
	if lister == nil {
		sink.Emit(debug.KindError, "MIDI is not supported on this platform")
	}
	return dm
}

// Supported reports whether a driver is available.
func (dm *DeviceManager) Supported() bool {
	return dm.lister != nil
}

// Events returns a channel of device events. Events are dropped when the
// channel is full.
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Active returns the selected output, or nil.
func (dm *DeviceManager) Active() OutPort {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.active
}

// ActiveID returns the id of the selected output, or "".
func (dm *DeviceManager) ActiveID() string {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.activeID
}

// Devices returns a snapshot of known outputs in scan order.
func (dm *DeviceManager) Devices() []DeviceInfo {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	out := make([]DeviceInfo, 0, len(dm.order))
	for _, id := range dm.order {
		out = append(out, DeviceInfo{
			ID:       id,
			Name:     id,
			State:    StateConnected,
			Selected: id == dm.activeID,
		})
	}
	return out
}

// Select makes id the active output.
func (dm *DeviceManager) Select(id string) error {
	dm.mu.Lock()
	port, ok := dm.ports[id]
	if !ok {
		dm.mu.Unlock()
		dm.sink.Emit(debug.KindError, "MIDI Output Selection Failed: could not find "+id)
		return fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	err := dm.activateLocked(id, port)
	dm.mu.Unlock()
	if err != nil {
		dm.sink.Emit(debug.KindError, fmt.Sprintf("MIDI Output Selection Failed: %v", err))
		return err
	}
	dm.sink.Emit(debug.KindSuccess, "MIDI output set to: "+id)
	dm.emit(DeviceEvent{Type: DeviceSelected, ID: id, Active: id})
	return nil
}

// Run polls for port changes until ctx is done (blocking - run in goroutine).
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	// Initial scan
	dm.Scan()

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			return
		case <-ticker.C:
			dm.Scan()
		}
	}
}

// Scan refreshes the port list once.
func (dm *DeviceManager) Scan() {
	if dm.lister == nil {
		return
	}

	// Get current ports with timeout (CoreMIDI can hang)
	type portsResult struct {
		outs []OutPort
		err  error
	}
	ch := make(chan portsResult, 1)
	go func() {
		outs, err := dm.lister.Outs()
		ch <- portsResult{outs: outs, err: err}
	}()

	var outs []OutPort
	select {
	case r := <-ch:
		if r.err != nil {
			debug.Warn("devices", "list outputs: %v", r.err)
			return
		}
		outs = r.outs
	case <-time.After(3 * time.Second):
		debug.Warn("devices", "listing outputs timed out, skipping scan")
		return
	}

	dm.mu.Lock()
	first := !dm.scanned
	dm.scanned = true

	seen := make(map[string]bool, len(outs))
	var order []string
	var added []string
	for _, p := range outs {
		id := p.String()
		if seen[id] {
			continue
		}
		seen[id] = true
		order = append(order, id)
		if _, exists := dm.ports[id]; !exists {
			added = append(added, id)
		}
		if _, exists := dm.ports[id]; !exists || dm.activeID != id {
			// keep the open handle of the active port
			dm.ports[id] = p
		}
	}
	var removed []string
	for _, id := range dm.order {
		if !seen[id] {
			removed = append(removed, id)
			delete(dm.ports, id)
		}
	}
	dm.order = order
	dm.mu.Unlock()

	for _, id := range added {
		debug.Log("devices", "output connected: %s", id)
		if !first {
			dm.sink.Emit(debug.KindSuccess, "MIDI Device Added: "+id)
		}
		dm.emit(DeviceEvent{Type: DeviceConnected, ID: id, Active: dm.ActiveID()})
	}
	for _, id := range removed {
		debug.Log("devices", "output disconnected: %s", id)
		dm.sink.Emit(debug.KindWarning, "MIDI Device Removed: "+id)
		dm.handleRemoved(id)
	}

	if dm.ActiveID() == "" {
		dm.autoSelect(first)
	}
}

// handleRemoved falls back to the first remaining port when the active one
// went away.
func (dm *DeviceManager) handleRemoved(id string) {
	dm.mu.Lock()
	wasActive := dm.activeID == id
	if wasActive {
		if dm.active != nil {
			_ = dm.active.Close()
		}
		dm.active, dm.activeID = nil, ""
	}
	dm.mu.Unlock()

	if !wasActive {
		dm.emit(DeviceEvent{Type: DeviceDisconnected, ID: id, Active: dm.ActiveID()})
		return
	}

	next := dm.firstRemaining()
	if next != "" && dm.Select(next) == nil {
		dm.sink.Emit(debug.KindInfo, "MIDI Output Switched to: "+next)
	} else {
		dm.sink.Emit(debug.KindError, "No MIDI Outputs: no MIDI outputs are currently available")
	}
	dm.emit(DeviceEvent{Type: DeviceDisconnected, ID: id, Active: dm.ActiveID(), WasActive: true})
}

func (dm *DeviceManager) autoSelect(first bool) {
	id := dm.pick()
	if id == "" {
		if first {
			dm.sink.Emit(debug.KindWarning, "No MIDI Outputs: no MIDI output devices are currently available")
		}
		return
	}
	if err := dm.Select(id); err == nil {
		dm.sink.Emit(debug.KindSuccess, "MIDI Connected: "+id)
	}
}

// pick chooses the preferred port (exact, then prefix match), else the
// first one.
func (dm *DeviceManager) pick() string {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	if len(dm.order) == 0 {
		return ""
	}
	if dm.preferred != "" {
		for _, id := range dm.order {
			if id == dm.preferred {
				return id
			}
		}
		want := strings.ToLower(dm.preferred)
		for _, id := range dm.order {
			if strings.HasPrefix(strings.ToLower(id), want) {
				return id
			}
		}
	}
	return dm.order[0]
}

func (dm *DeviceManager) firstRemaining() string {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	if len(dm.order) == 0 {
		return ""
	}
	return dm.order[0]
}

func (dm *DeviceManager) activateLocked(id string, port OutPort) error {
	if dm.activeID == id {
		return nil
	}
	if !port.IsOpen() {
		if err := port.Open(); err != nil {
			return fmt.Errorf("open output %s: %w", id, err)
		}
	}
	if dm.active != nil {
		_ = dm.active.Close()
	}
	dm.active, dm.activeID = port, id
	return nil
}

func (dm *DeviceManager) emit(ev DeviceEvent) {
	select {
	case dm.events <- ev:
	default:
	}
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.active != nil {
		_ = dm.active.Close()
	}
	dm.active, dm.activeID = nil, ""
	dm.ports = make(map[string]OutPort)
	dm.order = nil
	if dm.lister != nil {
		_ = dm.lister.Close()
	}
}
