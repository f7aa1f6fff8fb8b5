package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-midikeys/debug"
	"go-midikeys/engine"
	"go-midikeys/keys"
	"go-midikeys/midi"
	"go-midikeys/theme"
	"go-midikeys/widgets"
)

// Devices is the part of midi.DeviceManager the UI needs.
type Devices interface {
	Devices() []midi.DeviceInfo
	Select(id string) error
	Events() <-chan midi.DeviceEvent
}

// Options configures the model.
type Options struct {
	Layout       keys.Layout
	KeyWidth     int
	ShowNumbers  bool
	ConsoleLines int
}

const (
	kbLeft      = 2
	frameRate   = 60
	keyHoldTime = 300 * time.Millisecond
)

// qwerty keys that play the first notes of the piano, lowest first
var playKeys = []string{"a", "w", "s", "e", "d", "f", "t", "g", "y", "h", "u", "j", "k"}

// layoutBounds holds cached layout info
type layoutBounds struct {
	kbTop int
}

type Model struct {
	eng     *engine.Engine
	devices Devices
	console *debug.Console
	sink    debug.Sink
	Theme   *theme.Theme

	scr    *screen
	bounds *layoutBounds
	piano  []keys.ID

	hover       keys.ID
	showNumbers bool
	consoleN    int
	held        map[keys.ID]int // qwerty hold generation per key

	picker    bool
	pickIndex int

	quitting bool
}

type tickMsg time.Time

type releaseMsg struct {
	id  keys.ID
	gen int
}

type DeviceEventMsg midi.DeviceEvent

// NewModel lays out opts.Layout and mounts every key into eng. devices and
// console may be nil.
func NewModel(eng *engine.Engine, devices Devices, console *debug.Console, sink debug.Sink, th *theme.Theme, opts Options) Model {
	if sink == nil {
		sink = debug.Discard
	}
	if th == nil {
		th = theme.New(nil)
	}
	if opts.ConsoleLines <= 0 {
		opts.ConsoleLines = 8
	}
	scr := layoutKeys(opts.Layout, opts.KeyWidth)
	for _, k := range opts.Layout.All() {
		eng.Mount(k, scr.bounds(k.ID))
	}
	var piano []keys.ID
	for _, k := range opts.Layout.Piano() {
		piano = append(piano, k.ID)
	}
	return Model{
		eng:         eng,
		devices:     devices,
		console:     console,
		sink:        sink,
		Theme:       th,
		scr:         scr,
		bounds:      &layoutBounds{kbTop: 3},
		piano:       piano,
		showNumbers: opts.ShowNumbers,
		consoleN:    opts.ConsoleLines,
		held:        make(map[keys.ID]int),
	}
}

func ListenForDevices(devices Devices) tea.Cmd {
	return func() tea.Msg {
		event := <-devices.Events()
		return DeviceEventMsg(event)
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	if m.devices == nil {
		return tick()
	}
	return tea.Batch(tick(), ListenForDevices(m.devices))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.picker {
			return m.updatePicker(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.eng.ReleaseAll("quit")
			return m, tea.Quit

		case "n":
			m.showNumbers = !m.showNumbers

		case "p":
			if m.devices != nil {
				m.picker = true
				m.pickIndex = 0
				for i, d := range m.devices.Devices() {
					if d.Selected {
						m.pickIndex = i
					}
				}
			}

		case "c":
			if m.console != nil {
				m.console.Clear()
			}

		case " ", "space":
			m.eng.ReleaseAll("panic")

		default:
			return m, m.playKey(msg.String())
		}

	case tea.MouseMsg:
		m.handleMouse(msg)

	case tickMsg:
		m.eng.Tick(time.Time(msg))
		return m, tick()

	case releaseMsg:
		if m.held[msg.id] == msg.gen {
			delete(m.held, msg.id)
			m.eng.Release(msg.id)
		}

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		if event.Type == midi.DeviceDisconnected && event.WasActive {
			// notes held on the lost port cannot be stopped there; reset ours
			m.eng.ReleaseAll("output lost")
		}
		return m, ListenForDevices(m.devices)
	}

	return m, nil
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	id, over := m.scr.hit(msg.X-kbLeft, msg.Y-m.bounds.kbTop)
	if !over {
		id = ""
	}

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return
		}
		m.hover = id
		m.eng.MouseDown(id)

	case tea.MouseActionMotion:
		if id == m.hover {
			return
		}
		if m.hover != "" {
			m.eng.MouseLeave(m.hover)
		}
		if id != "" {
			m.eng.MouseEnter(id, m.eng.MouseHeld())
		}
		m.hover = id

	case tea.MouseActionRelease:
		if id != "" {
			m.eng.MouseUp(id)
		}
		// a drag can end without a motion event over the last key
		m.eng.MouseUpAll()
		m.hover = id
	}
}

// playKey presses the piano key bound to s and schedules its release. Key
// repeat while a key is held keeps pushing the release back.
func (m *Model) playKey(s string) tea.Cmd {
	for i, k := range playKeys {
		if k != s || i >= len(m.piano) {
			continue
		}
		id := m.piano[i]
		m.held[id]++
		gen := m.held[id]
		m.eng.Press(id)
		return tea.Tick(keyHoldTime, func(time.Time) tea.Msg {
			return releaseMsg{id: id, gen: gen}
		})
	}
	return nil
}

func (m Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	list := m.devices.Devices()
	switch msg.String() {
	case "esc", "p", "q":
		m.picker = false
	case "up", "k":
		if m.pickIndex > 0 {
			m.pickIndex--
		}
	case "down", "j":
		if m.pickIndex < len(list)-1 {
			m.pickIndex++
		}
	case "enter":
		m.picker = false
		if m.pickIndex >= len(list) {
			break
		}
		m.eng.ReleaseAll("output change")
		if err := m.devices.Select(list[m.pickIndex].ID); err != nil {
			m.sink.Emit(debug.KindError, err.Error())
		}
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())

	header := headerStyle.Render(fmt.Sprintf("go-midikeys  out:%s  held:%s", m.outputName(), m.heldNames()))
	kb := lipgloss.NewStyle().MarginLeft(kbLeft).Render(m.renderKeyboard())

	var lower string
	if m.picker {
		lower = m.renderPicker()
	} else {
		lower = m.renderConsole()
	}

	help := dimStyle.Render(widgets.RenderKeyLine([]widgets.KeyBinding{
		{Key: "mouse", Desc: "play"},
		{Key: "a-k", Desc: "play"},
		{Key: "n", Desc: "numbers"},
		{Key: "p", Desc: "output"},
		{Key: "space", Desc: "all off"},
		{Key: "c", Desc: "clear"},
		{Key: "q", Desc: "quit"},
	}))

	m.bounds.kbTop = 1 + lipgloss.Height(header) + 1

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(kb)
	out.WriteString("\n\n")
	out.WriteString(lower)
	out.WriteString("\n\n")
	out.WriteString(help)
	return out.String()
}

func (m Model) renderKeyboard() string {
	c := widgets.NewCanvas(m.scr.width, m.scr.height)
	for _, it := range m.scr.items {
		label := it.key.Name()
		if m.showNumbers {
			if it.key.CC {
				label = fmt.Sprintf("c%d", it.key.Control)
			} else {
				label = fmt.Sprintf("%d", it.key.Note())
			}
		}
		c.Place(it.x, it.y, it.w, it.h, label, m.Theme.KeyStyle(it.kind, m.eng.Pressed(it.key.ID)))
	}
	return c.Render()
}

func (m Model) renderConsole() string {
	if m.console == nil {
		return ""
	}
	var lines []string
	for _, ev := range m.console.Tail(m.consoleN) {
		style := lipgloss.NewStyle().Foreground(m.kindColor(ev.Kind))
		lines = append(lines, style.Render(fmt.Sprintf("%s %-7s %s", ev.Time.Format("15:04:05.000"), ev.Kind, ev.Message)))
	}
	for len(lines) < m.consoleN {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderPicker() string {
	list := m.devices.Devices()
	if len(list) == 0 {
		return lipgloss.NewStyle().Foreground(m.Theme.Warning()).Render("no MIDI outputs found")
	}
	var lines []string
	for i, d := range list {
		marker := "  "
		if d.Selected {
			marker = string(m.Theme.Symbols.Output) + " "
		}
		style := lipgloss.NewStyle().Foreground(m.Theme.FG())
		if i == m.pickIndex {
			style = style.Background(m.Theme.Surface()).Foreground(m.Theme.Accent())
		}
		lines = append(lines, style.Render(marker+d.Name))
	}
	return strings.Join(lines, "\n")
}

func (m Model) kindColor(k debug.Kind) lipgloss.Color {
	switch k {
	case debug.KindMIDI:
		return m.Theme.Accent()
	case debug.KindError, debug.KindWarning:
		return m.Theme.Warning()
	case debug.KindSuccess:
		return m.Theme.Success()
	case debug.KindInfo:
		return m.Theme.Muted()
	}
	return m.Theme.FG()
}

func (m Model) outputName() string {
	if m.devices == nil {
		return "none"
	}
	for _, d := range m.devices.Devices() {
		if d.Selected {
			return d.Name
		}
	}
	return "none"
}

func (m Model) heldNames() string {
	ids := m.eng.PressedKeys()
	if len(ids) == 0 {
		return " -"
	}
	var names []string
	for _, id := range ids {
		if k, ok := m.eng.Key(id); ok {
			names = append(names, k.Name())
		}
	}
	return " " + strings.Join(names, " ")
}
