package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go-midikeys/engine"
	"go-midikeys/keys"
)

// OutputConfig selects and addresses the MIDI output
type OutputConfig struct {
	PortName string `json:"portName,omitempty"` // preferred port, exact or prefix
	Channel  int    `json:"channel"`            // 0-15
	Velocity int    `json:"velocity"`           // note on velocity, 1-127
}

// ButtonConfig is one auxiliary button. CC is optional: without it the
// button sends the note its label maps to.
type ButtonConfig struct {
	Label string `json:"label"`
	CC    *int   `json:"cc,omitempty"`
}

// LayoutConfig defines which keys are shown
type LayoutConfig struct {
	TopKeys     int            `json:"topKeys"`
	FirstOctave int            `json:"firstOctave"`
	Octaves     int            `json:"octaves"`
	Buttons     []ButtonConfig `json:"buttons,omitempty"`
}

// TouchConfig tunes the interaction engine
type TouchConfig struct {
	RateHz int `json:"rateHz"` // sweep rate for touch moves, <=0 disables throttling
}

// DebugConfig controls the debug log and console
type DebugConfig struct {
	Enabled     bool   `json:"enabled"`
	LogPath     string `json:"logPath,omitempty"`
	ConsoleSize int    `json:"consoleSize,omitempty"`
}

// UIConfig stores terminal UI preferences
type UIConfig struct {
	ShowNumbers bool   `json:"showNumbers,omitempty"`
	Palette     string `json:"palette,omitempty"` // GPL file, empty for the built-in palette
	KeyWidth    int    `json:"keyWidth,omitempty"`
}

// ServerConfig configures the remote touch surface
type ServerConfig struct {
	Addr    string   `json:"addr,omitempty"`
	Origins []string `json:"origins,omitempty"` // browser origins besides the server's own host, "*" for any
}

// Config is the main configuration structure
type Config struct {
	Output OutputConfig `json:"output"`
	Layout LayoutConfig `json:"layout"`
	Touch  TouchConfig  `json:"touch"`
	Debug  DebugConfig  `json:"debug"`
	UI     UIConfig     `json:"ui"`
	Server ServerConfig `json:"server"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	l := keys.DefaultLayout()
	var buttons []ButtonConfig
	for _, b := range l.Buttons {
		buttons = append(buttons, ButtonConfig{Label: b.Label, CC: b.Control})
	}
	return &Config{
		Output: OutputConfig{Velocity: 127},
		Layout: LayoutConfig{
			TopKeys:     l.TopKeys,
			FirstOctave: l.FirstOctave,
			Octaves:     l.Octaves,
			Buttons:     buttons,
		},
		Touch: TouchConfig{RateHz: 60},
		Debug: DebugConfig{ConsoleSize: 100},
		UI:    UIConfig{KeyWidth: 4},
		Server: ServerConfig{
			Addr: "127.0.0.1:8765",
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-midikeys"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from the default path, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads the config at path over the defaults. A missing file is
// not an error.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Output.Channel < 0 || c.Output.Channel > 15 {
		return fmt.Errorf("output.channel %d out of range 0-15", c.Output.Channel)
	}
	if c.Output.Velocity < 1 || c.Output.Velocity > 127 {
		return fmt.Errorf("output.velocity %d out of range 1-127", c.Output.Velocity)
	}
	if c.Layout.TopKeys < 0 || c.Layout.Octaves < 0 {
		return errors.New("layout.topKeys and layout.octaves must not be negative")
	}
	if c.Layout.TopKeys > 127 {
		return fmt.Errorf("layout.topKeys %d out of range 0-127", c.Layout.TopKeys)
	}
	if c.Layout.Octaves > 0 {
		// C of the first octave and B of the last must both be MIDI notes
		last := c.Layout.FirstOctave + c.Layout.Octaves - 1
		if c.Layout.FirstOctave < 0 || last*12+11 > 127 {
			return fmt.Errorf("layout: octaves %d-%d leave the MIDI note range", c.Layout.FirstOctave, last)
		}
	}
	seen := make(map[string]bool)
	for _, b := range c.Layout.Buttons {
		if b.Label == "" {
			return errors.New("layout.buttons: empty label")
		}
		if seen[b.Label] {
			return fmt.Errorf("layout.buttons: duplicate label %q", b.Label)
		}
		seen[b.Label] = true
		if b.CC != nil && (*b.CC < 0 || *b.CC > 127) {
			return fmt.Errorf("layout.buttons: %s cc %d out of range 0-127", b.Label, *b.CC)
		}
	}
	return nil
}

// KeyLayout converts the layout section for the keys package.
func (c *Config) KeyLayout() keys.Layout {
	l := keys.Layout{
		TopKeys:     c.Layout.TopKeys,
		FirstOctave: c.Layout.FirstOctave,
		Octaves:     c.Layout.Octaves,
	}
	for _, b := range c.Layout.Buttons {
		l.Buttons = append(l.Buttons, keys.Button{Label: b.Label, Control: b.CC})
	}
	return l
}

// EngineOptions returns the engine settings from the output and touch
// sections.
func (c *Config) EngineOptions() []engine.Option {
	return []engine.Option{
		engine.WithChannel(c.Output.Channel),
		engine.WithVelocity(c.Output.Velocity),
		engine.WithRate(c.Touch.RateHz),
	}
}
