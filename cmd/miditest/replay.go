package main

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"go-midikeys/debug"
	"go-midikeys/engine"
	"go-midikeys/remote"
)

// Script is a recorded gesture: the same messages a remote client sends,
// each after a delay.
type Script struct {
	Rate  int    `yaml:"rate"` // touch sweep rate, 0 for the default
	Steps []Step `yaml:"steps"`
}

type Step struct {
	Wait           time.Duration `yaml:"wait"`
	remote.Message `yaml:",inline"`
}

// LoadScript decodes a YAML script.
func LoadScript(r io.Reader) (*Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("script has no steps")
	}
	if s.Rate == 0 {
		s.Rate = engine.DefaultRate
	}
	return &s, nil
}

// Replay runs s against out on a virtual clock, writing debug and state
// events to w. Throttled moves are resolved by ticks between steps exactly
// as a live session would resolve them. Whatever is still held at the end is
// released.
func Replay(s *Script, out engine.Output, w io.Writer) error {
	start := time.Unix(0, 0)
	now := start
	frame := time.Second / time.Duration(max(s.Rate, 1))

	stamp := func() string {
		return fmt.Sprintf("%6dms", now.Sub(start).Milliseconds())
	}
	send := func(m remote.Message) {
		switch m.Type {
		case remote.TypeDebug:
			fmt.Fprintf(w, "%s %-7s %s\n", stamp(), m.Kind, m.Message)
		case remote.TypeState:
			debug.Log("replay", "%s pressed=%v", m.ID, m.Pressed)
		}
	}
	sess := remote.NewSession(out, nil, nil, send,
		engine.WithRate(s.Rate),
		engine.WithClock(func() time.Time { return now }),
	)

	for i, st := range s.Steps {
		// step the clock a frame at a time so pending moves land on ticks
		target := now.Add(st.Wait)
		for now.Add(frame).Before(target) {
			now = now.Add(frame)
			sess.Tick(now)
		}
		now = target
		sess.Tick(now)

		if err := sess.Handle(st.Message); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, st.Type, err)
		}
	}

	now = now.Add(frame)
	sess.Tick(now)
	sess.Close()
	return nil
}
