package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"go-midikeys/config"
	"go-midikeys/debug"
	"go-midikeys/engine"
	"go-midikeys/midi"
	"go-midikeys/remote"
	"go-midikeys/theme"
	"go-midikeys/tui"
)

func main() {
	configPath := flag.String("config", "", "config file (default ~/.config/go-midikeys/config.json)")
	debugLog := flag.Bool("debug", false, "write a debug log to ~/.config/go-midikeys/debug.log")
	addr := flag.String("addr", "", "also serve the remote touch surface on this address (host:port)")
	port := flag.String("port", "", "preferred MIDI output name or prefix")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Output.PortName = *port
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	if cfg.Debug.Enabled || *debugLog {
		if err := debug.Enable(cfg.Debug.LogPath); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer debug.Disable()
	}

	palette, err := theme.LoadOrDefault(cfg.UI.Palette)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	th := theme.New(palette)

	console := debug.NewConsole(cfg.Debug.ConsoleSize)
	sink := debug.Multi{console, debug.FileSink}

	lister, err := midi.NewDriverLister()
	if err != nil {
		debug.Warn("main", "%v", err)
	}
	deviceMgr := midi.NewDeviceManager(lister, sink, cfg.Output.PortName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go deviceMgr.Run(ctx)

	transport := midi.NewTransport(deviceMgr, sink)
	eng := engine.New(nil, transport, append(cfg.EngineOptions(), engine.WithSink(sink))...)

	// the remote surface only runs when asked for on the command line
	if *addr != "" {
		srv := remote.NewServer(transport, deviceMgr, sink, cfg.Touch.RateHz, cfg.EngineOptions()...)
		srv.AllowOrigins(cfg.Server.Origins...)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
				sink.Emit(debug.KindError, err.Error())
			}
		}()
	}

	m := tui.NewModel(eng, deviceMgr, console, sink, th, tui.Options{
		Layout:      cfg.KeyLayout(),
		KeyWidth:    cfg.UI.KeyWidth,
		ShowNumbers: cfg.UI.ShowNumbers,
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
