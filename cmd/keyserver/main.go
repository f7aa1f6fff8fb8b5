// Command keyserver runs the remote touch surface without the terminal UI.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-midikeys/config"
	"go-midikeys/debug"
	"go-midikeys/midi"
	"go-midikeys/remote"
)

func main() {
	configPath := flag.String("config", "", "config file (default ~/.config/go-midikeys/config.json)")
	debugLog := flag.Bool("debug", false, "write a debug log")
	addr := flag.String("addr", "", "listen address (default from config, 127.0.0.1:8765)")
	port := flag.String("port", "", "preferred MIDI output name or prefix")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *port != "" {
		cfg.Output.PortName = *port
	}
	if cfg.Debug.Enabled || *debugLog {
		if err := debug.Enable(cfg.Debug.LogPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer debug.Disable()
	}

	// no console here: events go to stdout and the debug log
	sink := debug.Multi{debug.FileSink, debug.SinkFunc(func(kind debug.Kind, message string) {
		fmt.Printf("%s %-7s %s\n", time.Now().Format("15:04:05.000"), kind, message)
	})}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lister, err := midi.NewDriverLister()
	if err != nil {
		debug.Warn("keyserver", "%v", err)
	}
	deviceMgr := midi.NewDeviceManager(lister, sink, cfg.Output.PortName)
	go deviceMgr.Run(ctx)

	transport := midi.NewTransport(deviceMgr, sink)
	srv := remote.NewServer(transport, deviceMgr, sink, cfg.Touch.RateHz, cfg.EngineOptions()...)
	srv.AllowOrigins(cfg.Server.Origins...)
	if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
