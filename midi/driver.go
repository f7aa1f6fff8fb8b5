package midi

import (
	"errors"
	"fmt"

	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// ErrNoDriver is returned when the platform has no usable MIDI backend.
var ErrNoDriver = errors.New("MIDI is not supported on this platform")

// OutPort is the part of a gomidi drivers.Out the manager needs.
type OutPort interface {
	Open() error
	Close() error
	IsOpen() bool
	String() string
	Send(data []byte) error
}

// Lister enumerates output ports.
type Lister interface {
	Outs() ([]OutPort, error)
	Close() error
}

type rtmidiLister struct {
	drv *rtmididrv.Driver
}

// NewDriverLister opens the rtmidi driver.
func NewDriverLister() (Lister, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDriver, err)
	}
	return &rtmidiLister{drv: drv}, nil
}

func (l *rtmidiLister) Outs() ([]OutPort, error) {
	outs, err := l.drv.Outs()
	if err != nil {
		return nil, err
	}
	ports := make([]OutPort, 0, len(outs))
	for _, o := range outs {
		ports = append(ports, o)
	}
	return ports, nil
}

func (l *rtmidiLister) Close() error {
	return l.drv.Close()
}
