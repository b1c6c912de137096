//go:build !linux

package serial2csv

import (
	"errors"
	"fmt"
	"sync/atomic"

	"go.bug.st/serial"
)

type bugstPort struct {
	port   serial.Port
	closed atomic.Bool
}

// Open opens the device named in cfg and configures it for 8N1 operation
// at the requested baud rate.
func Open(cfg Config) (Port, error) {
	cfg = cfg.withDefaults()
	p, err := serial.Open(cfg.Device, &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrDeviceOpen, cfg.Device, err)
	}
	timeout := cfg.ReadTimeout
	if timeout < 0 {
		timeout = serial.NoTimeout
	}
	if err := p.SetReadTimeout(timeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("%w: %s: set read timeout: %w", ErrDeviceOpen, cfg.Device, err)
	}
	return &bugstPort{port: p}, nil
}

func (p *bugstPort) Read(buf []byte) (int, error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}
	n, err := p.port.Read(buf)
	if err != nil {
		var perr *serial.PortError
		if p.closed.Load() || (errors.As(err, &perr) && perr.Code() == serial.PortClosed) {
			return 0, ErrClosed
		}
		return 0, fmt.Errorf("%w: %w", ErrRead, err)
	}
	return n, nil
}

func (p *bugstPort) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.port.Close()
}
