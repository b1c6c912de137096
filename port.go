package serial2csv

import (
	"io"
	"time"
)

// Port is a raw byte source on an opened serial device.
//
// Read waits at most Config.ReadTimeout for data and returns 0, nil when
// nothing arrived in that window. Once Close has been called, Read returns
// ErrClosed. Close may be called from another goroutine to wake a blocked Read.
type Port interface {
	io.ReadCloser
}

// Config holds configuration parameters for opening a serial port.
// Line settings are fixed at 8 data bits, no parity, 1 stop bit, no flow
// control, raw mode.
type Config struct {
	Device      string
	BaudRate    int           // default 115200
	ReadTimeout time.Duration // default 100ms; negative blocks until data or Close
}

const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 100 * time.Millisecond
)

func (c Config) withDefaults() Config {
	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	return c
}
