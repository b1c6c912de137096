package serial2csv

import "errors"

var (
	// ErrDeviceOpen is returned when the serial device cannot be opened or configured.
	ErrDeviceOpen = errors.New("device open failed")

	// ErrSinkOpen is returned when the output file cannot be created.
	ErrSinkOpen = errors.New("sink open failed")

	// ErrRead marks a single failed read on the device. The run loop logs it and keeps going.
	ErrRead = errors.New("transient read error")

	// ErrBufferOverflow marks a record that did not fit in the line buffer.
	ErrBufferOverflow = errors.New("buffer overflow, discarding data")

	// ErrParseDegradation is returned in strict mode for record text that is not a number.
	ErrParseDegradation = errors.New("record is not a number")

	// ErrClosed is returned by Read after the port has been closed.
	ErrClosed = errors.New("serial port closed")
)
