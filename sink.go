package serial2csv

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"sync"
)

// SinkOptions selects how the output file is opened and how hard each
// line is pushed to disk.
type SinkOptions struct {
	// Append keeps an existing file and adds to its end. The default
	// truncates the file on open.
	Append bool
	// Sync fsyncs the file after every line.
	Sync bool
}

// Sink is an append-only CSV file holding one value per line.
type Sink struct {
	f         *os.File
	sync      bool
	line      []byte
	closeOnce sync.Once
	closeErr  error
}

// CreateSink opens path for writing. Unless opts.Append is set an existing
// file is truncated.
func CreateSink(path string, opts SinkOptions) (*Sink, error) {
	flags := os.O_WRONLY | os.O_CREATE
	if opts.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSinkOpen, err)
	}
	return &Sink{f: f, sync: opts.Sync, line: make([]byte, 0, 64)}, nil
}

// Name returns the path the sink writes to.
func (s *Sink) Name() string { return s.f.Name() }

// WriteValue appends v as a fixed point line with six fraction digits,
// e.g. "123.456000\n". The line reaches the file before WriteValue returns.
func (s *Sink) WriteValue(v float64) error {
	s.line = FormatValue(s.line[:0], v)
	if _, err := s.f.Write(s.line); err != nil {
		return fmt.Errorf("write %s: %w", s.f.Name(), err)
	}
	if s.sync {
		if err := s.f.Sync(); err != nil {
			return fmt.Errorf("sync %s: %w", s.f.Name(), err)
		}
	}
	return nil
}

// Close closes the file. Safe to call multiple times.
func (s *Sink) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.f.Close()
	})
	return s.closeErr
}

// FormatValue appends the CSV line for v to dst. Infinities and NaN are
// spelled inf, -inf and nan.
func FormatValue(dst []byte, v float64) []byte {
	switch {
	case math.IsNaN(v):
		dst = append(dst, "nan"...)
	case math.IsInf(v, 1):
		dst = append(dst, "inf"...)
	case math.IsInf(v, -1):
		dst = append(dst, "-inf"...)
	default:
		dst = strconv.AppendFloat(dst, v, 'f', 6, 64)
	}
	return append(dst, '\n')
}
