package serial2csv

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// DefaultChunkSize is the most bytes requested from the source per read.
	DefaultChunkSize = 256
	// DefaultPause is the wait between reads that returned no data.
	DefaultPause = 10 * time.Millisecond
)

// ValueWriter receives one output value per record. *Sink implements it.
type ValueWriter interface {
	WriteValue(v float64) error
}

// LoopOptions tunes a Loop. Zero values select the defaults.
type LoopOptions struct {
	ChunkSize int
	Pause     time.Duration
	Logger    *zerolog.Logger
}

// Stats is a snapshot of the loop counters.
type Stats struct {
	BytesRead    uint64 `json:"bytes_read"`
	Records      uint64 `json:"records"`
	Written      uint64 `json:"written"`
	Overflows    uint64 `json:"overflows"`
	DroppedBytes uint64 `json:"dropped_bytes"`
	ReadErrors   uint64 `json:"read_errors"`
	ParseErrors  uint64 `json:"parse_errors"`
}

type counters struct {
	bytesRead, records, written atomic.Uint64
	overflows, dropped          atomic.Uint64
	readErrors, parseErrors     atomic.Uint64
}

// Loop moves data from a byte source through a Reassembler and a Processor
// into a ValueWriter until its context is cancelled.
//
// Every value is written before the next record is parsed. Failed reads are
// counted, logged and retried after a pause; they never end the loop.
type Loop struct {
	src   io.Reader
	sink  ValueWriter
	lines *Reassembler
	proc  *Processor

	chunk []byte
	pause time.Duration
	log   zerolog.Logger

	stats      counters
	readErrLog rate.Sometimes
}

// NewLoop wires src, lines, proc and sink together. The loop installs its
// own OnOverflow hook on lines, calling any hook already present after it.
func NewLoop(src io.Reader, lines *Reassembler, proc *Processor, sink ValueWriter, opts LoopOptions) *Loop {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Pause <= 0 {
		opts.Pause = DefaultPause
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	l := &Loop{
		src:        src,
		sink:       sink,
		lines:      lines,
		proc:       proc,
		chunk:      make([]byte, opts.ChunkSize),
		pause:      opts.Pause,
		log:        logger,
		readErrLog: rate.Sometimes{First: 3, Interval: time.Second},
	}
	next := lines.OnOverflow
	lines.OnOverflow = func(o Overflow) {
		l.log.Warn().
			Err(ErrBufferOverflow).
			Int("discarded", o.Discarded).
			Int("capacity", lines.Capacity()).
			Msg("record too long, skipping to next line")
		if next != nil {
			next(o)
		}
	}
	return l
}

// Run reads until ctx is cancelled or the source reports ErrClosed or
// io.EOF, and returns nil in those cases. The only error it returns is a
// failed write to the sink.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := l.src.Read(l.chunk)
		if n > 0 {
			l.stats.bytesRead.Add(uint64(n))
			if werr := l.process(l.chunk[:n]); werr != nil {
				return werr
			}
		}
		switch {
		case err == nil && n > 0:
			continue
		case errors.Is(err, ErrClosed), errors.Is(err, io.EOF):
			l.log.Debug().Err(err).Msg("source finished")
			return nil
		case err != nil:
			total := l.stats.readErrors.Add(1)
			l.readErrLog.Do(func() {
				l.log.Warn().Err(err).Uint64("read_errors", total).Msg("read failed, retrying")
			})
		}
		if !sleepWithContext(ctx, l.pause) {
			return nil
		}
	}
}

func (l *Loop) process(chunk []byte) error {
	var werr error
	l.lines.Feed(chunk, func(record []byte) {
		if werr != nil {
			return
		}
		l.stats.records.Add(1)
		v, err := l.proc.Process(record)
		if err != nil {
			l.stats.parseErrors.Add(1)
			l.log.Warn().Err(err).Msg("record skipped")
			return
		}
		if err := l.sink.WriteValue(v); err != nil {
			werr = err
			return
		}
		l.stats.written.Add(1)
		l.log.Debug().Float64("value", v).Msg("processed value")
	})
	l.stats.overflows.Store(l.lines.Overflows())
	l.stats.dropped.Store(l.lines.Dropped())
	return werr
}

// Stats returns the current counters. It is safe to call while Run is active.
func (l *Loop) Stats() Stats {
	return Stats{
		BytesRead:    l.stats.bytesRead.Load(),
		Records:      l.stats.records.Load(),
		Written:      l.stats.written.Load(),
		Overflows:    l.stats.overflows.Load(),
		DroppedBytes: l.stats.dropped.Load(),
		ReadErrors:   l.stats.readErrors.Load(),
		ParseErrors:  l.stats.parseErrors.Load(),
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
