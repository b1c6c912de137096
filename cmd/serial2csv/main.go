// Command serial2csv reads newline terminated numbers from a serial device,
// applies (value - offset) * scale to each one and appends the result to a
// CSV file, one value per line, flushed as it is written.
//
//	serial2csv -device /dev/ttyUSB0 -output data.csv -scale 1.5 -offset 2024
//
// Every flag can also be set through a SERIAL2CSV_* environment variable;
// flags win. The program runs until interrupted.
//
// Exit codes: 0 after an interrupt, 1 when the device or the output file
// cannot be opened or written, 2 on invalid configuration.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	serial2csv "github.com/luhtfiimanal/serial2csv"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

// openPort is swapped out in tests.
var openPort = serial2csv.Open

func main() {
	os.Exit(run(os.Args[1:], os.Getenv, os.Stdout, os.Stderr))
}

func run(args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, getenv, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "serial2csv: %v\n", err)
		return exitUsage
	}
	logger := newLogger(stderr, opts.LogLevel)

	if opts.List {
		return listPorts(stdout, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, opts, logger)
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}

func listPorts(w io.Writer, logger zerolog.Logger) int {
	ports, err := serial2csv.ListPorts()
	if err != nil {
		logger.Error().Err(err).Msg("failed to get serial ports")
		return exitFailed
	}
	if len(ports) == 0 {
		logger.Warn().Msg("no serial ports found")
	}
	for _, p := range ports {
		fmt.Fprintln(w, p)
	}
	return exitOK
}

// serve owns the device and the output file for the lifetime of the run.
// The device is opened first and released last.
func serve(ctx context.Context, opts options, logger zerolog.Logger) int {
	logger = logger.With().Str("device", opts.Device).Logger()

	port, err := openPort(opts.portConfig())
	if err != nil {
		logger.Error().Err(err).Msg("cannot open serial device")
		return exitFailed
	}
	defer func() {
		if err := port.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing serial device")
		}
	}()
	logger.Info().Int("baud", opts.Baud).Msg("serial port opened")

	sink, err := serial2csv.CreateSink(opts.Output, serial2csv.SinkOptions{Append: opts.Append, Sync: opts.Fsync})
	if err != nil {
		logger.Error().Err(err).Str("output", opts.Output).Msg("cannot open output file")
		return exitFailed
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing output file")
		}
	}()

	// Cancellation closes the port so a read parked in poll returns at once.
	stopClose := context.AfterFunc(ctx, func() { port.Close() })
	defer stopClose()

	loop := serial2csv.NewLoop(
		port,
		serial2csv.NewReassembler(opts.Buffer),
		serial2csv.NewProcessor(opts.transform(), opts.Strict),
		sink,
		serial2csv.LoopOptions{ChunkSize: opts.Chunk, Pause: opts.Pause, Logger: &logger},
	)

	logger.Info().
		Str("output", sink.Name()).
		Float64("scale", opts.Scale).
		Float64("offset", opts.Offset).
		Bool("strict", opts.Strict).
		Msg("recording, press CTRL+C to terminate")

	err = loop.Run(ctx)
	st := loop.Stats()
	ev := logger.Info()
	if err != nil {
		ev = logger.Error().Err(err)
	}
	ev.Uint64("bytes_read", st.BytesRead).
		Uint64("records", st.Records).
		Uint64("written", st.Written).
		Uint64("overflows", st.Overflows).
		Uint64("dropped_bytes", st.DroppedBytes).
		Uint64("read_errors", st.ReadErrors).
		Uint64("parse_errors", st.ParseErrors).
		Msg("stopped")
	if err != nil {
		return exitFailed
	}
	return exitOK
}
