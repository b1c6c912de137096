package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	serial2csv "github.com/luhtfiimanal/serial2csv"
)

const envPrefix = "SERIAL2CSV_"

type options struct {
	Device   string        `validate:"required"`
	Baud     int           `validate:"oneof=9600 19200 38400 57600 115200 230400 460800 921600"`
	Output   string        `validate:"required"`
	Scale    float64       `validate:"finite"`
	Offset   float64       `validate:"finite"`
	Buffer   int           `validate:"min=2,max=1048576"`
	Chunk    int           `validate:"min=1,max=65536"`
	Pause    time.Duration `validate:"min=1ms,max=10s"`
	Strict   bool
	Append   bool
	Fsync    bool
	LogLevel string `validate:"oneof=trace debug info warn error"`
	List     bool
}

func defaultOptions() options {
	device := "/dev/ttyUSB0"
	if runtime.GOOS == "windows" {
		device = "COM4"
	}
	return options{
		Device:   device,
		Baud:     serial2csv.DefaultBaudRate,
		Output:   "data.csv",
		Scale:    1.5,
		Offset:   2024,
		Buffer:   serial2csv.DefaultBufferCapacity,
		Chunk:    serial2csv.DefaultChunkSize,
		Pause:    serial2csv.DefaultPause,
		LogLevel: "info",
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	})
	return v
}

// parseArgs builds options from defaults, then SERIAL2CSV_* environment
// variables, then command line flags, and validates the result.
func parseArgs(args []string, getenv func(string) string, out io.Writer) (options, error) {
	opts := defaultOptions()
	if err := applyEnv(&opts, getenv); err != nil {
		return opts, err
	}

	fs := flag.NewFlagSet("serial2csv", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&opts.Device, "device", opts.Device, "serial device to read from")
	fs.IntVar(&opts.Baud, "baud", opts.Baud, "baud rate")
	fs.StringVar(&opts.Output, "output", opts.Output, "CSV file to write")
	fs.Float64Var(&opts.Scale, "scale", opts.Scale, "multiplier applied after the offset")
	fs.Float64Var(&opts.Offset, "offset", opts.Offset, "subtracted from every value before scaling")
	fs.IntVar(&opts.Buffer, "buffer", opts.Buffer, "line buffer size; longest record is one less")
	fs.IntVar(&opts.Chunk, "chunk", opts.Chunk, "bytes requested per read")
	fs.DurationVar(&opts.Pause, "pause", opts.Pause, "wait between reads that returned nothing")
	fs.BoolVar(&opts.Strict, "strict", opts.Strict, "skip records that are not numbers instead of writing 0")
	fs.BoolVar(&opts.Append, "append", opts.Append, "append to the output file instead of truncating it")
	fs.BoolVar(&opts.Fsync, "fsync", opts.Fsync, "fsync the output file after every line")
	fs.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "trace, debug, info, warn or error")
	fs.BoolVar(&opts.List, "list", false, "list serial ports and exit")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	opts.LogLevel = strings.ToLower(strings.TrimSpace(opts.LogLevel))
	if opts.List {
		return opts, nil
	}
	if err := validate.Struct(opts); err != nil {
		return opts, describe(err)
	}
	return opts, nil
}

func applyEnv(opts *options, getenv func(string) string) error {
	var errs []error
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(getenv(envPrefix + name)); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := strings.TrimSpace(getenv(envPrefix + name)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	float := func(name string, dst *float64) {
		if v := strings.TrimSpace(getenv(envPrefix + name)); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(name string, dst *bool) {
		if v := strings.TrimSpace(getenv(envPrefix + name)); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("DEVICE", &opts.Device)
	num("BAUD", &opts.Baud)
	str("OUTPUT", &opts.Output)
	float("SCALE", &opts.Scale)
	float("OFFSET", &opts.Offset)
	num("BUFFER", &opts.Buffer)
	num("CHUNK", &opts.Chunk)
	if v := strings.TrimSpace(getenv(envPrefix + "PAUSE")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sPAUSE: %w", envPrefix, err))
		} else {
			opts.Pause = d
		}
	}
	boolean("STRICT", &opts.Strict)
	boolean("APPEND", &opts.Append)
	boolean("FSYNC", &opts.Fsync)
	str("LOG_LEVEL", &opts.LogLevel)
	return errors.Join(errs...)
}

// describe turns validator output into one line per bad field.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := strings.ToLower(fe.Field())
		if name == "loglevel" {
			name = "log-level"
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("-%s: %v fails %s=%s", name, fe.Value(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("-%s: %v fails %s", name, fe.Value(), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func (o options) portConfig() serial2csv.Config {
	return serial2csv.Config{Device: o.Device, BaudRate: o.Baud}
}

func (o options) transform() serial2csv.Transform {
	return serial2csv.Transform{Scale: o.Scale, Offset: o.Offset}
}
