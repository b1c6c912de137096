// Package serial2csv records a serial device that prints one number per
// line into a CSV file.
//
// The pieces are usable on their own:
//   - Port is the byte source. On Linux it is a raw termios device read
//     through poll with a short timeout; elsewhere it is backed by
//     go.bug.st/serial. Ports are always 8N1 without flow control.
//   - Reassembler turns arbitrary read chunks into newline terminated
//     records held in a fixed size buffer. Records that do not fit are
//     dropped whole and reported through OnOverflow.
//   - Processor parses a record and applies a Transform,
//     (value - Offset) * Scale. Parsing is permissive by default: the
//     leading number is used and text without one reads as 0.
//   - Sink appends each value as a "%f" formatted line and flushes it.
//   - Loop drives all of the above until its context is cancelled.
//
// Example usage:
//
//	port, err := serial2csv.Open(serial2csv.Config{Device: "/dev/ttyUSB0"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	sink, err := serial2csv.CreateSink("data.csv", serial2csv.SinkOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sink.Close()
//
//	loop := serial2csv.NewLoop(port,
//	    serial2csv.NewReassembler(serial2csv.DefaultBufferCapacity),
//	    serial2csv.NewProcessor(serial2csv.Transform{Scale: 1.5, Offset: 2024}, false),
//	    sink, serial2csv.LoopOptions{})
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	if err := loop.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package serial2csv
