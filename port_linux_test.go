//go:build linux

package serial2csv

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/require"
)

func openPTY(t *testing.T, timeout time.Duration) (*os.File, Port) {
	t.Helper()
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	port, err := Open(Config{
		Device:      slave.Name(),
		BaudRate:    115200,
		ReadTimeout: timeout,
	})
	require.NoError(t, err)
	t.Cleanup(func() { port.Close() })
	return master, port
}

// readUntil reads from port until want bytes have arrived or the deadline passes.
func readUntil(t *testing.T, port Port, want int, deadline time.Duration) string {
	t.Helper()
	buf := make([]byte, 256)
	var got []byte
	stop := time.Now().Add(deadline)
	for len(got) < want && time.Now().Before(stop) {
		n, err := port.Read(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}
	return string(got)
}

func TestPort_BasicRead(t *testing.T) {
	master, port := openPTY(t, 20*time.Millisecond)

	_, err := master.Write([]byte("2030\n"))
	require.NoError(t, err)

	require.Equal(t, "2030\n", readUntil(t, port, 5, 500*time.Millisecond))
}

func TestPort_RawModeKeepsBytes(t *testing.T) {
	master, port := openPTY(t, 20*time.Millisecond)

	// No CR/LF translation and no special handling of control characters.
	_, err := master.Write([]byte("1\r\n\x03\x1a2\n"))
	require.NoError(t, err)

	require.Equal(t, "1\r\n\x03\x1a2\n", readUntil(t, port, 7, 500*time.Millisecond))
}

func TestPort_ReadTimeoutReturnsNothing(t *testing.T) {
	_, port := openPTY(t, 20*time.Millisecond)

	start := time.Now()
	n, err := port.Read(make([]byte, 16))
	require.NoError(t, err)
	require.Zero(t, n)
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestPort_Killability(t *testing.T) {
	_, port := openPTY(t, -1)

	done := make(chan error, 1)
	go func() {
		_, err := port.Read(make([]byte, 16))
		done <- err
	}()

	// Give the goroutine a chance to block
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, port.Close())

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for Read to return after Close")
	}

	// Should be a no-op due to closeOnce
	require.NoError(t, port.Close())
	_, err := port.Read(make([]byte, 16))
	require.ErrorIs(t, err, ErrClosed)
}

func TestPort_ErrorPropagation(t *testing.T) {
	master, port := openPTY(t, 20*time.Millisecond)

	// Simulate device disconnect by closing master
	require.NoError(t, master.Close())

	buf := make([]byte, 16)
	stop := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(stop) {
		_, err := port.Read(buf)
		if err != nil {
			require.ErrorIs(t, err, ErrRead)
			return
		}
	}
	t.Fatal("timeout waiting for error after device disconnect")
}

func TestOpen_MissingDevice(t *testing.T) {
	_, err := Open(Config{Device: filepath.Join(t.TempDir(), "ttyNOPE")})
	require.ErrorIs(t, err, ErrDeviceOpen)
}

func TestOpen_NotATerminal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := Open(Config{Device: path})
	require.ErrorIs(t, err, ErrDeviceOpen)
}

func TestLoop_OverPTY(t *testing.T) {
	master, port := openPTY(t, 20*time.Millisecond)
	rec := make(chan float64, 4)
	sink := writerFunc(func(v float64) error {
		rec <- v
		return nil
	})
	loop := NewLoop(port, NewReassembler(DefaultBufferCapacity), NewProcessor(Transform{Scale: 1.5, Offset: 2024}, false), sink, LoopOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	_, err := master.Write([]byte("2030\n20"))
	require.NoError(t, err)
	_, err = master.Write([]byte("26\n"))
	require.NoError(t, err)

	for _, want := range []float64{9, 3} {
		select {
		case v := <-rec:
			require.Equal(t, want, v)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for value")
		}
	}

	require.NoError(t, port.Close())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for Run to return after Close")
	}
}
