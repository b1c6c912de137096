//go:build linux

package serial2csv

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// linuxPort reads from a Linux serial device through raw syscalls.
// A self-pipe lets Close wake a Read that is parked in poll.
type linuxPort struct {
	fd        int
	done      chan struct{}
	closeOnce sync.Once
	timeout   int // poll timeout in ms, -1 blocks
	pipeR     int
	pipeW     int
}

// Open opens the device named in cfg and configures it for raw 8N1
// operation at the requested baud rate.
func Open(cfg Config) (Port, error) {
	cfg = cfg.withDefaults()
	fd, err := unix.Open(cfg.Device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrDeviceOpen, cfg.Device, err)
	}
	if err := configure(fd, cfg.BaudRate); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: %s: %w", ErrDeviceOpen, cfg.Device, err)
	}

	// Turn back into blocking mode now that config is done
	if err := unix.SetNonblock(fd, false); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: %s: set blocking: %w", ErrDeviceOpen, cfg.Device, err)
	}

	pipeFds := make([]int, 2)
	if err := unix.Pipe2(pipeFds, unix.O_CLOEXEC); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: pipe: %w", ErrDeviceOpen, err)
	}

	timeout := -1
	if cfg.ReadTimeout > 0 {
		timeout = int((cfg.ReadTimeout + time.Millisecond - 1) / time.Millisecond)
	}
	return &linuxPort{
		fd:      fd,
		done:    make(chan struct{}),
		timeout: timeout,
		pipeR:   pipeFds[0],
		pipeW:   pipeFds[1],
	}, nil
}

func configure(fd, baudRate int) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}

	// Raw mode
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL |
		unix.IXON | unix.IXOFF | unix.IXANY
	termios.Oflag &^= unix.OPOST | unix.ONLCR
	termios.Lflag &^= unix.ECHO | unix.ECHOE | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN

	// 8N1, no hardware flow control, receiver on, modem lines ignored
	termios.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CRTSCTS
	termios.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL

	baud := baudToUnix(baudRate)
	termios.Cflag &^= unix.CBAUD
	termios.Cflag |= baud
	termios.Ispeed = baud
	termios.Ospeed = baud

	// poll decides when data is ready; a read then returns what is there.
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return fmt.Errorf("set termios: %w", err)
	}
	return nil
}

// Read waits up to the configured timeout for data and copies it into buf.
func (p *linuxPort) Read(buf []byte) (int, error) {
	if p.closed() {
		return 0, ErrClosed
	}
	pfd := []unix.PollFd{
		{Fd: int32(p.fd), Events: unix.POLLIN},
		{Fd: int32(p.pipeR), Events: unix.POLLIN},
	}
	if _, err := unix.Poll(pfd, p.timeout); err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: poll: %w", ErrRead, err)
	}
	if p.closed() || pfd[1].Revents&unix.POLLIN != 0 {
		return 0, ErrClosed
	}
	if pfd[0].Revents == 0 {
		return 0, nil
	}
	n, err := unix.Read(p.fd, buf)
	if err != nil {
		if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %w", ErrRead, err)
	}
	return n, nil
}

func (p *linuxPort) closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Close releases the device and wakes a pending Read.
// Safe to call multiple times; subsequent calls are no-ops.
func (p *linuxPort) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		// Wake up poll using self-pipe
		unix.Write(p.pipeW, []byte{1})
		err = unix.Close(p.fd)
		unix.Close(p.pipeR)
		unix.Close(p.pipeW)
	})
	return err
}

func baudToUnix(baud int) uint32 {
	switch baud {
	case 9600:
		return unix.B9600
	case 19200:
		return unix.B19200
	case 38400:
		return unix.B38400
	case 57600:
		return unix.B57600
	case 115200:
		return unix.B115200
	case 230400:
		return unix.B230400
	case 460800:
		return unix.B460800
	case 921600:
		return unix.B921600
	default:
		return unix.B115200 // fallback
	}
}
