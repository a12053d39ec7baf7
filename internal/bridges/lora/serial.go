package lora

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// Default transport settings, used when TransportOptions fields are zero.
const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 100 * time.Millisecond
)

// LineTransport is the line-level channel the controller talks through.
//
// Implementations carry whole text lines; framing (the trailing newline) is
// the transport's concern, not the caller's. Tests substitute an in-memory
// implementation.
type LineTransport interface {
	// WriteLine sends one line, appending the newline terminator.
	WriteLine(text string) error

	// PollLines drains whatever complete lines have arrived, waiting at
	// most budget for data. An empty slice with a nil error means nothing
	// arrived in time; an error means the transport itself failed.
	PollLines(budget time.Duration) ([]string, error)

	// Close releases the transport. Safe to call multiple times.
	Close() error
}

// TransportOptions configures a serial transport.
type TransportOptions struct {
	// Port is the serial device path (e.g., "/dev/ttyUSB0").
	Port string

	// BaudRate is the serial line speed. Default: 115200.
	BaudRate int

	// ReadTimeout bounds each individual read inside PollLines.
	// Default: 100ms.
	ReadTimeout time.Duration
}

// SerialTransport is a LineTransport over a physical serial port.
//
// Bytes can arrive in arbitrary fragments, so the transport keeps a partial
// line buffer between PollLines calls. A line is delivered only once its
// newline terminator has arrived.
type SerialTransport struct {
	port        serial.Port
	readTimeout time.Duration

	mu      sync.Mutex // guards partial and closed
	partial strings.Builder
	closed  bool
}

// OpenSerial opens the serial port and returns a transport over it.
//
// Returns an error wrapping ErrConnectionFailed if the port cannot be
// opened or configured.
func OpenSerial(opts TransportOptions) (*SerialTransport, error) {
	if opts.Port == "" {
		return nil, fmt.Errorf("%w: no port specified", ErrConnectionFailed)
	}
	if opts.BaudRate <= 0 {
		opts.BaudRate = DefaultBaudRate
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(opts.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrConnectionFailed, opts.Port, err)
	}

	if err := port.SetReadTimeout(opts.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: configuring %s: %v", ErrConnectionFailed, opts.Port, err)
	}

	return &SerialTransport{
		port:        port,
		readTimeout: opts.ReadTimeout,
	}, nil
}

// WriteLine sends one line to the radio module, appending the newline
// terminator. Returns an error wrapping ErrWriteFailed on I/O failure.
func (t *SerialTransport) WriteLine(text string) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return fmt.Errorf("%w: write", ErrClosed)
	}

	data := []byte(text + "\n")
	n, err := t.port.Write(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if n < len(data) {
		return fmt.Errorf("%w: short write (%d of %d bytes)", ErrWriteFailed, n, len(data))
	}
	return nil
}

// PollLines reads whatever has arrived on the port, waiting at most budget.
//
// Each underlying read blocks for up to the configured read timeout, so the
// call can overshoot budget by at most one timeout. Incomplete trailing data
// is retained and completed by a later poll. A timeout with no data is not
// an error.
func (t *SerialTransport) PollLines(budget time.Duration) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, fmt.Errorf("%w: poll", ErrClosed)
	}

	var lines []string
	deadline := time.Now().Add(budget)
	buf := make([]byte, 256)

	for {
		n, err := t.port.Read(buf)
		if err != nil {
			return lines, fmt.Errorf("lora: serial read: %w", err)
		}

		if n > 0 {
			t.partial.Write(buf[:n])
			lines = append(lines, t.drainCompleteLines()...)
		}

		// A zero-byte read means the port timed out with nothing buffered.
		if n == 0 && time.Now().After(deadline) {
			return lines, nil
		}
		if time.Now().After(deadline) {
			return lines, nil
		}
	}
}

// drainCompleteLines extracts finished lines from the partial buffer,
// leaving any unterminated tail in place. Caller holds t.mu.
func (t *SerialTransport) drainCompleteLines() []string {
	data := t.partial.String()
	if !strings.Contains(data, "\n") {
		return nil
	}

	var lines []string
	segments := strings.Split(data, "\n")

	// The last segment has no terminator yet; it stays buffered.
	for _, seg := range segments[:len(segments)-1] {
		line := strings.TrimRight(seg, "\r")
		if line != "" {
			lines = append(lines, line)
		}
	}

	t.partial.Reset()
	t.partial.WriteString(segments[len(segments)-1])
	return lines
}

// Close releases the serial port. Safe to call multiple times.
func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	if err := t.port.Close(); err != nil {
		return fmt.Errorf("lora: closing port: %w", err)
	}
	return nil
}
