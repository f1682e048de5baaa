package modem

import (
	"context"
	"fmt"
	"io"

	"go.bug.st/serial"
)

// Transport is an established, bidirectional byte stream to a modem.
// Implementations include serial ports, TCP connections to emulators, and
// in-memory fakes used in tests.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a Transport to a modem. It abstracts how the connection is
// created and is used during driver construction only.
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

// SerialDialer opens a modem over a serial port.
type SerialDialer struct {
	// PortName is the OS device path (e.g. "/dev/ttyUSB0").
	PortName string

	// BaudRate configures the port speed; 8N1 framing is assumed.
	BaudRate int
}

// Dial opens the serial port. serial.Open does not accept a context, so the
// open races against ctx cancellation; a port that opens after cancellation
// is closed to avoid leaking the descriptor.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if d.PortName == "" {
		return nil, fmt.Errorf("serial port name is required")
	}

	mode := &serial.Mode{BaudRate: d.BaudRate}

	type result struct {
		port serial.Port
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		port, err := serial.Open(d.PortName, mode)
		ch <- result{port: port, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			r := <-ch
			if r.err == nil && r.port != nil {
				_ = r.port.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("open serial port %q: %w", d.PortName, r.err)
		}
		return r.port, nil
	}
}
