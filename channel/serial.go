package channel

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
)

// SerialChannel is a Channel over a local serial port.
type SerialChannel struct {
	name   string
	port   serial.Port
	closed atomic.Bool
}

var _ Channel = (*SerialChannel)(nil)

// OpenSerial opens the serial device name with 8 data bits, no parity and one
// stop bit, and sets its read timeout.
func OpenSerial(name string, baudRate int, timeout time.Duration) (*SerialChannel, error) {
	if baudRate <= 0 {
		return nil, fmt.Errorf("channel: invalid baud rate %d", baudRate)
	}

	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("channel: failed to open %s: %w", name, err)
	}

	if err := port.SetReadTimeout(timeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("channel: failed to set read timeout on %s: %w", name, err)
	}

	return &SerialChannel{name: name, port: port}, nil
}

// Name returns the device name the channel was opened with.
func (c *SerialChannel) Name() string {
	return c.name
}

func (c *SerialChannel) Read(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}

	n, err := c.port.Read(p)
	if err != nil {
		return n, c.mapError(err)
	}

	return n, nil
}

func (c *SerialChannel) Write(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}

	n, err := c.port.Write(p)
	if err != nil {
		return n, c.mapError(err)
	}

	return n, nil
}

func (c *SerialChannel) ResetInputBuffer() error {
	if c.closed.Load() {
		return ErrClosed
	}

	return c.mapError(c.port.ResetInputBuffer())
}

// Close closes the port. Closing twice is a no-op.
func (c *SerialChannel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	return c.mapError(c.port.Close())
}

func (c *SerialChannel) mapError(err error) error {
	if err == nil {
		return nil
	}

	var portErr *serial.PortError
	if errors.As(err, &portErr) && portErr.Code() == serial.PortClosed {
		return fmt.Errorf("%w: %s", ErrClosed, c.name)
	}

	return fmt.Errorf("channel: %s: %w", c.name, err)
}

// Ports lists the serial devices present on the host.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("channel: failed to list serial ports: %w", err)
	}

	return ports, nil
}
