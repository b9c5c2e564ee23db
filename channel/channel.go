// Package channel provides the byte transports a protocol session talks through:
// a local RS-485 serial port or a TCP serial device server.
//
// All transports follow the read-timeout contract of go.bug.st/serial: Read
// blocks for at most the configured timeout and returns 0, nil when it expires
// without data.
package channel

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// TCPScheme prefixes port names that address a TCP serial device server,
// e.g. "tcp://10.0.0.5:4001".
const TCPScheme = "tcp://"

// DefaultTimeout is the read timeout used when none is given.
const DefaultTimeout = time.Second

var (
	// ErrTimeout reports that a unit did not answer within the read timeout.
	ErrTimeout = errors.New("channel: read timeout")
	// ErrClosed reports an operation on a closed channel.
	ErrClosed = errors.New("channel: closed")
)

// Channel is a half-duplex byte transport.
type Channel interface {
	io.ReadWriteCloser
	// ResetInputBuffer discards received bytes that have not been read yet.
	ResetInputBuffer() error
}

// Open opens the transport named by port. Names starting with TCPScheme dial
// a TCP serial device server, anything else is opened as a serial device at
// the given baud rate (8N1).
func Open(port string, baudRate int, timeout time.Duration) (Channel, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if addr, ok := strings.CutPrefix(port, TCPScheme); ok {
		conn, err := net.DialTimeout("tcp", addr, timeout)
		if err != nil {
			return nil, fmt.Errorf("channel: failed to dial %s: %w", addr, err)
		}

		return NewConnChannel(conn, timeout), nil
	}

	ch, err := OpenSerial(port, baudRate, timeout)
	if err != nil {
		return nil, err
	}

	return ch, nil
}
