package channel

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync/atomic"
	"time"
)

// drainWindow bounds how long ResetInputBuffer waits for stale bytes.
const drainWindow = 2 * time.Millisecond

// ConnChannel adapts a net.Conn, typically a TCP serial device server, to the
// Channel read-timeout contract.
type ConnChannel struct {
	conn    net.Conn
	timeout time.Duration
	closed  atomic.Bool
}

var _ Channel = (*ConnChannel)(nil)

// NewConnChannel wraps conn. Every Read waits at most timeout for data.
func NewConnChannel(conn net.Conn, timeout time.Duration) *ConnChannel {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &ConnChannel{conn: conn, timeout: timeout}
}

func (c *ConnChannel) Read(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, c.mapError(err)
	}

	n, err := c.conn.Read(p)
	if err != nil {
		if isTimeout(err) {
			return n, nil
		}

		return n, c.mapError(err)
	}

	return n, nil
}

func (c *ConnChannel) Write(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, c.mapError(err)
	}

	n, err := c.conn.Write(p)
	if err != nil {
		if isTimeout(err) {
			return n, fmt.Errorf("channel: write to %s timed out: %w", c.conn.RemoteAddr(), err)
		}

		return n, c.mapError(err)
	}

	return n, nil
}

// ResetInputBuffer reads and discards whatever arrives within a short window.
func (c *ConnChannel) ResetInputBuffer() error {
	if c.closed.Load() {
		return ErrClosed
	}

	buf := make([]byte, 256)
	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(drainWindow)); err != nil {
			return c.mapError(err)
		}

		n, err := c.conn.Read(buf)
		if err != nil {
			if isTimeout(err) || errors.Is(err, io.EOF) {
				return nil
			}

			return c.mapError(err)
		}

		if n == 0 {
			return nil
		}
	}
}

// Close closes the underlying connection. Closing twice is a no-op.
func (c *ConnChannel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	return c.conn.Close()
}

func (c *ConnChannel) mapError(err error) error {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return ErrClosed
	}

	return err
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
