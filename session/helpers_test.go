package session

import (
	"bufio"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/go-pfeiffer/channel"
	"github.com/arloliu/go-pfeiffer/telegram"
	"github.com/stretchr/testify/require"
)

const testTimeout = 100 * time.Millisecond

// handlerFunc produces the raw reply to a request; nil means no reply.
type handlerFunc func(req *telegram.Telegram) []byte

// startUnit runs a simulated unit on the far end of a pipe and returns the
// near end as a channel.
func startUnit(t *testing.T, handler handlerFunc) channel.Channel {
	t.Helper()

	local, remote := net.Pipe()
	t.Cleanup(func() {
		_ = local.Close()
		_ = remote.Close()
	})

	go serveUnit(remote, handler)

	return channel.NewConnChannel(local, testTimeout)
}

func serveUnit(conn net.Conn, handler handlerFunc) {
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\r')
		if err != nil {
			return
		}

		req, err := telegram.Decode([]byte(line))
		if err != nil {
			continue
		}

		if reply := handler(req); len(reply) > 0 {
			if _, err := conn.Write(reply); err != nil {
				return
			}
		}
	}
}

func replyFrame(t *testing.T, addr uint8, param uint16, data string) []byte {
	t.Helper()

	frame, err := telegram.EncodeWrite(addr, param, data)
	require.NoError(t, err)

	return frame
}

// paramStore answers queries from and applies writes to an in-memory table,
// as a unit at addr would.
type paramStore struct {
	addr   uint8
	mu     sync.Mutex
	values map[uint16]string
}

func newParamStore(addr uint8, values map[uint16]string) *paramStore {
	return &paramStore{addr: addr, values: values}
}

func (p *paramStore) handle(req *telegram.Telegram) []byte {
	if req.Address != p.addr {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	data, ok := p.values[req.Parameter]
	switch {
	case !ok:
		data = telegram.SentinelUndefined
	case req.Direction == telegram.Write:
		p.values[req.Parameter] = req.Data
		data = req.Data
	}

	frame, _ := telegram.EncodeWrite(req.Address, req.Parameter, data)

	return frame
}

func (p *paramStore) get(param uint16) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.values[param]
}

// exclusiveChannel records overlapping exchanges: a request written while an
// earlier reply has not been read up to its CR.
type exclusiveChannel struct {
	channel.Channel
	inflight   atomic.Int32
	overlapped atomic.Int32
}

func (c *exclusiveChannel) Write(p []byte) (int, error) {
	if c.inflight.Add(1) > 1 {
		c.overlapped.Add(1)
	}

	return c.Channel.Write(p)
}

func (c *exclusiveChannel) Read(p []byte) (int, error) {
	n, err := c.Channel.Read(p)
	if n > 0 && p[n-1] == telegram.CR {
		c.inflight.Add(-1)
	}

	return n, err
}
