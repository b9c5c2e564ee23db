package device

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/arloliu/go-pfeiffer/channel"
	"github.com/arloliu/go-pfeiffer/logger"
	"github.com/arloliu/go-pfeiffer/telegram"
)

type regKey struct {
	addr  uint8
	param uint16
}

// simBus simulates the units on one RS-485 bus. Unknown parameters answer
// NO_DEF, unknown addresses stay silent.
type simBus struct {
	mu     sync.Mutex
	values map[regKey]string
	opens  int
}

func newSimBus() *simBus {
	return &simBus{values: make(map[regKey]string)}
}

func (b *simBus) set(addr uint8, param uint16, data string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.values[regKey{addr, param}] = data
}

func (b *simBus) get(addr uint8, param uint16) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.values[regKey{addr, param}]
}

func (b *simBus) hasAddress(addr uint8) bool {
	for k := range b.values {
		if k.addr == addr {
			return true
		}
	}

	return false
}

func (b *simBus) reply(req *telegram.Telegram) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.hasAddress(req.Address) {
		return nil
	}

	key := regKey{req.Address, req.Parameter}
	data, ok := b.values[key]
	switch {
	case !ok:
		data = telegram.SentinelUndefined
	case req.Direction == telegram.Write:
		b.values[key] = req.Data
		data = req.Data
	}

	frame, _ := telegram.EncodeWrite(req.Address, req.Parameter, data)

	return frame
}

// opener returns an Opener that connects to the bus through a pipe.
func (b *simBus) opener(t *testing.T) Opener {
	t.Helper()

	return func(_ string, _ int, timeout time.Duration) (channel.Channel, error) {
		b.mu.Lock()
		b.opens++
		b.mu.Unlock()

		local, remote := net.Pipe()
		t.Cleanup(func() {
			_ = local.Close()
			_ = remote.Close()
		})

		go b.serve(remote)

		return channel.NewConnChannel(local, timeout), nil
	}
}

func (b *simBus) serve(conn net.Conn) {
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

		if frame := b.reply(req); frame != nil {
			if _, err := conn.Write(frame); err != nil {
				return
			}
		}
	}
}

func failingOpener(string, int, time.Duration) (channel.Channel, error) {
	return nil, errors.New("no such port")
}

func quietLogger() logger.Logger {
	return logger.NewMockLogger().AllowAll()
}
