// Package session runs request/response exchanges of the Pfeiffer protocol over
// a channel.
//
// The bus is half-duplex and replies carry no transaction identifier, so a
// Session serializes exchanges: the channel lock is taken for exactly one
// request and its reply. Housekeeping and foreground callers may share a
// Session freely; their exchanges are totally ordered.
package session

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-pfeiffer/channel"
	"github.com/arloliu/go-pfeiffer/logger"
	"github.com/arloliu/go-pfeiffer/telegram"
)

var (
	// ErrAddressMismatch reports a reply from another address, with another
	// action or for another parameter than the request.
	ErrAddressMismatch = errors.New("session: reply does not match request")
	// ErrEchoMismatch reports a write whose echoed data differs from the data sent.
	ErrEchoMismatch = errors.New("session: echoed data does not match written data")
	// ErrSessionClosed reports an exchange on a closed session.
	ErrSessionClosed = errors.New("session: closed")
)

// Session exchanges telegrams over a channel.
type Session struct {
	ch      channel.Channel
	cfg     *config
	metrics *Metrics
	logger  logger.Logger

	mu     sync.Mutex // guards ch, held for one exchange
	closed atomic.Bool
}

// NewSession creates a session over ch. The session owns ch and closes it on Close.
func NewSession(ch channel.Channel, opts ...Option) (*Session, error) {
	if ch == nil {
		return nil, errors.New("session: channel must not be nil")
	}

	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	return &Session{
		ch:      ch,
		cfg:     cfg,
		metrics: cfg.metrics,
		logger:  cfg.logger,
	}, nil
}

// Metrics returns the session counters.
func (s *Session) Metrics() *Metrics {
	return s.metrics
}

// Query reads parameter param of the unit at addr and returns the raw data field.
func (s *Session) Query(addr uint8, param uint16) (string, error) {
	s.metrics.incQueryCount()

	req, err := telegram.EncodeQuery(addr, param)
	if err != nil {
		s.countError(err)
		return "", err
	}

	reply, err := s.exchange(req, addr, param)
	if err != nil {
		return "", err
	}

	return reply.Data, nil
}

// Write sets parameter param of the unit at addr to data. The unit must echo
// the data back unchanged.
func (s *Session) Write(addr uint8, param uint16, data string) error {
	s.metrics.incWriteCount()

	req, err := telegram.EncodeWrite(addr, param, data)
	if err != nil {
		s.countError(err)
		return err
	}

	reply, err := s.exchange(req, addr, param)
	if err != nil {
		return err
	}

	if reply.Data != data {
		err := fmt.Errorf("%w: sent %q, got %q", ErrEchoMismatch, data, reply.Data)
		s.countError(err)

		return err
	}

	return nil
}

// Close closes the session and its channel. An exchange in progress completes
// first. Closing twice is a no-op.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ch.Close()
}

// IsClosed reports whether Close has been called.
func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

func (s *Session) exchange(req []byte, addr uint8, param uint16) (*telegram.Telegram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return nil, ErrSessionClosed
	}

	s.metrics.incExchangeCount()

	reply, err := s.roundTrip(req, addr, param)
	if err != nil {
		s.countError(err)
		return nil, err
	}

	return reply, nil
}

// countError records a failed request under exactly one error class.
func (s *Session) countError(err error) {
	switch {
	case errors.Is(err, telegram.ErrChecksumMismatch):
		s.metrics.incChecksumErrorCount()
	case errors.Is(err, channel.ErrTimeout):
		s.metrics.incTimeoutCount()
	case telegram.IsDeviceError(err):
		s.metrics.incDeviceErrorCount()
	default:
		s.metrics.incOtherErrorCount()
	}
	s.metrics.incErrorCount()
}

// roundTrip must be called with s.mu held.
func (s *Session) roundTrip(req []byte, addr uint8, param uint16) (*telegram.Telegram, error) {
	if s.cfg.flushInput {
		if err := s.ch.ResetInputBuffer(); err != nil {
			return nil, fmt.Errorf("session: failed to reset input buffer: %w", err)
		}
	}

	if _, err := s.ch.Write(req); err != nil {
		return nil, fmt.Errorf("session: failed to send request to %03d: %w", addr, err)
	}

	raw, err := telegram.ReadFrame(s.ch, s.cfg.filterInvalid)
	s.logger.Debug("session: exchange",
		"addr", addr,
		"param", param,
		"tx", strconv.Quote(string(req)),
		"rx", strconv.Quote(string(raw)),
	)
	if err != nil {
		return nil, fmt.Errorf("session: failed to read reply from %03d: %w", addr, err)
	}

	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no reply from %03d for parameter %03d", channel.ErrTimeout, addr, param)
	}

	reply, err := telegram.Decode(raw)
	if reply == nil {
		return nil, err
	}

	if reply.Address != addr || reply.Direction != telegram.Write || reply.Parameter != param {
		return nil, fmt.Errorf("%w: sent addr=%03d param=%03d, got %s", ErrAddressMismatch, addr, param, reply)
	}

	if err != nil {
		return nil, err
	}

	return reply, nil
}
