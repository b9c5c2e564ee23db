package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/go-pfeiffer/channel"
	"github.com/arloliu/go-pfeiffer/logger"
	"github.com/arloliu/go-pfeiffer/telegram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, handler handlerFunc, opts ...Option) *Session {
	t.Helper()

	s, err := NewSession(startUnit(t, handler), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestSession_Query(t *testing.T) {
	require := require.New(t)

	unit := newParamStore(1, map[uint16]string{740: "100023", 349: "TPG366"})
	s := newTestSession(t, unit.handle)

	data, err := s.Query(1, 740)
	require.NoError(err)
	require.Equal("100023", data)

	data, err = s.Query(1, 349)
	require.NoError(err)
	require.Equal("TPG366", data)

	m := s.Metrics()
	require.Equal(uint64(2), m.QueryCount.Load())
	require.Equal(uint64(2), m.ExchangeCount.Load())
	require.Zero(m.ErrorCount.Load())
}

func TestSession_Write(t *testing.T) {
	require := require.New(t)

	unit := newParamStore(2, map[uint16]string{10: "000000"})
	s := newTestSession(t, unit.handle)

	require.NoError(s.Write(2, 10, "111111"))
	require.Equal("111111", unit.get(10))

	data, err := s.Query(2, 10)
	require.NoError(err)
	require.Equal("111111", data)

	require.Equal(uint64(1), s.Metrics().WriteCount.Load())
}

func TestSession_EchoMismatch(t *testing.T) {
	s := newTestSession(t, func(req *telegram.Telegram) []byte {
		return replyFrame(t, req.Address, req.Parameter, "000000")
	})

	err := s.Write(1, 10, "111111")
	require.ErrorIs(t, err, ErrEchoMismatch)
	require.Equal(t, uint64(1), s.Metrics().ErrorCount.Load())
	require.Equal(t, uint64(1), s.Metrics().OtherErrorCount.Load())
}

func TestSession_ReplyMismatch(t *testing.T) {
	tests := []struct {
		description string
		handler     func(t *testing.T) handlerFunc
	}{
		{"other address", func(t *testing.T) handlerFunc {
			return func(req *telegram.Telegram) []byte {
				return replyFrame(t, req.Address+1, req.Parameter, "100023")
			}
		}},
		{"other parameter", func(t *testing.T) handlerFunc {
			return func(req *telegram.Telegram) []byte {
				return replyFrame(t, req.Address, req.Parameter+1, "100023")
			}
		}},
		{"query action in reply", func(t *testing.T) handlerFunc {
			return func(req *telegram.Telegram) []byte {
				frame, err := telegram.EncodeQuery(req.Address, req.Parameter)
				require.NoError(t, err)
				return frame
			}
		}},
		{"device error from other address", func(t *testing.T) handlerFunc {
			return func(req *telegram.Telegram) []byte {
				return replyFrame(t, 9, req.Parameter, telegram.SentinelUndefined)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			s := newTestSession(t, tt.handler(t))

			_, err := s.Query(1, 740)
			require.ErrorIs(t, err, ErrAddressMismatch)
		})
	}
}

func TestSession_Timeout(t *testing.T) {
	require := require.New(t)

	s := newTestSession(t, func(*telegram.Telegram) []byte { return nil })

	begin := time.Now()
	_, err := s.Query(1, 740)
	require.ErrorIs(err, channel.ErrTimeout)
	require.GreaterOrEqual(time.Since(begin), testTimeout)

	m := s.Metrics()
	require.Equal(uint64(1), m.TimeoutCount.Load())
	require.Equal(uint64(1), m.ErrorCount.Load())
	require.Zero(m.OtherErrorCount.Load())
}

func TestSession_ChecksumMismatch(t *testing.T) {
	s := newTestSession(t, func(req *telegram.Telegram) []byte {
		frame := replyFrame(t, req.Address, req.Parameter, "100023")
		frame[12]++ // corrupt one data character

		return frame
	})

	_, err := s.Query(1, 740)
	require.ErrorIs(t, err, telegram.ErrChecksumMismatch)
	require.Equal(t, uint64(1), s.Metrics().ChecksumErrorCount.Load())
}

func TestSession_DeviceErrors(t *testing.T) {
	tests := []struct {
		sentinel    string
		expectedErr error
	}{
		{telegram.SentinelUndefined, telegram.ErrUndefinedParameter},
		{telegram.SentinelRange, telegram.ErrOutOfRange},
		{telegram.SentinelLogic, telegram.ErrLogicViolation},
	}

	for _, tt := range tests {
		t.Run(tt.sentinel, func(t *testing.T) {
			s := newTestSession(t, func(req *telegram.Telegram) []byte {
				return replyFrame(t, req.Address, req.Parameter, tt.sentinel)
			})

			err := s.Write(1, 349, "abc")
			require.ErrorIs(t, err, tt.expectedErr)
			require.Equal(t, uint64(1), s.Metrics().DeviceErrorCount.Load())
		})
	}
}

func TestSession_CharFilter(t *testing.T) {
	noisy := func(req *telegram.Telegram) []byte {
		frame := replyFrame(t, req.Address, req.Parameter, "100023")
		noisy := make([]byte, 0, len(frame)+1)
		noisy = append(noisy, frame[:5]...)
		noisy = append(noisy, 0xFF)

		return append(noisy, frame[5:]...)
	}

	s := newTestSession(t, noisy)
	_, err := s.Query(1, 740)
	require.ErrorIs(t, err, telegram.ErrInvalidCharacter)

	s = newTestSession(t, noisy, WithCharFilter(true))
	data, err := s.Query(1, 740)
	require.NoError(t, err)
	require.Equal(t, "100023", data)
}

func TestSession_InvalidRequest(t *testing.T) {
	var requests atomic.Int32
	s := newTestSession(t, func(*telegram.Telegram) []byte {
		requests.Add(1)
		return nil
	})

	_, err := s.Query(0, 740)
	require.ErrorIs(t, err, telegram.ErrInvalidAddress)

	err = s.Write(1, 1000, "1")
	require.ErrorIs(t, err, telegram.ErrInvalidParameter)

	assert.Zero(t, requests.Load())
	assert.Zero(t, s.Metrics().ExchangeCount.Load())
	assert.Equal(t, uint64(2), s.Metrics().ErrorCount.Load())
	assert.Equal(t, uint64(2), s.Metrics().OtherErrorCount.Load())
}

func TestSession_Close(t *testing.T) {
	require := require.New(t)

	unit := newParamStore(1, map[uint16]string{740: "100023"})
	s := newTestSession(t, unit.handle)

	require.NoError(s.Close())
	require.NoError(s.Close())
	require.True(s.IsClosed())

	_, err := s.Query(1, 740)
	require.ErrorIs(err, ErrSessionClosed)
}

func TestSession_ConcurrentExchangesAreSerialized(t *testing.T) {
	require := require.New(t)

	values := make(map[uint16]string)
	for p := uint16(0); p < 8; p++ {
		values[p] = fmt.Sprintf("%06d", p)
	}
	unit := newParamStore(1, values)

	ch := &exclusiveChannel{Channel: startUnit(t, unit.handle)}
	s, err := NewSession(ch, WithFlushInput(false))
	require.NoError(err)
	defer s.Close()

	const workers, rounds = 8, 10

	var wg sync.WaitGroup
	errCh := make(chan error, workers*rounds)
	for w := range workers {
		param := uint16(w)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range rounds {
				data, err := s.Query(1, param)
				if err != nil {
					errCh <- err
					continue
				}
				if data != fmt.Sprintf("%06d", param) {
					errCh <- fmt.Errorf("param %d: got %q", param, data)
				}
			}
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		require.NoError(err)
	}

	require.Zero(ch.overlapped.Load())
	require.Equal(uint64(workers*rounds), s.Metrics().ExchangeCount.Load())
}

func TestSession_Options(t *testing.T) {
	require := require.New(t)

	ch := startUnit(t, func(*telegram.Telegram) []byte { return nil })

	_, err := NewSession(nil)
	require.Error(err)

	_, err = NewSession(ch, WithLogger(nil))
	require.Error(err)

	_, err = NewSession(ch, WithMetrics(nil))
	require.Error(err)

	m := &Metrics{}
	mockLogger := logger.NewMockLogger().AllowAll()
	s, err := NewSession(ch, WithMetrics(m), WithLogger(mockLogger), WithCharFilter(true), WithFlushInput(false))
	require.NoError(err)
	require.Same(m, s.Metrics())
	require.True(s.cfg.filterInvalid)
	require.False(s.cfg.flushInput)

	_, _ = s.Query(1, 740)
	mockLogger.AssertCalled(t, "Debug", "session: exchange", mock.Anything)
}
