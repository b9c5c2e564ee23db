package session

import (
	"errors"

	"github.com/arloliu/go-pfeiffer/logger"
)

type config struct {
	// filterInvalid drops non-ASCII bytes from replies instead of failing the exchange.
	filterInvalid bool
	// flushInput discards stale input before every request.
	flushInput bool

	metrics *Metrics
	logger  logger.Logger
}

func newConfig(opts ...Option) (*config, error) {
	cfg := &config{
		filterInvalid: false,
		flushInput:    true,
		logger:        logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.metrics == nil {
		cfg.metrics = &Metrics{}
	}

	return cfg, nil
}

// Option configures a Session.
type Option interface {
	apply(*config) error
}

type optFunc func(*config) error

func (f optFunc) apply(cfg *config) error { return f(cfg) }

// WithCharFilter sets whether bytes above 127 in a reply are silently dropped.
// When disabled (the default) such a byte fails the exchange with
// telegram.ErrInvalidCharacter.
func WithCharFilter(enabled bool) Option {
	return optFunc(func(cfg *config) error {
		cfg.filterInvalid = enabled
		return nil
	})
}

// WithFlushInput sets whether the input buffer is reset before each request.
// Enabled by default.
func WithFlushInput(enabled bool) Option {
	return optFunc(func(cfg *config) error {
		cfg.flushInput = enabled
		return nil
	})
}

// WithLogger sets the logger. Frames are logged at debug level.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *config) error {
		if l == nil {
			return errors.New("session: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}

// WithMetrics makes the session count into m, so counters can outlive a
// single connection.
func WithMetrics(m *Metrics) Option {
	return optFunc(func(cfg *config) error {
		if m == nil {
			return errors.New("session: metrics must not be nil")
		}
		cfg.metrics = m

		return nil
	})
}
