package housekeeping

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arloliu/go-pfeiffer/logger"
)

const (
	DefaultInterval    = 30 * time.Second
	DefaultStopTimeout = 5 * time.Second
)

// Mode selects who drives housekeeping cycles.
type Mode uint8

const (
	// Internal runs cycles on a worker goroutine owned by the scheduler.
	Internal Mode = iota
	// External leaves cycle timing to the caller, which polls ShouldContinue
	// and calls DoCycle from its own loop.
	External
)

func (m Mode) String() string {
	switch m {
	case Internal:
		return "internal"
	case External:
		return "external"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if m != Internal && m != External {
		return nil, fmt.Errorf("housekeeping: invalid mode %d", uint8(m))
	}

	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "internal", "":
		*m = Internal
	case "external":
		*m = External
	default:
		return fmt.Errorf("housekeeping: unknown mode %q", text)
	}

	return nil
}

type config struct {
	mode        Mode
	interval    time.Duration
	stopTimeout time.Duration
	metrics     *Metrics
	logger      logger.Logger
}

// Option configures a Scheduler.
type Option interface {
	apply(*config) error
}

type optFunc func(*config) error

func (f optFunc) apply(cfg *config) error { return f(cfg) }

// WithMode sets the scheduling mode. The default is Internal.
func WithMode(mode Mode) Option {
	return optFunc(func(cfg *config) error {
		if mode != Internal && mode != External {
			return fmt.Errorf("housekeeping: invalid mode %d", uint8(mode))
		}
		cfg.mode = mode

		return nil
	})
}

// WithInterval sets the initial cycle interval. Start may override it.
func WithInterval(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if d <= 0 {
			return fmt.Errorf("housekeeping: interval %v must be positive", d)
		}
		cfg.interval = d

		return nil
	})
}

// WithStopTimeout bounds how long Stop waits for the internal worker to exit.
func WithStopTimeout(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if d <= 0 {
			return fmt.Errorf("housekeeping: stop timeout %v must be positive", d)
		}
		cfg.stopTimeout = d

		return nil
	})
}

func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *config) error {
		if l == nil {
			return errors.New("housekeeping: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}

func WithMetrics(m *Metrics) Option {
	return optFunc(func(cfg *config) error {
		if m == nil {
			return errors.New("housekeeping: metrics must not be nil")
		}
		cfg.metrics = m

		return nil
	})
}
