package device

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-pfeiffer/channel"
	"github.com/arloliu/go-pfeiffer/datatype"
	"github.com/arloliu/go-pfeiffer/housekeeping"
	"github.com/arloliu/go-pfeiffer/logger"
	"github.com/arloliu/go-pfeiffer/telegram"
)

const (
	DefaultBaudRate = 9600
	DefaultTimeout  = time.Second
	DefaultLogDir   = "logs"

	// DefaultChannel names the single channel used when no channel table is given.
	DefaultChannel = "default"
)

// Channel maps a channel name to the RS-485 address of a unit on the bus.
// A gauge controller exposes one channel per gauge, a pump one channel per
// electronic drive unit.
type Channel struct {
	Name    string
	Address uint8
}

// Parameter describes one named parameter of a unit.
type Parameter struct {
	Name    string
	Channel string
	Number  uint16
	Type    datatype.Type
	Unit    string
}

// Opener opens the transport of a device.
type Opener func(port string, baudRate int, timeout time.Duration) (channel.Channel, error)

type config struct {
	baudRate    int
	timeout     time.Duration
	channels    []Channel
	params      []Parameter
	hkParams    []string
	interval    time.Duration
	mode        housekeeping.Mode
	stopTimeout time.Duration
	charFilter  bool
	logDir      string
	opener      Opener
	logger      logger.Logger
}

func newConfig(opts ...Option) (*config, error) {
	cfg := &config{
		baudRate:    DefaultBaudRate,
		timeout:     DefaultTimeout,
		interval:    housekeeping.DefaultInterval,
		mode:        housekeeping.Internal,
		stopTimeout: housekeeping.DefaultStopTimeout,
		logDir:      DefaultLogDir,
		opener:      channel.Open,
		logger:      logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.channels) == 0 {
		cfg.channels = []Channel{{Name: DefaultChannel, Address: 1}}
	}

	return cfg, nil
}

// Option configures a Device.
type Option interface {
	apply(*config) error
}

type optFunc func(*config) error

func (f optFunc) apply(cfg *config) error { return f(cfg) }

func WithBaudRate(baudRate int) Option {
	return optFunc(func(cfg *config) error {
		if baudRate <= 0 {
			return fmt.Errorf("device: invalid baud rate %d", baudRate)
		}
		cfg.baudRate = baudRate

		return nil
	})
}

// WithTimeout sets the read timeout of the transport.
func WithTimeout(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if d <= 0 {
			return fmt.Errorf("device: timeout %v must be positive", d)
		}
		cfg.timeout = d

		return nil
	})
}

// WithChannels sets the channel table. Without it the device has a single
// channel named DefaultChannel at address 1.
func WithChannels(channels ...Channel) Option {
	return optFunc(func(cfg *config) error {
		for _, ch := range channels {
			if ch.Name == "" {
				return errors.New("device: channel name must not be empty")
			}
			if ch.Address == 0 {
				return fmt.Errorf("device: channel %s: %w", ch.Name, telegram.ErrInvalidAddress)
			}
		}
		cfg.channels = append(cfg.channels, channels...)

		return nil
	})
}

func WithParameters(params ...Parameter) Option {
	return optFunc(func(cfg *config) error {
		for _, p := range params {
			if p.Name == "" {
				return errors.New("device: parameter name must not be empty")
			}
			if p.Number > telegram.MaxParameter {
				return fmt.Errorf("device: parameter %s: %w", p.Name, telegram.ErrInvalidParameter)
			}
			if !p.Type.Supported() {
				return fmt.Errorf("device: parameter %s: %w", p.Name, datatype.ErrUnsupportedType)
			}
		}
		cfg.params = append(cfg.params, params...)

		return nil
	})
}

// WithHousekeeping names the parameters read by every housekeeping cycle.
// Without it a cycle only logs the connection status.
func WithHousekeeping(names ...string) Option {
	return optFunc(func(cfg *config) error {
		cfg.hkParams = append(cfg.hkParams, names...)
		return nil
	})
}

func WithHousekeepingInterval(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if d <= 0 {
			return fmt.Errorf("device: housekeeping interval %v must be positive", d)
		}
		cfg.interval = d

		return nil
	})
}

func WithHousekeepingMode(mode housekeeping.Mode) Option {
	return optFunc(func(cfg *config) error {
		if mode != housekeeping.Internal && mode != housekeeping.External {
			return fmt.Errorf("device: invalid housekeeping mode %d", uint8(mode))
		}
		cfg.mode = mode

		return nil
	})
}

func WithStopTimeout(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if d <= 0 {
			return fmt.Errorf("device: stop timeout %v must be positive", d)
		}
		cfg.stopTimeout = d

		return nil
	})
}

// WithCharFilter drops non-ASCII bytes from replies instead of failing.
func WithCharFilter(enabled bool) Option {
	return optFunc(func(cfg *config) error {
		cfg.charFilter = enabled
		return nil
	})
}

// WithLogDir sets the directory of housekeeping log files.
func WithLogDir(dir string) Option {
	return optFunc(func(cfg *config) error {
		if dir == "" {
			return errors.New("device: log directory must not be empty")
		}
		cfg.logDir = dir

		return nil
	})
}

// WithOpener replaces channel.Open, e.g. to run against a simulated unit.
func WithOpener(opener Opener) Option {
	return optFunc(func(cfg *config) error {
		if opener == nil {
			return errors.New("device: opener must not be nil")
		}
		cfg.opener = opener

		return nil
	})
}

func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *config) error {
		if l == nil {
			return errors.New("device: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
