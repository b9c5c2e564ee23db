// Package config loads device definitions from YAML or TOML files.
//
// A file lists the devices on the host's serial buses. Each device names its
// channels (bus addresses), its parameters with their data types, and the
// parameters sampled by housekeeping:
//
//	log_level: info
//	devices:
//	  - id: tpg366
//	    port: /dev/ttyUSB0
//	    baud_rate: 9600
//	    timeout: 1s
//	    channels:
//	      - {name: gauge1, address: 1}
//	    parameters:
//	      - {name: pressure_1, channel: gauge1, number: 740, type: u_expo_new, unit: mbar}
//	    housekeeping:
//	      interval: 30s
//	      mode: internal
//	      parameters: [pressure_1]
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/arloliu/go-pfeiffer/datatype"
	"github.com/arloliu/go-pfeiffer/device"
	"github.com/arloliu/go-pfeiffer/housekeeping"
	"github.com/arloliu/go-pfeiffer/logger"
	"github.com/arloliu/go-pfeiffer/telegram"
)

var (
	ErrInvalidConfig     = errors.New("config: invalid configuration")
	ErrUnsupportedFormat = errors.New("config: unsupported file format")
)

// Format is a configuration file syntax.
type Format string

const (
	YAML Format = "yaml"
	TOML Format = "toml"
)

// Config is the content of a configuration file.
type Config struct {
	LogLevel    string   `yaml:"log_level" toml:"log_level"`
	MetricsAddr string   `yaml:"metrics_addr" toml:"metrics_addr"`
	Devices     []Device `yaml:"devices" toml:"devices"`
}

// Device describes one device.
type Device struct {
	ID           string        `yaml:"id" toml:"id"`
	Port         string        `yaml:"port" toml:"port"`
	BaudRate     int           `yaml:"baud_rate" toml:"baud_rate"`
	Timeout      time.Duration `yaml:"timeout" toml:"timeout"`
	CharFilter   bool          `yaml:"char_filter" toml:"char_filter"`
	LogDir       string        `yaml:"log_dir" toml:"log_dir"`
	Channels     []Channel     `yaml:"channels" toml:"channels"`
	Parameters   []Parameter   `yaml:"parameters" toml:"parameters"`
	Housekeeping Housekeeping  `yaml:"housekeeping" toml:"housekeeping"`
}

type Channel struct {
	Name    string `yaml:"name" toml:"name"`
	Address int    `yaml:"address" toml:"address"`
}

type Parameter struct {
	Name    string        `yaml:"name" toml:"name"`
	Channel string        `yaml:"channel" toml:"channel"`
	Number  int           `yaml:"number" toml:"number"`
	Type    datatype.Type `yaml:"type" toml:"type"`
	Unit    string        `yaml:"unit" toml:"unit"`
}

type Housekeeping struct {
	Interval   time.Duration     `yaml:"interval" toml:"interval"`
	Mode       housekeeping.Mode `yaml:"mode" toml:"mode"`
	Parameters []string          `yaml:"parameters" toml:"parameters"`
	LogToFile  bool              `yaml:"log_to_file" toml:"log_to_file"`
}

// Load reads the file at path. The format follows the extension: .yaml or .yml
// for YAML, .toml for TOML. Defaults are applied and the result is validated.
func Load(path string) (*Config, error) {
	var format Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = YAML
	case ".toml":
		format = TOML
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	cfg, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes data in the given format, applies defaults and validates.
// Unknown keys are rejected.
func Parse(data []byte, format Format) (*Config, error) {
	cfg := &Config{}

	switch format {
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config: failed to parse yaml: %w", err)
		}
	case TOML:
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("config: failed to parse toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, key := range undecoded {
				keys = append(keys, key.String())
			}

			return nil, fmt.Errorf("config: unknown toml keys: %s", strings.Join(keys, ", "))
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	for i := range cfg.Devices {
		d := &cfg.Devices[i]
		if d.BaudRate == 0 {
			d.BaudRate = device.DefaultBaudRate
		}
		if d.Timeout == 0 {
			d.Timeout = device.DefaultTimeout
		}
		if d.LogDir == "" {
			d.LogDir = device.DefaultLogDir
		}
		if d.Housekeeping.Interval == 0 {
			d.Housekeeping.Interval = housekeeping.DefaultInterval
		}
	}
}

// Level returns the configured log level.
func (cfg *Config) Level() logger.Level {
	level, _ := logger.ParseLevel(cfg.LogLevel)
	return level
}

// Validate checks the whole configuration and reports every problem found.
func (cfg *Config) Validate() error {
	var errs []error

	if _, ok := logger.ParseLevel(cfg.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("unknown log level %q", cfg.LogLevel))
	}

	ids := make(map[string]struct{}, len(cfg.Devices))
	for i, d := range cfg.Devices {
		if _, dup := ids[d.ID]; dup {
			errs = append(errs, fmt.Errorf("devices[%d]: duplicate id %q", i, d.ID))
		}
		ids[d.ID] = struct{}{}

		if err := d.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("devices[%d]: %w", i, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	return nil
}

// Validate checks one device entry.
func (d *Device) Validate() error {
	var errs []error

	if strings.TrimSpace(d.ID) == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if strings.TrimSpace(d.Port) == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if d.BaudRate <= 0 {
		errs = append(errs, fmt.Errorf("invalid baud_rate %d", d.BaudRate))
	}
	if d.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid timeout %v", d.Timeout))
	}
	if d.Housekeeping.Interval <= 0 {
		errs = append(errs, fmt.Errorf("invalid housekeeping interval %v", d.Housekeeping.Interval))
	}

	channels := make(map[string]struct{}, len(d.Channels))
	for _, ch := range d.Channels {
		if _, dup := channels[ch.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate channel %q", ch.Name))
		}
		channels[ch.Name] = struct{}{}

		if ch.Name == "" {
			errs = append(errs, errors.New("channel name is required"))
		}
		if ch.Address < 1 || ch.Address > 255 {
			errs = append(errs, fmt.Errorf("channel %q: address %d out of range [1, 255]", ch.Name, ch.Address))
		}
	}

	params := make(map[string]struct{}, len(d.Parameters))
	for _, p := range d.Parameters {
		if _, dup := params[p.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate parameter %q", p.Name))
		}
		params[p.Name] = struct{}{}

		if p.Name == "" {
			errs = append(errs, errors.New("parameter name is required"))
		}
		if p.Number < 0 || p.Number > telegram.MaxParameter {
			errs = append(errs, fmt.Errorf("parameter %q: number %d out of range [0, %d]", p.Name, p.Number, telegram.MaxParameter))
		}
		if !p.Type.Supported() {
			errs = append(errs, fmt.Errorf("parameter %q: unsupported type %s", p.Name, p.Type))
		}

		switch {
		case p.Channel == "" && len(d.Channels) > 1:
			errs = append(errs, fmt.Errorf("parameter %q: channel is required with several channels", p.Name))
		case p.Channel != "":
			if _, ok := channels[p.Channel]; !ok {
				errs = append(errs, fmt.Errorf("parameter %q: unknown channel %q", p.Name, p.Channel))
			}
		}
	}

	for _, name := range d.Housekeeping.Parameters {
		if _, ok := params[name]; !ok {
			errs = append(errs, fmt.Errorf("housekeeping: unknown parameter %q", name))
		}
	}

	return errors.Join(errs...)
}

// Options converts the entry into device options, followed by extra.
func (d *Device) Options(extra ...device.Option) []device.Option {
	channels := make([]device.Channel, 0, len(d.Channels))
	for _, ch := range d.Channels {
		channels = append(channels, device.Channel{Name: ch.Name, Address: uint8(ch.Address)}) //nolint:gosec
	}

	params := make([]device.Parameter, 0, len(d.Parameters))
	for _, p := range d.Parameters {
		params = append(params, device.Parameter{
			Name:    p.Name,
			Channel: p.Channel,
			Number:  uint16(p.Number), //nolint:gosec
			Type:    p.Type,
			Unit:    p.Unit,
		})
	}

	opts := []device.Option{
		device.WithBaudRate(d.BaudRate),
		device.WithTimeout(d.Timeout),
		device.WithCharFilter(d.CharFilter),
		device.WithLogDir(d.LogDir),
		device.WithHousekeepingInterval(d.Housekeeping.Interval),
		device.WithHousekeepingMode(d.Housekeeping.Mode),
		device.WithParameters(params...),
		device.WithHousekeeping(d.Housekeeping.Parameters...),
	}
	if len(channels) > 0 {
		opts = append(opts, device.WithChannels(channels...))
	}

	return append(opts, extra...)
}

// NewDevice creates the device described by the entry.
func (d *Device) NewDevice(extra ...device.Option) (*device.Device, error) {
	return device.New(d.ID, d.Port, d.Options(extra...)...)
}
