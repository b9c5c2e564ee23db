// Package device is a generic driver for Pfeiffer Vacuum units on an RS-485 bus.
//
// A Device ties together a transport, a protocol session, a table of named
// channels (bus addresses) and parameters, and a housekeeping scheduler that
// samples a configured set of parameters. Model specific drivers are plain
// configuration: a gauge controller is a Device whose channels are its gauges
// and whose housekeeping reads the pressure parameter of each.
package device

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/arloliu/go-pfeiffer/datatype"
	"github.com/arloliu/go-pfeiffer/housekeeping"
	"github.com/arloliu/go-pfeiffer/logger"
	"github.com/arloliu/go-pfeiffer/session"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	ErrNotConnected     = housekeeping.ErrNotConnected
	ErrUnknownChannel   = errors.New("device: unknown channel")
	ErrUnknownParameter = errors.New("device: unknown parameter")
)

// Sample is the latest housekeeping reading of a parameter.
type Sample struct {
	Parameter string
	Channel   string
	Value     datatype.Value
	Unit      string
	Time      time.Time
}

// Status is a snapshot of the device state.
type Status struct {
	ID                   string
	Port                 string
	BaudRate             int
	Timeout              time.Duration
	Connected            bool
	HousekeepingRunning  bool
	HousekeepingMode     housekeeping.Mode
	HousekeepingInterval time.Duration
	LogFile              string
}

// Device is a unit (or a controller with several channels) on a serial bus.
type Device struct {
	id       string
	port     string
	cfg      *config
	channels map[string]uint8
	params   map[string]Parameter
	logger   logger.Logger

	sessMetrics *session.Metrics
	hk          *housekeeping.Scheduler
	samples     *xsync.MapOf[string, Sample]

	mu          sync.RWMutex // guards sess and the file log
	sess        *session.Session
	fileLog     logger.Logger
	fileLogFile *os.File
}

// New creates a disconnected device. port is a serial device name or a
// "tcp://host:port" address of a serial device server.
func New(id string, port string, opts ...Option) (*Device, error) {
	if id == "" {
		return nil, errors.New("device: id must not be empty")
	}
	if port == "" {
		return nil, errors.New("device: port must not be empty")
	}

	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	d := &Device{
		id:          id,
		port:        port,
		cfg:         cfg,
		channels:    make(map[string]uint8, len(cfg.channels)),
		params:      make(map[string]Parameter, len(cfg.params)),
		logger:      cfg.logger.With("device", id, "port", port),
		sessMetrics: &session.Metrics{},
		samples:     xsync.NewMapOf[string, Sample](),
	}

	for _, ch := range cfg.channels {
		if _, ok := d.channels[ch.Name]; ok {
			return nil, fmt.Errorf("device: duplicate channel %q", ch.Name)
		}
		d.channels[ch.Name] = ch.Address
	}

	for _, p := range cfg.params {
		if _, ok := d.params[p.Name]; ok {
			return nil, fmt.Errorf("device: duplicate parameter %q", p.Name)
		}
		if p.Channel == "" && len(cfg.channels) == 1 {
			p.Channel = cfg.channels[0].Name
		}
		if _, ok := d.channels[p.Channel]; !ok {
			return nil, fmt.Errorf("%w: %q of parameter %s", ErrUnknownChannel, p.Channel, p.Name)
		}
		d.params[p.Name] = p
	}

	for _, name := range cfg.hkParams {
		if _, ok := d.params[name]; !ok {
			return nil, fmt.Errorf("%w: housekeeping parameter %q", ErrUnknownParameter, name)
		}
	}

	d.hk, err = housekeeping.NewScheduler(d.monitor, d.IsConnected,
		housekeeping.WithMode(cfg.mode),
		housekeeping.WithInterval(cfg.interval),
		housekeeping.WithStopTimeout(cfg.stopTimeout),
		housekeeping.WithLogger(d.logger),
	)
	if err != nil {
		return nil, err
	}

	return d, nil
}

func (d *Device) ID() string { return d.id }

func (d *Device) Port() string { return d.port }

// Channels returns the channel table.
func (d *Device) Channels() []Channel {
	return append([]Channel(nil), d.cfg.channels...)
}

// Parameters returns the parameter table in configuration order, with
// defaulted channels filled in.
func (d *Device) Parameters() []Parameter {
	params := make([]Parameter, 0, len(d.cfg.params))
	for _, p := range d.cfg.params {
		params = append(params, d.params[p.Name])
	}

	return params
}

// SessionMetrics returns the protocol counters. They survive reconnects.
func (d *Device) SessionMetrics() *session.Metrics {
	return d.sessMetrics
}

func (d *Device) HousekeepingMetrics() *housekeeping.Metrics {
	return d.hk.Metrics()
}

// Connect opens the transport. Connecting a connected device is a no-op.
func (d *Device) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sess != nil {
		d.logger.Debug("device: already connected")
		return nil
	}

	d.logger.Info("device: connecting", "baudRate", d.cfg.baudRate, "timeout", d.cfg.timeout)

	ch, err := d.cfg.opener(d.port, d.cfg.baudRate, d.cfg.timeout)
	if err != nil {
		d.logger.Error("device: failed to connect", "error", err)
		return fmt.Errorf("device: failed to connect %s: %w", d.id, err)
	}

	sess, err := session.NewSession(ch,
		session.WithCharFilter(d.cfg.charFilter),
		session.WithMetrics(d.sessMetrics),
		session.WithLogger(d.logger),
	)
	if err != nil {
		_ = ch.Close()
		return err
	}
	d.sess = sess

	d.logger.Info("device: connected", "channels", len(d.channels))

	return nil
}

// Disconnect stops housekeeping and closes the transport.
func (d *Device) Disconnect() error {
	if err := d.hk.Stop(); err != nil {
		d.logger.Warn("device: housekeeping did not stop cleanly", "error", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	if d.sess != nil {
		if err := d.sess.Close(); err != nil {
			errs = append(errs, fmt.Errorf("device: failed to close transport: %w", err))
		}
		d.sess = nil
	}

	if d.fileLogFile != nil {
		if err := d.fileLogFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("device: failed to close log file: %w", err))
		}
		d.fileLogFile = nil
		d.fileLog = nil
	}

	d.logger.Info("device: disconnected")

	return errors.Join(errs...)
}

// IsConnected reports whether the transport is open.
func (d *Device) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.sess != nil
}

func (d *Device) Status() Status {
	d.mu.RLock()
	connected := d.sess != nil
	var logFile string
	if d.fileLogFile != nil {
		logFile = d.fileLogFile.Name()
	}
	d.mu.RUnlock()

	return Status{
		ID:                   d.id,
		Port:                 d.port,
		BaudRate:             d.cfg.baudRate,
		Timeout:              d.cfg.timeout,
		Connected:            connected,
		HousekeepingRunning:  d.hk.IsRunning(),
		HousekeepingMode:     d.hk.Mode(),
		HousekeepingInterval: d.hk.Interval(),
		LogFile:              logFile,
	}
}

func (d *Device) session() (*session.Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.sess == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, d.id)
	}

	return d.sess, nil
}

// Address returns the bus address of the named channel.
func (d *Device) Address(channelName string) (uint8, error) {
	addr, ok := d.channels[channelName]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownChannel, channelName)
	}

	return addr, nil
}

// Query reads the raw data field of parameter param on the named channel.
func (d *Device) Query(channelName string, param uint16) (string, error) {
	addr, err := d.Address(channelName)
	if err != nil {
		return "", err
	}

	sess, err := d.session()
	if err != nil {
		return "", err
	}

	data, err := sess.Query(addr, param)
	if err != nil {
		d.logger.Error("device: failed to query parameter", "channel", channelName, "param", param, "error", err)
		return "", err
	}

	return data, nil
}

// Write sets parameter param on the named channel to the raw data field data.
func (d *Device) Write(channelName string, param uint16, data string) error {
	addr, err := d.Address(channelName)
	if err != nil {
		return err
	}

	sess, err := d.session()
	if err != nil {
		return err
	}

	if err := sess.Write(addr, param, data); err != nil {
		d.logger.Error("device: failed to write parameter", "channel", channelName, "param", param, "error", err)
		return err
	}

	return nil
}

func (d *Device) parameter(name string) (Parameter, error) {
	p, ok := d.params[name]
	if !ok {
		return Parameter{}, fmt.Errorf("%w: %q", ErrUnknownParameter, name)
	}

	return p, nil
}

// Read queries the named parameter and decodes it with its data type.
func (d *Device) Read(name string) (datatype.Value, error) {
	p, err := d.parameter(name)
	if err != nil {
		return datatype.Value{}, err
	}

	raw, err := d.Query(p.Channel, p.Number)
	if err != nil {
		return datatype.Value{}, err
	}

	v, err := datatype.Decode(p.Type, raw)
	if err != nil {
		return datatype.Value{}, fmt.Errorf("device: parameter %s: %w", name, err)
	}

	return v, nil
}

// Set encodes v with the data type of the named parameter and writes it.
// v may be a datatype.Value or any Go value accepted by datatype.ValueOf.
func (d *Device) Set(name string, v any) error {
	p, err := d.parameter(name)
	if err != nil {
		return err
	}

	val, err := datatype.ValueOf(p.Type, v)
	if err != nil {
		return fmt.Errorf("device: parameter %s: %w", name, err)
	}

	data, err := datatype.Encode(val)
	if err != nil {
		return fmt.Errorf("device: parameter %s: %w", name, err)
	}

	return d.Write(p.Channel, p.Number, data)
}
