package device

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/arloliu/go-pfeiffer/housekeeping"
	"github.com/arloliu/go-pfeiffer/logger"
)

const logFileTimeLayout = "20060102_150405"

// StartHousekeeping starts sampling the housekeeping parameters. A positive
// interval replaces the configured one. With logToFile set, samples are also
// written as JSON lines to Pfeiffer_<id>_HK_<timestamp>.log in the log directory.
func (d *Device) StartHousekeeping(interval time.Duration, logToFile bool) error {
	if !d.IsConnected() {
		d.logger.Error("device: cannot start housekeeping, not connected")
		return fmt.Errorf("%w: %s", ErrNotConnected, d.id)
	}

	if logToFile && !d.hk.IsRunning() {
		if err := d.enableFileLogging(); err != nil {
			d.logger.Warn("device: failed to enable file logging", "error", err)
		}
	}

	return d.hk.Start(interval)
}

func (d *Device) StopHousekeeping() error {
	return d.hk.Stop()
}

// DoHousekeepingCycle runs one cycle on the caller's goroutine; see
// housekeeping.Scheduler.DoCycle.
func (d *Device) DoHousekeepingCycle() bool {
	return d.hk.DoCycle()
}

func (d *Device) ShouldContinueHousekeeping() bool {
	return d.hk.ShouldContinue()
}

func (d *Device) HousekeepingRunning() bool {
	return d.hk.IsRunning()
}

// Samples returns a copy of the latest housekeeping readings by parameter name.
func (d *Device) Samples() map[string]Sample {
	samples := make(map[string]Sample, d.samples.Size())
	d.samples.Range(func(name string, s Sample) bool {
		samples[name] = s
		return true
	})

	return samples
}

// LastSample returns the latest housekeeping reading of the named parameter.
func (d *Device) LastSample(name string) (Sample, bool) {
	return d.samples.Load(name)
}

// monitor reads every housekeeping parameter once. A failed read does not
// abort the cycle.
func (d *Device) monitor() housekeeping.CycleResult {
	if len(d.cfg.hkParams) == 0 {
		status := "Disconnected"
		if d.IsConnected() {
			status = "Connected"
		}
		d.logSample("Status", status, "")

		return housekeeping.CycleResult{}
	}

	var res housekeeping.CycleResult
	var errs []error

	for _, name := range d.cfg.hkParams {
		p := d.params[name]
		res.Reads++

		v, err := d.Read(name)
		if err != nil {
			res.Failures++
			errs = append(errs, fmt.Errorf("%s: %w", name, err))

			continue
		}

		d.samples.Store(name, Sample{
			Parameter: name,
			Channel:   p.Channel,
			Value:     v,
			Unit:      p.Unit,
			Time:      time.Now(),
		})
		d.logSample(name, v.String(), p.Unit)
	}

	res.Err = errors.Join(errs...)

	return res
}

func (d *Device) logSample(measure string, value string, unit string) {
	d.logger.Info("device: housekeeping sample", "measure", measure, "value", value, "unit", unit)

	// the read lock keeps Disconnect from closing the file mid-write
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.fileLog != nil {
		d.fileLog.Info("device: housekeeping sample", "measure", measure, "value", value, "unit", unit)
	}
}

func (d *Device) enableFileLogging() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fileLogFile != nil {
		d.logger.Info("device: file logging already enabled", "path", d.fileLogFile.Name())
		return nil
	}

	if err := os.MkdirAll(d.cfg.logDir, 0o755); err != nil {
		return fmt.Errorf("device: failed to create log directory: %w", err)
	}

	name := fmt.Sprintf("Pfeiffer_%s_HK_%s.log", d.id, time.Now().Format(logFileTimeLayout))
	path := filepath.Join(d.cfg.logDir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("device: failed to open log file: %w", err)
	}

	d.fileLogFile = f
	d.fileLog = logger.NewSlog(logger.InfoLevel, logger.WithOutput(f), logger.WithJSON()).
		With("device", d.id, "port", d.port)

	d.logger.Info("device: file logging enabled", "path", path)

	return nil
}
