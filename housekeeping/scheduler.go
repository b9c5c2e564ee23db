// Package housekeeping periodically samples a device through a monitor function.
//
// A Scheduler runs in one of two modes. In Internal mode it owns a worker
// goroutine that calls the monitor every interval. In External mode it only
// keeps the running state; the caller drives cycles with DoCycle and polls
// ShouldContinue, for example from a GUI timer or its own loop.
//
// The scheduler lock guards the running state only. It is never held while the
// monitor performs I/O or while Stop waits for the worker.
package housekeeping

import (
	"errors"
	"sync"
	"time"

	"github.com/arloliu/go-pfeiffer/internal/pool"
	"github.com/arloliu/go-pfeiffer/logger"
)

// ErrNotConnected is returned by Start when the device is not connected.
var ErrNotConnected = errors.New("housekeeping: device not connected")

// CycleResult summarizes one monitor run.
type CycleResult struct {
	// Reads is the number of parameter reads attempted.
	Reads int
	// Failures is the number of reads that failed.
	Failures int
	// Err aggregates the read errors, nil when the cycle succeeded.
	Err error
}

// MonitorFunc performs one housekeeping cycle.
type MonitorFunc func() CycleResult

// ConnectedFunc reports whether the device can be talked to.
type ConnectedFunc func() bool

// Scheduler runs housekeeping cycles.
type Scheduler struct {
	monitor   MonitorFunc
	connected ConnectedFunc
	cfg       *config
	metrics   *Metrics
	logger    logger.Logger

	mu       sync.Mutex
	running  bool
	interval time.Duration
	stopCh   chan struct{} // closed by Stop, replaced by Start
	done     chan struct{} // closed when the latest internal worker and all its predecessors exited
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(monitor MonitorFunc, connected ConnectedFunc, opts ...Option) (*Scheduler, error) {
	if monitor == nil {
		return nil, errors.New("housekeeping: monitor must not be nil")
	}
	if connected == nil {
		return nil, errors.New("housekeeping: connected func must not be nil")
	}

	cfg := &config{
		mode:        Internal,
		interval:    DefaultInterval,
		stopTimeout: DefaultStopTimeout,
		logger:      logger.GetLogger(),
	}
	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.metrics == nil {
		cfg.metrics = &Metrics{}
	}

	stopCh := make(chan struct{})
	close(stopCh)

	return &Scheduler{
		monitor:   monitor,
		connected: connected,
		cfg:       cfg,
		metrics:   cfg.metrics,
		logger:    cfg.logger,
		interval:  cfg.interval,
		stopCh:    stopCh,
	}, nil
}

func (s *Scheduler) Mode() Mode {
	return s.cfg.mode
}

func (s *Scheduler) Metrics() *Metrics {
	return s.metrics
}

// Interval returns the current cycle interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.interval
}

// IsRunning reports whether housekeeping is started.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// Start starts housekeeping. A positive interval replaces the current one.
//
// Start fails with ErrNotConnected when the device is not connected. Starting a
// running scheduler is a no-op that keeps the current interval and worker.
// A worker left behind by a timed out Stop finishes its cycle before the new
// worker runs its first one.
func (s *Scheduler) Start(interval time.Duration) error {
	if !s.connected() {
		s.logger.Error("housekeeping: cannot start, device not connected")
		return ErrNotConnected
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn("housekeeping: already running", "interval", s.interval)
		return nil
	}

	s.running = true
	if interval > 0 {
		s.interval = interval
	}
	s.stopCh = make(chan struct{})

	if s.cfg.mode == Internal {
		prev := s.done
		done := make(chan struct{})
		s.done = done
		go s.run(s.stopCh, prev, done)
	}

	s.logger.Info("housekeeping: started", "mode", s.cfg.mode.String(), "interval", s.interval)

	return nil
}

// Stop stops housekeeping. In Internal mode it waits up to the stop timeout
// for the worker to finish its current cycle. A worker that does not finish in
// time is logged and counted in Metrics.StopTimeoutCount, and Stop still
// succeeds. Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}

	s.running = false
	close(s.stopCh)
	done := s.done
	s.mu.Unlock()

	if done != nil {
		timer := pool.GetTimer(s.cfg.stopTimeout)
		defer pool.PutTimer(timer)

		select {
		case <-done:
		case <-timer.C:
			s.metrics.incStopTimeoutCount()
			s.logger.Warn("housekeeping: worker did not stop in time", "timeout", s.cfg.stopTimeout)
		}
	}

	s.logger.Info("housekeeping: stopped")

	return nil
}

// ShouldContinue reports whether an external driver should keep calling DoCycle.
func (s *Scheduler) ShouldContinue() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return false
	}

	select {
	case <-s.stopCh:
		return false
	default:
		return true
	}
}

// DoCycle runs one cycle on the caller's goroutine. It returns false when
// housekeeping is not running, the device is disconnected or the cycle failed.
func (s *Scheduler) DoCycle() bool {
	if !s.IsRunning() {
		return false
	}

	if !s.connected() {
		s.logger.Warn("housekeeping: device not connected, skipping cycle")
		s.metrics.incSkippedCycleCount()

		return false
	}

	return s.runCycle()
}

func (s *Scheduler) run(stopCh <-chan struct{}, prev <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	// at most one worker runs cycles
	if prev != nil {
		<-prev
	}

	s.logger.Debug("housekeeping: worker started")
	defer s.logger.Debug("housekeeping: worker terminated")

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		if s.connected() {
			s.runCycle()
		} else {
			s.logger.Warn("housekeeping: device not connected, pausing")
			s.metrics.incSkippedCycleCount()
		}

		if pool.WaitOrStop(s.Interval(), stopCh) {
			return
		}
	}
}

// runCycle calls the monitor behind a panic barrier and records the outcome.
func (s *Scheduler) runCycle() (ok bool) {
	s.metrics.incCycleCount()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("housekeeping: panic in monitor", "panic", r)
			s.metrics.incFailedCycleCount()
			ok = false
		}
	}()

	res := s.monitor()
	s.metrics.addReads(res.Reads, res.Failures)

	if res.Err != nil {
		s.metrics.incFailedCycleCount()
		s.logger.Warn("housekeeping: cycle failed",
			"reads", res.Reads,
			"failures", res.Failures,
			"error", res.Err,
		)

		return false
	}

	s.metrics.incOkCycleCount()

	return true
}
