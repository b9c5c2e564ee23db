package housekeeping

import "sync/atomic"

// Metrics contains atomic counters of a housekeeping scheduler.
type Metrics struct {
	// CycleCount is the number of monitor runs.
	CycleCount atomic.Uint64
	// OkCycleCount is the number of monitor runs that completed without error.
	OkCycleCount atomic.Uint64
	// FailedCycleCount is the number of monitor runs that reported an error or panicked.
	FailedCycleCount atomic.Uint64
	// SkippedCycleCount is the number of cycles skipped while disconnected.
	SkippedCycleCount atomic.Uint64
	// FailedReadCount is the number of individual reads that failed.
	FailedReadCount atomic.Uint64
	// ReadCount is the number of individual reads attempted.
	ReadCount atomic.Uint64
	// StopTimeoutCount is the number of Stop calls that gave up waiting for the worker.
	StopTimeoutCount atomic.Uint64
}

func (m *Metrics) incCycleCount() {
	m.CycleCount.Add(1)
}

func (m *Metrics) incOkCycleCount() {
	m.OkCycleCount.Add(1)
}

func (m *Metrics) incStopTimeoutCount() {
	m.StopTimeoutCount.Add(1)
}

func (m *Metrics) incFailedCycleCount() {
	m.FailedCycleCount.Add(1)
}

func (m *Metrics) incSkippedCycleCount() {
	m.SkippedCycleCount.Add(1)
}

func (m *Metrics) addReads(reads, failures int) {
	if reads > 0 {
		m.ReadCount.Add(uint64(reads))
	}
	if failures > 0 {
		m.FailedReadCount.Add(uint64(failures))
	}
}
