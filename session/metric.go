package session

import (
	"sync/atomic"
)

// Metrics contains atomic counters of a protocol session.
// The counters can back prometheus CounterFuncs.
type Metrics struct {
	// ExchangeCount is the number of request/response exchanges attempted.
	ExchangeCount atomic.Uint64
	// QueryCount is the number of data requests attempted.
	QueryCount atomic.Uint64
	// WriteCount is the number of control commands attempted.
	WriteCount atomic.Uint64

	// ErrorCount is the number of failed exchanges, whatever the cause.
	ErrorCount atomic.Uint64
	// ChecksumErrorCount is the number of replies with a bad checksum.
	ChecksumErrorCount atomic.Uint64
	// TimeoutCount is the number of requests left unanswered.
	TimeoutCount atomic.Uint64
	// DeviceErrorCount is the number of NO_DEF, _RANGE and _LOGIC replies.
	DeviceErrorCount atomic.Uint64
	// OtherErrorCount is the number of failures of any other kind: invalid
	// requests, mismatched or malformed replies, transport errors.
	OtherErrorCount atomic.Uint64
}

func (m *Metrics) incExchangeCount() {
	m.ExchangeCount.Add(1)
}

func (m *Metrics) incQueryCount() {
	m.QueryCount.Add(1)
}

func (m *Metrics) incWriteCount() {
	m.WriteCount.Add(1)
}

func (m *Metrics) incErrorCount() {
	m.ErrorCount.Add(1)
}

func (m *Metrics) incChecksumErrorCount() {
	m.ChecksumErrorCount.Add(1)
}

func (m *Metrics) incTimeoutCount() {
	m.TimeoutCount.Add(1)
}

func (m *Metrics) incDeviceErrorCount() {
	m.DeviceErrorCount.Add(1)
}

func (m *Metrics) incOtherErrorCount() {
	m.OtherErrorCount.Add(1)
}
