package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-pfeiffer/device"
	"github.com/arloliu/go-pfeiffer/housekeeping"
	"github.com/arloliu/go-pfeiffer/logger"
	"github.com/arloliu/go-pfeiffer/session"
)

type fakeSource struct {
	id     string
	status device.Status
	sm     session.Metrics
	hm     housekeeping.Metrics
}

func (f *fakeSource) ID() string { return f.id }

func (f *fakeSource) Status() device.Status { return f.status }

func (f *fakeSource) SessionMetrics() *session.Metrics { return &f.sm }

func (f *fakeSource) HousekeepingMetrics() *housekeeping.Metrics { return &f.hm }

// gather returns the sample values keyed by metric name and label values.
func gather(t *testing.T, c prometheus.Collector) map[string]float64 {
	t.Helper()

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(c))

	families, err := reg.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, l := range m.GetLabel() {
				key += "," + l.GetName() + "=" + l.GetValue()
			}

			switch {
			case m.GetCounter() != nil:
				values[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[key] = m.GetGauge().GetValue()
			}
		}
	}

	return values
}

func TestCollector(t *testing.T) {
	require := require.New(t)

	gauge := &fakeSource{id: "tpg366", status: device.Status{Connected: true, HousekeepingRunning: true}}
	gauge.sm.QueryCount.Store(10)
	gauge.sm.WriteCount.Store(2)
	gauge.sm.ErrorCount.Store(5)
	gauge.sm.ChecksumErrorCount.Store(1)
	gauge.sm.TimeoutCount.Store(2)
	gauge.sm.DeviceErrorCount.Store(1)
	gauge.sm.OtherErrorCount.Store(1)
	gauge.hm.CycleCount.Store(7)
	gauge.hm.OkCycleCount.Store(4)
	gauge.hm.FailedCycleCount.Store(3)
	gauge.hm.SkippedCycleCount.Store(4)
	gauge.hm.ReadCount.Store(14)
	gauge.hm.FailedReadCount.Store(3)
	gauge.hm.StopTimeoutCount.Store(1)

	pump := &fakeSource{id: "hipace"}

	values := gather(t, NewCollector(gauge, pump))

	require.InDelta(10, values["pfeiffer_session_exchanges_total,device=tpg366,kind=query"], 0)
	require.InDelta(2, values["pfeiffer_session_exchanges_total,device=tpg366,kind=write"], 0)
	require.InDelta(1, values["pfeiffer_session_errors_total,class=checksum,device=tpg366"], 0)
	require.InDelta(2, values["pfeiffer_session_errors_total,class=timeout,device=tpg366"], 0)
	require.InDelta(1, values["pfeiffer_session_errors_total,class=device,device=tpg366"], 0)
	require.InDelta(1, values["pfeiffer_session_errors_total,class=other,device=tpg366"], 0)
	require.InDelta(4, values["pfeiffer_housekeeping_cycles_total,device=tpg366,outcome=ok"], 0)
	require.InDelta(3, values["pfeiffer_housekeeping_cycles_total,device=tpg366,outcome=failed"], 0)
	require.InDelta(4, values["pfeiffer_housekeeping_cycles_total,device=tpg366,outcome=skipped"], 0)
	require.InDelta(14, values["pfeiffer_housekeeping_reads_total,device=tpg366"], 0)
	require.InDelta(3, values["pfeiffer_housekeeping_failed_reads_total,device=tpg366"], 0)
	require.InDelta(1, values["pfeiffer_housekeeping_stop_timeouts_total,device=tpg366"], 0)
	require.InDelta(1, values["pfeiffer_device_connected,device=tpg366"], 0)
	require.InDelta(1, values["pfeiffer_housekeeping_running,device=tpg366"], 0)

	require.Contains(values, "pfeiffer_device_connected,device=hipace")
	require.InDelta(0, values["pfeiffer_device_connected,device=hipace"], 0)
	require.InDelta(0, values["pfeiffer_housekeeping_running,device=hipace"], 0)
}

func TestCollector_Add(t *testing.T) {
	c := NewCollector()
	require.Empty(t, gather(t, c))

	c.Add(&fakeSource{id: "a"})
	values := gather(t, c)
	require.Contains(t, values, "pfeiffer_device_connected,device=a")
}

func TestCollector_Device(t *testing.T) {
	dev, err := device.New("tpg", "/dev/null", device.WithLogger(logger.NewMockLogger().AllowAll()))
	require.NoError(t, err)

	values := gather(t, NewCollector(dev))
	require.Contains(t, values, "pfeiffer_device_connected,device=tpg")
	require.InDelta(t, 0, values["pfeiffer_session_exchanges_total,device=tpg,kind=query"], 0)
}

func TestCollector_CyclesNeverDecrease(t *testing.T) {
	require := require.New(t)

	src := &fakeSource{id: "tpg"}

	entered := make(chan struct{})
	release := make(chan error)
	monitor := func() housekeeping.CycleResult {
		entered <- struct{}{}
		return housekeeping.CycleResult{Reads: 1, Failures: 1, Err: <-release}
	}

	hk, err := housekeeping.NewScheduler(monitor, func() bool { return true },
		housekeeping.WithMode(housekeeping.External),
		housekeeping.WithMetrics(&src.hm),
		housekeeping.WithLogger(logger.NewMockLogger().AllowAll()),
	)
	require.NoError(err)
	require.NoError(hk.Start(0))
	defer hk.Stop() //nolint:errcheck

	c := NewCollector(src)
	const okKey = "pfeiffer_housekeeping_cycles_total,device=tpg,outcome=ok"
	const failedKey = "pfeiffer_housekeeping_cycles_total,device=tpg,outcome=failed"

	done := make(chan bool)
	go func() { done <- hk.DoCycle() }()
	<-entered

	values := gather(t, c)
	require.InDelta(0, values[okKey], 0)
	require.InDelta(0, values[failedKey], 0)

	release <- errors.New("gauge offline")
	require.False(<-done)

	values = gather(t, c)
	require.InDelta(0, values[okKey], 0)
	require.InDelta(1, values[failedKey], 0)

	go func() { done <- hk.DoCycle() }()
	<-entered
	require.InDelta(0, gather(t, c)[okKey], 0)
	release <- nil
	require.True(<-done)

	values = gather(t, c)
	require.InDelta(1, values[okKey], 0)
	require.InDelta(1, values[failedKey], 0)
}
