// Package metrics exports device counters to Prometheus.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/go-pfeiffer/device"
	"github.com/arloliu/go-pfeiffer/housekeeping"
	"github.com/arloliu/go-pfeiffer/session"
)

const namespace = "pfeiffer"

// Source is the view of a device the collector reads. *device.Device implements it.
type Source interface {
	ID() string
	Status() device.Status
	SessionMetrics() *session.Metrics
	HousekeepingMetrics() *housekeeping.Metrics
}

var (
	exchangesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "session", "exchanges_total"),
		"Number of request/response exchanges attempted.",
		[]string{"device", "kind"}, nil,
	)
	errorsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "session", "errors_total"),
		"Number of failed exchanges by class.",
		[]string{"device", "class"}, nil,
	)
	cyclesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "housekeeping", "cycles_total"),
		"Number of housekeeping cycles by outcome.",
		[]string{"device", "outcome"}, nil,
	)
	readsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "housekeeping", "reads_total"),
		"Number of housekeeping parameter reads.",
		[]string{"device"}, nil,
	)
	failedReadsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "housekeeping", "failed_reads_total"),
		"Number of failed housekeeping parameter reads.",
		[]string{"device"}, nil,
	)
	stopTimeoutsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "housekeeping", "stop_timeouts_total"),
		"Number of stops that gave up waiting for the worker.",
		[]string{"device"}, nil,
	)
	connectedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "device", "connected"),
		"Whether the device transport is open.",
		[]string{"device"}, nil,
	)
	runningDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "housekeeping", "running"),
		"Whether housekeeping is running.",
		[]string{"device"}, nil,
	)
)

// Collector implements prometheus.Collector over a set of devices.
type Collector struct {
	mu      sync.RWMutex
	sources []Source
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(sources ...Source) *Collector {
	return &Collector{sources: sources}
}

// Add registers more devices with the collector.
func (c *Collector) Add(sources ...Source) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sources = append(c.sources, sources...)
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- exchangesDesc
	ch <- errorsDesc
	ch <- cyclesDesc
	ch <- readsDesc
	ch <- failedReadsDesc
	ch <- stopTimeoutsDesc
	ch <- connectedDesc
	ch <- runningDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	sources := c.sources
	c.mu.RUnlock()

	for _, src := range sources {
		collectSource(ch, src)
	}
}

func collectSource(ch chan<- prometheus.Metric, src Source) {
	id := src.ID()
	counter := func(desc *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), append([]string{id}, labels...)...)
	}
	gauge := func(desc *prometheus.Desc, on bool) {
		v := 0.0
		if on {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v, id)
	}

	sm := src.SessionMetrics()
	counter(exchangesDesc, sm.QueryCount.Load(), "query")
	counter(exchangesDesc, sm.WriteCount.Load(), "write")
	counter(errorsDesc, sm.ChecksumErrorCount.Load(), "checksum")
	counter(errorsDesc, sm.TimeoutCount.Load(), "timeout")
	counter(errorsDesc, sm.DeviceErrorCount.Load(), "device")
	counter(errorsDesc, sm.OtherErrorCount.Load(), "other")

	hm := src.HousekeepingMetrics()
	counter(cyclesDesc, hm.OkCycleCount.Load(), "ok")
	counter(cyclesDesc, hm.FailedCycleCount.Load(), "failed")
	counter(cyclesDesc, hm.SkippedCycleCount.Load(), "skipped")
	counter(readsDesc, hm.ReadCount.Load())
	counter(failedReadsDesc, hm.FailedReadCount.Load())
	counter(stopTimeoutsDesc, hm.StopTimeoutCount.Load())

	status := src.Status()
	gauge(connectedDesc, status.Connected)
	gauge(runningDesc, status.HousekeepingRunning)
}
