package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/zcnbind/internal/abi"
	"github.com/danmuck/zcnbind/internal/foreign"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zcnbind",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "zcnbind",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	boundaryCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zcnbind",
			Subsystem: "boundary",
			Name:      "calls_total",
			Help:      "Boundary calls by operation and outcome.",
		},
		[]string{"side", "op", "outcome"},
	)
	boundaryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "zcnbind",
			Subsystem: "boundary",
			Name:      "call_duration_seconds",
			Help:      "Boundary call duration in seconds.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"side", "op"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, boundaryCalls, boundaryDuration)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordBoundaryCall(side, op string, duration time.Duration, err error) {
	RegisterMetrics()
	boundaryCalls.WithLabelValues(side, op, Outcome(err)).Inc()
	boundaryDuration.WithLabelValues(side, op).Observe(duration.Seconds())
}

// BoundaryRecorder returns a call observer suitable for bind.WithRecorder.
func BoundaryRecorder(side string) func(op string, d time.Duration, err error) {
	return func(op string, d time.Duration, err error) {
		RecordBoundaryCall(side, op, d, err)
	}
}

// Outcome maps a boundary result to its metric label.
func Outcome(err error) string {
	switch abi.CodeOf(err) {
	case abi.CodeOK:
		return "ok"
	case abi.CodeStaleHandle:
		return "stale_handle"
	case abi.CodeUnavailable:
		return "unavailable"
	case abi.CodeInvalid:
		return "invalid_argument"
	default:
		return "internal"
	}
}

// StatsSource reports foreign heap counters.
type StatsSource interface {
	Stats() foreign.Stats
}

// HeapCollector exports heap counters at scrape time.
type HeapCollector struct {
	source    StatsSource
	live      *prometheus.Desc
	allocated *prometheus.Desc
	released  *prometheus.Desc
}

func NewHeapCollector(source StatsSource) *HeapCollector {
	return &HeapCollector{
		source:    source,
		live:      prometheus.NewDesc("zcnbind_heap_live_handles", "Foreign objects currently reachable by handle.", nil, nil),
		allocated: prometheus.NewDesc("zcnbind_heap_allocated_total", "Foreign objects ever allocated.", nil, nil),
		released:  prometheus.NewDesc("zcnbind_heap_released_total", "Foreign objects released.", nil, nil),
	}
}

func (c *HeapCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.live
	ch <- c.allocated
	ch <- c.released
}

func (c *HeapCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(c.live, prometheus.GaugeValue, float64(s.Live))
	ch <- prometheus.MustNewConstMetric(c.allocated, prometheus.CounterValue, float64(s.Allocated))
	ch <- prometheus.MustNewConstMetric(c.released, prometheus.CounterValue, float64(s.Released))
}
