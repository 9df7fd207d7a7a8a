package observability

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"
)

// Monitor tracks per-route request statistics, exports them as Prometheus
// metrics and periodically flags slow or failing routes.
type Monitor struct {
	enabled atomic.Bool
	routes  sync.Map // route -> *RouteMetrics
	global  struct {
		totalRequests atomic.Uint64
		totalDuration atomic.Uint64
	}

	bottlenecks  []Bottleneck
	bottleneckMu sync.RWMutex

	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec

	logger    *zap.Logger
	interval  time.Duration
	latencyAt time.Duration
	errorRate float64
	runtime   bool

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// RouteMetrics stores per-route counters
type RouteMetrics struct {
	Route          string
	Count          atomic.Uint64
	Errors         atomic.Uint64
	TotalDuration  atomic.Uint64
	MinDuration    atomic.Uint64
	MaxDuration    atomic.Uint64
	latencyBuckets [10]atomic.Uint64
}

// RouteStats is a point-in-time copy of RouteMetrics
type RouteStats struct {
	Route   string
	Count   uint64
	Errors  uint64
	Average time.Duration
	Min     time.Duration
	Max     time.Duration
	Buckets [10]uint64
}

// Bottleneck represents a performance issue
type Bottleneck struct {
	Type       string
	Location   string
	Severity   int
	Impact     float64
	DetectedAt time.Time
	Details    string
}

// MonitorOption configures a Monitor
type MonitorOption func(*Monitor)

// WithLogger reports detected bottlenecks to logger
func WithLogger(logger *zap.Logger) MonitorOption {
	return func(m *Monitor) { m.logger = logger }
}

// WithAnalyzeInterval sets how often bottlenecks are recomputed
func WithAnalyzeInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) { m.interval = d }
}

// WithThresholds sets the average latency and error rate that flag a route
func WithThresholds(latency time.Duration, errorRate float64) MonitorOption {
	return func(m *Monitor) {
		m.latencyAt = latency
		m.errorRate = errorRate
	}
}

// WithRuntimeCollectors adds the Go runtime and process collectors to the registry
func WithRuntimeCollectors() MonitorOption {
	return func(m *Monitor) { m.runtime = true }
}

// NewMonitor creates a monitor with its own Prometheus registry
func NewMonitor(opts ...MonitorOption) *Monitor {
	m := &Monitor{
		registry:  prometheus.NewRegistry(),
		logger:    zap.NewNop(),
		interval:  10 * time.Second,
		latencyAt: 100 * time.Millisecond,
		errorRate: 0.05,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fastdispatch",
		Name:      "requests_total",
		Help:      "Dispatched requests by route and status code.",
	}, []string{"route", "code"})
	m.latency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fastdispatch",
		Name:      "request_duration_seconds",
		Help:      "Dispatch latency by route.",
		Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
	}, []string{"route"})
	m.registry.MustRegister(m.requests, m.latency)
	if m.runtime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m.enabled.Store(true)
	return m
}

// Registry exposes the monitor's Prometheus registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// SetEnabled turns recording on or off
func (m *Monitor) SetEnabled(enabled bool) {
	m.enabled.Store(enabled)
}

// RecordRequest records one dispatched request. A status of 500 or
// above counts as an error.
func (m *Monitor) RecordRequest(route string, status int, duration time.Duration) {
	if !m.enabled.Load() {
		return
	}

	val, _ := m.routes.LoadOrStore(route, &RouteMetrics{Route: route})
	metrics := val.(*RouteMetrics)

	metrics.Count.Add(1)
	if status >= 500 {
		metrics.Errors.Add(1)
	}

	durationNs := uint64(duration.Nanoseconds())
	metrics.TotalDuration.Add(durationNs)
	updateMinMax(metrics, durationNs)
	metrics.latencyBuckets[latencyBucket(durationNs)].Add(1)

	m.global.totalRequests.Add(1)
	m.global.totalDuration.Add(durationNs)

	m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route).Observe(duration.Seconds())
}

// TotalRequests returns the number of recorded requests
func (m *Monitor) TotalRequests() uint64 {
	return m.global.totalRequests.Load()
}

func updateMinMax(m *RouteMetrics, d uint64) {
	for {
		lo := m.MinDuration.Load()
		if lo != 0 && d >= lo {
			break
		}
		if m.MinDuration.CompareAndSwap(lo, d) {
			break
		}
	}
	for {
		hi := m.MaxDuration.Load()
		if d <= hi {
			break
		}
		if m.MaxDuration.CompareAndSwap(hi, d) {
			break
		}
	}
}

func latencyBucket(durationNs uint64) int {
	ms := durationNs / 1_000_000
	switch {
	case ms < 1:
		return 0
	case ms < 5:
		return 1
	case ms < 10:
		return 2
	case ms < 50:
		return 3
	case ms < 100:
		return 4
	case ms < 500:
		return 5
	case ms < 1000:
		return 6
	case ms < 5000:
		return 7
	case ms < 10000:
		return 8
	default:
		return 9
	}
}

// Stats returns a snapshot of every route sorted by route
func (m *Monitor) Stats() []RouteStats {
	var out []RouteStats
	m.routes.Range(func(_, value any) bool {
		rm := value.(*RouteMetrics)
		s := RouteStats{
			Route:  rm.Route,
			Count:  rm.Count.Load(),
			Errors: rm.Errors.Load(),
			Min:    time.Duration(rm.MinDuration.Load()),
			Max:    time.Duration(rm.MaxDuration.Load()),
		}
		if s.Count > 0 {
			s.Average = time.Duration(rm.TotalDuration.Load() / s.Count)
		}
		for i := range rm.latencyBuckets {
			s.Buckets[i] = rm.latencyBuckets[i].Load()
		}
		out = append(out, s)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Route < out[j].Route })
	return out
}

// Start runs bottleneck analysis in the background until Stop
func (m *Monitor) Start() {
	if m.started.CompareAndSwap(false, true) {
		go m.analyzeBottlenecks()
	}
}

// Stop ends background analysis and waits for it to exit
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
		if m.started.Load() {
			<-m.done
		}
	})
}

func (m *Monitor) analyzeBottlenecks() {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if !m.enabled.Load() {
				continue
			}
			bottlenecks := m.DetectBottlenecks()
			for _, b := range bottlenecks {
				m.logger.Warn("bottleneck detected",
					zap.String("type", b.Type),
					zap.String("route", b.Location),
					zap.Int("severity", b.Severity),
					zap.String("details", b.Details))
			}
			m.bottleneckMu.Lock()
			m.bottlenecks = bottlenecks
			m.bottleneckMu.Unlock()
		}
	}
}

// DetectBottlenecks flags routes over the latency or error-rate thresholds
func (m *Monitor) DetectBottlenecks() []Bottleneck {
	bottlenecks := make([]Bottleneck, 0)

	for _, s := range m.Stats() {
		if s.Count == 0 {
			continue
		}

		// High latency
		if s.Average > m.latencyAt {
			bottlenecks = append(bottlenecks, Bottleneck{
				Type:       "latency",
				Location:   s.Route,
				Severity:   8,
				Impact:     100.0,
				DetectedAt: time.Now(),
				Details:    fmt.Sprintf("High latency (%v avg)", s.Average),
			})
		}

		// High error rate
		rate := float64(s.Errors) / float64(s.Count)
		if s.Errors > 0 && rate > m.errorRate {
			bottlenecks = append(bottlenecks, Bottleneck{
				Type:       "errors",
				Location:   s.Route,
				Severity:   10,
				Impact:     rate * 100,
				DetectedAt: time.Now(),
				Details:    fmt.Sprintf("%.1f%% error rate", rate*100),
			})
		}
	}

	return bottlenecks
}

// Bottlenecks returns the result of the last background analysis
func (m *Monitor) Bottlenecks() []Bottleneck {
	m.bottleneckMu.RLock()
	defer m.bottleneckMu.RUnlock()
	return append([]Bottleneck{}, m.bottlenecks...)
}

// WriteMetrics writes the registry in the Prometheus text format
func (m *Monitor) WriteMetrics(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return errors.Wrap(err, "gather metrics")
	}

	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return errors.Wrapf(err, "encode %s", mf.GetName())
		}
	}
	return nil
}

// MetricsText returns the text exposition and its content type
func (m *Monitor) MetricsText() ([]byte, string, error) {
	var buf bytes.Buffer
	if err := m.WriteMetrics(&buf); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), string(expfmt.NewFormat(expfmt.TypeTextPlain)), nil
}
