package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RelayoutMetrics provides observability for a relayout run.
//
// This interface is optional - components given nil (or NewNoopRelayoutMetrics)
// proceed without metrics collection.
type RelayoutMetrics interface {
	// RecordFile records the outcome of visiting one file.
	//
	// Parameters:
	//   - outcome: "relayout", "mismatch", "in-place", "skip", "failed"
	//   - reason: Skip or failure reason ("multi-link", "unplaced", ...), empty otherwise
	RecordFile(outcome, reason string)

	// AddBytesCopied adds to the number of bytes rewritten through staging.
	AddBytesCopied(n int64)

	// AddSavings adds a (possibly negative) raw-storage savings estimate.
	AddSavings(bytes int64)

	// ObserveRelayout records the wall time of one copy-and-replace.
	ObserveRelayout(duration time.Duration)

	// RecordResolve records a layout resolution served from cache (hit) or
	// computed from attributes (miss).
	RecordResolve(hit bool)

	// RecordStagingDir records the creation of a staging directory.
	RecordStagingDir()
}

// relayoutMetrics is the Prometheus implementation of RelayoutMetrics.
type relayoutMetrics struct {
	filesTotal       *prometheus.CounterVec
	bytesCopied      prometheus.Counter
	savingsBytes     prometheus.Gauge
	relayoutDuration prometheus.Histogram
	resolveTotal     *prometheus.CounterVec
	stagingDirs      prometheus.Counter
}

// NewRelayoutMetrics creates a new Prometheus-backed RelayoutMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
// Must be called at most once per registry.
func NewRelayoutMetrics() RelayoutMetrics {
	if !IsEnabled() {
		return NewNoopRelayoutMetrics()
	}
	return newRelayoutMetrics(GetRegistry())
}

func newRelayoutMetrics(reg prometheus.Registerer) *relayoutMetrics {
	return &relayoutMetrics{
		filesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "relayout_files_total",
				Help: "Files visited by outcome and reason",
			},
			[]string{"outcome", "reason"},
		),
		bytesCopied: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "relayout_bytes_copied_total",
				Help: "Bytes rewritten through staging directories",
			},
		),
		savingsBytes: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "relayout_estimated_savings_bytes",
				Help: "Estimated raw storage saved by this run (negative means more space used)",
			},
		),
		relayoutDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "relayout_file_duration_seconds",
				Help: "Duration of a single copy-and-replace",
				Buckets: []float64{
					0.01, // 10ms
					0.1,  // 100ms
					1,    // 1s
					10,   // 10s
					60,   // 1m
					600,  // 10m
				},
			},
		),
		resolveTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "relayout_resolve_total",
				Help: "Layout resolutions by cache result",
			},
			[]string{"cache"},
		),
		stagingDirs: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "relayout_staging_dirs_total",
				Help: "Staging directories created",
			},
		),
	}
}

func (m *relayoutMetrics) RecordFile(outcome, reason string) {
	m.filesTotal.WithLabelValues(outcome, reason).Inc()
}

func (m *relayoutMetrics) AddBytesCopied(n int64) {
	m.bytesCopied.Add(float64(n))
}

func (m *relayoutMetrics) AddSavings(bytes int64) {
	m.savingsBytes.Add(float64(bytes))
}

func (m *relayoutMetrics) ObserveRelayout(duration time.Duration) {
	m.relayoutDuration.Observe(duration.Seconds())
}

func (m *relayoutMetrics) RecordResolve(hit bool) {
	if hit {
		m.resolveTotal.WithLabelValues("hit").Inc()
		return
	}
	m.resolveTotal.WithLabelValues("miss").Inc()
}

func (m *relayoutMetrics) RecordStagingDir() {
	m.stagingDirs.Inc()
}

// NewNoopRelayoutMetrics returns a RelayoutMetrics that discards everything.
func NewNoopRelayoutMetrics() RelayoutMetrics {
	return noopRelayoutMetrics{}
}

// noopRelayoutMetrics is a no-op implementation of RelayoutMetrics with zero overhead.
type noopRelayoutMetrics struct{}

func (noopRelayoutMetrics) RecordFile(outcome, reason string)      {}
func (noopRelayoutMetrics) AddBytesCopied(n int64)                 {}
func (noopRelayoutMetrics) AddSavings(bytes int64)                 {}
func (noopRelayoutMetrics) ObserveRelayout(duration time.Duration) {}
func (noopRelayoutMetrics) RecordResolve(hit bool)                 {}
func (noopRelayoutMetrics) RecordStagingDir()                      {}

// OrNoop returns m, or a no-op implementation when m is nil.
func OrNoop(m RelayoutMetrics) RelayoutMetrics {
	if m == nil {
		return NewNoopRelayoutMetrics()
	}
	return m
}
