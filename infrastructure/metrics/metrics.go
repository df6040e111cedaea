// Package metrics exposes the daemon's Prometheus series, following the
// teacher's infrastructure/middleware PrometheusMetrics pattern:
// promauto-registered vectors wrapped behind a small typed collector so
// callers never touch prometheus types directly.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/gavel-preload/internal/application"
	"github.com/ahrav/gavel-preload/internal/domain"
)

// Collector is the daemon's Prometheus series: model size, tick
// latency, prefetch outcomes, and error counts by taxonomy entry
// (spec 7).
type Collector struct {
	modelSize       *prometheus.GaugeVec
	runningCount    prometheus.Gauge
	virtualTime     prometheus.Gauge
	tickDuration    *prometheus.HistogramVec
	prefetchIssued  prometheus.Counter
	prefetchFailed  prometheus.Counter
	prefetchBudget  prometheus.Gauge
	memStat         *prometheus.GaugeVec
	errorsByKind    *prometheus.CounterVec
	invalidationLog *prometheus.CounterVec
}

// NewCollector constructs and registers every series against the
// default Prometheus registry.
func NewCollector() *Collector {
	return &Collector{
		modelSize: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "preload_model_entities",
				Help: "Current count of entities held in the prediction model.",
			},
			[]string{"kind"}, // exes | maps | markovs
		),
		runningCount: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "preload_running_exes",
			Help: "Number of exes observed running as of the last scan.",
		}),
		virtualTime: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "preload_virtual_time_seconds",
			Help: "Current value of the model's virtual clock.",
		}),
		tickDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "preload_tick_duration_seconds",
				Help:    "Wall-clock duration of each event-loop tick, by phase.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase"}, // scan | update | predict | save
		),
		prefetchIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "preload_prefetch_issued_total",
			Help: "Total number of coalesced prefetch requests issued.",
		}),
		prefetchFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "preload_prefetch_failed_total",
			Help: "Total number of prefetch requests that failed (PrefetchAdvisoryFailed).",
		}),
		prefetchBudget: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "preload_prefetch_budget_bytes",
			Help: "Bytes of memory budget used by the last prediction tick's selection.",
		}),
		memStat: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "preload_memstat_kilobytes",
				Help: "Last observed system memory statistics, in KiB.",
			},
			[]string{"field"},
		),
		errorsByKind: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preload_errors_total",
				Help: "Total errors observed, by taxonomy kind (spec error handling design).",
			},
			[]string{"kind"},
		),
		invalidationLog: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preload_invalidation_sweep_total",
				Help: "Total invalidation sweep outcomes, by disposition.",
			},
			[]string{"disposition"}, // removed | replaced
		),
	}
}

// SetModelStats updates the gauges tracking current model size and
// clock, from an application.StateStats snapshot.
func (c *Collector) SetModelStats(stats application.StateStats) {
	c.modelSize.WithLabelValues("exes").Set(float64(stats.NumExes))
	c.modelSize.WithLabelValues("maps").Set(float64(stats.NumMaps))
	c.modelSize.WithLabelValues("markovs").Set(float64(stats.NumMarkovs))
	c.runningCount.Set(float64(stats.RunningCount))
	c.virtualTime.Set(stats.VirtualTime)
}

// ObserveTick records how long a named event-loop phase took.
func (c *Collector) ObserveTick(phase string, d time.Duration) {
	c.tickDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// ObservePrefetch records one prophet tick's prefetch outcome.
func (c *Collector) ObservePrefetch(result *application.TickResult, budgetBytes int64) {
	c.prefetchIssued.Add(float64(result.Issued))
	c.prefetchBudget.Set(float64(budgetBytes))
}

// IncPrefetchFailed counts one PrefetchAdvisoryFailed occurrence.
func (c *Collector) IncPrefetchFailed() { c.prefetchFailed.Inc() }

// SetMemStat publishes the latest memory snapshot.
func (c *Collector) SetMemStat(m domain.MemStat) {
	c.memStat.WithLabelValues("total").Set(float64(m.Total))
	c.memStat.WithLabelValues("free").Set(float64(m.Free))
	c.memStat.WithLabelValues("buffers").Set(float64(m.Buffers))
	c.memStat.WithLabelValues("cached").Set(float64(m.Cached))
	c.memStat.WithLabelValues("active").Set(float64(m.Active))
	c.memStat.WithLabelValues("inactive").Set(float64(m.Inactive))
	c.memStat.WithLabelValues("available").Set(float64(m.Available))
}

// IncError counts one occurrence of the named error taxonomy kind
// (e.g. "ModelInvariantViolated", "StateFileCorrupt", "ObservationTransient").
func (c *Collector) IncError(kind string) { c.errorsByKind.WithLabelValues(kind).Inc() }

// IncInvalidationRemoved counts one exe removed by the invalidation sweep.
func (c *Collector) IncInvalidationRemoved() { c.invalidationLog.WithLabelValues("removed").Inc() }

// IncInvalidationReplaced counts one exe flagged as replaced (mtime
// drift) by the invalidation sweep.
func (c *Collector) IncInvalidationReplaced() { c.invalidationLog.WithLabelValues("replaced").Inc() }
