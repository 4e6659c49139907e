package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Worker holds the offline worker's counters. A nil *Worker records nothing.
type Worker struct {
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	stored        *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	revalidations *prometheus.CounterVec
	syncRuns      *prometheus.CounterVec
}

// NewWorker registers the worker counters on reg.
func NewWorker(reg prometheus.Registerer) *Worker {
	f := promauto.With(reg)
	return &Worker{
		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "pbp_worker_cache_hits_total",
			Help: "Intercepted requests answered from the cache store.",
		}),
		cacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "pbp_worker_cache_misses_total",
			Help: "Intercepted requests that went to the network.",
		}),
		stored: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pbp_worker_cache_stores_total",
			Help: "Network responses written to a cache partition.",
		}, []string{"partition"}),
		fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pbp_worker_offline_fallbacks_total",
			Help: "Offline responses served after a network failure, by kind.",
		}, []string{"kind"}),
		revalidations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pbp_worker_revalidations_total",
			Help: "Background document revalidations, by result.",
		}, []string{"result"}),
		syncRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pbp_worker_sync_runs_total",
			Help: "Deferred sync task runs, by tag and result.",
		}, []string{"tag", "result"}),
	}
}

func (m *Worker) CacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Worker) CacheMiss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}

func (m *Worker) Stored(partition string) {
	if m != nil {
		m.stored.WithLabelValues(partition).Inc()
	}
}

func (m *Worker) Fallback(kind string) {
	if m != nil {
		m.fallbacks.WithLabelValues(kind).Inc()
	}
}

func (m *Worker) Revalidated(result string) {
	if m != nil {
		m.revalidations.WithLabelValues(result).Inc()
	}
}

func (m *Worker) SyncRun(tag, result string) {
	if m != nil {
		m.syncRuns.WithLabelValues(tag, result).Inc()
	}
}

// Handler exposes the gatherer in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
