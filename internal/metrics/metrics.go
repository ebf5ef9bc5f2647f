// Package metrics records import and search measurements in Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/pharmadist/internal/core"
)

// Registry owns a private Prometheus registry and implements core.Recorder.
type Registry struct {
	reg *prometheus.Registry

	RowsImported   *prometheus.CounterVec
	ImportFailures *prometheus.CounterVec
	Searches       *prometheus.CounterVec
	SearchFaults   *prometheus.CounterVec
	SearchLatency  *prometheus.HistogramVec
	SearchResults  *prometheus.HistogramVec
}

var _ core.Recorder = (*Registry)(nil)

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmadist_import_rows_total",
		Help: "Rows inserted by spreadsheet imports.",
	}, []string{"kind"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmadist_import_failures_total",
		Help: "Imports that ended in an error.",
	}, []string{"kind"})
	searches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmadist_searches_total",
		Help: "Completed searches.",
	}, []string{"table"})
	faults := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmadist_search_faults_total",
		Help: "Searches that failed and returned no results.",
	}, []string{"table"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pharmadist_search_latency_seconds",
		Help:    "Time taken by completed searches.",
		Buckets: prometheus.DefBuckets,
	}, []string{"table"})
	results := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pharmadist_search_results",
		Help:    "Records returned per completed search.",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200},
	}, []string{"table"})

	r.MustRegister(rows, failures, searches, faults, latency, results,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{
		reg:            r,
		RowsImported:   rows,
		ImportFailures: failures,
		Searches:       searches,
		SearchFaults:   faults,
		SearchLatency:  latency,
		SearchResults:  results,
	}
}

// TrackImports exposes the import limiter's slot usage as gauges.
func (r *Registry) TrackImports(l *core.ImportLimiter) {
	r.reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pharmadist_imports_active",
			Help: "Imports currently holding a limiter slot.",
		}, func() float64 { return float64(l.ActiveCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pharmadist_imports_max",
			Help: "Import limiter capacity.",
		}, func() float64 { return float64(l.MaxConcurrent()) }),
	)
}

func (r *Registry) ImportedRows(kind core.Kind, n int) {
	r.RowsImported.WithLabelValues(string(kind)).Add(float64(n))
}

func (r *Registry) ImportFailed(kind core.Kind) {
	r.ImportFailures.WithLabelValues(string(kind)).Inc()
}

func (r *Registry) Searched(table string, results int, elapsed time.Duration) {
	r.Searches.WithLabelValues(table).Inc()
	r.SearchLatency.WithLabelValues(table).Observe(elapsed.Seconds())
	r.SearchResults.WithLabelValues(table).Observe(float64(results))
}

func (r *Registry) SearchFault(table string) {
	r.SearchFaults.WithLabelValues(table).Inc()
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
