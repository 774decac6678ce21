package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	guardRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_guard_rejections_total",
			Help: "Entity references rejected by the organization ownership check.",
		},
		[]string{"table"},
	)

	relationRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relation_sync_rows_total",
			Help: "Junction rows inserted or deleted by sync, link and unlink.",
		},
		[]string{"junction", "action"},
	)

	hierarchyViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hierarchy_violations_total",
			Help: "Parent assignments blocked by the hierarchy checks.",
		},
		[]string{"reason"},
	)

	changeEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "change_entries_total",
			Help: "Change log entries appended.",
		},
		[]string{"component_type", "change_type"},
	)

	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_runs_total",
			Help: "Background job executions by outcome.",
		},
		[]string{"job", "status"},
	)
)

var registerOnce sync.Once

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			guardRejections, relationRows, hierarchyViolations, changeEntries, jobRuns,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func GuardRejected(table string) {
	guardRejections.WithLabelValues(table).Inc()
}

func RelationRows(junction, action string, n int) {
	if n <= 0 {
		return
	}
	relationRows.WithLabelValues(junction, action).Add(float64(n))
}

func HierarchyViolation(reason string) {
	hierarchyViolations.WithLabelValues(reason).Inc()
}

func ChangeRecorded(componentType, changeType string) {
	changeEntries.WithLabelValues(componentType, changeType).Inc()
}

func JobRun(job, status string) {
	jobRuns.WithLabelValues(job, status).Inc()
}

// Instrument records request count, latency and in-flight gauge. routeFn maps a
// request to a low-cardinality route label; nil falls back to the raw path.
func Instrument(routeFn func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httpInFlight.Inc()
			defer httpInFlight.Dec()
			start := time.Now()

			sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := r.URL.Path
			if routeFn != nil {
				if label := routeFn(r); label != "" {
					route = label
				}
			}
			status := strconv.Itoa(sw.code)
			httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
			httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
