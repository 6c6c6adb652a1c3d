package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphummel/engin_maint/internal/schedule"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engin_maint_http_requests_total",
			Help: "Total number of HTTP requests by method, route, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engin_maint_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "engin_maint_http_requests_in_flight",
		Help: "Current number of HTTP requests being processed.",
	})
)

// EnginDB is the subset of db.DB needed to collect engin metrics.
type EnginDB interface {
	CountEnginsByType() (map[string]int, error)
}

// StatusCounter reports how many engins are in each schedule status.
type StatusCounter interface {
	CountByStatus() (map[schedule.Status]int, error)
}

// fleetCollector queries the database on each scrape to report engin counts
// by type and by maintenance status.
type fleetCollector struct {
	db       EnginDB
	planner  StatusCounter
	typeDesc *prometheus.Desc
	statDesc *prometheus.Desc
}

func newFleetCollector(db EnginDB, planner StatusCounter) *fleetCollector {
	return &fleetCollector{
		db:      db,
		planner: planner,
		typeDesc: prometheus.NewDesc(
			"engin_maint_engins_total",
			"Number of engins tracked, partitioned by type.",
			[]string{"type"},
			nil,
		),
		statDesc: prometheus.NewDesc(
			"engin_maint_schedule_engins",
			"Number of engins per preventive maintenance status.",
			[]string{"status"},
			nil,
		),
	}
}

func (c *fleetCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.typeDesc
	ch <- c.statDesc
}

func (c *fleetCollector) Collect(ch chan<- prometheus.Metric) {
	counts, err := c.db.CountEnginsByType()
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.typeDesc, err)
	} else {
		for typ, n := range counts {
			ch <- prometheus.MustNewConstMetric(c.typeDesc, prometheus.GaugeValue, float64(n), typ)
		}
	}

	byStatus, err := c.planner.CountByStatus()
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.statDesc, err)
		return
	}
	// Every status is reported so dashboards see explicit zeros.
	for status := range schedule.ValidStatuses {
		ch <- prometheus.MustNewConstMetric(c.statDesc, prometheus.GaugeValue, float64(byStatus[status]), string(status))
	}
}

// Register registers all metrics with reg, which must not already hold the Go
// or process collectors. Call once at startup after the database is
// initialised.
func Register(reg prometheus.Registerer, db EnginDB, planner StatusCounter) {
	reg.MustRegister(
		// Standard Go runtime and process metrics
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),

		// HTTP service metrics
		httpRequestsTotal,
		httpRequestDuration,
		httpRequestsInFlight,

		// Application metrics
		newFleetCollector(db, planner),
	)
}

// Handler returns the /metrics endpoint serving everything gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// responseWriter wraps http.ResponseWriter to capture the response status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware wraps an http.Handler to record HTTP metrics.
// pattern should be the route pattern string (e.g. "/api/v1/engins/{id}")
// so the path label has bounded cardinality.
func Middleware(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			httpRequestsInFlight.Dec()
			status := strconv.Itoa(rw.status)
			httpRequestsTotal.WithLabelValues(r.Method, pattern, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
		}()

		next.ServeHTTP(rw, r)
	})
}
