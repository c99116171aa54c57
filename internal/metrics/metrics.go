// Package metrics exposes Prometheus metrics for the API and the ingest job.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "places_http_requests_total",
			Help: "HTTP requests handled by the places API.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "places_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Middleware records request counts and latency labelled by chi route
// pattern, so /restaurants/{id} stays one series.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if p := rc.RoutePattern(); p != "" {
					route = p
				}
			}
			httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// Ingest collects one job run's counters on a private registry so they can
// be pushed to a Pushgateway when the process exits.
type Ingest struct {
	reg      *prometheus.Registry
	outcomes *prometheus.CounterVec
	duration prometheus.Gauge
	lastRun  prometheus.Gauge
}

func NewIngest() *Ingest {
	m := &Ingest{
		reg: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "places_ingest_outcomes_total",
			Help: "Ingestion outcomes by kind for the last run.",
		}, []string{"outcome"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "places_ingest_duration_seconds",
			Help: "Wall time of the last ingestion run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "places_ingest_last_run_timestamp_seconds",
			Help: "Unix time the last ingestion run finished.",
		}),
	}
	m.reg.MustRegister(m.outcomes, m.duration, m.lastRun)
	return m
}

// Record adds one run's outcome counts.
func (m *Ingest) Record(counts map[string]int, took time.Duration) {
	for k, v := range counts {
		m.outcomes.WithLabelValues(k).Add(float64(v))
	}
	m.duration.Set(took.Seconds())
	m.lastRun.SetToCurrentTime()
}

// Push sends the registry to a Pushgateway under the given job name.
func (m *Ingest) Push(url, job string) error {
	return push.New(url, job).Gatherer(m.reg).Push()
}
