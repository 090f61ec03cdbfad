package telemetry

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values for datafile fetches.
const (
	SourceOrigin = "origin"
	SourceCache  = "cache"

	ResultOK    = "ok"
	ResultError = "error"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	httpDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	datafileFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datafile_fetches_total",
			Help: "Datafile lookups by where they were served from",
		},
		[]string{"source", "result"},
	)
	decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decisions_total",
			Help: "Flag decisions served",
		},
		[]string{"flag", "enabled"},
	)
	eventsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_dispatched_total",
			Help: "Impression event POSTs by outcome",
		},
		[]string{"result"},
	)

	BackgroundTasks = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "background_tasks",
		Help: "Number of background tasks that have not settled yet",
	})

	initOnce sync.Once
)

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpReqs, httpDur, datafileFetches, decisions, eventsDispatched, BackgroundTasks)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDatafileFetch counts one datafile lookup.
func ObserveDatafileFetch(source, result string) {
	datafileFetches.WithLabelValues(source, result).Inc()
}

// ObserveDecision counts one served decision.
func ObserveDecision(flag string, enabled bool) {
	decisions.WithLabelValues(flag, strconv.FormatBool(enabled)).Inc()
}

// ObserveEvent counts one event POST outcome.
func ObserveEvent(result string) {
	eventsDispatched.WithLabelValues(result).Inc()
}

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(ww, r)

		// route pattern is only known after chi has routed the request
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}

		httpReqs.WithLabelValues(route, r.Method, http.StatusText(ww.status)).Inc()
		httpDur.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
