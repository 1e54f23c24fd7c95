package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasogare_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tasogare_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	windowRecomputesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasogare_window_recomputes_total",
			Help: "Window recompute passes by entity kind.",
		},
		[]string{"kind"},
	)

	scanSteps = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tasogare_window_scan_steps",
			Help:    "Propagation steps taken per recompute pass.",
			Buckets: prometheus.ExponentialBuckets(8, 2, 10),
		},
		[]string{"kind"},
	)

	propagationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasogare_propagation_errors_total",
			Help: "Recompute passes cut short by a propagation failure.",
		},
		[]string{"kind"},
	)

	curveFitFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tasogare_curve_fit_failures_total",
			Help: "Trails skipped because the window had too few points.",
		},
	)

	tickDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tasogare_tick_duration_seconds",
			Help:    "Duration of one engine tick.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	satellitesTracked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tasogare_satellites_tracked",
			Help: "Satellites with a working propagator.",
		},
	)

	satellitesVisible = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tasogare_satellites_visible",
			Help: "Satellites above the horizon at the last tick.",
		},
	)

	tleEpochAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tasogare_tle_epoch_age_seconds",
			Help: "Age of the newest element set epoch.",
		},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasogare_stream_connections_total",
			Help: "Stream connect and disconnect events.",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tasogare_streams_active",
			Help: "Open frame streams.",
		},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tasogare_stream_messages_total",
			Help: "Frames written to streams.",
		},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tasogare_stream_bytes_total",
			Help: "Bytes written to streams.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasogare_stream_errors_total",
			Help: "Stream errors by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		windowRecomputesTotal,
		scanSteps,
		propagationErrorsTotal,
		curveFitFailuresTotal,
		tickDurationSeconds,
		satellitesTracked,
		satellitesVisible,
		tleEpochAgeSeconds,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func IncWindowRecompute(kind string) { windowRecomputesTotal.WithLabelValues(kind).Inc() }
func ObserveScanSteps(kind string, steps int) { scanSteps.WithLabelValues(kind).Observe(float64(steps)) }
func IncPropagationErrors(kind string) { propagationErrorsTotal.WithLabelValues(kind).Inc() }
func IncCurveFitFailures() { curveFitFailuresTotal.Inc() }
func ObserveTickDuration(d time.Duration) { tickDurationSeconds.Observe(d.Seconds()) }
func SetSatellitesTracked(n int) { satellitesTracked.Set(float64(n)) }
func SetSatellitesVisible(n int) { satellitesVisible.Set(float64(n)) }
func SetTLEEpochAge(seconds float64) { tleEpochAgeSeconds.Set(seconds) }

func IncStreamConnections(event string) { streamConnectionsTotal.WithLabelValues(event).Inc() }
func IncStreamsActive() { streamsActive.Inc() }
func DecStreamsActive() { streamsActive.Dec() }
func IncStreamMessages() { streamMessagesTotal.Inc() }
func AddStreamBytes(n int64) { streamBytesTotal.Add(float64(n)) }
func IncStreamErrors(reason string) { streamErrorsTotal.WithLabelValues(reason).Inc() }

// knownRoutes are the exact paths served by the API.
var knownRoutes = map[string]bool{
	"/healthz":        true,
	"/readyz":         true,
	"/metrics":        true,
	"/api/v1/sky":     true,
	"/api/v1/stream":  true,
	"/api/v1/dataset": true,
}

// normalizeRoute maps a request path to a bounded label set.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if name, ok := strings.CutPrefix(path, "/api/v1/sky/"); ok && name != "" && !strings.Contains(name, "/") {
		return "/api/v1/sky/{name}"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack is required by the websocket upgrader.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: underlying ResponseWriter does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
