package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/make-42/tasogare/internal/auth"
	"github.com/make-42/tasogare/internal/health"
	"github.com/make-42/tasogare/internal/httputil"
	"github.com/make-42/tasogare/internal/metrics"
	"github.com/make-42/tasogare/internal/sky"
	"github.com/make-42/tasogare/internal/tle"
)

// FrameSource is the read side of the sky engine.
type FrameSource interface {
	Latest() *sky.Frame
	Tracked() int
}

// Deps are the handlers' data sources.
type Deps struct {
	Sky        FrameSource
	Dataset    *tle.Dataset
	Stream     http.HandlerFunc
	TrustProxy bool
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, authCfg auth.Config, deps Deps) *Server {
	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(func() bool { return deps.Sky.Latest() != nil }))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/sky", skyHandler(deps.Sky))
	mux.HandleFunc("GET /api/v1/sky/{name}", skySatelliteHandler(deps.Sky))
	mux.HandleFunc("GET /api/v1/dataset", datasetHandler(deps.Dataset, deps.Sky))
	if deps.Stream != nil {
		mux.HandleFunc("GET /api/v1/stream", deps.Stream)
	}

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger, deps.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// skyHandler serves the latest frame.
func skyHandler(src FrameSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frame := src.Latest()
		if frame == nil {
			writeError(w, http.StatusServiceUnavailable, "no frame computed yet")
			return
		}
		writeJSON(w, http.StatusOK, frame)
	}
}

type satelliteResponse struct {
	Time   time.Time     `json:"time"`
	Marker sky.Marker    `json:"marker"`
	Trail  *sky.Polyline `json:"trail,omitempty"`
}

// skySatelliteHandler serves one satellite's marker and trail from the latest frame.
func skySatelliteHandler(src FrameSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frame := src.Latest()
		if frame == nil {
			writeError(w, http.StatusServiceUnavailable, "no frame computed yet")
			return
		}
		name := r.PathValue("name")
		marker, pl, ok := frame.Find(name)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("satellite %q is not tracked", name))
			return
		}
		writeJSON(w, http.StatusOK, satelliteResponse{Time: frame.Time, Marker: marker, Trail: pl})
	}
}

type datasetResponse struct {
	Source   string    `json:"source"`
	LoadedAt time.Time `json:"loaded_at"`
	Count    int       `json:"count"`
	Tracked  int       `json:"tracked"`
	EpochMin time.Time `json:"epoch_min"`
	EpochMax time.Time `json:"epoch_max"`
}

// datasetHandler describes the element set the engine was built from.
func datasetHandler(ds *tle.Dataset, src FrameSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ds == nil {
			writeError(w, http.StatusServiceUnavailable, "no dataset loaded")
			return
		}
		writeJSON(w, http.StatusOK, datasetResponse{
			Source:   ds.Source,
			LoadedAt: ds.LoadedAt,
			Count:    len(ds.Satellites),
			Tracked:  src.Tracked(),
			EpochMin: ds.EpochRange.Min,
			EpochMax: ds.EpochRange.Max,
		})
	}
}

// probePath returns true for probe and scrape paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// Hijack lets the stream handler upgrade through the logging middleware.
func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer %T does not support hijacking", sr.ResponseWriter)
	}
	sr.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
