// Package stream pushes engine frames to websocket clients. Clients connect
// via GET /api/v1/stream and receive JSON messages:
//
//	{"type":"metadata","tracked":12,"frame_rate":1}
//	{"type":"frame","frame":{"time":"...","markers":[...],"polylines":[...]}}
//
// The first message is always metadata. A frame is sent only when the engine
// has published a new one, at most frame_rate times per second; a ping goes
// out when nothing was written for KeepaliveInterval.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/make-42/tasogare/internal/httputil"
	"github.com/make-42/tasogare/internal/metrics"
	"github.com/make-42/tasogare/internal/sky"
)

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	MaxTotal           int           // Max concurrent streams overall (default: 1000).
	FrameRate          float64       // Max frames per second per stream (default: 1).
	KeepaliveInterval  time.Duration // Ping interval when idle (default: 30s).
	TrustProxy         bool          // Take the client IP from X-Forwarded-For.
}

// FrameSource is the engine as seen by the stream.
type FrameSource interface {
	Latest() *sky.Frame
	Tracked() int
}

// Handler manages websocket stream connections.
type Handler struct {
	source   FrameSource
	config   Config
	limiter  *streamLimiter
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(source FrameSource, config Config, logger *slog.Logger) *Handler {
	return &Handler{
		source:  source,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// HandleStream serves GET /api/v1/stream?rate=0.5.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	fps := h.config.FrameRate
	if v := r.URL.Query().Get("rate"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f > h.config.FrameRate {
			writeError(w, http.StatusBadRequest, "invalid rate parameter, must be in (0, "+
				strconv.FormatFloat(h.config.FrameRate, 'f', -1, 64)+"]")
			return
		}
		fps = f
	}

	// Rate limiting: enforce concurrent stream limit per IP.
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if ok, reason := h.limiter.acquire(ip); !ok {
		perIP, total := h.limiter.count(ip)
		metrics.IncStreamErrors(reason)
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"reason", reason,
			"open_for_ip", perIP,
			"open_total", total,
		)
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}
	defer h.limiter.release(ip)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		metrics.IncStreamErrors("upgrade")
		h.logger.Debug("websocket upgrade failed", "remote_ip", ip, "error", err)
		return
	}
	defer conn.Close()

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()
	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"frame_rate", fps,
	)

	c := &client{conn: conn, ip: ip, logger: h.logger}
	defer func() {
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
			"messages_sent", c.messagesSent,
			"bytes_sent", c.bytesSent,
		)
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go c.readLoop(cancel)

	if err := c.sendJSON(metadataMessage{Type: "metadata", Tracked: h.source.Tracked(), FrameRate: fps}); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}

	h.pump(ctx, c, rate.NewLimiter(rate.Limit(fps), 1))
}

// pump sends each newly published frame, paced by lim, until ctx is done or
// a write fails.
func (h *Handler) pump(ctx context.Context, c *client, lim *rate.Limiter) {
	var last *sky.Frame
	lastWrite := time.Now()

	for {
		if err := lim.Wait(ctx); err != nil {
			return
		}

		frame := h.source.Latest()
		if frame == nil || frame == last {
			if time.Since(lastWrite) >= h.config.KeepaliveInterval {
				if err := c.sendPing(); err != nil {
					metrics.IncStreamErrors("send_error")
					h.logger.Warn("stream keepalive error", "remote_ip", c.ip, "error", err)
					return
				}
				lastWrite = time.Now()
			}
			continue
		}

		if err := c.sendJSON(frameMessage{Type: "frame", Frame: frame}); err != nil {
			metrics.IncStreamErrors("send_error")
			h.logger.Warn("stream send error", "remote_ip", c.ip, "error", err)
			return
		}
		last = frame
		lastWrite = time.Now()
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Stream message payload types.

type metadataMessage struct {
	Type      string  `json:"type"`
	Tracked   int     `json:"tracked"`
	FrameRate float64 `json:"frame_rate"`
}

type frameMessage struct {
	Type  string     `json:"type"`
	Frame *sky.Frame `json:"frame"`
}
