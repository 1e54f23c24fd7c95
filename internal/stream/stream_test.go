package stream

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/make-42/tasogare/internal/sky"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

func testConfig() Config {
	return Config{
		MaxConcurrentPerIP: 10,
		FrameRate:          20,
		KeepaliveInterval:  30 * time.Second,
	}
}

type fakeSource struct {
	frame atomic.Pointer[sky.Frame]
}

func (f *fakeSource) Latest() *sky.Frame { return f.frame.Load() }
func (f *fakeSource) Tracked() int { return 1 }

func newFakeSource() *fakeSource {
	src := &fakeSource{}
	src.frame.Store(&sky.Frame{
		Time: time.Date(2026, 2, 6, 4, 0, 0, 0, time.UTC),
		Markers: []sky.Marker{
			{Name: "ISS (ZARYA)", NORADID: 25544, Position: mgl32.Vec2{120, -40}, Visible: true},
		},
	})
	return src
}

func dial(t *testing.T, srv *httptest.Server, query string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream" + query
	return websocket.DefaultDialer.Dial(url, nil)
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestStreamSendsMetadataThenFrame(t *testing.T) {
	src := newFakeSource()
	h := NewHandler(src, testConfig(), testLogger())
	srv := httptest.NewServer(http.HandlerFunc(h.HandleStream))
	defer srv.Close()

	conn, _, err := dial(t, srv, "")
	require.NoError(t, err)
	defer conn.Close()

	meta := readJSON(t, conn)
	assert.Equal(t, "metadata", meta["type"])
	assert.EqualValues(t, 1, meta["tracked"])
	assert.EqualValues(t, 20, meta["frame_rate"])

	msg := readJSON(t, conn)
	require.Equal(t, "frame", msg["type"])
	frame := msg["frame"].(map[string]any)
	markers := frame["markers"].([]any)
	require.Len(t, markers, 1)
	m := markers[0].(map[string]any)
	assert.Equal(t, "ISS (ZARYA)", m["name"])
	assert.Equal(t, true, m["visible"])
	assert.Equal(t, []any{120.0, -40.0}, m["position"])
}

func TestStreamSendsOnlyNewFrames(t *testing.T) {
	src := newFakeSource()
	h := NewHandler(src, testConfig(), testLogger())
	srv := httptest.NewServer(http.HandlerFunc(h.HandleStream))
	defer srv.Close()

	conn, _, err := dial(t, srv, "")
	require.NoError(t, err)
	defer conn.Close()

	readJSON(t, conn) // metadata
	first := readJSON(t, conn)["frame"].(map[string]any)

	next := &sky.Frame{Time: time.Date(2026, 2, 6, 4, 0, 1, 0, time.UTC)}
	src.frame.Store(next)

	second := readJSON(t, conn)["frame"].(map[string]any)
	assert.NotEqual(t, first["time"], second["time"])
	assert.Equal(t, "2026-02-06T04:00:01Z", second["time"])
}

func TestStreamRejectsBadRate(t *testing.T) {
	h := NewHandler(newFakeSource(), testConfig(), testLogger())

	for _, q := range []string{"?rate=0", "?rate=-1", "?rate=abc", "?rate=1000"} {
		t.Run(q, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/stream"+q, nil)
			req.RemoteAddr = "127.0.0.1:12345"
			w := httptest.NewRecorder()
			h.HandleStream(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var resp map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Contains(t, resp["error"], "rate")
		})
	}
}

func TestStreamRequiresUpgrade(t *testing.T) {
	h := NewHandler(newFakeSource(), testConfig(), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stream", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	w := httptest.NewRecorder()
	h.HandleStream(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	perIP, total := h.limiter.count("127.0.0.1")
	assert.Zero(t, perIP, "slot released")
	assert.Zero(t, total)
}

// TestRateLimitHTTPResponse verifies a 429 when the per-IP limit is reached.
func TestRateLimitHTTPResponse(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentPerIP = 1
	h := NewHandler(newFakeSource(), cfg, testLogger())
	srv := httptest.NewServer(http.HandlerFunc(h.HandleStream))
	defer srv.Close()

	first, _, err := dial(t, srv, "")
	require.NoError(t, err)
	readJSON(t, first)

	_, resp, err := dial(t, srv, "")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// Closing the first stream frees the slot.
	first.Close()
	require.Eventually(t, func() bool {
		perIP, _ := h.limiter.count("127.0.0.1")
		return perIP == 0
	}, 5*time.Second, 10*time.Millisecond)

	second, _, err := dial(t, srv, "")
	require.NoError(t, err)
	second.Close()
}

// TestRateLimiting verifies per-IP concurrent stream limits.
func TestRateLimiting(t *testing.T) {
	limiter := newStreamLimiter(3, 0)

	for i := 0; i < 3; i++ {
		ok, _ := limiter.acquire("10.0.0.1")
		require.True(t, ok, "acquire %d should succeed", i+1)
	}
	ok, reason := limiter.acquire("10.0.0.1")
	assert.False(t, ok, "acquire beyond limit should fail")
	assert.Equal(t, limitPerIP, reason)

	ok, _ = limiter.acquire("10.0.0.2")
	assert.True(t, ok, "different IP should not be rate limited")

	limiter.release("10.0.0.1")
	ok, _ = limiter.acquire("10.0.0.1")
	assert.True(t, ok, "acquire after release should succeed")

	perIP, total := limiter.count("10.0.0.1")
	assert.Equal(t, 3, perIP)
	assert.Equal(t, 4, total)
}

func TestRateLimitingTotal(t *testing.T) {
	limiter := newStreamLimiter(5, 2)

	ok, _ := limiter.acquire("10.0.0.1")
	require.True(t, ok)
	ok, _ = limiter.acquire("10.0.0.2")
	require.True(t, ok)

	ok, reason := limiter.acquire("10.0.0.3")
	assert.False(t, ok)
	assert.Equal(t, limitTotal, reason)

	// Releasing an unknown IP must not free a slot.
	limiter.release("10.0.0.9")
	ok, _ = limiter.acquire("10.0.0.3")
	assert.False(t, ok)

	limiter.release("10.0.0.1")
	ok, _ = limiter.acquire("10.0.0.3")
	assert.True(t, ok)
}

// TestRateLimitingConcurrent verifies rate limiter thread safety.
func TestRateLimitingConcurrent(t *testing.T) {
	limiter := newStreamLimiter(100, 0)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := limiter.acquire("10.0.0.1"); ok {
				defer limiter.release("10.0.0.1")
				time.Sleep(10 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	perIP, total := limiter.count("10.0.0.1")
	assert.Zero(t, perIP)
	assert.Zero(t, total)
}
