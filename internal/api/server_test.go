package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/make-42/tasogare/internal/auth"
	"github.com/make-42/tasogare/internal/sky"
	"github.com/make-42/tasogare/internal/stream"
	"github.com/make-42/tasogare/internal/tle"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

var frameTime = time.Date(2025, 1, 25, 18, 30, 0, 0, time.UTC)

type fakeSky struct {
	frame atomic.Pointer[sky.Frame]
}

func (f *fakeSky) Latest() *sky.Frame { return f.frame.Load() }
func (f *fakeSky) Tracked() int { return 2 }

func (f *fakeSky) publish() {
	f.frame.Store(&sky.Frame{
		Time: frameTime,
		Markers: []sky.Marker{
			{Name: "ISS (ZARYA)", NORADID: 25544, Position: mgl32.Vec2{120, -40}, Visible: true},
			{Name: "HST", NORADID: 20580},
		},
		Polylines: []sky.Polyline{
			{Name: "ISS (ZARYA)", Color: mgl32.Vec4{1, 0.65, 0, 0.87}, Points: []mgl32.Vec2{{100, -60}, {120, -40}}},
		},
	})
}

func testDataset() *tle.Dataset {
	return tle.NewDataset("testdata/visual.txt", []tle.TLEEntry{
		{NORADID: 25544, Name: "ISS (ZARYA)", Epoch: time.Date(2025, 1, 25, 0, 0, 42, 0, time.UTC)},
		{NORADID: 20580, Name: "HST", Epoch: time.Date(2025, 1, 24, 6, 0, 0, 0, time.UTC)},
	}, frameTime)
}

func newTestServer(src *fakeSky, authCfg auth.Config) http.Handler {
	h := stream.NewHandler(src, stream.Config{
		MaxConcurrentPerIP: 2,
		FrameRate:          10,
		KeepaliveInterval:  30 * time.Second,
	}, testLogger())
	srv := NewServer(":0", testLogger(), authCfg, Deps{
		Sky:     src,
		Dataset: testDataset(),
		Stream:  h.HandleStream,
	})
	return srv.HTTPServer().Handler
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestReadinessFollowsFirstFrame(t *testing.T) {
	src := &fakeSky{}
	h := newTestServer(src, auth.Config{})

	assert.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/readyz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/api/v1/sky").Code)

	src.publish()
	assert.Equal(t, http.StatusOK, get(t, h, "/readyz").Code)
}

func TestSkyHandler(t *testing.T) {
	src := &fakeSky{}
	src.publish()
	h := newTestServer(src, auth.Config{})

	w := get(t, h, "/api/v1/sky")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var frame sky.Frame
	require.NoError(t, json.NewDecoder(w.Body).Decode(&frame))
	assert.True(t, frame.Time.Equal(frameTime))
	require.Len(t, frame.Markers, 2)
	assert.Equal(t, mgl32.Vec2{120, -40}, frame.Markers[0].Position)
	assert.Equal(t, 1, frame.VisibleCount())
	require.Len(t, frame.Polylines, 1)
	assert.Len(t, frame.Polylines[0].Points, 2)
}

func TestSkySatelliteHandler(t *testing.T) {
	src := &fakeSky{}
	src.publish()
	h := newTestServer(src, auth.Config{})

	tests := []struct {
		name      string
		path      string
		wantCode  int
		wantTrail bool
	}{
		{"with trail", "/api/v1/sky/ISS%20%28ZARYA%29", http.StatusOK, true},
		{"without trail", "/api/v1/sky/HST", http.StatusOK, false},
		{"unknown", "/api/v1/sky/TIANGONG", http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, h, tt.path)
			require.Equal(t, tt.wantCode, w.Code)

			var resp map[string]any
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			if tt.wantCode != http.StatusOK {
				assert.Contains(t, resp["error"], "TIANGONG")
				return
			}
			assert.NotNil(t, resp["marker"])
			_, hasTrail := resp["trail"]
			assert.Equal(t, tt.wantTrail, hasTrail)
		})
	}
}

func TestDatasetHandler(t *testing.T) {
	h := newTestServer(&fakeSky{}, auth.Config{})

	w := get(t, h, "/api/v1/dataset")
	require.Equal(t, http.StatusOK, w.Code)

	var resp datasetResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "testdata/visual.txt", resp.Source)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, 2, resp.Tracked)
	assert.True(t, resp.EpochMin.Equal(time.Date(2025, 1, 24, 6, 0, 0, 0, time.UTC)))
	assert.True(t, resp.EpochMax.Equal(time.Date(2025, 1, 25, 0, 0, 42, 0, time.UTC)))
}

func TestAuthProtectsAPI(t *testing.T) {
	src := &fakeSky{}
	src.publish()
	h := newTestServer(src, auth.Config{Enabled: true, Token: "s3cret"})

	assert.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/readyz").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/metrics").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/api/v1/sky").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sky", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestStreamThroughMiddleware upgrades via the full middleware chain, which
// must pass Hijack through.
func TestStreamThroughMiddleware(t *testing.T) {
	src := &fakeSky{}
	src.publish()
	srv := httptest.NewServer(newTestServer(src, auth.Config{Enabled: true, Token: "s3cret"}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream?access_token=s3cret"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var meta map[string]any
	require.NoError(t, conn.ReadJSON(&meta))
	assert.Equal(t, "metadata", meta["type"])
	assert.EqualValues(t, 2, meta["tracked"])

	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "frame", frame["type"])
}

func TestStreamRejectsMissingToken(t *testing.T) {
	src := &fakeSky{}
	srv := httptest.NewServer(newTestServer(src, auth.Config{Enabled: true, Token: "s3cret"}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProbePath(t *testing.T) {
	assert.True(t, probePath("/healthz"))
	assert.True(t, probePath("/readyz"))
	assert.True(t, probePath("/metrics"))
	assert.False(t, probePath("/api/v1/sky"))
}
