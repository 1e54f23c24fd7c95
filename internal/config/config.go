// Package config loads the runtime snapshot from TASOGARE_* environment
// variables. Invalid values are logged and replaced by their default; the
// snapshot is never changed after Load returns.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/make-42/tasogare/internal/auth"
	"github.com/make-42/tasogare/internal/orbit"
	"github.com/make-42/tasogare/internal/sky"
	"github.com/make-42/tasogare/internal/stream"
	"github.com/make-42/tasogare/internal/trail"
	"github.com/make-42/tasogare/internal/transform"
	"github.com/make-42/tasogare/internal/window"
)

const envPrefix = "TASOGARE_"

// Config is the full runtime configuration.
type Config struct {
	// Observer, degrees and meters.
	Latitude  float64
	Longitude float64
	Altitude  float64

	AzimuthOffset float64 // degrees
	SceneRadius   float64

	TrailSimStep     time.Duration
	TrailMaxLength   time.Duration
	TrailMaxForecast time.Duration
	TrailResolution  int
	TrailColor       mgl32.Vec4
	TrailTension     float32

	Backend      orbit.Backend
	Workers      int
	TickInterval time.Duration

	TLEPath    string
	Satellites []string // names to track; empty tracks the whole file

	HTTPAddr   string
	TrustProxy bool
	Auth       auth.Config
	Stream     stream.Config
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Latitude:         48.8,
		Longitude:        2.3,
		Altitude:         0,
		AzimuthOffset:    0,
		SceneRadius:      600,
		TrailSimStep:     30 * time.Second,
		TrailMaxLength:   3600 * time.Second,
		TrailMaxForecast: 86400 * time.Second,
		TrailResolution:  64,
		TrailColor:       mgl32.Vec4{1, 165.0 / 255, 0, 221.0 / 255},
		TrailTension:     trail.DefaultTension,
		Backend:          orbit.BackendSGP4,
		Workers:          runtime.NumCPU(),
		TickInterval:     time.Second,
		TLEPath:          defaultTLEPath(),
		HTTPAddr:         ":8080",
		Stream: stream.Config{
			MaxConcurrentPerIP: 10,
			MaxTotal:           1000,
			FrameRate:          1,
			KeepaliveInterval:  30 * time.Second,
		},
	}
}

// Load reads the environment on top of Default and validates the result.
func Load(logger *slog.Logger) (Config, error) {
	return load(os.Getenv, logger)
}

func load(getenv func(string) string, logger *slog.Logger) (Config, error) {
	cfg := Default()
	env := envReader{getenv: getenv, logger: logger}

	env.float("LATITUDE", &cfg.Latitude)
	env.float("LONGITUDE", &cfg.Longitude)
	env.float("ALTITUDE", &cfg.Altitude)
	env.float("AZIMUTH_OFFSET", &cfg.AzimuthOffset)
	env.float("SCENE_RADIUS", &cfg.SceneRadius)

	env.seconds("TRAIL_SIM_STEP", &cfg.TrailSimStep)
	env.seconds("TRAIL_MAX_LENGTH", &cfg.TrailMaxLength)
	env.seconds("TRAIL_MAX_FORECAST", &cfg.TrailMaxForecast)
	env.positiveInt("TRAIL_RESOLUTION", &cfg.TrailResolution)

	if v := getenv(envPrefix + "TRAIL_COLOR"); v != "" {
		c, err := ParseHexColor(v)
		if err != nil {
			logger.Warn("invalid "+envPrefix+"TRAIL_COLOR value, using default", "value", v, "error", err)
		} else {
			cfg.TrailColor = c
		}
	}

	tension := float64(cfg.TrailTension)
	env.float("TRAIL_TENSION", &tension)
	cfg.TrailTension = float32(tension)

	if v := getenv(envPrefix + "BACKEND"); v != "" {
		b, err := orbit.ParseBackend(v)
		if err != nil {
			logger.Warn("invalid "+envPrefix+"BACKEND value, using default", "value", v, "default", cfg.Backend)
		} else {
			cfg.Backend = b
		}
	}

	env.positiveInt("WORKERS", &cfg.Workers)
	env.millis("TICK_INTERVAL_MS", &cfg.TickInterval)

	env.str("TLE_PATH", &cfg.TLEPath)
	if v := getenv(envPrefix + "SATELLITES"); v != "" {
		cfg.Satellites = splitList(v)
	}

	env.str("HTTP_ADDR", &cfg.HTTPAddr)
	env.boolean("TRUST_PROXY", &cfg.TrustProxy)

	env.positiveInt("STREAM_MAX_CONCURRENT", &cfg.Stream.MaxConcurrentPerIP)
	env.positiveInt("STREAM_MAX_TOTAL", &cfg.Stream.MaxTotal)
	env.float("STREAM_FRAME_RATE", &cfg.Stream.FrameRate)
	env.seconds("STREAM_KEEPALIVE_INTERVAL", &cfg.Stream.KeepaliveInterval)
	cfg.Stream.TrustProxy = cfg.TrustProxy

	if v := getenv(envPrefix + "AUTH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, errors.New(envPrefix + "AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Auth.Enabled = enabled
	}
	if cfg.Auth.Enabled {
		cfg.Auth.Token = getenv(envPrefix + "AUTH_TOKEN")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	logger.Info("config",
		"latitude", cfg.Latitude,
		"longitude", cfg.Longitude,
		"altitude_m", cfg.Altitude,
		"azimuth_offset_deg", cfg.AzimuthOffset,
		"trail_sim_step_seconds", cfg.TrailSimStep.Seconds(),
		"trail_max_length_seconds", cfg.TrailMaxLength.Seconds(),
		"trail_max_forecast_seconds", cfg.TrailMaxForecast.Seconds(),
		"trail_resolution", cfg.TrailResolution,
		"backend", cfg.Backend,
		"workers", cfg.Workers,
		"tick_interval_ms", cfg.TickInterval.Milliseconds(),
		"tle_path", cfg.TLEPath,
		"satellites", cfg.Satellites,
		"http_addr", cfg.HTTPAddr,
		"auth_enabled", cfg.Auth.Enabled,
	)
	return cfg, nil
}

// Validate reports every out-of-range field.
func (c Config) Validate() error {
	var errs []error
	if c.Latitude < -90 || c.Latitude > 90 {
		errs = append(errs, fmt.Errorf("latitude %v outside [-90, 90]", c.Latitude))
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		errs = append(errs, fmt.Errorf("longitude %v outside [-180, 180]", c.Longitude))
	}
	if c.SceneRadius <= 0 {
		errs = append(errs, fmt.Errorf("scene radius must be positive, got %v", c.SceneRadius))
	}
	if err := c.scanConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.TrailResolution < 2 {
		errs = append(errs, fmt.Errorf("trail resolution must be at least 2, got %d", c.TrailResolution))
	}
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick interval must be positive, got %v", c.TickInterval))
	}
	if c.Stream.FrameRate <= 0 {
		errs = append(errs, fmt.Errorf("stream frame rate must be positive, got %v", c.Stream.FrameRate))
	}
	if c.TLEPath == "" {
		errs = append(errs, errors.New("TLE path is required"))
	}
	if c.Auth.Enabled && c.Auth.Token == "" {
		errs = append(errs, errors.New(envPrefix+"AUTH_TOKEN is required when auth is enabled"))
	}
	return errors.Join(errs...)
}

func (c Config) scanConfig() window.ScanConfig {
	return window.ScanConfig{
		Step:        c.TrailSimStep,
		MaxLength:   c.TrailMaxLength,
		MaxForecast: c.TrailMaxForecast,
	}
}

// Sky returns the engine settings derived from c.
func (c Config) Sky() sky.Settings {
	return sky.Settings{
		Observer:        transform.NewObserver(c.Latitude, c.Longitude, c.Altitude),
		Projector:       transform.NewProjector(c.SceneRadius, c.AzimuthOffset),
		Scan:            c.scanConfig(),
		Backend:         c.Backend,
		TrailColor:      c.TrailColor,
		TrailResolution: c.TrailResolution,
		TrailTension:    c.TrailTension,
		Workers:         c.Workers,
	}
}

// ParseHexColor parses #RRGGBB or #RRGGBBAA into normalized RGBA.
func ParseHexColor(s string) (mgl32.Vec4, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return mgl32.Vec4{}, fmt.Errorf("color %q: want #RRGGBB or #RRGGBBAA", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return mgl32.Vec4{}, fmt.Errorf("color %q: %w", s, err)
	}
	return mgl32.Vec4{
		float32(v>>24&0xff) / 255,
		float32(v>>16&0xff) / 255,
		float32(v>>8&0xff) / 255,
		float32(v&0xff) / 255,
	}, nil
}

// defaultTLEPath is TLEDATA under the user config directory, falling back to
// the working directory.
func defaultTLEPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "TLEDATA"
	}
	return filepath.Join(dir, "ontake", "tasogare", "TLEDATA")
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// envReader applies TASOGARE_* overrides, warning and keeping the default
// when a value does not parse.
type envReader struct {
	getenv func(string) string
	logger *slog.Logger
}

func (r envReader) lookup(key string) (string, string, bool) {
	name := envPrefix + key
	v := r.getenv(name)
	return name, v, v != ""
}

func (r envReader) str(key string, dst *string) {
	if _, v, ok := r.lookup(key); ok {
		*dst = v
	}
}

func (r envReader) float(key string, dst *float64) {
	name, v, ok := r.lookup(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.logger.Warn("invalid "+name+" value, using default", "value", v, "default", *dst)
		return
	}
	*dst = f
}

func (r envReader) positiveInt(key string, dst *int) {
	name, v, ok := r.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		r.logger.Warn("invalid "+name+" value, using default", "value", v, "default", *dst)
		return
	}
	*dst = n
}

func (r envReader) seconds(key string, dst *time.Duration) {
	r.duration(key, time.Second, dst)
}

func (r envReader) millis(key string, dst *time.Duration) {
	r.duration(key, time.Millisecond, dst)
}

func (r envReader) duration(key string, unit time.Duration, dst *time.Duration) {
	name, v, ok := r.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		r.logger.Warn("invalid "+name+" value, using default", "value", v, "default", int64(*dst/unit))
		return
	}
	*dst = time.Duration(n) * unit
}

func (r envReader) boolean(key string, dst *bool) {
	name, v, ok := r.lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.logger.Warn("invalid "+name+" value, using default", "value", v, "default", *dst)
		return
	}
	*dst = b
}
