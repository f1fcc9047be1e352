// Package config loads the YAML configuration shared by all commands.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPaths are tried in order when Load is called without paths.
var DefaultPaths = []string{"config.yml", "./config/config.yml"}

type RelayConfig struct {
	BaseURL string        `yaml:"baseURL" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

type PollingConfig struct {
	Interval    time.Duration `yaml:"interval" validate:"gt=0"`
	MinimumWait time.Duration `yaml:"minimumWait" validate:"gte=0"`
	WarmupGrace time.Duration `yaml:"warmupGrace" validate:"gte=0"`
}

type MapConfig struct {
	TileURL string  `yaml:"tileURL" validate:"required"`
	Lon     float64 `yaml:"lon" validate:"gte=-180,lte=180"`
	Lat     float64 `yaml:"lat" validate:"gte=-85.0511,lte=85.0511"`
	Zoom    float64 `yaml:"zoom" validate:"gte=0,lte=19"`
}

type RenderConfig struct {
	Width  int `yaml:"width" validate:"gt=0"`
	Height int `yaml:"height" validate:"gt=0"`
	TPS    int `yaml:"tps" validate:"gt=0"`
	// CaptureDir receives PNG frame captures.
	CaptureDir string `yaml:"captureDir"`
}

type StreamConfig struct {
	Listen        string        `yaml:"listen" validate:"required"`
	FrameInterval time.Duration `yaml:"frameInterval" validate:"gt=0"`
}

type TilesConfig struct {
	CacheTTL time.Duration `yaml:"cacheTTL" validate:"gte=0"`
	// CachePath keeps tiles on disk between runs. Empty means in memory.
	CachePath string `yaml:"cachePath"`
}

type LogConfig struct {
	Format string `yaml:"format" validate:"omitempty,oneof=console json JSON"`
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
}

type Config struct {
	Relay         RelayConfig   `yaml:"relay"`
	Polling       PollingConfig `yaml:"polling"`
	Map           MapConfig     `yaml:"map"`
	Render        RenderConfig  `yaml:"render"`
	Stream        StreamConfig  `yaml:"stream"`
	Tiles         TilesConfig   `yaml:"tiles"`
	DefaultSource string        `yaml:"defaultSource" validate:"required"`
	Log           LogConfig     `yaml:"log"`
}

func Default() *Config {
	return &Config{
		Relay: RelayConfig{
			BaseURL: "http://localhost:4002",
			Timeout: 15 * time.Second,
		},
		Polling: PollingConfig{
			Interval:    20 * time.Second,
			MinimumWait: time.Second,
			WarmupGrace: 250 * time.Millisecond,
		},
		Map: MapConfig{
			TileURL: "https://tile.basemaps.cartocdn.com/light_all/{z}/{x}/{y}.png",
			Lon:     4.3517,
			Lat:     50.8503,
			Zoom:    12,
		},
		Render: RenderConfig{
			Width:      1280,
			Height:     720,
			TPS:        60,
			CaptureDir: "captures",
		},
		Stream: StreamConfig{
			Listen:        ":8080",
			FrameInterval: 100 * time.Millisecond,
		},
		Tiles: TilesConfig{
			CacheTTL: time.Hour,
		},
		DefaultSource: "stib",
		Log: LogConfig{
			Format: "console",
			Level:  "info",
		},
	}
}

// Load reads the first existing file of paths (DefaultPaths when empty),
// fills unset values with defaults, applies MOBILITY_* environment
// overrides and validates the result. A missing file is not an error.
func Load(paths ...string) (*Config, error) {
	if len(paths) == 0 {
		paths = DefaultPaths
	}

	cfg := Default()
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		var fromFile Config
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		cfg = merge(cfg, &fromFile)
		break
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("MOBILITY_RELAY_URL"); v != "" {
		cfg.Relay.BaseURL = v
	}
	if v := os.Getenv("MOBILITY_SOURCE"); v != "" {
		cfg.DefaultSource = v
	}
	if v := os.Getenv("MOBILITY_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("MOBILITY_POLL_INTERVAL: %w", err)
		}
		cfg.Polling.Interval = d
	}
	return nil
}

// merge copies every non-zero value of f over base.
func merge(base, f *Config) *Config {
	out := *base
	str(&out.Relay.BaseURL, f.Relay.BaseURL)
	dur(&out.Relay.Timeout, f.Relay.Timeout)
	dur(&out.Polling.Interval, f.Polling.Interval)
	dur(&out.Polling.MinimumWait, f.Polling.MinimumWait)
	dur(&out.Polling.WarmupGrace, f.Polling.WarmupGrace)
	str(&out.Map.TileURL, f.Map.TileURL)
	num(&out.Map.Lon, f.Map.Lon)
	num(&out.Map.Lat, f.Map.Lat)
	num(&out.Map.Zoom, f.Map.Zoom)
	integer(&out.Render.Width, f.Render.Width)
	integer(&out.Render.Height, f.Render.Height)
	integer(&out.Render.TPS, f.Render.TPS)
	str(&out.Render.CaptureDir, f.Render.CaptureDir)
	str(&out.Stream.Listen, f.Stream.Listen)
	dur(&out.Stream.FrameInterval, f.Stream.FrameInterval)
	dur(&out.Tiles.CacheTTL, f.Tiles.CacheTTL)
	str(&out.Tiles.CachePath, f.Tiles.CachePath)
	str(&out.DefaultSource, f.DefaultSource)
	str(&out.Log.Format, f.Log.Format)
	str(&out.Log.Level, f.Log.Level)
	return &out
}

func str(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func dur(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

func num(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func integer(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
