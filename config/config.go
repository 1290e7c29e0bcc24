// Package config loads the daemon's process configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// environment variables (a .env file in the working directory is loaded
// first), then command-line flags applied by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"rotator/internal/fleet"
	"rotator/internal/hang"
	"rotator/internal/logging"
	"rotator/internal/rotation"
	"rotator/internal/signal/ntp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvServerNames   = "SERVER_CONTAINER_NAMES"
	EnvServerName    = "SERVER_CONTAINER_NAME"
	EnvDataRoot      = "DATA_ROOT"
	EnvNameMarker    = "SERVER_NAME_MARKER"
	EnvRotation      = "ROTATION_ENABLED"
	EnvRotationEvery = "ROTATION_INTERVAL"
	EnvHang          = "HANG_DETECTION_ENABLED"
	EnvHangEvery     = "HANG_CHECK_INTERVAL"
	EnvHangTimeout   = "HANG_TIMEOUT"
	EnvHangMarker    = "HANG_MARKER"
	EnvCallTimeout   = "CALL_TIMEOUT"
	EnvNTPPool       = "NTP_POOL"
	EnvLogLevel      = "LOG_LEVEL"
	EnvLogFormat     = "LOG_FORMAT"
)

type Config struct {
	Servers     []string       `yaml:"servers"`
	DataRoot    string         `yaml:"data-root"`
	NameMarker  string         `yaml:"name-marker"`
	CallTimeout time.Duration  `yaml:"call-timeout"`
	Rotation    RotationConfig `yaml:"rotation"`
	Hang        HangConfig     `yaml:"hang"`
	NTP         NTPConfig      `yaml:"ntp"`
	Log         LogConfig      `yaml:"log"`
}

type RotationConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

type HangConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
	Marker   string        `yaml:"marker"`
}

// NTPConfig controls the host clock check. An empty pool disables it.
type NTPConfig struct {
	Pool      string        `yaml:"pool"`
	Threshold time.Duration `yaml:"threshold"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration. It has no servers.
func Default() Config {
	return Config{
		DataRoot:    "/",
		NameMarker:  rotation.DefaultNameMarker,
		CallTimeout: rotation.DefaultCallTimeout,
		Rotation: RotationConfig{
			Enabled:  true,
			Interval: rotation.DefaultInterval,
		},
		Hang: HangConfig{
			Enabled:  true,
			Interval: hang.DefaultInterval,
			Timeout:  hang.DefaultThreshold,
			Marker:   hang.DefaultMarker,
		},
		NTP: NTPConfig{
			Pool:      ntp.DefaultPool,
			Threshold: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  logging.LevelInfo,
			Format: logging.FormatText,
		},
	}
}

// Load returns defaults overlaid with the YAML file at path. An empty path
// or a missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays values from the environment. lookup is os.LookupEnv in
// production.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	if v, ok := get(EnvServerNames); ok && v != "" {
		c.Servers = fleet.ParseNames(v)
	} else if v, ok := get(EnvServerName); ok && v != "" {
		c.Servers = []string{v}
	}
	if v, ok := get(EnvDataRoot); ok && v != "" {
		c.DataRoot = v
	}
	if v, ok := get(EnvNameMarker); ok {
		c.NameMarker = v
	}
	if v, ok := get(EnvHangMarker); ok && v != "" {
		c.Hang.Marker = v
	}
	if v, ok := get(EnvNTPPool); ok {
		c.NTP.Pool = v
	}
	if v, ok := get(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := get(EnvLogFormat); ok && v != "" {
		c.Log.Format = v
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{EnvRotation, &c.Rotation.Enabled},
		{EnvHang, &c.Hang.Enabled},
	}
	for _, b := range bools {
		v, ok := get(b.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", b.key, err)
		}
		*b.dst = parsed
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{EnvRotationEvery, &c.Rotation.Interval},
		{EnvHangEvery, &c.Hang.Interval},
		{EnvHangTimeout, &c.Hang.Timeout},
		{EnvCallTimeout, &c.CallTimeout},
	}
	for _, d := range durations {
		v, ok := get(d.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

// ParseDuration accepts Go duration strings ("90s", "6m") and bare integers,
// which are read as seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if len(c.Servers) == 0 {
		return fmt.Errorf("no server containers configured (set %s)", EnvServerNames)
	}
	if !c.Rotation.Enabled && !c.Hang.Enabled {
		return errors.New("both rotation and hang detection are disabled")
	}
	checks := []struct {
		name string
		d    time.Duration
	}{
		{"call timeout", c.CallTimeout},
		{"rotation interval", c.Rotation.Interval},
		{"hang check interval", c.Hang.Interval},
		{"hang timeout", c.Hang.Timeout},
	}
	for _, ch := range checks {
		if ch.d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", ch.name, ch.d)
		}
	}
	if c.DataRoot == "" {
		return errors.New("data root must not be empty")
	}
	return nil
}

// FleetServers returns the configured servers with their derived indexes.
func (c Config) FleetServers() []fleet.Server {
	out := make([]fleet.Server, 0, len(c.Servers))
	for _, name := range c.Servers {
		out = append(out, fleet.Server{Name: name, Index: rotation.ServerIndex(name, c.NameMarker)})
	}
	return out
}
