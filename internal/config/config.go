// Package config handles configuration file loading and parsing.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/dickwu/noticewin/internal/model"
)

// Default configuration values.
const (
	DefaultRoutePrefix   = "/notice/"
	DefaultStoreName     = "noticewin"
	DefaultWidth         = 360
	DefaultHeight        = 240
	DefaultPosition      = model.PresetTopRight
	DefaultPadding       = 10
	FallbackScreenWidth  = 1920
	FallbackScreenHeight = 1080
)

// Config is the process-wide noticewin configuration.
// Loaded from ~/.config/noticewin/config.toml
type Config struct {
	// RoutePrefix maps a message kind to a presentation template route,
	// e.g. "/notice/" + kind.
	RoutePrefix string `toml:"route_prefix"`

	// StoreName namespaces the durable store (the bbolt bucket name).
	StoreName string `toml:"store_name"`

	// DefaultWidth and DefaultHeight size windows whose message carries no
	// min_width/min_height.
	DefaultWidth  int `toml:"default_width"`
	DefaultHeight int `toml:"default_height"`

	Display DisplayConfig `toml:"display"`
	Audio   AudioConfig   `toml:"audio"`
}

// DisplayConfig contains window placement settings.
type DisplayConfig struct {
	Position string `toml:"position"` // "top-right", "center", etc.
	Padding  int    `toml:"padding"`  // Pixels from screen edges

	// FallbackWidth and FallbackHeight stand in for the screen resolution
	// when display metrics are unavailable.
	FallbackWidth  int `toml:"fallback_width"`
	FallbackHeight int `toml:"fallback_height"`
}

// AudioConfig contains the presentation chime settings.
type AudioConfig struct {
	Enabled bool   `toml:"enabled"`
	Sound   string `toml:"sound"`  // Path to a wav/ogg/mp3 file
	Volume  int    `toml:"volume"` // 0-100
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		RoutePrefix:   DefaultRoutePrefix,
		StoreName:     DefaultStoreName,
		DefaultWidth:  DefaultWidth,
		DefaultHeight: DefaultHeight,
		Display: DisplayConfig{
			Position:       DefaultPosition,
			Padding:        DefaultPadding,
			FallbackWidth:  FallbackScreenWidth,
			FallbackHeight: FallbackScreenHeight,
		},
		Audio: AudioConfig{
			Enabled: false,
			Volume:  80,
		},
	}
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "noticewin", "config.toml"), nil
}

// DataDir returns the path to the noticewin data directory.
// Uses XDG_DATA_HOME or defaults to ~/.local/share/noticewin.
func DataDir() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "noticewin"), nil
}

// StorePath returns the path to the durable store database file.
func StorePath() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "messages.db"), nil
}

// StatePath returns the path to the shared queue snapshot file used by the
// cross-context synchronizer.
func StatePath() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "state.json"), nil
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	path, err := DataDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// Load loads configuration from the specified path.
// If path is empty, uses the default config path. Returns the default config
// if the file doesn't exist. Invalid values are corrected to defaults with a
// warning; a bad config is never fatal.
func Load(path string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if path == "" {
		var err error
		path, err = ConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Normalize(logger)
	return cfg, nil
}

// Save writes the configuration to the specified path atomically.
func (c *Config) Save(path string) error {
	if path == "" {
		var err error
		path, err = ConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Normalize corrects invalid configuration values back to defaults,
// logging a warning for each correction.
func (c *Config) Normalize(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	if c.RoutePrefix == "" {
		c.RoutePrefix = DefaultRoutePrefix
	}
	if !strings.HasSuffix(c.RoutePrefix, "/") {
		c.RoutePrefix += "/"
	}

	if c.StoreName == "" {
		logger.Warn("store_name is empty, using default", "default", DefaultStoreName)
		c.StoreName = DefaultStoreName
	}

	if c.DefaultWidth <= 0 {
		logger.Warn("invalid default_width, using default",
			"value", c.DefaultWidth, "default", DefaultWidth)
		c.DefaultWidth = DefaultWidth
	}
	if c.DefaultHeight <= 0 {
		logger.Warn("invalid default_height, using default",
			"value", c.DefaultHeight, "default", DefaultHeight)
		c.DefaultHeight = DefaultHeight
	}

	validPos := false
	for _, p := range model.ValidPresets() {
		if c.Display.Position == p {
			validPos = true
			break
		}
	}
	if !validPos {
		logger.Warn("invalid display position, using default",
			"value", c.Display.Position, "default", DefaultPosition)
		c.Display.Position = DefaultPosition
	}

	if c.Display.Padding < 0 {
		logger.Warn("invalid display padding, using default",
			"value", c.Display.Padding, "default", DefaultPadding)
		c.Display.Padding = DefaultPadding
	}
	if c.Display.FallbackWidth <= 0 {
		c.Display.FallbackWidth = FallbackScreenWidth
	}
	if c.Display.FallbackHeight <= 0 {
		c.Display.FallbackHeight = FallbackScreenHeight
	}

	if c.Audio.Volume < 0 || c.Audio.Volume > 100 {
		logger.Warn("volume must be between 0 and 100, using default",
			"value", c.Audio.Volume)
		c.Audio.Volume = 80
	}
}

// Route returns the presentation template route for a message kind.
func (c *Config) Route(kind string) string {
	return c.RoutePrefix + kind
}
