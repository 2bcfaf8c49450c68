// Package config loads the service configuration: the track definition, the
// live channels to consume, and runtime settings. Configuration is read once
// at startup and immutable afterwards; components receive it explicitly
// through constructors rather than reading ambient state.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/trackside/internal/geo"
	"github.com/banshee-data/trackside/internal/units"
)

// maxFileSize bounds config reads for safety (1MB).
const maxFileSize = 1 * 1024 * 1024

// Transport names accepted in ChannelConfig.
const (
	TransportWebSocket = "websocket"
	TransportSSE       = "sse"
)

// Config is the root configuration.
type Config struct {
	ListenAddr string          `json:"listen_addr"`
	DBPath     string          `json:"db_path"`
	Units      string          `json:"units"`
	Track      TrackConfig     `json:"track"`
	Channels   []ChannelConfig `json:"channels"`
	Serial     *SerialConfig   `json:"serial,omitempty"`
}

// TrackConfig defines the circuit. Waypoints are the ordered centerline of
// the closed loop, supplied once at startup.
type TrackConfig struct {
	Waypoints   []geo.Point `json:"waypoints"`
	WidthMeters float64     `json:"width_meters"`

	// Wraparound seam thresholds for lap detection. Heuristic jitter
	// tolerances, not exact lap boundaries; zero selects the defaults.
	SeamHigh float64 `json:"seam_high,omitempty"`
	SeamLow  float64 `json:"seam_low,omitempty"`
}

// ChannelConfig defines one live channel to consume. Pointer fields
// distinguish "omitted" from "explicitly false" so partial configs merge
// over the defaults.
type ChannelConfig struct {
	Name                 string `json:"name"`
	URL                  string `json:"url"`
	Transport            string `json:"transport"`
	Enabled              *bool  `json:"enabled,omitempty"`               // default true
	Reconnect            *bool  `json:"reconnect,omitempty"`             // default true
	ReconnectIntervalMs  int    `json:"reconnect_interval_ms,omitempty"` // default 3000
	MaxReconnectAttempts int    `json:"max_reconnect_attempts,omitempty"`
}

// IsEnabled reports whether the channel should be consumed.
func (c ChannelConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// ShouldReconnect reports whether the channel retries after failures.
func (c ChannelConfig) ShouldReconnect() bool {
	return c.Reconnect == nil || *c.Reconnect
}

// ReconnectInterval returns the base retry delay.
func (c ChannelConfig) ReconnectInterval() time.Duration {
	if c.ReconnectIntervalMs <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.ReconnectIntervalMs) * time.Millisecond
}

// SerialConfig defines an optional local NMEA GPS receiver as a fix source.
type SerialConfig struct {
	Port      string `json:"port"`
	BaudRate  int    `json:"baud_rate,omitempty"`
	VehicleID string `json:"vehicle_id"`
}

// Default returns the built-in configuration: no track, no channels,
// sensible runtime settings.
func Default() *Config {
	return &Config{
		ListenAddr: ":8080",
		DBPath:     "trackside.db",
		Units:      units.KMPH,
	}
}

// Load reads a JSON config file and merges it over the defaults. The file
// must have a .json extension and be under the max file size; partial
// configs are safe.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.Units != "" && !units.IsValid(c.Units) {
		return fmt.Errorf("invalid units %q (valid: %s)", c.Units, units.ValidUnitsString())
	}
	if len(c.Track.Waypoints) == 1 {
		return fmt.Errorf("track needs at least 2 waypoints, got 1")
	}
	if c.Track.WidthMeters < 0 {
		return fmt.Errorf("track width_meters must not be negative")
	}
	if (c.Track.SeamHigh != 0) != (c.Track.SeamLow != 0) {
		return fmt.Errorf("seam_high and seam_low must be set together")
	}
	if c.Track.SeamHigh != 0 && c.Track.SeamHigh <= c.Track.SeamLow {
		return fmt.Errorf("seam_high (%v) must exceed seam_low (%v)", c.Track.SeamHigh, c.Track.SeamLow)
	}
	for i, ch := range c.Channels {
		if ch.URL == "" {
			return fmt.Errorf("channel %d (%s): url is required", i, ch.Name)
		}
		switch ch.Transport {
		case TransportWebSocket, TransportSSE:
		default:
			return fmt.Errorf("channel %d (%s): unknown transport %q", i, ch.Name, ch.Transport)
		}
		if ch.MaxReconnectAttempts < 0 {
			return fmt.Errorf("channel %d (%s): max_reconnect_attempts must not be negative", i, ch.Name)
		}
	}
	if c.Serial != nil {
		if c.Serial.Port == "" {
			return fmt.Errorf("serial: port is required")
		}
		if c.Serial.VehicleID == "" {
			return fmt.Errorf("serial: vehicle_id is required")
		}
	}
	return nil
}
