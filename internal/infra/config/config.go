// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Provider types
const (
	ProviderMusicAPI        = "musicapi"
	ProviderSpotifyPlaylist = "spotify_playlist"
	ProviderLastFM          = "lastfm"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig            `yaml:"server"`
	Log      LogConfig               `yaml:"log"`
	Playback PlaybackConfig          `yaml:"playback"`
	Audio    AudioConfig             `yaml:"audio"`
	Embed    EmbedConfig             `yaml:"embed"`
	API      APIConfig               `yaml:"api"`
	Catalog  CatalogConfig           `yaml:"catalog"`
	Filters  map[string]FilterConfig `yaml:"filters"`
	Spotify  SpotifyConfig           `yaml:"spotify"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr         string      `yaml:"addr" default:":8080"`
	ControlToken string      `yaml:"control_token"` // Required on mutating RPCs when set
	Hooks        HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// LogConfig represents logger configuration.
type LogConfig struct {
	Output string `yaml:"output" default:"stdout"`
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	File   string `yaml:"file"`
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	InitialVolume        *float64 `yaml:"initial_volume" validate:"omitempty,gte=0,lte=1"`
	TimeUpdateIntervalMs int      `yaml:"time_update_interval_ms" default:"250" validate:"gte=10,lte=5000"`
	PollIntervalMs       int      `yaml:"poll_interval_ms" default:"100" validate:"gte=10,lte=5000"`
	LoadTimeoutMs        int      `yaml:"load_timeout_ms" validate:"gte=0"`
	ReportTimeoutMs      int      `yaml:"report_timeout_ms" default:"3000" validate:"gte=100,lte=60000"`
	EventBuffer          int      `yaml:"event_buffer" default:"256" validate:"gte=1"`
	SkipLogLimit         int      `yaml:"skip_log_limit" default:"50" validate:"gte=0"`
}

// Volume returns the configured initial volume; full volume when unset.
func (p PlaybackConfig) Volume() float64 {
	if p.InitialVolume == nil {
		return 1
	}
	return *p.InitialVolume
}

// TimeUpdateInterval returns the native position report cadence.
func (p PlaybackConfig) TimeUpdateInterval() time.Duration {
	return time.Duration(p.TimeUpdateIntervalMs) * time.Millisecond
}

// PollInterval returns the embedded player polling cadence.
func (p PlaybackConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalMs) * time.Millisecond
}

// LoadTimeout returns the load timeout (zero when disabled).
func (p PlaybackConfig) LoadTimeout() time.Duration {
	return time.Duration(p.LoadTimeoutMs) * time.Millisecond
}

// ReportTimeout returns the deadline of outbound listening reports.
func (p PlaybackConfig) ReportTimeout() time.Duration {
	return time.Duration(p.ReportTimeoutMs) * time.Millisecond
}

// AudioConfig represents native audio output configuration.
type AudioConfig struct {
	SampleRate    int `yaml:"sample_rate" default:"44100" validate:"oneof=22050 44100 48000"`
	BufferMs      int `yaml:"buffer_ms" default:"100" validate:"gte=10,lte=1000"`
	MaxDownloadMB int `yaml:"max_download_mb" default:"64" validate:"gte=1,lte=1024"`
	HTTPTimeoutMs int `yaml:"http_timeout_ms" default:"30000" validate:"gte=1000"`
}

// EmbedConfig represents the embedded player bridge configuration.
type EmbedConfig struct {
	PlayerPath     string `yaml:"player_path" default:"/embed" validate:"startswith=/"`
	ReadyTimeoutMs int    `yaml:"ready_timeout_ms" default:"15000" validate:"gte=1000"`
	Origin         string `yaml:"origin"`
}

// ReadyTimeout returns how long a player may take to become ready.
func (e EmbedConfig) ReadyTimeout() time.Duration {
	return time.Duration(e.ReadyTimeoutMs) * time.Millisecond
}

// APIConfig represents the music REST API configuration.
type APIConfig struct {
	BaseURL   string `yaml:"base_url" default:"http://localhost:3000/api" validate:"url"`
	UserID    string `yaml:"user_id"`
	AuthToken string `yaml:"auth_token"`
	TimeoutMs int    `yaml:"timeout_ms" default:"10000" validate:"gte=100"`
}

// Timeout returns the HTTP timeout.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutMs) * time.Millisecond
}

// CatalogConfig represents catalog provider configuration.
type CatalogConfig struct {
	CandidateCount int              `yaml:"candidate_count" default:"20" validate:"gte=1,lte=100"`
	Providers      []ProviderConfig `yaml:"providers" validate:"dive"`
}

// ProviderConfig represents a single catalog provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required,oneof=musicapi spotify_playlist lastfm"`
	DisplayName string         `yaml:"display_name" validate:"required"`
	Settings    map[string]any `yaml:"settings"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// SpotifyConfig represents Spotify API configuration.
// Only required when a Spotify-backed provider is configured.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
}

// Configured reports whether Spotify credentials are present.
func (s SpotifyConfig) Configured() bool {
	return s.ClientID != "" && s.ClientSecret != "" && s.RefreshToken != ""
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse builds a configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("MUSICMIND_API_TOKEN"); v != "" {
		c.API.AuthToken = v
	}
	if v := os.Getenv("MUSICMIND_CONTROL_TOKEN"); v != "" {
		c.Server.ControlToken = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		for i := range c.Catalog.Providers {
			p := &c.Catalog.Providers[i]
			if p.Type != ProviderLastFM {
				continue
			}
			if p.Settings == nil {
				p.Settings = make(map[string]any)
			}
			p.Settings["api_key"] = v
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.NeedsSpotify() && !c.Spotify.Configured() {
		return errors.New("spotify credentials are required by the configured providers")
	}

	return nil
}

// NeedsSpotify reports whether any provider resolves tracks through Spotify.
func (c *Config) NeedsSpotify() bool {
	return lo.SomeBy(c.Catalog.Providers, func(p ProviderConfig) bool {
		return p.Type == ProviderSpotifyPlaylist || p.Type == ProviderLastFM
	})
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// FilterSettings returns the settings for a filter.
func (c *Config) FilterSettings(filterName string) map[string]any {
	if f, ok := c.Filters[filterName]; ok {
		return f.Settings
	}
	return nil
}
