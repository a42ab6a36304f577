package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  addr: \":9000\"\n"))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "stdout", cfg.Log.Output)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Nil(t, cfg.Playback.InitialVolume)
	assert.Equal(t, 1.0, cfg.Playback.Volume())
	assert.Equal(t, 100*time.Millisecond, cfg.Playback.PollInterval())
	assert.Equal(t, 250*time.Millisecond, cfg.Playback.TimeUpdateInterval())
	assert.Equal(t, time.Duration(0), cfg.Playback.LoadTimeout())
	assert.Equal(t, 3*time.Second, cfg.Playback.ReportTimeout())
	assert.Equal(t, 256, cfg.Playback.EventBuffer)
	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.Equal(t, "/embed", cfg.Embed.PlayerPath)
	assert.Equal(t, 15*time.Second, cfg.Embed.ReadyTimeout())
	assert.Equal(t, "http://localhost:3000/api", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout())
	assert.Equal(t, 20, cfg.Catalog.CandidateCount)
	assert.Equal(t, "JP", cfg.Spotify.Market)
}

func TestParse_InitialVolume(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want float64
	}{
		{name: "unset", yaml: "playback: {}\n", want: 1},
		{name: "muted", yaml: "playback:\n  initial_volume: 0\n", want: 0},
		{name: "partial", yaml: "playback:\n  initial_volume: 0.25\n", want: 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Playback.Volume())
		})
	}
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "valid musicapi provider",
			yaml: `
catalog:
  providers:
    - type: musicapi
      display_name: Recommended
      settings:
        mode: recommendations
`,
		},
		{
			name:    "volume out of range",
			yaml:    "playback:\n  initial_volume: 1.5\n",
			wantErr: "InitialVolume",
		},
		{
			name:    "negative load timeout",
			yaml:    "playback:\n  load_timeout_ms: -1\n",
			wantErr: "LoadTimeoutMs",
		},
		{
			name:    "unknown provider type",
			yaml:    "catalog:\n  providers:\n    - type: radio\n      display_name: Radio\n",
			wantErr: "Type",
		},
		{
			name:    "missing provider display name",
			yaml:    "catalog:\n  providers:\n    - type: musicapi\n",
			wantErr: "DisplayName",
		},
		{
			name:    "spotify provider without credentials",
			yaml:    "catalog:\n  providers:\n    - type: spotify_playlist\n      display_name: DJ\n",
			wantErr: "spotify credentials",
		},
		{
			name: "spotify provider with credentials",
			yaml: `
catalog:
  providers:
    - type: spotify_playlist
      display_name: DJ
spotify:
  client_id: id
  client_secret: secret
  refresh_token: token
`,
		},
		{
			name:    "bad market",
			yaml:    "spotify:\n  market: JPN\n",
			wantErr: "Market",
		},
		{
			name:    "bad log level",
			yaml:    "log:\n  level: chatty\n",
			wantErr: "Level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SPOTIFY_CLIENT_ID", "")
			t.Setenv("SPOTIFY_CLIENT_SECRET", "")
			t.Setenv("SPOTIFY_REFRESH_TOKEN", "")

			_, err := Parse([]byte(tt.yaml))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("MUSICMIND_API_TOKEN", "api-token")
	t.Setenv("MUSICMIND_CONTROL_TOKEN", "control-token")
	t.Setenv("SPOTIFY_CLIENT_ID", "env-id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "env-secret")
	t.Setenv("SPOTIFY_REFRESH_TOKEN", "env-refresh")
	t.Setenv("LASTFM_API_KEY", "env-lastfm")

	cfg, err := Parse([]byte(`
api:
  auth_token: file-token
catalog:
  providers:
    - type: lastfm
      display_name: Similar
spotify:
  client_id: file-id
`))
	require.NoError(t, err)

	assert.Equal(t, "api-token", cfg.API.AuthToken)
	assert.Equal(t, "control-token", cfg.Server.ControlToken)
	assert.Equal(t, "env-id", cfg.Spotify.ClientID)
	assert.Equal(t, "env-secret", cfg.Spotify.ClientSecret)
	assert.Equal(t, "env-refresh", cfg.Spotify.RefreshToken)
	assert.Equal(t, "env-lastfm", cfg.Catalog.Providers[0].Settings["api_key"])
	assert.True(t, cfg.NeedsSpotify())
}

func TestLoad(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
filters:
  playable:
    enabled: true
  duration_limit:
    enabled: true
    settings:
      max_minutes: 10
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.IsFilterEnabled("playable"))
	assert.False(t, cfg.IsFilterEnabled("duplicate_track"))
	assert.Equal(t, 10, cfg.FilterSettings("duration_limit")["max_minutes"])
	assert.Nil(t, cfg.FilterSettings("missing"))
}
