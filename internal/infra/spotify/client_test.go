package spotify

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/zmb3/spotify/v2"
)

func TestExtractPlaylistID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "uri", input: "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M", expected: "37i9dQZF1DXcBWIGoYBM5M"},
		{name: "url", input: "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M", expected: "37i9dQZF1DXcBWIGoYBM5M"},
		{name: "url with query", input: "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc123", expected: "37i9dQZF1DXcBWIGoYBM5M"},
		{name: "localised url", input: "https://open.spotify.com/intl-ja/playlist/abc123/", expected: "abc123"},
		{name: "plain id", input: "37i9dQZF1DXcBWIGoYBM5M", expected: "37i9dQZF1DXcBWIGoYBM5M"},
		{name: "empty", input: "  ", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractPlaylistID(tt.input))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "api 429", err: spotify.Error{Message: "slow down", Status: 429}, expected: true},
		{name: "api 503", err: spotify.Error{Message: "unavailable", Status: 503}, expected: true},
		{name: "api 404", err: spotify.Error{Message: "not found", Status: 404}, expected: false},
		{name: "rate limit text", err: errors.New("rate limit exceeded"), expected: true},
		{name: "502 text", err: errors.New("502 Bad Gateway"), expected: true},
		{name: "400 text", err: errors.New("400 Bad Request"), expected: false},
		{name: "generic", err: errors.New("something went wrong"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRetryable(tt.err))
		})
	}
}

func TestConvertTrack(t *testing.T) {
	full := &spotify.FullTrack{
		SimpleTrack: spotify.SimpleTrack{
			ID:         "4uLU6hMCjMI75M1A2tKUQC",
			Name:       "Never Gonna Give You Up",
			Artists:    []spotify.SimpleArtist{{Name: "Rick Astley"}, {Name: "Guest"}},
			PreviewURL: "https://p.scdn.co/mp3-preview/abc",
			Duration:   213000,
		},
		Album: spotify.SimpleAlbum{
			Images: []spotify.Image{{URL: "https://i.scdn.co/image/cover"}},
		},
	}

	got := convertTrack(full)
	assert.Equal(t, "spotify:4uLU6hMCjMI75M1A2tKUQC", got.ID)
	assert.Equal(t, "Never Gonna Give You Up", got.Title)
	assert.Equal(t, "Rick Astley, Guest", got.ArtistName)
	assert.Equal(t, "https://p.scdn.co/mp3-preview/abc", got.SourceURL)
	assert.Equal(t, "https://i.scdn.co/image/cover", got.ImageURL)
	assert.Equal(t, 213*time.Second, got.DurationHint)

	unplayable := false
	full.IsPlayable = &unplayable
	assert.False(t, convertTrack(full).HasSource())
}

func TestTrackURL(t *testing.T) {
	assert.Equal(t, "https://open.spotify.com/track/abc", TrackURL("spotify:abc"))
	assert.Equal(t, "https://open.spotify.com/track/abc", TrackURL("abc"))
}
