// Package track provides the Track domain entity.
package track

import (
	"strings"
	"time"
)

// Placeholder values used when the catalog omits display fields.
const (
	UnknownTitle     = "Unknown title"
	UnknownArtist    = "Unknown artist"
	PlaceholderImage = "/images/default-music-icon.svg"
)

// Track represents one playable item.
// Tracks are immutable once built by the catalog layer; playback binds them by value.
type Track struct {
	ID           string        // Opaque identifier, stable for the track's lifetime
	Title        string        // Display title
	ArtistName   string        // Display artist
	SourceURL    string        // Direct audio resource or video platform watch URL
	ImageURL     string        // Cover art URL (may be empty)
	DurationHint time.Duration // Server-reported duration (zero when unknown)
}

// New builds a track, substituting placeholders for missing display fields.
func New(id, title, artist, sourceURL, imageURL string, durationHint time.Duration) Track {
	t := Track{
		ID:           strings.TrimSpace(id),
		Title:        strings.TrimSpace(title),
		ArtistName:   strings.TrimSpace(artist),
		SourceURL:    strings.TrimSpace(sourceURL),
		ImageURL:     strings.TrimSpace(imageURL),
		DurationHint: durationHint,
	}
	if t.Title == "" {
		t.Title = UnknownTitle
	}
	if t.ArtistName == "" {
		t.ArtistName = UnknownArtist
	}
	if t.DurationHint < 0 {
		t.DurationHint = 0
	}
	return t
}

// SameAs reports whether both tracks carry the same identifier.
func (t *Track) SameAs(other *Track) bool {
	if t == nil || other == nil {
		return false
	}
	return t.ID != "" && t.ID == other.ID
}

// HasSource reports whether the track has something to load.
func (t Track) HasSource() bool {
	return strings.TrimSpace(t.SourceURL) != ""
}

// DurationHintSeconds returns the server-reported duration in seconds.
func (t Track) DurationHintSeconds() float64 {
	return t.DurationHint.Seconds()
}

// IDs returns the identifiers of the given tracks in order.
func IDs(tracks []Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}
