// Package playlist provides the Playlist domain entity.
package playlist

import (
	"time"

	"github.com/osa030/musicmind/internal/domain/track"
)

// Playlist is a titled track list produced by a catalog lookup
// (a search result page, a recommendation section, an artist listing).
type Playlist struct {
	Title  string        // Section title shown above the list (e.g. "Popular Now")
	Source string        // Display name of the provider that produced it
	Tracks []track.Track // Tracks in catalog order
}

// TrackIDs returns all track IDs in the playlist.
func (p *Playlist) TrackIDs() []string {
	return track.IDs(p.Tracks)
}

// TotalDuration returns the sum of the known duration hints.
func (p *Playlist) TotalDuration() time.Duration {
	var total time.Duration
	for _, t := range p.Tracks {
		total += t.DurationHint
	}
	return total
}

// Len returns the number of tracks.
func (p *Playlist) Len() int {
	return len(p.Tracks)
}

// IsEmpty returns true if the playlist has no tracks.
func (p *Playlist) IsEmpty() bool {
	return p.Len() == 0
}
