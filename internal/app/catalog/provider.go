// Package catalog provides track list strategies that feed the play queue.
package catalog

import (
	"context"
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/musicmind/internal/domain/playlist"
	"github.com/osa030/musicmind/internal/domain/track"
	"github.com/osa030/musicmind/internal/infra/lastfm"
)

// Mode selects what kind of track list is requested.
type Mode int

const (
	ModeSimilar   Mode = iota // Tracks similar to a seed track
	ModeRecommend             // Recommendations from a seed track
	ModeUser                  // Personal recommendations of a listener
	ModeSearch                // Free text search
	ModeArtist                // Songs of an artist
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeSimilar:
		return "similar"
	case ModeRecommend:
		return "recommend"
	case ModeUser:
		return "user"
	case ModeSearch:
		return "search"
	case ModeArtist:
		return "artist"
	default:
		return "unknown"
	}
}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "similar":
		return ModeSimilar, nil
	case "recommend", "recommendations":
		return ModeRecommend, nil
	case "user":
		return ModeUser, nil
	case "search":
		return ModeSearch, nil
	case "artist":
		return ModeArtist, nil
	default:
		return 0, errors.Newf("unknown catalog mode %q", s)
	}
}

// NeedsSeed reports whether the mode works from a seed track.
func (m Mode) NeedsSeed() bool {
	return m == ModeSimilar || m == ModeRecommend
}

// Request describes the track list to build.
type Request struct {
	Mode  Mode
	Seed  track.Track // ModeSimilar, ModeRecommend
	Query string      // Search text, artist name or user id
	Count int
}

// Validate checks that the request carries what its mode needs.
func (r Request) Validate() error {
	switch {
	case r.Mode.NeedsSeed() && r.Seed.ID == "":
		return errors.Mark(errors.Newf("%s requires a seed track", r.Mode), ErrInvalidRequest)
	case (r.Mode == ModeSearch || r.Mode == ModeArtist) && strings.TrimSpace(r.Query) == "":
		return errors.Mark(errors.Newf("%s requires a query", r.Mode), ErrInvalidRequest)
	}
	return nil
}

// Provider is the interface for catalog track providers.
// Providers return no tracks for modes they do not support.
type Provider interface {
	// Candidates retrieves track candidates for req.
	// exclude: track IDs already collected (for duplicate avoidance)
	Candidates(ctx context.Context, req Request, exclude map[string]bool) ([]track.Track, error)

	// Name returns the provider type (used in config).
	Name() string
}

// MusicAPIClient defines the catalog API operations used by providers.
type MusicAPIClient interface {
	Similar(ctx context.Context, songID string) ([]track.Track, error)
	Recommendations(ctx context.Context, songID string) ([]track.Track, error)
	UserRecommendations(ctx context.Context, userID string) (playlist.Playlist, error)
	Search(ctx context.Context, query string) ([]track.Track, error)
	ArtistSongs(ctx context.Context, artist string) ([]track.Track, error)
}

// SpotifyClient defines the Spotify operations used by providers.
type SpotifyClient interface {
	FindTrack(ctx context.Context, name, artist string) (track.Track, bool, error)
	PlaylistSample(ctx context.Context, playlistURL string, count int, rng *rand.Rand) ([]track.Track, error)
}

// LastFmClient defines the Last.fm operations used by providers.
type LastFmClient interface {
	SimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.TrackRef, error)
	TopTags(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.Tag, error)
	TagTopTracks(ctx context.Context, tagName string, limit int) ([]lastfm.TrackRef, error)
	ArtistTopTracks(ctx context.Context, artistName string, limit int) ([]lastfm.TrackRef, error)
	ChartTopTracks(ctx context.Context, limit int) ([]lastfm.TrackRef, error)
}

func newRand() *rand.Rand {
	var seed int64
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err == nil {
		seed = int64(binary.LittleEndian.Uint64(buf[:]))
	} else {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
