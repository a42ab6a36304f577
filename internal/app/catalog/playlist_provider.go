package catalog

import (
	"context"
	"math/rand"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/musicmind/internal/domain/track"
)

type PlaylistProviderConfig struct {
	PlaylistURL string `yaml:"playlist_url" mapstructure:"playlist_url" validate:"required"`
	// Modes this provider answers. Empty means every mode.
	Modes []string `yaml:"modes" mapstructure:"modes"`
}

// PlaylistProvider provides tracks by randomly sampling a Spotify playlist.
// It keeps unused samples cached to minimize Spotify API calls.
type PlaylistProvider struct {
	spotify        SpotifyClient
	candidateCount int // Target cache size
	config         *PlaylistProviderConfig
	modes          map[Mode]bool

	mu    sync.Mutex
	cache []track.Track
	rng   *rand.Rand
}

// NewPlaylistProvider creates a new PlaylistProvider.
func NewPlaylistProvider(spotify SpotifyClient, candidateCount int, settings map[string]any) (*PlaylistProvider, error) {
	if spotify == nil {
		return nil, errors.New("spotify client is required")
	}

	var config PlaylistProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("playlist provider config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		zlog.Error().Msgf("playlist provider validation failed: %v", err)
		return nil, errors.Wrap(err, "validation failed")
	}

	modes := make(map[Mode]bool, len(config.Modes))
	for _, name := range config.Modes {
		m, err := ParseMode(name)
		if err != nil {
			return nil, err
		}
		modes[m] = true
	}

	return &PlaylistProvider{
		spotify:        spotify,
		candidateCount: candidateCount,
		config:         &config,
		modes:          modes,
		cache:          make([]track.Track, 0),
		rng:            newRand(),
	}, nil
}

// Candidates retrieves random tracks from the configured playlist.
// Maintains a cache to avoid redundant API calls when random sampling returns duplicates.
func (p *PlaylistProvider) Candidates(ctx context.Context, req Request, exclude map[string]bool) ([]track.Track, error) {
	count := req.Count
	if count <= 0 || (len(p.modes) > 0 && !p.modes[req.Mode]) {
		return []track.Track{}, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	available := lo.Filter(p.cache, func(t track.Track, _ int) bool {
		return !exclude[t.ID]
	})

	if len(available) < count {
		needed := max(p.candidateCount-len(available), count-len(available))
		fresh, err := p.spotify.PlaylistSample(ctx, p.config.PlaylistURL, needed, p.rng)
		if err != nil {
			return nil, errors.Wrap(err, "failed to sample playlist")
		}
		for _, t := range fresh {
			if !exclude[t.ID] && !lo.ContainsBy(available, func(a track.Track) bool { return a.ID == t.ID }) {
				available = append(available, t)
			}
		}
	}

	n := min(count, len(available))
	result := available[:n]
	p.cache = available[n:]
	return result, nil
}

// Name returns the provider name.
func (p *PlaylistProvider) Name() string {
	return "spotify_playlist"
}
