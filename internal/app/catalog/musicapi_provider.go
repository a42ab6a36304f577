package catalog

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/musicmind/internal/domain/track"
	"github.com/osa030/musicmind/internal/infra/spotify"
)

type MusicAPIProviderConfig struct {
	// NoRecommendFallback disables asking for seed recommendations when no
	// similar songs exist.
	NoRecommendFallback bool `yaml:"no_recommend_fallback" mapstructure:"no_recommend_fallback"`
	MaxTracks           int  `yaml:"max_tracks" mapstructure:"max_tracks" default:"50" validate:"gte=1"`
}

// MusicAPIProvider provides tracks from the catalog REST API.
type MusicAPIProvider struct {
	client MusicAPIClient
	config *MusicAPIProviderConfig
}

// NewMusicAPIProvider creates a new MusicAPIProvider.
func NewMusicAPIProvider(client MusicAPIClient, settings map[string]any) (*MusicAPIProvider, error) {
	if client == nil {
		return nil, errors.New("catalog API client is required")
	}

	var config MusicAPIProviderConfig
	if err := mapstructure.WeakDecode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return &MusicAPIProvider{client: client, config: &config}, nil
}

// Candidates retrieves tracks for req from the API.
func (p *MusicAPIProvider) Candidates(ctx context.Context, req Request, exclude map[string]bool) ([]track.Track, error) {
	var (
		tracks []track.Track
		err    error
	)

	switch req.Mode {
	case ModeSimilar:
		if strings.HasPrefix(req.Seed.ID, spotify.IDPrefix) {
			return nil, nil
		}
		tracks, err = p.client.Similar(ctx, req.Seed.ID)
		if err == nil && len(tracks) == 0 && !p.config.NoRecommendFallback {
			zlog.Debug().Msgf("catalog: no similar songs for %s, asking for recommendations", req.Seed.ID)
			tracks, err = p.client.Recommendations(ctx, req.Seed.ID)
		}
	case ModeRecommend:
		if strings.HasPrefix(req.Seed.ID, spotify.IDPrefix) {
			return nil, nil
		}
		tracks, err = p.client.Recommendations(ctx, req.Seed.ID)
	case ModeUser:
		section, serr := p.client.UserRecommendations(ctx, req.Query)
		if serr != nil {
			return nil, serr
		}
		if section.IsEmpty() {
			zlog.Debug().Msgf("catalog: user section for %q is empty", req.Query)
			return nil, nil
		}
		zlog.Debug().Msgf("catalog: user section %q with %d songs (%s)", section.Title, section.Len(), section.TotalDuration())
		tracks = section.Tracks
	case ModeSearch:
		tracks, err = p.client.Search(ctx, req.Query)
	case ModeArtist:
		tracks, err = p.client.ArtistSongs(ctx, req.Query)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	tracks = lo.Filter(tracks, func(t track.Track, _ int) bool {
		return !exclude[t.ID] && t.ID != req.Seed.ID
	})
	if len(tracks) > p.config.MaxTracks {
		tracks = tracks[:p.config.MaxTracks]
	}
	return tracks, nil
}

// Name returns the provider name.
func (p *MusicAPIProvider) Name() string {
	return "musicapi"
}
