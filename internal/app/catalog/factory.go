package catalog

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicmind/internal/infra/config"
)

// Clients holds the external clients providers may use. Nil fields are
// unavailable.
type Clients struct {
	MusicAPI MusicAPIClient
	Spotify  SpotifyClient
}

// NewProviderChainFromConfig creates a provider chain from configuration.
func NewProviderChainFromConfig(cfg *config.Config, clients Clients) (*ProviderChain, error) {
	if len(cfg.Catalog.Providers) == 0 {
		return nil, errors.New("no catalog providers configured")
	}

	var providers []ProviderWithMetadata

	for i, pcfg := range cfg.Catalog.Providers {
		var provider Provider
		var err error
		zlog.Debug().Msgf("creating catalog provider: index=%d type=%s", i+1, pcfg.Type)
		switch pcfg.Type {
		case config.ProviderMusicAPI:
			provider, err = NewMusicAPIProvider(clients.MusicAPI, pcfg.Settings)

		case config.ProviderSpotifyPlaylist:
			provider, err = NewPlaylistProvider(clients.Spotify, cfg.Catalog.CandidateCount, pcfg.Settings)

		case config.ProviderLastFM:
			provider, err = NewLastFmProvider(clients.Spotify, cfg.Catalog.CandidateCount, pcfg.Settings)

		default:
			return nil, errors.Newf("unsupported provider type: %s (provider index %d)", pcfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create provider (index %d, type %s)", i, pcfg.Type)
		}

		providers = append(providers, ProviderWithMetadata{
			Provider:    provider,
			DisplayName: pcfg.DisplayName,
		})

		zlog.Info().Msgf("registered catalog provider: index=%d type=%s display_name=%s", i+1, pcfg.Type, pcfg.DisplayName)
	}

	return NewProviderChain(providers), nil
}
