package catalog

import (
	"context"
	"maps"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicmind/internal/domain/track"
)

// Errors
var (
	ErrNoCandidates   = errors.New("no provider returned candidates")
	ErrInvalidRequest = errors.New("invalid catalog request")
)

// CandidateWithSource represents a track candidate with its source provider info.
type CandidateWithSource struct {
	Track       track.Track
	DisplayName string
}

// ProviderWithMetadata wraps a provider with its metadata.
type ProviderWithMetadata struct {
	Provider    Provider
	DisplayName string
}

// ProviderChain asks every provider in order and pools their candidates.
type ProviderChain struct {
	providers []ProviderWithMetadata
}

// NewProviderChain creates a new provider chain.
func NewProviderChain(providers []ProviderWithMetadata) *ProviderChain {
	return &ProviderChain{
		providers: providers,
	}
}

// GetCandidates retrieves candidates from all providers.
// All providers are tried to maximize the candidate pool for filtering.
func (c *ProviderChain) GetCandidates(ctx context.Context, req Request, excludeIDs map[string]bool) ([]CandidateWithSource, error) {
	var all []CandidateWithSource
	exclude := make(map[string]bool, len(excludeIDs))
	maps.Copy(exclude, excludeIDs)

	for i, pm := range c.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		zlog.Debug().Msgf("catalog: trying provider %d/%d %s (%s) for %s",
			i+1, len(c.providers), pm.DisplayName, pm.Provider.Name(), req.Mode)

		candidates, err := pm.Provider.Candidates(ctx, req, exclude)
		if err != nil {
			zlog.Warn().Msgf("catalog: provider %s failed, trying next: %v", pm.DisplayName, err)
			continue
		}
		if len(candidates) == 0 {
			zlog.Debug().Msgf("catalog: provider %s returned no candidates", pm.DisplayName)
			continue
		}

		for _, t := range candidates {
			if exclude[t.ID] {
				continue
			}
			all = append(all, CandidateWithSource{Track: t, DisplayName: pm.DisplayName})
			exclude[t.ID] = true
		}

		zlog.Info().Msgf("catalog: provider %s returned %d candidates, %d so far",
			pm.DisplayName, len(candidates), len(all))
	}

	if len(all) == 0 {
		return nil, ErrNoCandidates
	}
	return all, nil
}

// Len returns the number of providers.
func (c *ProviderChain) Len() int {
	return len(c.providers)
}
