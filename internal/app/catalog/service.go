package catalog

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/musicmind/internal/app/filter"
	"github.com/osa030/musicmind/internal/domain/track"
)

// Result is a filtered track list ready to become a queue.
type Result struct {
	Tracks   []track.Track
	Sources  map[string]string // Track ID -> provider display name
	Rejected map[string]int    // Filter code -> count
}

// Service builds track lists from the provider chain and the filter chain.
type Service struct {
	providers    *ProviderChain
	filters      *filter.Chain
	defaultCount int
}

// NewService creates a new catalog service. A nil filter chain accepts everything.
func NewService(providers *ProviderChain, filters *filter.Chain, defaultCount int) *Service {
	if filters == nil {
		filters = filter.NewChain()
	}
	if defaultCount <= 0 {
		defaultCount = 20
	}
	return &Service{providers: providers, filters: filters, defaultCount: defaultCount}
}

// Build collects candidates for req and filters them. The seed track, when
// given, leads the list so a queue built from it keeps playing it.
func (s *Service) Build(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	if req.Count <= 0 {
		req.Count = s.defaultCount
	}

	exclude := map[string]bool{}
	if req.Seed.ID != "" {
		exclude[req.Seed.ID] = true
	}

	candidates, err := s.providers.GetCandidates(ctx, req, exclude)
	if err != nil {
		return Result{}, errors.Wrapf(err, "failed to build %s list", req.Mode)
	}

	tracks := lo.Map(candidates, func(c CandidateWithSource, _ int) track.Track { return c.Track })
	limit := req.Count
	if req.Mode.NeedsSeed() {
		tracks = append([]track.Track{req.Seed}, tracks...)
		limit++
	}

	accepted, rejected := s.filters.Apply(ctx, tracks, limit)
	if len(accepted) == 0 {
		return Result{}, errors.Wrapf(ErrNoCandidates, "all %d candidates rejected", len(tracks))
	}

	sources := make(map[string]string, len(candidates))
	for _, c := range candidates {
		sources[c.Track.ID] = c.DisplayName
	}

	zlog.Info().Msgf("catalog: built %s list with %d tracks (%d candidates, rejected %v)",
		req.Mode, len(accepted), len(candidates), rejected)
	return Result{Tracks: accepted, Sources: sources, Rejected: rejected}, nil
}
