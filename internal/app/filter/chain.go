package filter

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/musicmind/internal/domain/track"
	"github.com/osa030/musicmind/internal/infra/config"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// NewChainFromConfig builds a chain of every registered filter enabled in cfg,
// in name order.
func NewChainFromConfig(cfg *config.Config) (*Chain, error) {
	chain := NewChain()

	for _, name := range Names() {
		if !cfg.IsFilterEnabled(name) {
			continue
		}
		f := registry[name]()
		if err := f.ValidateConfig(cfg.FilterSettings(name)); err != nil {
			return nil, errors.Wrapf(err, "invalid %s filter settings", name)
		}
		chain.Add(f)
		zlog.Info().Msgf("filter: enabled %s", name)
	}

	if unknown := lo.Filter(lo.Keys(cfg.Filters), func(name string, _ int) bool {
		_, ok := registry[name]
		return !ok
	}); len(unknown) > 0 {
		return nil, errors.Newf("unknown filters: %v", unknown)
	}

	return chain, nil
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the candidate.
func (c *Chain) Execute(ctx context.Context, t track.Track, accepted []track.Track) Result {
	for _, f := range c.filters {
		result := f.Check(ctx, t, accepted)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Apply filters candidates in order and returns the accepted ones, at most
// limit when limit is positive, along with rejection counts per code.
func (c *Chain) Apply(ctx context.Context, candidates []track.Track, limit int) ([]track.Track, map[string]int) {
	accepted := make([]track.Track, 0, len(candidates))
	rejected := make(map[string]int)

	for _, t := range candidates {
		if limit > 0 && len(accepted) >= limit {
			break
		}
		result := c.Execute(ctx, t, accepted)
		if !result.Accepted {
			rejected[result.Code]++
			zlog.Debug().Msgf("filter: rejected %s (%s)", t.ID, result.Code)
			continue
		}
		accepted = append(accepted, t)
	}
	return accepted, rejected
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}
