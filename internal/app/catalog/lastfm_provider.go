package catalog

import (
	"context"
	"math/rand"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/musicmind/internal/domain/track"
	"github.com/osa030/musicmind/internal/infra/lastfm"
)

type LastFmProviderConfig struct {
	APIKey          string  `yaml:"api_key" mapstructure:"api_key" validate:"required"`
	TagCount        int     `yaml:"tag_count" mapstructure:"tag_count" default:"5" validate:"gte=1"`
	TagWeight       float64 `yaml:"tag_weight" mapstructure:"tag_weight" default:"0.4" validate:"gte=0,lte=1.0"`
	SimilarWeight   float64 `yaml:"similar_weight" mapstructure:"similar_weight" default:"0.6" validate:"gte=0,lte=1.0"`
	LookupCacheSize int     `yaml:"lookup_cache_size" mapstructure:"lookup_cache_size" default:"1024" validate:"gte=1"`
}

// LastFmProvider provides tracks from Last.fm listening data, resolved to
// playable tracks through Spotify. Seeded requests combine tag-based and
// similar-based strategies with configurable weights.
type LastFmProvider struct {
	lastfm  LastFmClient
	spotify SpotifyClient
	lookups *lru.Cache[string, lookup]

	candidateCount int
	config         *LastFmProviderConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// lookup is a cached Spotify resolution. Misses are cached too.
type lookup struct {
	track track.Track
	found bool
}

// ScoredTrack represents a track with its hybrid score.
type ScoredTrack struct {
	Track track.Track
	Score float64
}

// NewLastFmProvider creates a new LastFmProvider.
func NewLastFmProvider(spotify SpotifyClient, candidateCount int, settings map[string]any) (*LastFmProvider, error) {
	if len(settings) == 0 {
		return nil, errors.New("settings are required")
	}

	config, err := decodeLastFmConfig(settings)
	if err != nil {
		return nil, err
	}

	client, err := lastfm.New(lastfm.Config{APIKey: config.APIKey})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create last.fm client")
	}
	return newLastFmProvider(client, spotify, candidateCount, config)
}

func decodeLastFmConfig(settings map[string]any) (*LastFmProviderConfig, error) {
	var config LastFmProviderConfig
	if err := mapstructure.WeakDecode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	if sum := config.TagWeight + config.SimilarWeight; sum < 0.999 || sum > 1.001 {
		return nil, errors.New("tag weight and similar weight must sum to 1.0")
	}
	return &config, nil
}

func newLastFmProvider(client LastFmClient, spotify SpotifyClient, candidateCount int, config *LastFmProviderConfig) (*LastFmProvider, error) {
	if spotify == nil {
		return nil, errors.New("spotify client is required")
	}
	lookups, err := lru.New[string, lookup](config.LookupCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create lookup cache")
	}
	return &LastFmProvider{
		lastfm:         client,
		spotify:        spotify,
		lookups:        lookups,
		candidateCount: candidateCount,
		config:         config,
		rng:            newRand(),
	}, nil
}

// Candidates retrieves tracks for req.
func (p *LastFmProvider) Candidates(ctx context.Context, req Request, exclude map[string]bool) ([]track.Track, error) {
	count := req.Count
	if count <= 0 {
		return []track.Track{}, nil
	}

	switch req.Mode {
	case ModeSimilar, ModeRecommend:
		if req.Seed.ArtistName == "" || req.Seed.ArtistName == track.UnknownArtist {
			return p.chartCandidates(ctx, count, exclude)
		}
		return p.seededCandidates(ctx, req.Seed, count, exclude), nil
	case ModeArtist:
		refs, err := p.lastfm.ArtistTopTracks(ctx, req.Query, count*2)
		if err != nil {
			return nil, err
		}
		return p.resolveAll(ctx, refs, count, exclude), nil
	case ModeUser:
		return p.chartCandidates(ctx, count, exclude)
	default:
		return []track.Track{}, nil
	}
}

// Name returns the provider name.
func (p *LastFmProvider) Name() string {
	return "lastfm"
}

// seededCandidates scores tag-based and similar-based candidates and returns
// a random selection from the best count*2.
func (p *LastFmProvider) seededCandidates(ctx context.Context, seed track.Track, count int, exclude map[string]bool) []track.Track {
	var tagCandidates, similarCandidates []track.Track
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		tagCandidates = p.tagBasedCandidates(ctx, seed, exclude)
	}()
	go func() {
		defer wg.Done()
		similarCandidates = p.similarBasedCandidates(ctx, seed, exclude)
	}()
	wg.Wait()

	scored := p.scoreAndMerge(tagCandidates, similarCandidates)
	if len(scored) == 0 {
		return []track.Track{}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	pool := scored[:min(count*2, len(scored))]
	p.shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	result := make([]track.Track, 0, count)
	for i := 0; i < count && i < len(pool); i++ {
		result = append(result, pool[i].Track)
	}
	return result
}

func (p *LastFmProvider) tagBasedCandidates(ctx context.Context, seed track.Track, exclude map[string]bool) []track.Track {
	tags, err := p.lastfm.TopTags(ctx, seed.Title, seed.ArtistName, 10)
	if err != nil || len(tags) == 0 {
		return []track.Track{}
	}

	counts := make(map[string]int, len(tags))
	for _, tag := range tags {
		counts[tag.Name] += tag.Count
	}

	var candidates []track.Track
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, tagName := range topTags(counts, p.config.TagCount) {
		wg.Add(1)
		go func(tag string) {
			defer wg.Done()
			refs, err := p.lastfm.TagTopTracks(ctx, tag, 20)
			if err != nil {
				return
			}
			found := p.resolveAll(ctx, refs, 0, exclude)
			mu.Lock()
			candidates = append(candidates, found...)
			mu.Unlock()
		}(tagName)
	}
	wg.Wait()

	return dedupe(candidates, seed.ID)
}

func (p *LastFmProvider) similarBasedCandidates(ctx context.Context, seed track.Track, exclude map[string]bool) []track.Track {
	refs, err := p.lastfm.SimilarTracks(ctx, seed.Title, seed.ArtistName, 20)
	if err != nil {
		return []track.Track{}
	}
	return dedupe(p.resolveAll(ctx, refs, 0, exclude), seed.ID)
}

// scoreAndMerge scores and merges tag-based and similar-based candidates.
// A track found by both strategies gets both weights.
func (p *LastFmProvider) scoreAndMerge(tagCandidates, similarCandidates []track.Track) []ScoredTrack {
	scores := make(map[string]*ScoredTrack)
	var order []string

	add := func(t track.Track, weight float64) {
		if existing, ok := scores[t.ID]; ok {
			existing.Score += weight
			return
		}
		scores[t.ID] = &ScoredTrack{Track: t, Score: weight}
		order = append(order, t.ID)
	}
	for _, t := range tagCandidates {
		add(t, p.config.TagWeight)
	}
	for _, t := range similarCandidates {
		add(t, p.config.SimilarWeight)
	}

	return lo.Map(order, func(id string, _ int) ScoredTrack {
		return *scores[id]
	})
}

// chartCandidates uses the global chart. This is the fallback when there is
// no usable seed.
func (p *LastFmProvider) chartCandidates(ctx context.Context, count int, exclude map[string]bool) ([]track.Track, error) {
	refs, err := p.lastfm.ChartTopTracks(ctx, 50)
	if err != nil {
		return []track.Track{}, err
	}

	p.shuffle(len(refs), func(i, j int) {
		refs[i], refs[j] = refs[j], refs[i]
	})
	return dedupe(p.resolveAll(ctx, refs, count*2, exclude), ""), nil
}

// resolveAll resolves refs in order, stopping once limit tracks are found
// when limit is positive.
func (p *LastFmProvider) resolveAll(ctx context.Context, refs []lastfm.TrackRef, limit int, exclude map[string]bool) []track.Track {
	var result []track.Track
	for _, ref := range refs {
		if ctx.Err() != nil {
			break
		}
		t, ok := p.resolve(ctx, ref.Name, ref.Artist)
		if !ok || exclude[t.ID] {
			continue
		}
		result = append(result, t)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result
}

// resolve finds a Last.fm track on Spotify with caching.
func (p *LastFmProvider) resolve(ctx context.Context, name, artist string) (track.Track, bool) {
	key := name + "\x00" + artist
	if cached, ok := p.lookups.Get(key); ok {
		return cached.track, cached.found
	}

	t, found, err := p.spotify.FindTrack(ctx, name, artist)
	if err != nil {
		// Errors are not cached so a transient failure can be retried
		zlog.Debug().Msgf("catalog: spotify lookup failed for %s / %s: %v", name, artist, err)
		return track.Track{}, false
	}
	p.lookups.Add(key, lookup{track: t, found: found})
	return t, found
}

func (p *LastFmProvider) shuffle(n int, swap func(i, j int)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rng.Shuffle(n, swap)
}

// topTags sorts tags by count and returns the top n names.
func topTags(counts map[string]int, n int) []string {
	names := lo.Keys(counts)
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	return names[:min(n, len(names))]
}

// dedupe removes duplicate tracks by ID, and the seed itself.
func dedupe(tracks []track.Track, seedID string) []track.Track {
	seen := make(map[string]bool, len(tracks))
	result := make([]track.Track, 0, len(tracks))
	for _, t := range tracks {
		if seen[t.ID] || (seedID != "" && t.ID == seedID) {
			continue
		}
		seen[t.ID] = true
		result = append(result, t)
	}
	return result
}
