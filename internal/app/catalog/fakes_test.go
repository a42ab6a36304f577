package catalog

import (
	"context"
	"math/rand"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/osa030/musicmind/internal/domain/playlist"
	"github.com/osa030/musicmind/internal/domain/track"
	"github.com/osa030/musicmind/internal/infra/lastfm"
)

func tr(id string) track.Track {
	return track.Track{ID: id, Title: "Title " + id, ArtistName: "Artist", SourceURL: "https://cdn/" + id + ".mp3"}
}

func trs(ids ...string) []track.Track {
	out := make([]track.Track, len(ids))
	for i, id := range ids {
		out[i] = tr(id)
	}
	return out
}

type fakeAPI struct {
	similar   map[string][]track.Track
	recommend map[string][]track.Track
	user      playlist.Playlist
	search    []track.Track
	artist    []track.Track
	err       error
	calls     []string
}

func (f *fakeAPI) Similar(ctx context.Context, id string) ([]track.Track, error) {
	f.calls = append(f.calls, "similar:"+id)
	return f.similar[id], f.err
}

func (f *fakeAPI) Recommendations(ctx context.Context, id string) ([]track.Track, error) {
	f.calls = append(f.calls, "recommend:"+id)
	return f.recommend[id], f.err
}

func (f *fakeAPI) UserRecommendations(ctx context.Context, userID string) (playlist.Playlist, error) {
	f.calls = append(f.calls, "user:"+userID)
	return f.user, f.err
}

func (f *fakeAPI) Search(ctx context.Context, q string) ([]track.Track, error) {
	f.calls = append(f.calls, "search:"+q)
	return f.search, f.err
}

func (f *fakeAPI) ArtistSongs(ctx context.Context, artist string) ([]track.Track, error) {
	f.calls = append(f.calls, "artist:"+artist)
	return f.artist, f.err
}

type fakeSpotify struct {
	mu       sync.Mutex
	catalog  map[string]track.Track // "name|artist" -> track
	playlist []track.Track
	finds    int
	samples  int
	findErr  error
}

func (f *fakeSpotify) FindTrack(ctx context.Context, name, artist string) (track.Track, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	if f.findErr != nil {
		return track.Track{}, false, f.findErr
	}
	t, ok := f.catalog[name+"|"+artist]
	return t, ok, nil
}

func (f *fakeSpotify) PlaylistSample(ctx context.Context, url string, count int, rng *rand.Rand) ([]track.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples++
	if url == "" {
		return nil, errors.New("invalid playlist URL")
	}
	return f.playlist[:min(count, len(f.playlist))], nil
}

type fakeLastFm struct {
	similar []lastfm.TrackRef
	tags    []lastfm.Tag
	tagTop  map[string][]lastfm.TrackRef
	artist  []lastfm.TrackRef
	chart   []lastfm.TrackRef
}

func (f *fakeLastFm) SimilarTracks(ctx context.Context, name, artist string, limit int) ([]lastfm.TrackRef, error) {
	return f.similar, nil
}

func (f *fakeLastFm) TopTags(ctx context.Context, name, artist string, limit int) ([]lastfm.Tag, error) {
	return f.tags, nil
}

func (f *fakeLastFm) TagTopTracks(ctx context.Context, tag string, limit int) ([]lastfm.TrackRef, error) {
	return f.tagTop[tag], nil
}

func (f *fakeLastFm) ArtistTopTracks(ctx context.Context, artist string, limit int) ([]lastfm.TrackRef, error) {
	return f.artist, nil
}

func (f *fakeLastFm) ChartTopTracks(ctx context.Context, limit int) ([]lastfm.TrackRef, error) {
	return f.chart, nil
}

// staticProvider returns fixed tracks or an error.
type staticProvider struct {
	tracks []track.Track
	err    error
	seen   map[string]bool
}

func (p *staticProvider) Candidates(ctx context.Context, req Request, exclude map[string]bool) ([]track.Track, error) {
	p.seen = exclude
	return p.tracks, p.err
}

func (p *staticProvider) Name() string { return "static" }
