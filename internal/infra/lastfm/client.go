// Package lastfm provides a client for the Last.fm API.
package lastfm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru/v2"
	zlog "github.com/rs/zerolog/log"
)

const (
	defaultBaseURL   = "https://ws.audioscrobbler.com/2.0/"
	defaultCacheSize = 256
	maxLimit         = 100
)

// Config represents Last.fm client configuration.
type Config struct {
	APIKey    string
	Timeout   time.Duration // Zero means 10s
	CacheSize int           // Zero means 256 entries per cache
}

// Client is a Last.fm API client. Tag lookups are cached in memory.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	tagCache      *lru.Cache[string, []Tag]
	tagTrackCache *lru.Cache[string, []TrackRef]
}

// TrackRef is a track identified by name and artist.
type TrackRef struct {
	Name   string
	Artist string
}

// Tag represents a Last.fm tag.
type Tag struct {
	Name  string
	Count int
}

// APIError is an error payload returned by Last.fm.
type APIError struct {
	Code    int    `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return "last.fm API error " + strconv.Itoa(e.Code) + ": " + e.Message
}

type trackList struct {
	Track []struct {
		Name   string `json:"name"`
		Artist struct {
			Name string `json:"name"`
		} `json:"artist"`
	} `json:"track"`
}

func (l trackList) refs() []TrackRef {
	refs := make([]TrackRef, 0, len(l.Track))
	for _, t := range l.Track {
		if t.Name == "" {
			continue
		}
		refs = append(refs, TrackRef{Name: t.Name, Artist: t.Artist.Name})
	}
	return refs
}

// New creates a new Last.fm client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("last.fm API key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}

	tagCache, err := lru.New[string, []Tag](cfg.CacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create tag cache")
	}
	tagTrackCache, err := lru.New[string, []TrackRef](cfg.CacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create tag track cache")
	}

	return &Client{
		apiKey:        cfg.APIKey,
		baseURL:       defaultBaseURL,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		tagCache:      tagCache,
		tagTrackCache: tagTrackCache,
	}, nil
}

// SimilarTracks returns tracks similar to the given one.
// Reference: https://www.last.fm/api/show/track.getSimilar
func (c *Client) SimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]TrackRef, error) {
	if trackName == "" || artistName == "" {
		return nil, errors.New("track name and artist name are required")
	}

	var resp struct {
		SimilarTracks trackList `json:"similartracks"`
	}
	err := c.call(ctx, "track.getSimilar", url.Values{
		"artist":      {artistName},
		"track":       {trackName},
		"limit":       {strconv.Itoa(clampLimit(limit, 20))},
		"autocorrect": {"1"},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.SimilarTracks.refs(), nil
}

// TopTags returns the most used tags of a track.
// Reference: https://www.last.fm/api/show/track.getTopTags
func (c *Client) TopTags(ctx context.Context, trackName, artistName string, limit int) ([]Tag, error) {
	if trackName == "" || artistName == "" {
		return nil, errors.New("track name and artist name are required")
	}
	limit = clampLimit(limit, 10)

	key := artistName + "\x00" + trackName
	if tags, ok := c.tagCache.Get(key); ok {
		zlog.Debug().Msgf("lastfm: cached tags for %s - %s", artistName, trackName)
		return truncate(tags, limit), nil
	}

	var resp struct {
		TopTags struct {
			Tag []struct {
				Name  string `json:"name"`
				Count int    `json:"count"`
			} `json:"tag"`
		} `json:"toptags"`
	}
	err := c.call(ctx, "track.getTopTags", url.Values{
		"artist":      {artistName},
		"track":       {trackName},
		"autocorrect": {"1"},
	}, &resp)
	if err != nil {
		return nil, err
	}

	tags := make([]Tag, 0, len(resp.TopTags.Tag))
	for _, t := range resp.TopTags.Tag {
		tags = append(tags, Tag{Name: t.Name, Count: t.Count})
	}
	c.tagCache.Add(key, tags)
	return truncate(tags, limit), nil
}

// TagTopTracks returns the top tracks of a tag.
// Reference: https://www.last.fm/api/show/tag.getTopTracks
func (c *Client) TagTopTracks(ctx context.Context, tagName string, limit int) ([]TrackRef, error) {
	if tagName == "" {
		return nil, errors.New("tag name is required")
	}
	limit = clampLimit(limit, 20)

	key := tagName + "\x00" + strconv.Itoa(limit)
	if refs, ok := c.tagTrackCache.Get(key); ok {
		zlog.Debug().Msgf("lastfm: cached top tracks for tag %s", tagName)
		return refs, nil
	}

	var resp struct {
		Tracks trackList `json:"tracks"`
	}
	err := c.call(ctx, "tag.getTopTracks", url.Values{
		"tag":   {tagName},
		"limit": {strconv.Itoa(limit)},
	}, &resp)
	if err != nil {
		return nil, err
	}

	refs := resp.Tracks.refs()
	c.tagTrackCache.Add(key, refs)
	return refs, nil
}

// ArtistTopTracks returns the most played tracks of an artist.
// Reference: https://www.last.fm/api/show/artist.getTopTracks
func (c *Client) ArtistTopTracks(ctx context.Context, artistName string, limit int) ([]TrackRef, error) {
	if artistName == "" {
		return nil, errors.New("artist name is required")
	}

	var resp struct {
		TopTracks trackList `json:"toptracks"`
	}
	err := c.call(ctx, "artist.getTopTracks", url.Values{
		"artist":      {artistName},
		"limit":       {strconv.Itoa(clampLimit(limit, 20))},
		"autocorrect": {"1"},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.TopTracks.refs(), nil
}

// ChartTopTracks returns the global chart.
// Reference: https://www.last.fm/api/show/chart.getTopTracks
func (c *Client) ChartTopTracks(ctx context.Context, limit int) ([]TrackRef, error) {
	var resp struct {
		Tracks trackList `json:"tracks"`
	}
	err := c.call(ctx, "chart.getTopTracks", url.Values{
		"limit": {strconv.Itoa(clampLimit(limit, 20))},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Tracks.refs(), nil
}

// call performs a GET for method and decodes the JSON body into out.
// Last.fm reports failures in the body, sometimes with a 200 status.
func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	params.Set("method", method)
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s request failed", method)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != 0 {
		return errors.WithStack(&apiErr)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Newf("%s returned status %d", method, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "failed to parse %s response", method)
	}
	return nil
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func truncate[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
