// Package spotify provides a read-only client for the Spotify Web API.
// Tracks are exposed with their preview clip as the playable source.
package spotify

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/musicmind/internal/domain/track"
)

// IDPrefix marks track IDs that originate from Spotify.
const IDPrefix = "spotify:"

const pageLimit = 100

// Client is a Spotify API client.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Market       string
}

// New creates a new Spotify client that refreshes its token on demand.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("spotify credentials are required")
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithScopes(spotifyauth.ScopePlaylistReadPrivate),
	)
	httpClient := auth.Client(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	market := cfg.Market
	if market == "" {
		market = "JP"
	}

	return &Client{
		client:     spotify.New(httpClient),
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// SearchTracks searches tracks by free text.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]track.Track, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("search query is required")
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	var result *spotify.SearchResult
	err := c.retry(func() error {
		r, err := c.client.Search(ctx, query, spotify.SearchTypeTrack,
			spotify.Limit(limit),
			spotify.Market(c.market),
		)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to search")
	}
	if result.Tracks == nil {
		return []track.Track{}, nil
	}

	return lo.Map(result.Tracks.Tracks, func(t spotify.FullTrack, _ int) track.Track {
		return convertTrack(&t)
	}), nil
}

// FindTrack returns the best match for a track name and artist.
func (c *Client) FindTrack(ctx context.Context, name, artist string) (track.Track, bool, error) {
	query := fmt.Sprintf("track:%s artist:%s", name, artist)
	tracks, err := c.SearchTracks(ctx, query, 1)
	if err != nil {
		return track.Track{}, false, err
	}
	if len(tracks) == 0 {
		return track.Track{}, false, nil
	}
	return tracks[0], true, nil
}

// PlaylistSample returns up to count tracks from a random page of a playlist.
func (c *Client) PlaylistSample(ctx context.Context, playlistURL string, count int, rng *rand.Rand) ([]track.Track, error) {
	playlistID := extractPlaylistID(playlistURL)
	if playlistID == "" {
		return nil, errors.New("invalid playlist URL")
	}

	first, err := c.playlistPage(ctx, playlistID, 1, 0)
	if err != nil {
		return nil, err
	}
	total := int(first.Total)
	if total == 0 {
		return []track.Track{}, nil
	}

	offset := 0
	if maxOffset := total - pageLimit; maxOffset > 0 {
		offset = rng.Intn(maxOffset + 1)
	}

	page, err := c.playlistPage(ctx, playlistID, pageLimit, offset)
	if err != nil {
		return nil, err
	}
	tracks := pageTracks(page)

	if count > 0 && len(tracks) > count {
		rng.Shuffle(len(tracks), func(i, j int) {
			tracks[i], tracks[j] = tracks[j], tracks[i]
		})
		tracks = tracks[:count]
	}
	return tracks, nil
}

func (c *Client) playlistPage(ctx context.Context, playlistID string, limit, offset int) (*spotify.PlaylistItemPage, error) {
	var page *spotify.PlaylistItemPage
	err := c.retry(func() error {
		p, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
			spotify.Limit(limit),
			spotify.Offset(offset),
			spotify.Market(c.market),
		)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get playlist items (offset %d)", offset)
	}
	return page, nil
}

// pageTracks converts playlist items, skipping episodes.
func pageTracks(page *spotify.PlaylistItemPage) []track.Track {
	tracks := make([]track.Track, 0, len(page.Items))
	for _, item := range page.Items {
		if item.Track.Track != nil && item.Track.Track.ID != "" {
			tracks = append(tracks, convertTrack(item.Track.Track))
		}
	}
	return tracks
}

// convertTrack maps a Spotify track to a domain track. Tracks without a
// preview clip, or flagged unplayable in the market, get no source.
func convertTrack(t *spotify.FullTrack) track.Track {
	artists := lo.Map(t.Artists, func(a spotify.SimpleArtist, _ int) string {
		return a.Name
	})

	var image string
	if len(t.Album.Images) > 0 {
		image = t.Album.Images[0].URL
	}

	src := t.PreviewURL
	if t.IsPlayable != nil && !*t.IsPlayable {
		src = ""
	}

	return track.New(
		IDPrefix+string(t.ID),
		t.Name,
		strings.Join(artists, ", "),
		src,
		image,
		time.Duration(t.Duration)*time.Millisecond,
	)
}

// TrackURL returns the Spotify web URL of a track ID (with or without prefix).
func TrackURL(id string) string {
	return "https://open.spotify.com/track/" + strings.TrimPrefix(id, IDPrefix)
}

// retry retries an operation with linear backoff.
func (c *Client) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}
		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable reports rate limiting and server errors.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var apiErr spotify.Error
	if errors.As(err, &apiErr) && apiErr.Status != 0 {
		return apiErr.Status == 429 || apiErr.Status >= 500
	}

	msg := err.Error()
	return strings.Contains(msg, "rate limit") ||
		lo.SomeBy([]string{"429", "500", "502", "503", "504"}, func(code string) bool {
			return strings.Contains(msg, code)
		})
}

// extractPlaylistID extracts the playlist ID from a Spotify playlist URL or URI.
func extractPlaylistID(input string) string {
	input = strings.TrimSpace(input)
	if id, ok := strings.CutPrefix(input, "spotify:playlist:"); ok {
		return id
	}

	// https://open.spotify.com/playlist/ID or https://open.spotify.com/intl-XX/playlist/ID
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, "/playlist/") {
		parts := strings.Split(input, "/playlist/")
		id := strings.Split(parts[len(parts)-1], "?")[0]
		return strings.TrimRight(id, "/")
	}

	return input
}
