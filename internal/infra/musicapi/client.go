// Package musicapi provides a client for the music catalog REST API.
package musicapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicmind/internal/app/playback"
	"github.com/osa030/musicmind/internal/domain/playlist"
	"github.com/osa030/musicmind/internal/domain/track"
)

const maxErrorBody = 4096

// Config represents catalog API client configuration.
type Config struct {
	BaseURL   string
	UserID    string
	AuthToken string
	Timeout   time.Duration // Zero means 10s
}

// Client is a catalog API client. It also records plays and skips.
type Client struct {
	baseURL    string
	userID     string
	authToken  string
	httpClient *http.Client
}

var _ playback.Reporter = (*Client)(nil)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return "catalog API returned " + strconv.Itoa(e.Status) + ": " + e.Body
}

// New creates a new catalog API client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, errors.New("catalog API base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, errors.Wrapf(err, "invalid catalog API base URL %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    base,
		userID:     cfg.UserID,
		authToken:  cfg.AuthToken,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// UserID returns the configured listener id.
func (c *Client) UserID() string {
	return c.userID
}

// Similar returns tracks similar to the given one. No match is not an error.
func (c *Client) Similar(ctx context.Context, songID string) ([]track.Track, error) {
	var songs []song
	err := c.get(ctx, "/songs/"+url.PathEscape(songID)+"/similar", nil, &songs)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get similar songs for %s", songID)
	}
	return toTracks(songs), nil
}

// Recommendations returns tracks recommended from the given one.
func (c *Client) Recommendations(ctx context.Context, songID string) ([]track.Track, error) {
	var songs []song
	if err := c.get(ctx, "/songs/"+url.PathEscape(songID)+"/recommendations", nil, &songs); err != nil {
		return nil, errors.Wrapf(err, "failed to get recommendations for %s", songID)
	}
	return toTracks(songs), nil
}

// UserRecommendations returns the personal recommendation section for a
// listener. An empty userID uses the configured one.
func (c *Client) UserRecommendations(ctx context.Context, userID string) (playlist.Playlist, error) {
	if userID == "" {
		userID = c.userID
	}
	if userID == "" {
		return playlist.Playlist{}, errors.New("user id is required")
	}

	var resp struct {
		Songs        []song `json:"songs"`
		SectionTitle string `json:"sectionTitle"`
	}
	if err := c.get(ctx, "/users/"+url.PathEscape(userID)+"/recommendations", nil, &resp); err != nil {
		return playlist.Playlist{}, errors.Wrapf(err, "failed to get recommendations for user %s", userID)
	}
	return playlist.Playlist{Title: resp.SectionTitle, Tracks: toTracks(resp.Songs)}, nil
}

// Search returns tracks matching query.
func (c *Client) Search(ctx context.Context, query string) ([]track.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is required")
	}
	var songs []song
	if err := c.get(ctx, "/search", url.Values{"q": {query}}, &songs); err != nil {
		return nil, errors.Wrapf(err, "failed to search %q", query)
	}
	return toTracks(songs), nil
}

// ArtistSongs returns the songs of an artist.
func (c *Client) ArtistSongs(ctx context.Context, artist string) ([]track.Track, error) {
	if artist == "" {
		return nil, errors.New("artist name is required")
	}
	var params url.Values
	if c.userID != "" {
		params = url.Values{"userId": {c.userID}}
	}
	var songs []song
	if err := c.get(ctx, "/artists/"+url.PathEscape(artist)+"/songs", params, &songs); err != nil {
		return nil, errors.Wrapf(err, "failed to get songs of %s", artist)
	}
	return toTracks(songs), nil
}

// RecordSkip records that the listener skipped a track.
func (c *Client) RecordSkip(ctx context.Context, skip playback.SkipRecord) error {
	if c.userID == "" {
		zlog.Debug().Msgf("musicapi: no user id, skip of %s not recorded", skip.TrackID)
		return nil
	}
	body := struct {
		UserID          string  `json:"userId"`
		SkipTimeSeconds float64 `json:"skipTimeSeconds"`
	}{c.userID, skip.Position}
	return c.post(ctx, "/songs/"+url.PathEscape(skip.TrackID)+"/skip", body)
}

// RecordPlay records that a track started playing.
func (c *Client) RecordPlay(ctx context.Context, trackID string) error {
	body := struct {
		UserID string `json:"userId,omitempty"`
	}{c.userID}
	return c.post(ctx, "/songs/"+url.PathEscape(trackID)+"/play", body)
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, in any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "failed to encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	zlog.Debug().Msgf("musicapi: %s %s", req.Method, req.URL.Path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

func isNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusNotFound
}
