package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// Client calls the PlayerService and CatalogService.
type Client struct {
	token string

	playTrack     *connect.Client[PlayTrackRequest, State]
	togglePlay    *connect.Client[Empty, State]
	play          *connect.Client[Empty, State]
	pause         *connect.Client[Empty, State]
	next          *connect.Client[Empty, State]
	previous      *connect.Client[Empty, State]
	seek          *connect.Client[SeekRequest, State]
	setVolume     *connect.Client[SetVolumeRequest, State]
	setQueue      *connect.Client[SetQueueRequest, State]
	toggleShuffle *connect.Client[Empty, ToggleShuffleResponse]
	toggleRepeat  *connect.Client[Empty, ToggleRepeatResponse]
	getState      *connect.Client[Empty, State]
	getQueue      *connect.Client[Empty, QueueResponse]
	watchState    *connect.Client[Empty, State]
	buildQueue    *connect.Client[BuildQueueRequest, BuildQueueResponse]
}

// NewClient creates a client for the server at baseURL. A non-empty token is
// sent as the control token on every call.
func NewClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)

	return &Client{
		token:         token,
		playTrack:     connect.NewClient[PlayTrackRequest, State](httpClient, baseURL+PlayerServicePlayTrackProcedure, opts...),
		togglePlay:    connect.NewClient[Empty, State](httpClient, baseURL+PlayerServiceTogglePlayProcedure, opts...),
		play:          connect.NewClient[Empty, State](httpClient, baseURL+PlayerServicePlayProcedure, opts...),
		pause:         connect.NewClient[Empty, State](httpClient, baseURL+PlayerServicePauseProcedure, opts...),
		next:          connect.NewClient[Empty, State](httpClient, baseURL+PlayerServiceNextProcedure, opts...),
		previous:      connect.NewClient[Empty, State](httpClient, baseURL+PlayerServicePreviousProcedure, opts...),
		seek:          connect.NewClient[SeekRequest, State](httpClient, baseURL+PlayerServiceSeekProcedure, opts...),
		setVolume:     connect.NewClient[SetVolumeRequest, State](httpClient, baseURL+PlayerServiceSetVolumeProcedure, opts...),
		setQueue:      connect.NewClient[SetQueueRequest, State](httpClient, baseURL+PlayerServiceSetQueueProcedure, opts...),
		toggleShuffle: connect.NewClient[Empty, ToggleShuffleResponse](httpClient, baseURL+PlayerServiceToggleShuffleProcedure, opts...),
		toggleRepeat:  connect.NewClient[Empty, ToggleRepeatResponse](httpClient, baseURL+PlayerServiceToggleRepeatProcedure, opts...),
		getState:      connect.NewClient[Empty, State](httpClient, baseURL+PlayerServiceGetStateProcedure, opts...),
		getQueue:      connect.NewClient[Empty, QueueResponse](httpClient, baseURL+PlayerServiceGetQueueProcedure, opts...),
		watchState:    connect.NewClient[Empty, State](httpClient, baseURL+PlayerServiceWatchStateProcedure, opts...),
		buildQueue:    connect.NewClient[BuildQueueRequest, BuildQueueResponse](httpClient, baseURL+CatalogServiceBuildQueueProcedure, opts...),
	}
}

func request[T any](c *Client, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	if c.token != "" {
		req.Header().Set(ControlTokenHeader, c.token)
	}
	return req
}

func unary[Req, Res any](ctx context.Context, c *Client, client *connect.Client[Req, Res], msg *Req) (*Res, error) {
	resp, err := client.CallUnary(ctx, request(c, msg))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// PlayTrack binds t, toggling it when it is already bound.
func (c *Client) PlayTrack(ctx context.Context, t Track) (*State, error) {
	return unary(ctx, c, c.playTrack, &PlayTrackRequest{Track: t})
}

func (c *Client) TogglePlay(ctx context.Context) (*State, error) {
	return unary(ctx, c, c.togglePlay, &Empty{})
}

func (c *Client) Play(ctx context.Context) (*State, error) {
	return unary(ctx, c, c.play, &Empty{})
}

func (c *Client) Pause(ctx context.Context) (*State, error) {
	return unary(ctx, c, c.pause, &Empty{})
}

func (c *Client) Next(ctx context.Context) (*State, error) {
	return unary(ctx, c, c.next, &Empty{})
}

func (c *Client) Previous(ctx context.Context) (*State, error) {
	return unary(ctx, c, c.previous, &Empty{})
}

func (c *Client) Seek(ctx context.Context, seconds float64) (*State, error) {
	return unary(ctx, c, c.seek, &SeekRequest{Seconds: seconds})
}

func (c *Client) SetVolume(ctx context.Context, volume float64) (*State, error) {
	return unary(ctx, c, c.setVolume, &SetVolumeRequest{Volume: volume})
}

func (c *Client) SetQueue(ctx context.Context, tracks []Track) (*State, error) {
	return unary(ctx, c, c.setQueue, &SetQueueRequest{Tracks: tracks})
}

func (c *Client) ToggleShuffle(ctx context.Context) (bool, error) {
	resp, err := unary(ctx, c, c.toggleShuffle, &Empty{})
	if err != nil {
		return false, err
	}
	return resp.Shuffle, nil
}

func (c *Client) ToggleRepeat(ctx context.Context) (string, error) {
	resp, err := unary(ctx, c, c.toggleRepeat, &Empty{})
	if err != nil {
		return "", err
	}
	return resp.Repeat, nil
}

func (c *Client) GetState(ctx context.Context) (*State, error) {
	return unary(ctx, c, c.getState, &Empty{})
}

func (c *Client) GetQueue(ctx context.Context) (*QueueResponse, error) {
	return unary(ctx, c, c.getQueue, &Empty{})
}

// BuildQueue asks the catalog for a track list.
func (c *Client) BuildQueue(ctx context.Context, req *BuildQueueRequest) (*BuildQueueResponse, error) {
	return unary(ctx, c, c.buildQueue, req)
}

// WatchState calls fn with the current state and then with every change.
// It returns when the stream ends or fn fails.
func (c *Client) WatchState(ctx context.Context, fn func(*State) error) error {
	stream, err := c.watchState.CallServerStream(ctx, request(c, &Empty{}))
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		if err := fn(stream.Msg()); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
