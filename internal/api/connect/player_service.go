// Package connect provides Connect RPC service implementations.
package connect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/osa030/musicmind/internal/app/notification"
	"github.com/osa030/musicmind/internal/app/playback"
	"github.com/osa030/musicmind/internal/app/store"
	"github.com/osa030/musicmind/internal/domain/queue"
	"github.com/osa030/musicmind/internal/domain/track"
)

// PlayerServiceName is the fully-qualified name of the PlayerService.
const PlayerServiceName = "musicmind.v1.PlayerService"

// PlayerService procedures.
const (
	PlayerServicePlayTrackProcedure     = "/" + PlayerServiceName + "/PlayTrack"
	PlayerServiceTogglePlayProcedure    = "/" + PlayerServiceName + "/TogglePlay"
	PlayerServicePlayProcedure          = "/" + PlayerServiceName + "/Play"
	PlayerServicePauseProcedure         = "/" + PlayerServiceName + "/Pause"
	PlayerServiceNextProcedure          = "/" + PlayerServiceName + "/Next"
	PlayerServicePreviousProcedure      = "/" + PlayerServiceName + "/Previous"
	PlayerServiceSeekProcedure          = "/" + PlayerServiceName + "/Seek"
	PlayerServiceSetVolumeProcedure     = "/" + PlayerServiceName + "/SetVolume"
	PlayerServiceSetQueueProcedure      = "/" + PlayerServiceName + "/SetQueue"
	PlayerServiceToggleShuffleProcedure = "/" + PlayerServiceName + "/ToggleShuffle"
	PlayerServiceToggleRepeatProcedure  = "/" + PlayerServiceName + "/ToggleRepeat"
	PlayerServiceGetStateProcedure      = "/" + PlayerServiceName + "/GetState"
	PlayerServiceGetQueueProcedure      = "/" + PlayerServiceName + "/GetQueue"
	PlayerServiceWatchStateProcedure    = "/" + PlayerServiceName + "/WatchState"
)

// Player is the playback surface exposed over RPC.
type Player interface {
	PlayTrack(t track.Track) error
	TogglePlay() error
	Play() error
	Pause() error
	Next() error
	Previous() error
	Seek(seconds float64) error
	SetVolume(volume float64) error
	SetQueue(tracks []track.Track) error
	ToggleShuffle() (bool, error)
	ToggleRepeat() (queue.RepeatMode, error)
	Snapshot() store.Snapshot
	Queue() playback.QueueView
}

var _ Player = (*playback.Controller)(nil)

// PlayerService implements the PlayerService RPC.
type PlayerService struct {
	player        Player
	notifications *notification.Manager
}

// NewPlayerService creates a new PlayerService.
func NewPlayerService(player Player, notifications *notification.Manager) *PlayerService {
	return &PlayerService{
		player:        player,
		notifications: notifications,
	}
}

// NewPlayerServiceHandler builds an HTTP handler serving every PlayerService
// procedure. It returns the path to mount the handler on.
func NewPlayerServiceHandler(s *PlayerService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	handlers := map[string]http.Handler{
		PlayerServicePlayTrackProcedure:     connect.NewUnaryHandler(PlayerServicePlayTrackProcedure, s.PlayTrack, opts...),
		PlayerServiceTogglePlayProcedure:    connect.NewUnaryHandler(PlayerServiceTogglePlayProcedure, s.TogglePlay, opts...),
		PlayerServicePlayProcedure:          connect.NewUnaryHandler(PlayerServicePlayProcedure, s.Play, opts...),
		PlayerServicePauseProcedure:         connect.NewUnaryHandler(PlayerServicePauseProcedure, s.Pause, opts...),
		PlayerServiceNextProcedure:          connect.NewUnaryHandler(PlayerServiceNextProcedure, s.Next, opts...),
		PlayerServicePreviousProcedure:      connect.NewUnaryHandler(PlayerServicePreviousProcedure, s.Previous, opts...),
		PlayerServiceSeekProcedure:          connect.NewUnaryHandler(PlayerServiceSeekProcedure, s.Seek, opts...),
		PlayerServiceSetVolumeProcedure:     connect.NewUnaryHandler(PlayerServiceSetVolumeProcedure, s.SetVolume, opts...),
		PlayerServiceSetQueueProcedure:      connect.NewUnaryHandler(PlayerServiceSetQueueProcedure, s.SetQueue, opts...),
		PlayerServiceToggleShuffleProcedure: connect.NewUnaryHandler(PlayerServiceToggleShuffleProcedure, s.ToggleShuffle, opts...),
		PlayerServiceToggleRepeatProcedure:  connect.NewUnaryHandler(PlayerServiceToggleRepeatProcedure, s.ToggleRepeat, opts...),
		PlayerServiceGetStateProcedure:      connect.NewUnaryHandler(PlayerServiceGetStateProcedure, s.GetState, opts...),
		PlayerServiceGetQueueProcedure:      connect.NewUnaryHandler(PlayerServiceGetQueueProcedure, s.GetQueue, opts...),
		PlayerServiceWatchStateProcedure:    connect.NewServerStreamHandler(PlayerServiceWatchStateProcedure, s.WatchState, opts...),
	}
	return "/" + PlayerServiceName + "/", routeProcedures(handlers)
}

// PlayTrack binds a track, toggling it when it is already bound.
func (s *PlayerService) PlayTrack(
	ctx context.Context,
	req *connect.Request[PlayTrackRequest],
) (*connect.Response[State], error) {
	if !validTrack(req.Msg.Track) {
		return nil, connect.NewError(connect.CodeInvalidArgument, errMissingTrackID)
	}
	return s.apply(s.player.PlayTrack(toTrack(req.Msg.Track)))
}

// TogglePlay pauses or resumes the bound track.
func (s *PlayerService) TogglePlay(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[State], error) {
	return s.apply(s.player.TogglePlay())
}

// Play resumes the bound track.
func (s *PlayerService) Play(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[State], error) {
	return s.apply(s.player.Play())
}

// Pause pauses the bound track.
func (s *PlayerService) Pause(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[State], error) {
	return s.apply(s.player.Pause())
}

// Next skips to the next track.
func (s *PlayerService) Next(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[State], error) {
	return s.apply(s.player.Next())
}

// Previous skips to the previous track.
func (s *PlayerService) Previous(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[State], error) {
	return s.apply(s.player.Previous())
}

// Seek moves the playback position.
func (s *PlayerService) Seek(
	ctx context.Context,
	req *connect.Request[SeekRequest],
) (*connect.Response[State], error) {
	return s.apply(s.player.Seek(req.Msg.Seconds))
}

// SetVolume sets the volume.
func (s *PlayerService) SetVolume(
	ctx context.Context,
	req *connect.Request[SetVolumeRequest],
) (*connect.Response[State], error) {
	return s.apply(s.player.SetVolume(req.Msg.Volume))
}

// SetQueue replaces the queue and plays its first track.
func (s *PlayerService) SetQueue(
	ctx context.Context,
	req *connect.Request[SetQueueRequest],
) (*connect.Response[State], error) {
	for _, t := range req.Msg.Tracks {
		if !validTrack(t) {
			return nil, connect.NewError(connect.CodeInvalidArgument, errMissingTrackID)
		}
	}
	return s.apply(s.player.SetQueue(toTracks(req.Msg.Tracks)))
}

// ToggleShuffle flips shuffle.
func (s *PlayerService) ToggleShuffle(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[ToggleShuffleResponse], error) {
	enabled, err := s.player.ToggleShuffle()
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ToggleShuffleResponse{Shuffle: enabled}), nil
}

// ToggleRepeat cycles the repeat mode.
func (s *PlayerService) ToggleRepeat(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[ToggleRepeatResponse], error) {
	mode, err := s.player.ToggleRepeat()
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ToggleRepeatResponse{Repeat: mode.String()}), nil
}

// GetState returns the current playback state.
func (s *PlayerService) GetState(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[State], error) {
	return connect.NewResponse(fromSnapshot(s.player.Snapshot())), nil
}

// GetQueue returns the queue.
func (s *PlayerService) GetQueue(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[QueueResponse], error) {
	return connect.NewResponse(fromQueue(s.player.Queue())), nil
}

// WatchState streams the current state followed by every change.
func (s *PlayerService) WatchState(
	ctx context.Context,
	req *connect.Request[Empty],
	stream *connect.ServerStream[State],
) error {
	adapter := &stateStreamAdapter{stream: stream}
	subscriptionID := s.notifications.Subscribe(adapter)
	defer s.notifications.Unsubscribe(subscriptionID)

	// The subscription only delivers snapshots newer than the last one
	// sent, so a concurrent broadcast cannot reorder the stream.
	if err := s.notifications.Send(subscriptionID, s.player.Snapshot()); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-s.notifications.Done():
	}
	return nil
}

func (s *PlayerService) apply(err error) (*connect.Response[State], error) {
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(fromSnapshot(s.player.Snapshot())), nil
}

// stateStreamAdapter adapts connect.ServerStream to notification.Stream.
type stateStreamAdapter struct {
	stream *connect.ServerStream[State]
}

func (a *stateStreamAdapter) Send(snap store.Snapshot) error {
	return a.stream.Send(fromSnapshot(snap))
}

// routeProcedures dispatches on the request path like generated handlers do.
func routeProcedures(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}
