package connect

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/osa030/musicmind/internal/app/playback"
	"github.com/osa030/musicmind/internal/app/source"
	"github.com/osa030/musicmind/internal/app/store"
	"github.com/osa030/musicmind/internal/domain/track"
)

// Track is the wire form of a track.
type Track struct {
	ID              string  `json:"id"`
	Title           string  `json:"title,omitempty"`
	Artist          string  `json:"artist,omitempty"`
	SourceURL       string  `json:"source_url"`
	ImageURL        string  `json:"image_url,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

// QueueInfo summarises the queue.
type QueueInfo struct {
	Length  int    `json:"length"`
	Index   int    `json:"index"`
	Repeat  string `json:"repeat"`
	Shuffle bool   `json:"shuffle"`
}

// State is the wire form of a playback state snapshot.
type State struct {
	Sequence    uint64    `json:"sequence"`
	Track       *Track    `json:"track,omitempty"`
	Phase       string    `json:"phase"`
	IsPlaying   bool      `json:"is_playing"`
	IsLoading   bool      `json:"is_loading"`
	CurrentTime float64   `json:"current_time"`
	Duration    float64   `json:"duration"`
	Volume      float64   `json:"volume"`
	Backend     string    `json:"backend,omitempty"`
	Error       string    `json:"error,omitempty"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	Queue       QueueInfo `json:"queue"`
}

// Empty is used by RPCs without parameters or results.
type Empty struct{}

type PlayTrackRequest struct {
	Track Track `json:"track"`
}

type SeekRequest struct {
	Seconds float64 `json:"seconds"`
}

type SetVolumeRequest struct {
	Volume float64 `json:"volume"`
}

type SetQueueRequest struct {
	Tracks []Track `json:"tracks"`
}

type ToggleShuffleResponse struct {
	Shuffle bool `json:"shuffle"`
}

type ToggleRepeatResponse struct {
	Repeat string `json:"repeat"`
}

// QueueResponse lists the queued tracks in insertion order. ShuffleOrder
// holds the play order as indices into Tracks while shuffle is on.
type QueueResponse struct {
	Tracks       []Track `json:"tracks"`
	CurrentIndex int     `json:"current_index"`
	Repeat       string  `json:"repeat"`
	Shuffle      bool    `json:"shuffle"`
	ShuffleOrder []int   `json:"shuffle_order,omitempty"`
}

// BuildQueueRequest asks the catalog for a track list.
// Seed defaults to the current track for seeded modes.
type BuildQueueRequest struct {
	Mode   string `json:"mode"`
	Query  string `json:"query,omitempty"`
	Seed   *Track `json:"seed,omitempty"`
	Count  int    `json:"count,omitempty"`
	DryRun bool   `json:"dry_run,omitempty"`
}

type BuildQueueResponse struct {
	Tracks   []Track           `json:"tracks"`
	Sources  map[string]string `json:"sources,omitempty"`
	Rejected map[string]int    `json:"rejected,omitempty"`
}

func toTrack(t Track) track.Track {
	d := time.Duration(t.DurationSeconds * float64(time.Second))
	return track.New(t.ID, t.Title, t.Artist, t.SourceURL, t.ImageURL, d)
}

func toTracks(ts []Track) []track.Track {
	return lo.Map(ts, func(t Track, _ int) track.Track { return toTrack(t) })
}

func fromTrack(t track.Track) Track {
	return Track{
		ID:              t.ID,
		Title:           t.Title,
		Artist:          t.ArtistName,
		SourceURL:       t.SourceURL,
		ImageURL:        source.Artwork(t.ImageURL),
		DurationSeconds: t.DurationHintSeconds(),
	}
}

func fromTracks(ts []track.Track) []Track {
	return lo.Map(ts, func(t track.Track, _ int) Track { return fromTrack(t) })
}

func fromSnapshot(s store.Snapshot) *State {
	st := &State{
		Sequence:    s.Sequence,
		Phase:       s.Phase,
		IsPlaying:   s.IsPlaying,
		IsLoading:   s.IsLoading,
		CurrentTime: s.CurrentTime,
		Duration:    s.Duration,
		Volume:      s.Volume,
		Backend:     s.Backend,
		Error:       s.Error,
		ErrorKind:   s.ErrorKind,
		Queue: QueueInfo{
			Length:  s.Queue.Length,
			Index:   s.Queue.Index,
			Repeat:  s.Queue.Repeat,
			Shuffle: s.Queue.Shuffle,
		},
	}
	if s.Track != nil {
		t := fromTrack(*s.Track)
		st.Track = &t
	}
	return st
}

func fromQueue(q playback.QueueView) *QueueResponse {
	return &QueueResponse{
		Tracks:       fromTracks(q.Tracks),
		CurrentIndex: q.CurrentIndex,
		Repeat:       q.Repeat.String(),
		Shuffle:      q.Shuffle,
		ShuffleOrder: q.ShuffleOrder,
	}
}

func validTrack(t Track) bool {
	return strings.TrimSpace(t.ID) != ""
}
