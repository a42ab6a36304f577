package musicapi

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/osa030/musicmind/internal/domain/track"
)

// song is one row as returned by the API. Columns vary between endpoints,
// so every field is optional.
type song struct {
	ID         looseString  `json:"id"`
	SongID     looseString  `json:"song_id"`
	Title      string       `json:"title"`
	ArtistName string       `json:"artist_name"`
	Artist     string       `json:"artist"`
	AudioURL   string       `json:"audio_url"`
	ImageURL   string       `json:"image_url"`
	Duration   looseSeconds `json:"duration"`
}

func (s song) track() (track.Track, bool) {
	id := lo.CoalesceOrEmpty(string(s.ID), string(s.SongID))
	if id == "" {
		return track.Track{}, false
	}
	artist := lo.CoalesceOrEmpty(s.ArtistName, s.Artist)
	return track.New(id, s.Title, artist, s.AudioURL, s.ImageURL, time.Duration(s.Duration)), true
}

func toTracks(songs []song) []track.Track {
	return lo.FilterMap(songs, func(s song, _ int) (track.Track, bool) {
		return s.track()
	})
}

// looseString accepts a JSON string or number.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Wrapf(err, "expected string or number, got %s", data)
	}
	*s = looseString(n.String())
	return nil
}

// looseSeconds accepts a number of seconds, possibly quoted.
type looseSeconds time.Duration

func (d *looseSeconds) UnmarshalJSON(data []byte) error {
	var s looseString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(s), 64)
	if err != nil || f < 0 {
		// Unparseable durations are treated as unknown.
		*d = 0
		return nil
	}
	*d = looseSeconds(time.Duration(f * float64(time.Second)))
	return nil
}
