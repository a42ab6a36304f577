package filter

import (
	"context"

	"github.com/osa030/musicmind/internal/domain/track"
)

// PlayableFilter drops candidates with nothing to load.
type PlayableFilter struct{}

func (f *PlayableFilter) Name() string {
	return "playable"
}

func (f *PlayableFilter) Description() string {
	return "Rejects tracks without a source URL"
}

func (f *PlayableFilter) ReturnCodes() []string {
	return []string{"not_playable"}
}

func (f *PlayableFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *PlayableFilter) Check(ctx context.Context, t track.Track, accepted []track.Track) Result {
	if !t.HasSource() {
		return Reject("not_playable")
	}
	return Accept()
}

func init() {
	Register("playable", func() Filter {
		return &PlayableFilter{}
	})
}
