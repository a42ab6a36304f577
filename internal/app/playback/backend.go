package playback

import (
	"context"
	"math"

	"github.com/cockroachdb/errors"

	"github.com/osa030/musicmind/internal/app/source"
)

// NativeHandle controls one direct audio resource.
type NativeHandle interface {
	// Play starts or resumes playback. An error marked ErrAutoplayRejected
	// means the platform refused to start without user action.
	Play() error
	Pause() error
	SetCurrentTime(seconds float64) error
	SetVolume(volume float64) error // 0..1
	// Release stops playback and drops the loaded resource.
	Release()
}

// NativeFactory creates native audio handles. NewAudio must return without
// waiting for the resource; progress is reported to sink.
type NativeFactory interface {
	NewAudio(ctx context.Context, src string, volume float64, sink Sink) (NativeHandle, error)
}

// EmbeddedOptions configures an embedded player instance.
type EmbeddedOptions struct {
	Autoplay bool
	Controls bool
	Volume   int // 0..100
}

// EmbeddedHandle controls one embedded video player instance.
type EmbeddedHandle interface {
	PlayVideo() error
	PauseVideo() error
	SeekTo(seconds float64, allowSeekAhead bool) error
	SetVolume(volume int) error // 0..100
	// CurrentTime polls the player position. The player has no push-based time event.
	CurrentTime() (float64, error)
	Destroy()
}

// EmbeddedFactory creates embedded player instances. NewPlayer must return
// without waiting for the player to become ready; readiness is reported to sink
// as EventCanPlay.
type EmbeddedFactory interface {
	NewPlayer(ctx context.Context, videoID string, opts EmbeddedOptions, sink Sink) (EmbeddedHandle, error)
}

// binding is the single live backend handle. Every transport call switches on
// kind here and nowhere else.
type binding struct {
	kind     source.Kind
	native   NativeHandle
	embedded EmbeddedHandle
	cancel   context.CancelFunc // Stops load timer and time polling
}

// play starts playback. confirmed reports whether the backend guarantees
// playback has started; otherwise EventPlaying will follow.
func (b *binding) play() (confirmed bool, err error) {
	switch b.kind {
	case source.KindNative:
		if err := b.native.Play(); err != nil {
			return false, err
		}
		return true, nil
	case source.KindEmbedded:
		return false, b.embedded.PlayVideo()
	default:
		return false, errors.Newf("unknown backend kind: %v", b.kind)
	}
}

func (b *binding) pause() error {
	switch b.kind {
	case source.KindNative:
		return b.native.Pause()
	case source.KindEmbedded:
		return b.embedded.PauseVideo()
	default:
		return errors.Newf("unknown backend kind: %v", b.kind)
	}
}

func (b *binding) seek(seconds float64) error {
	switch b.kind {
	case source.KindNative:
		return b.native.SetCurrentTime(seconds)
	case source.KindEmbedded:
		return b.embedded.SeekTo(seconds, true)
	default:
		return errors.Newf("unknown backend kind: %v", b.kind)
	}
}

func (b *binding) setVolume(volume float64) error {
	switch b.kind {
	case source.KindNative:
		return b.native.SetVolume(volume)
	case source.KindEmbedded:
		return b.embedded.SetVolume(embeddedVolume(volume))
	default:
		return errors.Newf("unknown backend kind: %v", b.kind)
	}
}

// release stops background work and frees the handle.
func (b *binding) release() {
	if b.cancel != nil {
		b.cancel()
	}
	switch b.kind {
	case source.KindNative:
		if b.native != nil {
			b.native.Release()
		}
	case source.KindEmbedded:
		if b.embedded != nil {
			b.embedded.Destroy()
		}
	}
}

// embeddedVolume converts 0..1 to the embedded player's 0..100 scale.
func embeddedVolume(volume float64) int {
	return int(math.Round(volume * 100))
}
