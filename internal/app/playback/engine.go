package playback

import (
	"context"
	"math"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicmind/internal/app/source"
	"github.com/osa030/musicmind/internal/domain/track"
)

// engine owns the single active backend binding and translates its events
// into playback state. It is not safe for concurrent use; the Controller
// serialises every call.
type engine struct {
	native   NativeFactory
	embedded EmbeddedFactory
	config   Config
	ctx      context.Context
	post     func(Event)

	state    State
	gen      uint64
	bound    *binding
	track    *track.Track
	src      source.Source
	playing  bool
	loading  bool
	autoplay bool // Start as soon as the source can play
	held     bool // Paused before the source could play; backend autoplay is suppressed
	reported bool // Play signal already emitted for this generation
	position float64
	duration float64
	volume   float64
	err      error
}

// outcome reports what handling an event or command led to.
type outcome struct {
	started bool // First confirmed playback of the current generation
	ended   bool // Natural completion
}

func newEngine(ctx context.Context, config Config, native NativeFactory, embedded EmbeddedFactory, post func(Event)) *engine {
	return &engine{
		native:   native,
		embedded: embedded,
		config:   config,
		ctx:      ctx,
		post:     post,
		state:    StateIdle,
		volume:   config.InitialVolume,
	}
}

// load tears down the current binding and binds t under a new generation.
// The previous handle is released before the new one is constructed.
func (e *engine) load(t track.Track) uint64 {
	e.teardown()

	e.gen++
	gen := e.gen
	bound := t
	e.track = &bound
	e.src = source.Classify(t.SourceURL)
	e.state = StateLoading
	e.playing = false
	e.loading = true
	e.autoplay = true
	e.held = false
	e.reported = false
	e.position = 0
	e.duration = 0
	e.err = nil

	zlog.Debug().Msgf("playback: loading track %s via %s (generation %d)", t.ID, e.src.Kind, gen)

	ctx, cancel := context.WithCancel(e.ctx)
	b := &binding{kind: e.src.Kind, cancel: cancel}
	sink := e.sinkFor(gen)

	var err error
	switch e.src.Kind {
	case source.KindEmbedded:
		if e.embedded == nil {
			err = errors.New("embedded backend unavailable")
			break
		}
		opts := EmbeddedOptions{Autoplay: true, Controls: false, Volume: embeddedVolume(e.volume)}
		b.embedded, err = e.embedded.NewPlayer(ctx, e.src.EmbeddedID, opts, sink)
	default:
		if e.native == nil {
			err = errors.New("native backend unavailable")
			break
		}
		b.native, err = e.native.NewAudio(ctx, e.src.URL, e.volume, sink)
	}
	if err != nil {
		cancel()
		e.fail(errors.Mark(errors.Wrapf(err, "failed to load %q", t.SourceURL), ErrSourceLoad))
		return gen
	}

	e.bound = b
	if b.kind == source.KindEmbedded {
		go pollTime(ctx, b.embedded, sink, e.config.PollInterval)
	}
	if e.config.LoadTimeout > 0 {
		go loadTimer(ctx, e.config.LoadTimeout, sink)
	}
	return gen
}

// handle applies a backend event of the current generation.
func (e *engine) handle(ev Event) outcome {
	var out outcome
	if e.bound == nil {
		return out
	}

	switch ev.Type {
	case EventMetadata:
		e.setDuration(ev.Duration)

	case EventCanPlay:
		e.setDuration(ev.Duration)
		if e.state != StateLoading {
			// Recovered from a mid-playback stall
			e.loading = false
			break
		}
		e.state = StateReady
		e.loading = false
		if !e.autoplay {
			// The embedded player autoplays on its own.
			e.state = StatePaused
			e.held = true
			if err := e.bound.pause(); err != nil {
				zlog.Warn().Err(err).Msgf("playback: backend pause failed")
			}
			break
		}
		out.started = e.start()

	case EventPlaying:
		if e.state == StateError || e.state == StateIdle {
			break
		}
		if e.held {
			zlog.Debug().Msgf("playback: ignoring autoplay of held track (generation %d)", e.gen)
			if err := e.bound.pause(); err != nil {
				zlog.Warn().Err(err).Msgf("playback: backend pause failed")
			}
			break
		}
		e.state = StatePlaying
		e.playing = true
		e.loading = false
		out.started = e.markReported()

	case EventPaused:
		if e.state == StatePlaying || e.state == StateReady {
			e.state = StatePaused
		}
		e.playing = false

	case EventTimeUpdate:
		e.position = e.clampPosition(ev.Time)

	case EventBuffering:
		if e.state == StatePlaying {
			e.loading = true
		}

	case EventEnded:
		e.state = StateEnded
		e.playing = false
		e.loading = false
		if e.duration > 0 {
			e.position = e.duration
		}
		out.ended = true

	case EventError:
		cause := ev.Err
		if cause == nil {
			cause = errors.New("backend reported an error")
		}
		e.fail(errors.Mark(cause, ErrSourceLoad))

	case EventLoadTimeout:
		if e.state == StateLoading {
			e.fail(errors.Wrapf(ErrLoadTimeout, "no response after %s", e.config.LoadTimeout))
		}
	}
	return out
}

// play resumes the bound source. Nothing bound is a no-op.
func (e *engine) play() outcome {
	var out outcome
	if e.bound == nil {
		return out
	}

	switch e.state {
	case StatePlaying:
		return out
	case StateLoading:
		e.autoplay = true
		return out
	case StateEnded:
		if err := e.bound.seek(0); err != nil {
			zlog.Warn().Err(err).Msg("playback: failed to rewind ended source")
		}
		e.position = 0
	}

	out.started = e.start()
	return out
}

// pause pauses the bound source. Pausing while loading cancels the pending
// autoplay instead.
func (e *engine) pause() {
	if e.bound == nil {
		return
	}

	switch e.state {
	case StateLoading:
		e.autoplay = false
		return
	case StatePlaying, StateReady:
	default:
		return
	}

	if err := e.bound.pause(); err != nil {
		zlog.Warn().Err(err).Msgf("playback: backend pause failed")
	}
	e.state = StatePaused
	e.playing = false
}

// seek moves the position. Out of range targets are rejected without any change.
func (e *engine) seek(seconds float64) error {
	if math.IsNaN(seconds) || seconds < 0 || seconds > e.duration {
		return errors.Wrapf(ErrInvalidSeek, "%.3fs not within [0, %.3fs]", seconds, e.duration)
	}
	if e.bound == nil {
		return nil
	}

	if err := e.bound.seek(seconds); err != nil {
		zlog.Warn().Err(err).Msgf("playback: backend seek failed")
	}
	e.position = seconds
	return nil
}

// setVolume stores the volume and applies it to the bound source.
// The volume carries over to later tracks.
func (e *engine) setVolume(volume float64) error {
	if math.IsNaN(volume) || volume < 0 || volume > 1 {
		return errors.Wrapf(ErrInvalidVolume, "%v not within [0, 1]", volume)
	}

	e.volume = volume
	if e.bound == nil {
		return nil
	}
	if err := e.bound.setVolume(volume); err != nil {
		zlog.Warn().Err(err).Msgf("playback: backend volume change failed")
	}
	return nil
}

// finish stops playback because nothing follows the current track.
func (e *engine) finish() {
	if e.bound != nil && e.playing {
		if err := e.bound.pause(); err != nil {
			zlog.Warn().Err(err).Msgf("playback: backend pause failed")
		}
	}
	if e.state != StateIdle && e.state != StateError {
		e.state = StateEnded
	}
	e.playing = false
	e.loading = false
}

// close releases the binding for shutdown.
func (e *engine) close() {
	e.teardown()
	e.state = StateIdle
	e.playing = false
	e.loading = false
}

// start asks the bound backend to play and applies the result.
func (e *engine) start() bool {
	e.held = false
	confirmed, err := e.bound.play()
	switch {
	case err == nil:
		if !confirmed {
			return false
		}
		e.state = StatePlaying
		e.playing = true
		e.loading = false
		return e.markReported()
	case errors.Is(err, ErrAutoplayRejected):
		zlog.Info().Msgf("playback: autoplay rejected, waiting for an explicit play")
		e.state = StatePaused
		e.playing = false
		e.loading = false
		return false
	default:
		e.fail(errors.Mark(errors.Wrap(err, "failed to start playback"), ErrSourceLoad))
		return false
	}
}

// fail moves to the error state and releases the binding. No retry is attempted.
func (e *engine) fail(err error) {
	trackID := ""
	if e.track != nil {
		trackID = e.track.ID
	}
	zlog.Error().Err(err).Msgf("playback: track %s failed (generation %d)", trackID, e.gen)

	e.teardown()
	e.err = err
	e.state = StateError
	e.playing = false
	e.loading = false
}

func (e *engine) teardown() {
	if e.bound == nil {
		return
	}
	e.bound.release()
	e.bound = nil
}

func (e *engine) markReported() bool {
	if e.reported {
		return false
	}
	e.reported = true
	return true
}

func (e *engine) setDuration(seconds float64) {
	if seconds > 0 && !math.IsInf(seconds, 0) && !math.IsNaN(seconds) {
		e.duration = seconds
		e.position = e.clampPosition(e.position)
	}
}

func (e *engine) clampPosition(seconds float64) float64 {
	if math.IsNaN(seconds) || seconds < 0 {
		return 0
	}
	if e.duration > 0 && seconds > e.duration {
		return e.duration
	}
	return seconds
}

func (e *engine) sinkFor(gen uint64) Sink {
	return SinkFunc(func(ev Event) {
		ev.Generation = gen
		e.post(ev)
	})
}

// backendName returns the kind of the bound backend, or "" when none.
func (e *engine) backendName() string {
	if e.bound == nil {
		return ""
	}
	return e.bound.kind.String()
}

// pollTime reports the embedded player position until ctx is cancelled.
func pollTime(ctx context.Context, h EmbeddedHandle, sink Sink, interval time.Duration) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			seconds, err := h.CurrentTime()
			if err != nil || ctx.Err() != nil {
				continue
			}
			sink.Post(Event{Type: EventTimeUpdate, Time: seconds})
		}
	}
}

// loadTimer posts EventLoadTimeout after timeout unless ctx is cancelled first.
func loadTimer(ctx context.Context, timeout time.Duration, sink Sink) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
		sink.Post(Event{Type: EventLoadTimeout})
	}
}
