// Package audio plays direct audio resources through beep.
package audio

import (
	"bytes"
	"context"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicmind/internal/app/playback"
)

const (
	resampleQuality = 4
	eventBuffer     = 64
)

// Config represents native audio configuration.
type Config struct {
	MaxDownloadBytes   int64
	HTTPTimeout        time.Duration
	TimeUpdateInterval time.Duration
}

// Factory creates audio handles that share one output.
type Factory struct {
	config     Config
	out        Output
	httpClient *http.Client
}

// NewFactory creates a factory playing through out.
func NewFactory(cfg Config, out Output) *Factory {
	if cfg.MaxDownloadBytes <= 0 {
		cfg.MaxDownloadBytes = 64 << 20
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.TimeUpdateInterval <= 0 {
		cfg.TimeUpdateInterval = 250 * time.Millisecond
	}
	return &Factory{
		config:     cfg,
		out:        out,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

// NewAudio starts loading src in the background and returns its handle.
func (f *Factory) NewAudio(ctx context.Context, src string, volume float64, sink playback.Sink) (playback.NativeHandle, error) {
	if f.out == nil {
		return nil, errors.New("no audio output")
	}

	ctx, cancel := context.WithCancel(ctx)
	h := &handle{
		factory: f,
		src:     src,
		volume:  volume,
		ctx:     ctx,
		cancel:  cancel,
		events:  make(chan playback.Event, eventBuffer),
	}
	go h.pump(sink)
	go h.load()
	return h, nil
}

// handle is one loaded resource. Lock order is h.mu then the output lock;
// the mixer callback only touches atomics and the event channel.
type handle struct {
	factory *Factory
	src     string
	ctx     context.Context
	cancel  context.CancelFunc
	events  chan playback.Event

	mu       sync.Mutex
	volume   float64
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	gain     *effects.Volume

	queued   atomic.Bool // In the output mixer; cleared when the stream drains
	playing  atomic.Bool
	released atomic.Bool
}

func (h *handle) load() {
	data, format, err := h.factory.fetch(h.ctx, h.src)
	if err != nil {
		h.fail(err)
		return
	}

	streamer, fmtInfo, err := decode(data, format)
	if err != nil {
		h.fail(errors.Wrapf(err, "failed to decode %s", format))
		return
	}

	h.mu.Lock()
	if h.released.Load() {
		h.mu.Unlock()
		streamer.Close()
		return
	}
	h.streamer = streamer
	h.format = fmtInfo
	h.chain()
	duration := fmtInfo.SampleRate.D(streamer.Len()).Seconds()
	h.mu.Unlock()

	zlog.Debug().Msgf("audio: loaded %s (%s, %.1fs)", h.src, format, duration)
	h.emit(playback.Event{Type: playback.EventMetadata, Duration: duration})
	h.emit(playback.Event{Type: playback.EventCanPlay, Duration: duration})
	go h.reportTime()
}

func (h *handle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released.Load() {
		return errors.New("audio released")
	}
	if h.ctrl == nil {
		return errors.New("audio not loaded")
	}

	out := h.factory.out
	if h.queued.CompareAndSwap(false, true) {
		// The mixer dropped the previous chain when it drained.
		h.chain()
		h.ctrl.Paused = false
		out.Play(&guard{h: h, s: beep.Seq(h.ctrl, beep.Callback(h.onEnd))})
	} else {
		out.Lock()
		h.ctrl.Paused = false
		out.Unlock()
	}

	h.playing.Store(true)
	h.emit(playback.Event{Type: playback.EventPlaying})
	return nil
}

func (h *handle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ctrl == nil {
		return nil
	}

	out := h.factory.out
	out.Lock()
	h.ctrl.Paused = true
	out.Unlock()

	if h.playing.Swap(false) {
		h.emit(playback.Event{Type: playback.EventPaused})
	}
	return nil
}

func (h *handle) SetCurrentTime(seconds float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.streamer == nil {
		return errors.New("audio not loaded")
	}

	n := h.format.SampleRate.N(time.Duration(seconds * float64(time.Second)))
	if last := h.streamer.Len() - 1; n > last {
		n = max(last, 0)
	}

	out := h.factory.out
	out.Lock()
	defer out.Unlock()
	return h.streamer.Seek(n)
}

func (h *handle) SetVolume(volume float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.volume = volume
	if h.gain == nil {
		return nil
	}

	out := h.factory.out
	out.Lock()
	applyGain(h.gain, volume)
	out.Unlock()
	return nil
}

func (h *handle) Release() {
	if h.released.Swap(true) {
		return
	}
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.playing.Store(false)
	if h.streamer != nil {
		out := h.factory.out
		out.Lock()
		if h.ctrl != nil {
			h.ctrl.Paused = true
		}
		err := h.streamer.Close()
		out.Unlock()
		if err != nil {
			zlog.Debug().Err(err).Msg("audio: close failed")
		}
		h.streamer = nil
	}
}

// chain builds the resample, gain and pause stages over the decoded stream.
func (h *handle) chain() {
	var s beep.Streamer = h.streamer
	if rate := h.factory.out.SampleRate(); h.format.SampleRate != rate {
		s = beep.Resample(resampleQuality, h.format.SampleRate, rate, h.streamer)
	}
	h.gain = &effects.Volume{Streamer: s, Base: 2}
	applyGain(h.gain, h.volume)
	h.ctrl = &beep.Ctrl{Streamer: h.gain, Paused: true}
}

// onEnd runs on the mixer goroutine with the output locked.
func (h *handle) onEnd() {
	h.queued.Store(false)
	if h.released.Load() {
		return
	}
	h.playing.Store(false)
	h.emit(playback.Event{Type: playback.EventEnded})
}

func (h *handle) fail(err error) {
	if h.ctx.Err() != nil {
		return
	}
	zlog.Warn().Err(err).Msgf("audio: failed to load %s", h.src)
	h.emit(playback.Event{Type: playback.EventError, Err: err})
}

// reportTime emits the position while playing.
func (h *handle) reportTime() {
	ticker := time.NewTicker(h.factory.config.TimeUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			if !h.playing.Load() {
				continue
			}
			if pos, ok := h.position(); ok {
				h.emit(playback.Event{Type: playback.EventTimeUpdate, Time: pos})
			}
		}
	}
}

func (h *handle) position() (float64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.streamer == nil {
		return 0, false
	}
	out := h.factory.out
	out.Lock()
	pos := h.streamer.Position()
	out.Unlock()
	return h.format.SampleRate.D(pos).Seconds(), true
}

// emit queues an event without blocking. Position updates are dropped when
// the queue is full.
func (h *handle) emit(ev playback.Event) {
	select {
	case h.events <- ev:
	default:
		zlog.Debug().Msgf("audio: dropped %s event", ev.Type)
	}
}

// pump forwards events to sink in order until the handle is released.
func (h *handle) pump(sink playback.Sink) {
	for {
		select {
		case <-h.ctx.Done():
			return
		case ev := <-h.events:
			sink.Post(ev)
		}
	}
}

// guard stops mixing the stream once its handle is released.
type guard struct {
	h *handle
	s beep.Streamer
}

func (g *guard) Stream(samples [][2]float64) (int, bool) {
	if g.h.released.Load() {
		return 0, false
	}
	return g.s.Stream(samples)
}

func (g *guard) Err() error {
	return g.s.Err()
}

// applyGain maps a linear volume in [0, 1] onto the exponential gain of
// effects.Volume; zero is silent.
func applyGain(v *effects.Volume, volume float64) {
	if volume <= 0 {
		v.Silent = true
		v.Volume = 0
		return
	}
	v.Silent = false
	v.Volume = math.Log2(math.Min(volume, 1))
}

func decode(data []byte, format string) (beep.StreamSeekCloser, beep.Format, error) {
	switch format {
	case formatWAV:
		return wav.Decode(bytes.NewReader(data))
	default:
		return mp3.Decode(nopCloser{bytes.NewReader(data)})
	}
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
