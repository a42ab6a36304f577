package playback

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
)

// fakeNative records every audio handle it creates.
type fakeNative struct {
	mu      sync.Mutex
	handles []*fakeAudio
	live    int
	maxLive int
	newErr  error
	playErr error // Copied into each new handle
}

func (f *fakeNative) NewAudio(_ context.Context, src string, volume float64, sink Sink) (NativeHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.newErr != nil {
		return nil, f.newErr
	}
	h := &fakeAudio{owner: f, src: src, volume: volume, sink: sink, playErr: f.playErr}
	f.handles = append(f.handles, h)
	f.live++
	if f.live > f.maxLive {
		f.maxLive = f.live
	}
	return h, nil
}

func (f *fakeNative) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handles)
}

func (f *fakeNative) last() *fakeAudio {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handles[len(f.handles)-1]
}

func (f *fakeNative) liveCount() (live, maxLive int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live, f.maxLive
}

type fakeAudio struct {
	owner    *fakeNative
	mu       sync.Mutex
	src      string
	volume   float64
	position float64
	sink     Sink
	playErr  error
	calls    []string
	released bool
}

func (h *fakeAudio) record(call string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, call)
}

func (h *fakeAudio) Play() error {
	h.record("play")
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playErr
}

func (h *fakeAudio) Pause() error {
	h.record("pause")
	return nil
}

func (h *fakeAudio) SetCurrentTime(seconds float64) error {
	h.record("seek")
	h.mu.Lock()
	defer h.mu.Unlock()
	h.position = seconds
	return nil
}

func (h *fakeAudio) SetVolume(volume float64) error {
	h.record("volume")
	h.mu.Lock()
	defer h.mu.Unlock()
	h.volume = volume
	return nil
}

func (h *fakeAudio) Release() {
	h.record("release")
	h.mu.Lock()
	h.released = true
	h.mu.Unlock()

	h.owner.mu.Lock()
	h.owner.live--
	h.owner.mu.Unlock()
}

func (h *fakeAudio) setPlayErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playErr = err
}

func (h *fakeAudio) getCalls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func (h *fakeAudio) isReleased() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

func (h *fakeAudio) getVolume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.volume
}

// fakeEmbedded records every player it creates.
type fakeEmbedded struct {
	mu      sync.Mutex
	players []*fakePlayer
	live    int
}

func (f *fakeEmbedded) NewPlayer(_ context.Context, videoID string, opts EmbeddedOptions, sink Sink) (EmbeddedHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := &fakePlayer{owner: f, videoID: videoID, opts: opts, sink: sink, volume: opts.Volume}
	f.players = append(f.players, p)
	f.live++
	return p, nil
}

func (f *fakeEmbedded) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.players)
}

func (f *fakeEmbedded) last() *fakePlayer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.players[len(f.players)-1]
}

func (f *fakeEmbedded) liveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live
}

type fakePlayer struct {
	owner     *fakeEmbedded
	mu        sync.Mutex
	videoID   string
	opts      EmbeddedOptions
	sink      Sink
	volume    int
	time      float64
	seekAhead bool
	calls     []string
	destroyed bool
}

func (p *fakePlayer) record(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
}

func (p *fakePlayer) PlayVideo() error {
	p.record("play")
	return nil
}

func (p *fakePlayer) PauseVideo() error {
	p.record("pause")
	return nil
}

func (p *fakePlayer) SeekTo(seconds float64, allowSeekAhead bool) error {
	p.record("seek")
	p.mu.Lock()
	defer p.mu.Unlock()
	p.time = seconds
	p.seekAhead = allowSeekAhead
	return nil
}

func (p *fakePlayer) SetVolume(volume int) error {
	p.record("volume")
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = volume
	return nil
}

func (p *fakePlayer) CurrentTime() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return 0, errors.New("player destroyed")
	}
	return p.time, nil
}

func (p *fakePlayer) Destroy() {
	p.record("destroy")
	p.mu.Lock()
	p.destroyed = true
	p.mu.Unlock()

	p.owner.mu.Lock()
	p.owner.live--
	p.owner.mu.Unlock()
}

func (p *fakePlayer) setTime(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.time = seconds
}

func (p *fakePlayer) getCalls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *fakePlayer) getVolume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func (p *fakePlayer) isDestroyed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.destroyed
}

// fakeReporter records outbound signals.
type fakeReporter struct {
	mu    sync.Mutex
	skips []SkipRecord
	plays []string
	err   error
}

func (r *fakeReporter) RecordSkip(_ context.Context, rec SkipRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skips = append(r.skips, rec)
	return r.err
}

func (r *fakeReporter) RecordPlay(_ context.Context, trackID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plays = append(r.plays, trackID)
	return r.err
}

func (r *fakeReporter) getSkips() []SkipRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SkipRecord(nil), r.skips...)
}

func (r *fakeReporter) getPlays() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.plays...)
}
