package audio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/musicmind/internal/app/playback"
)

const testRate = beep.SampleRate(44100)

// fakeOutput mixes nothing until drain is called.
type fakeOutput struct {
	mu        sync.Mutex
	streamers []beep.Streamer
}

func (o *fakeOutput) SampleRate() beep.SampleRate { return testRate }

func (o *fakeOutput) Play(s beep.Streamer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.streamers = append(o.streamers, s)
}

func (o *fakeOutput) Lock()   { o.mu.Lock() }
func (o *fakeOutput) Unlock() { o.mu.Unlock() }

// drain streams every queued streamer to completion.
func (o *fakeOutput) drain() {
	o.mu.Lock()
	defer o.mu.Unlock()

	buf := make([][2]float64, 512)
	for _, s := range o.streamers {
		for {
			if _, ok := s.Stream(buf); !ok {
				break
			}
		}
	}
	o.streamers = nil
}

func (o *fakeOutput) queued() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.streamers)
}

type eventSink chan playback.Event

func (s eventSink) Post(ev playback.Event) { s <- ev }

func (s eventSink) next(t *testing.T) playback.Event {
	t.Helper()
	select {
	case ev := <-s:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return playback.Event{}
	}
}

// waitFor skips time updates until an event of type want arrives.
func (s eventSink) waitFor(t *testing.T, want playback.EventType) playback.Event {
	t.Helper()
	for {
		ev := s.next(t)
		if ev.Type == want {
			return ev
		}
		require.Equal(t, playback.EventTimeUpdate, ev.Type, "unexpected %s while waiting for %s", ev.Type, want)
	}
}

func writeSilence(t *testing.T, d time.Duration) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "silence.wav")
	f, err := os.Create(p)
	require.NoError(t, err)
	defer f.Close()

	format := beep.Format{SampleRate: testRate, NumChannels: 2, Precision: 2}
	require.NoError(t, wav.Encode(f, beep.Silence(testRate.N(d)), format))
	return p
}

func TestFactory_PlayToEnd(t *testing.T) {
	out := &fakeOutput{}
	f := NewFactory(Config{}, out)
	sink := make(eventSink, 16)

	h, err := f.NewAudio(context.Background(), "file://"+writeSilence(t, 500*time.Millisecond), 1, sink)
	require.NoError(t, err)
	defer h.Release()

	meta := sink.next(t)
	assert.Equal(t, playback.EventMetadata, meta.Type)
	assert.InDelta(t, 0.5, meta.Duration, 0.01)
	assert.Equal(t, playback.EventCanPlay, sink.next(t).Type)

	require.NoError(t, h.Play())
	sink.waitFor(t, playback.EventPlaying)

	out.drain()
	sink.waitFor(t, playback.EventEnded)
}

func TestFactory_ReplayAfterEnd(t *testing.T) {
	out := &fakeOutput{}
	f := NewFactory(Config{}, out)
	sink := make(eventSink, 16)

	h, err := f.NewAudio(context.Background(), "file://"+writeSilence(t, 200*time.Millisecond), 1, sink)
	require.NoError(t, err)
	defer h.Release()
	sink.waitFor(t, playback.EventMetadata)
	sink.waitFor(t, playback.EventCanPlay)

	require.NoError(t, h.Play())
	sink.waitFor(t, playback.EventPlaying)
	assert.Equal(t, 1, out.queued())
	out.drain()
	sink.waitFor(t, playback.EventEnded)

	require.NoError(t, h.SetCurrentTime(0))
	require.NoError(t, h.Play())
	sink.waitFor(t, playback.EventPlaying)
	assert.Equal(t, 1, out.queued())

	out.drain()
	sink.waitFor(t, playback.EventEnded)
}

func TestFactory_ResumeDoesNotRequeue(t *testing.T) {
	out := &fakeOutput{}
	f := NewFactory(Config{}, out)
	sink := make(eventSink, 16)

	h, err := f.NewAudio(context.Background(), "file://"+writeSilence(t, time.Second), 1, sink)
	require.NoError(t, err)
	defer h.Release()
	sink.waitFor(t, playback.EventMetadata)
	sink.waitFor(t, playback.EventCanPlay)

	require.NoError(t, h.Play())
	require.NoError(t, h.Pause())
	require.NoError(t, h.Play())
	assert.Equal(t, 1, out.queued())
}

func TestFactory_PauseSeekVolume(t *testing.T) {
	out := &fakeOutput{}
	f := NewFactory(Config{}, out)
	sink := make(eventSink, 16)

	h, err := f.NewAudio(context.Background(), "file://"+writeSilence(t, time.Second), 0.5, sink)
	require.NoError(t, err)
	defer h.Release()
	sink.waitFor(t, playback.EventMetadata)
	sink.waitFor(t, playback.EventCanPlay)

	require.NoError(t, h.SetCurrentTime(0.25))
	require.NoError(t, h.SetCurrentTime(10))
	require.NoError(t, h.SetVolume(0))
	require.NoError(t, h.Play())
	sink.waitFor(t, playback.EventPlaying)
	require.NoError(t, h.Pause())
	sink.waitFor(t, playback.EventPaused)

	// Pausing twice reports once.
	require.NoError(t, h.Pause())
	select {
	case ev := <-sink:
		assert.Equal(t, playback.EventTimeUpdate, ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFactory_HTTPSource(t *testing.T) {
	p := writeSilence(t, 200*time.Millisecond)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		http.ServeFile(w, r, p)
	}))
	defer srv.Close()

	f := NewFactory(Config{}, &fakeOutput{})
	sink := make(eventSink, 16)
	h, err := f.NewAudio(context.Background(), srv.URL+"/track", 1, sink)
	require.NoError(t, err)
	defer h.Release()

	ev := sink.waitFor(t, playback.EventMetadata)
	assert.InDelta(t, 0.2, ev.Duration, 0.01)
}

func TestFactory_LoadErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	big := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 2048))
	}))
	defer big.Close()

	tests := []struct {
		name string
		src  string
		max  int64
	}{
		{name: "not found", src: srv.URL + "/missing.mp3"},
		{name: "unsupported scheme", src: "ftp://example.com/a.mp3"},
		{name: "missing file", src: "file:///nonexistent/a.wav"},
		{name: "too large", src: big.URL + "/a.mp3", max: 1024},
		{name: "garbage", src: big.URL + "/a.wav"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFactory(Config{MaxDownloadBytes: tt.max}, &fakeOutput{})
			sink := make(eventSink, 4)
			h, err := f.NewAudio(context.Background(), tt.src, 1, sink)
			require.NoError(t, err)
			defer h.Release()

			ev := sink.next(t)
			assert.Equal(t, playback.EventError, ev.Type)
			assert.Error(t, ev.Err)
			assert.Error(t, h.Play())
		})
	}
}

func TestFactory_ReleaseBeforeLoad(t *testing.T) {
	f := NewFactory(Config{}, &fakeOutput{})
	sink := make(eventSink, 4)
	h, err := f.NewAudio(context.Background(), "file://"+writeSilence(t, 100*time.Millisecond), 1, sink)
	require.NoError(t, err)
	h.Release()
	h.Release()

	assert.Error(t, h.Play())
}

func TestNewAudio_NoOutput(t *testing.T) {
	f := NewFactory(Config{}, nil)
	_, err := f.NewAudio(context.Background(), "file:///a.mp3", 1, make(eventSink, 1))
	assert.Error(t, err)
}

func TestDetectFormat(t *testing.T) {
	riff := []byte("RIFF\x00\x00\x00\x00WAVEfmt ")

	tests := []struct {
		name        string
		path        string
		contentType string
		data        []byte
		want        string
	}{
		{name: "content type mpeg", path: "/x", contentType: "audio/mpeg", want: formatMP3},
		{name: "content type wav with params", path: "/x", contentType: "audio/wav; codecs=1", want: formatWAV},
		{name: "extension", path: "/a/b.WAV", want: formatWAV},
		{name: "extension mp3", path: "/a/b.mp3", contentType: "application/octet-stream", want: formatMP3},
		{name: "riff header", path: "/stream", data: riff, want: formatWAV},
		{name: "fallback", path: "/stream", data: []byte{0xff, 0xfb}, want: formatMP3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectFormat(tt.path, tt.contentType, tt.data))
		})
	}
}
