package embed

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/musicmind/internal/app/playback"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

type eventSink chan playback.Event

func (s eventSink) Post(ev playback.Event) { s <- ev }

func (s eventSink) next(t *testing.T) playback.Event {
	t.Helper()
	select {
	case ev := <-s:
		return ev
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for event")
		return playback.Event{}
	}
}

// fakePage plays the role of the browser page.
type fakePage struct {
	t    *testing.T
	conn *websocket.Conn
}

func (p *fakePage) command() command {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(waitFor)))
	var cmd command
	require.NoError(p.t, p.conn.ReadJSON(&cmd))
	return cmd
}

func (p *fakePage) emit(ev pageEvent) {
	p.t.Helper()
	require.NoError(p.t, p.conn.WriteJSON(ev))
}

func setup(t *testing.T, cfg Config) (*Bridge, *httptest.Server) {
	t.Helper()
	b := NewBridge(cfg)
	srv := httptest.NewServer(b.Handler())
	t.Cleanup(srv.Close)
	return b, srv
}

func connectPage(t *testing.T, b *Bridge, srv *httptest.Server) *fakePage {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, b.Connected, waitFor, tick)
	return &fakePage{t: t, conn: conn}
}

func TestBridge_ServesPage(t *testing.T) {
	_, srv := setup(t, Config{})

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "onYouTubeIframeAPIReady")
}

func TestBridge_NoPage(t *testing.T) {
	b, _ := setup(t, Config{})
	_, err := b.NewPlayer(context.Background(), "dQw4w9WgXcQ", playback.EmbeddedOptions{}, make(eventSink, 1))
	assert.True(t, errors.Is(err, ErrNoPage))
}

func TestBridge_PlayerLifecycle(t *testing.T) {
	b, srv := setup(t, Config{})
	page := connectPage(t, b, srv)
	sink := make(eventSink, 16)

	h, err := b.NewPlayer(context.Background(), "dQw4w9WgXcQ",
		playback.EmbeddedOptions{Autoplay: true, Volume: 40}, sink)
	require.NoError(t, err)

	create := page.command()
	assert.Equal(t, opCreate, create.Op)
	assert.Equal(t, "dQw4w9WgXcQ", create.VideoID)
	assert.True(t, create.Autoplay)
	assert.False(t, create.Controls)
	assert.Equal(t, 40, create.Volume)

	page.emit(pageEvent{Event: eventReady, Handle: create.Handle, Duration: 212})
	meta := sink.next(t)
	assert.Equal(t, playback.EventMetadata, meta.Type)
	assert.Equal(t, 212.0, meta.Duration)
	assert.Equal(t, playback.EventCanPlay, sink.next(t).Type)

	page.emit(pageEvent{Event: eventState, Handle: create.Handle, State: statePlaying})
	assert.Equal(t, playback.EventPlaying, sink.next(t).Type)
	page.emit(pageEvent{Event: eventState, Handle: create.Handle, State: stateBuffering})
	assert.Equal(t, playback.EventBuffering, sink.next(t).Type)
	page.emit(pageEvent{Event: eventState, Handle: create.Handle, State: statePaused})
	assert.Equal(t, playback.EventPaused, sink.next(t).Type)
	page.emit(pageEvent{Event: eventState, Handle: create.Handle, State: stateEnded})
	assert.Equal(t, playback.EventEnded, sink.next(t).Type)

	require.NoError(t, h.PlayVideo())
	assert.Equal(t, command{Op: opPlay, Handle: create.Handle}, page.command())
	require.NoError(t, h.PauseVideo())
	assert.Equal(t, opPause, page.command().Op)
	require.NoError(t, h.SeekTo(30, true))
	seek := page.command()
	assert.Equal(t, 30.0, seek.Seconds)
	assert.True(t, seek.AllowSeekAhead)
	require.NoError(t, h.SetVolume(0))
	assert.Equal(t, command{Op: opVolume, Handle: create.Handle, Volume: 0}, page.command())

	h.Destroy()
	assert.Equal(t, command{Op: opDestroy, Handle: create.Handle}, page.command())
	h.Destroy()
	assert.True(t, errors.Is(h.PlayVideo(), ErrDestroyed))

	// Late events for a destroyed player are dropped.
	page.emit(pageEvent{Event: eventState, Handle: create.Handle, State: statePlaying})
	select {
	case ev := <-sink:
		t.Fatalf("unexpected event %s", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBridge_CurrentTime(t *testing.T) {
	b, srv := setup(t, Config{})
	page := connectPage(t, b, srv)
	sink := make(eventSink, 16)

	h, err := b.NewPlayer(context.Background(), "dQw4w9WgXcQ", playback.EmbeddedOptions{}, sink)
	require.NoError(t, err)
	create := page.command()

	// Not ready yet: no round trip.
	seconds, err := h.CurrentTime()
	require.NoError(t, err)
	assert.Zero(t, seconds)

	page.emit(pageEvent{Event: eventReady, Handle: create.Handle, Duration: 100})
	sink.next(t)
	sink.next(t)

	done := make(chan float64, 1)
	go func() {
		s, err := h.CurrentTime()
		assert.NoError(t, err)
		done <- s
	}()

	req := page.command()
	assert.Equal(t, opGetTime, req.Op)
	assert.NotEmpty(t, req.Request)
	page.emit(pageEvent{Event: eventTime, Handle: create.Handle, Request: req.Request, Seconds: 12.5})

	select {
	case s := <-done:
		assert.Equal(t, 12.5, s)
	case <-time.After(waitFor):
		t.Fatal("no time reply")
	}
}

func TestBridge_CurrentTimeTimeout(t *testing.T) {
	b, srv := setup(t, Config{TimeTimeout: 50 * time.Millisecond})
	page := connectPage(t, b, srv)
	sink := make(eventSink, 16)

	h, err := b.NewPlayer(context.Background(), "dQw4w9WgXcQ", playback.EmbeddedOptions{}, sink)
	require.NoError(t, err)
	create := page.command()
	page.emit(pageEvent{Event: eventReady, Handle: create.Handle})
	sink.next(t)
	sink.next(t)

	_, err = h.CurrentTime()
	assert.Error(t, err)
}

func TestBridge_OverlappingConstructions(t *testing.T) {
	b, srv := setup(t, Config{})
	page := connectPage(t, b, srv)
	first, second := make(eventSink, 4), make(eventSink, 4)

	_, err := b.NewPlayer(context.Background(), "aaaaaaaaaaa", playback.EmbeddedOptions{}, first)
	require.NoError(t, err)
	_, err = b.NewPlayer(context.Background(), "bbbbbbbbbbb", playback.EmbeddedOptions{}, second)
	require.NoError(t, err)

	c1, c2 := page.command(), page.command()
	require.NotEqual(t, c1.Handle, c2.Handle)

	// Readiness arrives out of order and reaches only its own player.
	page.emit(pageEvent{Event: eventReady, Handle: c2.Handle, Duration: 2})
	assert.Equal(t, 2.0, second.next(t).Duration)
	assert.Empty(t, first)

	page.emit(pageEvent{Event: eventReady, Handle: c1.Handle, Duration: 1})
	assert.Equal(t, 1.0, first.next(t).Duration)
}

func TestBridge_PlayerError(t *testing.T) {
	b, srv := setup(t, Config{})
	page := connectPage(t, b, srv)
	sink := make(eventSink, 4)

	_, err := b.NewPlayer(context.Background(), "dQw4w9WgXcQ", playback.EmbeddedOptions{}, sink)
	require.NoError(t, err)
	create := page.command()

	page.emit(pageEvent{Event: eventError, Handle: create.Handle, Code: 150})
	ev := sink.next(t)
	assert.Equal(t, playback.EventError, ev.Type)
	var perr *PlayerError
	require.True(t, errors.As(ev.Err, &perr))
	assert.Equal(t, 150, perr.Code)
	assert.Equal(t, "embedded player: embedding not allowed", perr.Error())
}

func TestBridge_ReadyTimeout(t *testing.T) {
	b, srv := setup(t, Config{ReadyTimeout: 50 * time.Millisecond})
	page := connectPage(t, b, srv)
	sink := make(eventSink, 4)

	_, err := b.NewPlayer(context.Background(), "dQw4w9WgXcQ", playback.EmbeddedOptions{}, sink)
	require.NoError(t, err)
	page.command()

	ev := sink.next(t)
	assert.Equal(t, playback.EventError, ev.Type)
	assert.True(t, errors.Is(ev.Err, ErrReadyTimeout))
}

func TestBridge_ReadyTimeoutCancelled(t *testing.T) {
	b, srv := setup(t, Config{ReadyTimeout: 50 * time.Millisecond})
	page := connectPage(t, b, srv)
	sink := make(eventSink, 4)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := b.NewPlayer(ctx, "dQw4w9WgXcQ", playback.EmbeddedOptions{}, sink)
	require.NoError(t, err)
	page.command()
	cancel()

	select {
	case ev := <-sink:
		t.Fatalf("unexpected event %s", ev.Type)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestBridge_PageDisconnect(t *testing.T) {
	b, srv := setup(t, Config{})
	page := connectPage(t, b, srv)
	sink := make(eventSink, 4)

	h, err := b.NewPlayer(context.Background(), "dQw4w9WgXcQ", playback.EmbeddedOptions{}, sink)
	require.NoError(t, err)
	page.command()

	page.conn.Close()

	ev := sink.next(t)
	assert.Equal(t, playback.EventError, ev.Type)
	assert.True(t, errors.Is(ev.Err, ErrDisconnected))
	assert.Eventually(t, func() bool { return !b.Connected() }, waitFor, tick)
	assert.True(t, errors.Is(h.PlayVideo(), ErrDisconnected))
	h.Destroy()
}

func TestBridge_OriginCheck(t *testing.T) {
	b, srv := setup(t, Config{Origin: "http://allowed.example"})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://allowed.example"}})
	require.NoError(t, err)
	defer conn.Close()
	assert.Eventually(t, b.Connected, waitFor, tick)
}
