// Package embed drives video platform iframe players hosted in a browser page.
//
// The server serves a small page that loads the iframe API and connects back
// over a websocket. Each player constructed through the Bridge gets its own
// handle and ready future, so overlapping constructions never share state.
package embed

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicmind/internal/app/playback"
)

const (
	defaultReadyTimeout = 15 * time.Second
	defaultTimeTimeout  = time.Second
	writeTimeout        = 5 * time.Second
)

// Errors
var (
	ErrNoPage       = errors.New("no player page connected")
	ErrReadyTimeout = errors.New("embedded player did not become ready")
	ErrDisconnected = errors.New("player page disconnected")
	ErrDestroyed    = errors.New("embedded player destroyed")
)

// Config represents bridge configuration.
type Config struct {
	ReadyTimeout time.Duration
	TimeTimeout  time.Duration
	// Origin restricts which page origin may connect. Empty allows any.
	Origin string
}

// Bridge implements playback.EmbeddedFactory on top of a connected page.
type Bridge struct {
	config   Config
	upgrader websocket.Upgrader

	mu      sync.Mutex
	page    *pageConn
	players map[string]*player
	waiting map[string]chan float64 // getTime request id -> reply
}

// NewBridge creates a new bridge.
func NewBridge(cfg Config) *Bridge {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	if cfg.TimeTimeout <= 0 {
		cfg.TimeTimeout = defaultTimeTimeout
	}
	b := &Bridge{
		config:  cfg,
		players: make(map[string]*player),
		waiting: make(map[string]chan float64),
	}
	b.upgrader = websocket.Upgrader{CheckOrigin: b.checkOrigin}
	return b
}

// Handler returns the page and websocket routes, relative to the mount point.
func (b *Bridge) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/", b.handlePage)
	r.Get("/ws", b.handleWS)
	return r
}

// Connected reports whether a player page is attached.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.page != nil
}

// NewPlayer asks the page to construct a player for videoID. Readiness and
// state changes are delivered to sink.
func (b *Bridge) NewPlayer(ctx context.Context, videoID string, opts playback.EmbeddedOptions, sink playback.Sink) (playback.EmbeddedHandle, error) {
	b.mu.Lock()
	page := b.page
	if page == nil {
		b.mu.Unlock()
		return nil, ErrNoPage
	}
	p := newPlayer(b, page, uuid.NewString(), sink)
	b.players[p.id] = p
	b.mu.Unlock()

	err := page.send(command{
		Op:       opCreate,
		Handle:   p.id,
		VideoID:  videoID,
		Autoplay: opts.Autoplay,
		Controls: opts.Controls,
		Volume:   opts.Volume,
	})
	if err != nil {
		b.remove(p.id)
		return nil, errors.Wrap(err, "failed to create embedded player")
	}

	zlog.Debug().Msgf("embed: creating player %s for video %s", p.id, videoID)
	go p.awaitReady(ctx, b.config.ReadyTimeout)
	return p, nil
}

func (b *Bridge) checkOrigin(r *http.Request) bool {
	if b.config.Origin == "" {
		return true
	}
	return r.Header.Get("Origin") == b.config.Origin
}

func (b *Bridge) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zlog.Warn().Err(err).Msg("embed: websocket upgrade failed")
		return
	}

	page := &pageConn{conn: conn}
	b.attach(page)
	zlog.Info().Msgf("embed: player page connected from %s", r.RemoteAddr)

	b.readLoop(page)

	b.detach(page)
	conn.Close()
	zlog.Info().Msgf("embed: player page disconnected")
}

// attach makes page the active page. Players bound to a previous page are lost.
func (b *Bridge) attach(page *pageConn) {
	b.mu.Lock()
	old := b.page
	b.page = page
	b.mu.Unlock()

	if old != nil {
		old.conn.Close()
	}
}

// detach drops page and fails every player it hosted.
func (b *Bridge) detach(page *pageConn) {
	b.mu.Lock()
	if b.page == page {
		b.page = nil
	}
	var lost []*player
	for id, p := range b.players {
		if p.page == page {
			lost = append(lost, p)
			delete(b.players, id)
		}
	}
	b.mu.Unlock()

	for _, p := range lost {
		p.lose(ErrDisconnected)
	}
}

func (b *Bridge) readLoop(page *pageConn) {
	for {
		var msg pageEvent
		if err := page.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				zlog.Debug().Err(err).Msg("embed: read failed")
			}
			return
		}
		b.dispatch(msg)
	}
}

func (b *Bridge) dispatch(msg pageEvent) {
	if msg.Event == eventTime {
		b.mu.Lock()
		reply, ok := b.waiting[msg.Request]
		delete(b.waiting, msg.Request)
		b.mu.Unlock()
		if ok {
			reply <- msg.Seconds
		}
		return
	}

	b.mu.Lock()
	p, ok := b.players[msg.Handle]
	b.mu.Unlock()
	if !ok {
		zlog.Debug().Msgf("embed: %s for unknown player %s", msg.Event, msg.Handle)
		return
	}
	p.handle(msg)
}

func (b *Bridge) remove(id string) {
	b.mu.Lock()
	delete(b.players, id)
	b.mu.Unlock()
}

// currentTime issues a getTime request and waits for its reply.
func (b *Bridge) currentTime(p *player) (float64, error) {
	reqID := uuid.NewString()
	reply := make(chan float64, 1)

	b.mu.Lock()
	b.waiting[reqID] = reply
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.waiting, reqID)
		b.mu.Unlock()
	}()

	if err := p.page.send(command{Op: opGetTime, Handle: p.id, Request: reqID}); err != nil {
		return 0, err
	}

	timer := time.NewTimer(b.config.TimeTimeout)
	defer timer.Stop()
	select {
	case seconds := <-reply:
		return seconds, nil
	case <-timer.C:
		return 0, errors.Newf("no time reply for player %s", p.id)
	}
}

// pageConn serialises writes to one page connection.
type pageConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *pageConn) send(cmd command) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return errors.Wrap(err, "failed to set write deadline")
	}
	if err := c.conn.WriteJSON(cmd); err != nil {
		return errors.Wrapf(err, "failed to send %s", cmd.Op)
	}
	return nil
}
