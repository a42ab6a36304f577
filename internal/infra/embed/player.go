package embed

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicmind/internal/app/playback"
)

// player is one iframe player instance on the page.
type player struct {
	bridge *Bridge
	page   *pageConn
	id     string
	sink   playback.Sink

	ready     chan struct{} // Closed once the page reports ready
	readyOnce sync.Once

	mu        sync.Mutex
	destroyed bool
	lost      bool
}

func newPlayer(b *Bridge, page *pageConn, id string, sink playback.Sink) *player {
	return &player{
		bridge: b,
		page:   page,
		id:     id,
		sink:   sink,
		ready:  make(chan struct{}),
	}
}

func (p *player) PlayVideo() error {
	return p.send(command{Op: opPlay})
}

func (p *player) PauseVideo() error {
	return p.send(command{Op: opPause})
}

func (p *player) SeekTo(seconds float64, allowSeekAhead bool) error {
	return p.send(command{Op: opSeek, Seconds: seconds, AllowSeekAhead: allowSeekAhead})
}

func (p *player) SetVolume(volume int) error {
	return p.send(command{Op: opVolume, Volume: volume})
}

// CurrentTime returns zero until the player is ready.
func (p *player) CurrentTime() (float64, error) {
	if err := p.usable(); err != nil {
		return 0, err
	}
	if !p.isReady() {
		return 0, nil
	}
	return p.bridge.currentTime(p)
}

func (p *player) Destroy() {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	p.destroyed = true
	lost := p.lost
	p.mu.Unlock()

	p.bridge.remove(p.id)
	if lost {
		return
	}
	if err := p.page.send(command{Op: opDestroy, Handle: p.id}); err != nil {
		zlog.Debug().Err(err).Msgf("embed: failed to destroy player %s", p.id)
	}
}

// send issues a command for this player. The page queues commands that
// arrive before the player is ready.
func (p *player) send(cmd command) error {
	if err := p.usable(); err != nil {
		return err
	}
	cmd.Handle = p.id
	return p.page.send(cmd)
}

func (p *player) usable() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.destroyed:
		return ErrDestroyed
	case p.lost:
		return ErrDisconnected
	}
	return nil
}

func (p *player) isReady() bool {
	select {
	case <-p.ready:
		return true
	default:
		return false
	}
}

// handle translates a page event into a playback event. Called from the
// bridge read loop.
func (p *player) handle(msg pageEvent) {
	switch msg.Event {
	case eventReady:
		p.readyOnce.Do(func() { close(p.ready) })
		p.post(playback.Event{Type: playback.EventMetadata, Duration: msg.Duration})
		p.post(playback.Event{Type: playback.EventCanPlay, Duration: msg.Duration})

	case eventState:
		switch msg.State {
		case statePlaying:
			p.post(playback.Event{Type: playback.EventPlaying})
		case statePaused:
			p.post(playback.Event{Type: playback.EventPaused})
		case stateBuffering:
			p.post(playback.Event{Type: playback.EventBuffering})
		case stateEnded:
			p.post(playback.Event{Type: playback.EventEnded})
		case stateUnstarted, stateCued:
		default:
			zlog.Debug().Msgf("embed: player %s reported unknown state %d", p.id, msg.State)
		}

	case eventError:
		err := &PlayerError{Code: msg.Code}
		zlog.Warn().Msgf("embed: player %s: %v", p.id, err)
		p.post(playback.Event{Type: playback.EventError, Err: err})

	default:
		zlog.Debug().Msgf("embed: ignoring %q from player %s", msg.Event, p.id)
	}
}

// awaitReady fails the player if the page does not report ready in time.
func (p *player) awaitReady(ctx context.Context, timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.ready:
	case <-ctx.Done():
	case <-timer.C:
		if p.usable() != nil {
			return
		}
		p.post(playback.Event{Type: playback.EventError, Err: errors.Wrapf(ErrReadyTimeout, "after %s", timeout)})
	}
}

// lose marks the player unusable after its page went away.
func (p *player) lose(cause error) {
	p.mu.Lock()
	if p.destroyed || p.lost {
		p.mu.Unlock()
		return
	}
	p.lost = true
	p.mu.Unlock()

	p.post(playback.Event{Type: playback.EventError, Err: cause})
}

func (p *player) post(ev playback.Event) {
	p.mu.Lock()
	destroyed := p.destroyed
	p.mu.Unlock()
	if destroyed {
		return
	}
	p.sink.Post(ev)
}
