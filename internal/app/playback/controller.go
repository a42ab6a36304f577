package playback

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicmind/internal/app/store"
	"github.com/osa030/musicmind/internal/domain/queue"
	"github.com/osa030/musicmind/internal/domain/track"
)

const (
	defaultPollInterval  = 100 * time.Millisecond
	defaultReportTimeout = 3 * time.Second
	defaultEventBuffer   = 256
)

// Config holds controller configuration.
type Config struct {
	InitialVolume float64       // Volume of the first bound track (0..1)
	PollInterval  time.Duration // Embedded player position polling cadence
	LoadTimeout   time.Duration // Zero waits for the backend indefinitely
	ReportTimeout time.Duration // Deadline of each outbound report
	EventBuffer   int           // Capacity of the backend event inbox
	SkipLogLimit  int           // Zero keeps every skip
	Rand          *rand.Rand    // Shuffle source, random seed when nil
}

func (c Config) withDefaults() Config {
	if math.IsNaN(c.InitialVolume) || c.InitialVolume < 0 || c.InitialVolume > 1 {
		c.InitialVolume = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.ReportTimeout <= 0 {
		c.ReportTimeout = defaultReportTimeout
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = defaultEventBuffer
	}
	return c
}

// QueueView is a copy of the queue state.
type QueueView struct {
	Tracks       []track.Track
	CurrentIndex int
	Repeat       queue.RepeatMode
	Shuffle      bool
	ShuffleOrder []int
}

// Controller is the entry point for playback. It serialises user commands
// and backend events under one lock, keeps the queue, and publishes every
// resulting state to the store before returning.
type Controller struct {
	mu sync.Mutex

	engine   *engine
	queue    *queue.Queue
	skips    *queue.SkipLog
	store    *store.Store
	reporter Reporter
	config   Config

	inbox  chan Event
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// NewController creates a controller and starts its event loop.
// A nil store or reporter is replaced with a private store or NopReporter.
func NewController(config Config, native NativeFactory, embedded EmbeddedFactory, st *store.Store, reporter Reporter) *Controller {
	config = config.withDefaults()
	if st == nil {
		st = store.New(store.Snapshot{})
	}
	if reporter == nil {
		reporter = NopReporter{}
	}

	var queueOpts []queue.Option
	if config.Rand != nil {
		queueOpts = append(queueOpts, queue.WithRand(config.Rand))
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		queue:    queue.New(queueOpts...),
		skips:    queue.NewSkipLog(config.SkipLogLimit),
		store:    st,
		reporter: reporter,
		config:   config,
		inbox:    make(chan Event, config.EventBuffer),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	c.engine = newEngine(ctx, config, native, embedded, c.post)

	c.mu.Lock()
	c.publishLocked()
	c.mu.Unlock()

	go c.run()
	return c
}

// PlayTrack binds t. Selecting the bound track again toggles play/pause
// unless it has ended or failed, in which case it is loaded again.
// A track already in the queue becomes the current entry; any other track
// replaces the queue with itself.
func (c *Controller) PlayTrack(t track.Track) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	if cur := c.engine.track; cur != nil && cur.SameAs(&t) && !c.engine.state.reloads() {
		c.togglePlayLocked()
		c.publishLocked()
		return nil
	}

	if idx := c.queue.IndexOf(t.ID); t.ID != "" && idx != queue.NoIndex {
		_ = c.queue.Select(idx)
	} else {
		_ = c.queue.Set([]track.Track{t})
	}

	c.loadLocked(t)
	c.publishLocked()
	return nil
}

// TogglePlay pauses a playing track and resumes any other bound track.
func (c *Controller) TogglePlay() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.togglePlayLocked()
	c.publishLocked()
	return nil
}

// Play resumes the bound track. Nothing bound is a no-op.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.applyLocked(c.engine.play())
	c.publishLocked()
	return nil
}

// Pause pauses the bound track. isPlaying is false once Pause returns.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.engine.pause()
	c.publishLocked()
	return nil
}

// Next skips to the following track.
func (c *Controller) Next() error {
	return c.skip(queue.Next)
}

// Previous skips to the preceding track.
func (c *Controller) Previous() error {
	return c.skip(queue.Previous)
}

func (c *Controller) skip(dir queue.Direction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	zlog.Debug().Msgf("playback: user skip (%s)", dir)
	c.recordSkipLocked()
	c.advanceLocked(dir)
	c.publishLocked()
	return nil
}

// Seek moves the playback position. Targets outside [0, duration] are
// rejected with ErrInvalidSeek and change nothing.
func (c *Controller) Seek(seconds float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if err := c.engine.seek(seconds); err != nil {
		zlog.Warn().Err(err).Msg("playback: seek rejected")
		return err
	}
	c.publishLocked()
	return nil
}

// SetVolume sets the volume in [0, 1]. Other values are rejected with
// ErrInvalidVolume and change nothing.
func (c *Controller) SetVolume(volume float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if err := c.engine.setVolume(volume); err != nil {
		zlog.Warn().Err(err).Msg("playback: volume rejected")
		return err
	}
	c.publishLocked()
	return nil
}

// SetQueue replaces the queue and makes sure its first track is playing.
// An empty list is rejected with ErrEmptyQueue and changes nothing.
func (c *Controller) SetQueue(tracks []track.Track) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if err := c.queue.Set(tracks); err != nil {
		err = errors.Wrap(ErrEmptyQueue, "set queue")
		zlog.Warn().Err(err).Msg("playback: queue rejected")
		return err
	}

	zlog.Info().Msgf("playback: queue replaced (%d tracks)", len(tracks))

	first := tracks[0]
	if cur := c.engine.track; cur != nil && cur.SameAs(&first) {
		switch c.engine.state {
		case StatePlaying, StateLoading, StateReady:
			c.publishLocked()
			return nil
		case StatePaused:
			c.applyLocked(c.engine.play())
			c.publishLocked()
			return nil
		}
	}

	c.loadLocked(first)
	c.publishLocked()
	return nil
}

// ToggleShuffle flips shuffle and returns the new setting.
func (c *Controller) ToggleShuffle() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return c.queue.Shuffled(), ErrClosed
	}
	enabled := c.queue.ToggleShuffle()
	zlog.Info().Msgf("playback: shuffle %v", enabled)
	c.publishLocked()
	return enabled, nil
}

// ToggleRepeat cycles the repeat mode and returns the new one.
func (c *Controller) ToggleRepeat() (queue.RepeatMode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return c.queue.Repeat(), ErrClosed
	}
	mode := c.queue.CycleRepeat()
	zlog.Info().Msgf("playback: repeat %s", mode)
	c.publishLocked()
	return mode, nil
}

// State returns the engine state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.state
}

// Queue returns a copy of the queue.
func (c *Controller) Queue() QueueView {
	c.mu.Lock()
	defer c.mu.Unlock()

	return QueueView{
		Tracks:       c.queue.Tracks(),
		CurrentIndex: c.queue.CurrentIndex(),
		Repeat:       c.queue.Repeat(),
		Shuffle:      c.queue.Shuffled(),
		ShuffleOrder: c.queue.ShuffleOrder(),
	}
}

// Skips returns the skipped tracks in the order they were first skipped.
func (c *Controller) Skips() []queue.Skip {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skips.Entries()
}

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() store.Snapshot {
	return c.store.Snapshot()
}

// Subscribe registers a state observer.
func (c *Controller) Subscribe() (string, <-chan store.Snapshot) {
	return c.store.Subscribe()
}

// Unsubscribe removes a state observer.
func (c *Controller) Unsubscribe(id string) {
	c.store.Unsubscribe(id)
}

// Close releases the bound backend and stops the event loop.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.engine.close()
	c.publishLocked()
	c.cancel()
	c.mu.Unlock()

	<-c.done
	c.store.Close()
}

// run applies backend events one at a time.
func (c *Controller) run() {
	defer close(c.done)

	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.inbox:
			c.mu.Lock()
			if !c.closed {
				c.handleEventLocked(ev)
			}
			c.mu.Unlock()
		}
	}
}

// post queues a backend event for the loop.
func (c *Controller) post(ev Event) {
	select {
	case c.inbox <- ev:
	case <-c.ctx.Done():
	}
}

func (c *Controller) handleEventLocked(ev Event) {
	if ev.Generation != c.engine.gen {
		zlog.Debug().Msgf("playback: discarding stale %s event (generation %d, current %d)", ev.Type, ev.Generation, c.engine.gen)
		return
	}

	out := c.engine.handle(ev)
	c.applyLocked(out)
	if out.ended {
		zlog.Debug().Msg("playback: track ended, advancing")
		c.advanceLocked(queue.Next)
	}
	c.publishLocked()
}

func (c *Controller) togglePlayLocked() {
	if c.engine.playing {
		c.engine.pause()
		return
	}
	c.applyLocked(c.engine.play())
}

// advanceLocked moves the queue and loads the resulting track. The track is
// always reloaded, so repeat-one restarts it from the beginning.
func (c *Controller) advanceLocked(dir queue.Direction) {
	idx, err := c.queue.Advance(dir)
	switch {
	case errors.Is(err, queue.ErrQueueExhausted):
		zlog.Info().Msg("playback: queue exhausted")
		c.engine.finish()
		return
	case err != nil:
		zlog.Debug().Err(err).Msg("playback: nothing to advance to")
		return
	}

	t, _ := c.queue.At(idx)
	c.loadLocked(t)
}

func (c *Controller) loadLocked(t track.Track) {
	c.engine.load(t)
}

func (c *Controller) applyLocked(out outcome) {
	if out.started && c.engine.track != nil {
		trackID := c.engine.track.ID
		c.report(func(ctx context.Context) error {
			return c.reporter.RecordPlay(ctx, trackID)
		})
	}
}

func (c *Controller) recordSkipLocked() {
	t := c.engine.track
	if t == nil {
		return
	}

	rec := SkipRecord{TrackID: t.ID, Position: c.engine.position, Duration: c.engine.duration}
	if c.skips.Record(queue.Skip{TrackID: rec.TrackID, Position: rec.Position, Duration: rec.Duration, At: time.Now()}) {
		zlog.Debug().Msgf("playback: track %s logged as skipped at %.1fs", rec.TrackID, rec.Position)
	}
	c.report(func(ctx context.Context) error {
		return c.reporter.RecordSkip(ctx, rec)
	})
}

// report runs fn in the background. Failures are only logged.
func (c *Controller) report(fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.config.ReportTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			zlog.Warn().Err(err).Msg("playback: report failed")
		}
	}()
}

func (c *Controller) publishLocked() {
	e := c.engine
	q := c.queue

	c.store.Update(func(s *store.Snapshot) {
		s.Track = e.track
		s.Phase = e.state.String()
		s.IsPlaying = e.playing
		s.IsLoading = e.loading
		s.CurrentTime = e.position
		s.Duration = e.duration
		s.Volume = e.volume
		s.Backend = ""
		if e.track != nil {
			s.Backend = e.src.Kind.String()
		}
		s.Error = ""
		s.ErrorKind = ""
		if e.err != nil {
			s.Error = e.err.Error()
			s.ErrorKind = ErrorKind(e.err)
		}
		s.Queue = store.QueueInfo{
			Length:  q.Len(),
			Index:   q.CurrentIndex(),
			Repeat:  q.Repeat().String(),
			Shuffle: q.Shuffled(),
		}
	})
}
