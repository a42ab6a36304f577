// Package queue provides ordered track navigation with shuffle and repeat policies.
package queue

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/osa030/musicmind/internal/domain/track"
)

// Errors
var (
	ErrEmptyQueue      = errors.New("queue is empty")
	ErrQueueExhausted  = errors.New("queue exhausted")
	ErrIndexOutOfRange = errors.New("queue index out of range")
)

// NoIndex is the current index of a queue that has never been set.
const NoIndex = -1

// Direction is the traversal direction of Advance.
type Direction int

const (
	Next     Direction = iota // Towards the end of the queue
	Previous                  // Towards the start of the queue
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	switch d {
	case Next:
		return "next"
	case Previous:
		return "previous"
	default:
		return "unknown"
	}
}

func (d Direction) step() int {
	if d == Previous {
		return -1
	}
	return 1
}

// Queue is an ordered track list with a current position.
// The current index always refers to the underlying order; the shuffle
// permutation only decides which index comes next.
// Queue is not safe for concurrent use.
type Queue struct {
	tracks  []track.Track
	current int
	repeat  RepeatMode
	shuffle bool
	order   []int
	rng     *rand.Rand
}

// Option configures a Queue.
type Option func(*Queue)

// WithRand sets the random source used for shuffle permutations.
func WithRand(rng *rand.Rand) Option {
	return func(q *Queue) {
		q.rng = rng
	}
}

// New creates an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		tracks:  make([]track.Track, 0),
		current: NoIndex,
		repeat:  RepeatOff,
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.rng == nil {
		q.rng = newRand()
	}
	return q
}

// Set replaces the queue and moves the current position to the first track.
// An empty list is rejected and leaves the queue untouched.
func (q *Queue) Set(tracks []track.Track) error {
	if len(tracks) == 0 {
		return ErrEmptyQueue
	}

	q.tracks = make([]track.Track, len(tracks))
	copy(q.tracks, tracks)
	q.current = 0

	if q.shuffle {
		q.reshuffle()
	}
	return nil
}

// Select moves the current position to index without changing the order.
func (q *Queue) Select(index int) error {
	if index < 0 || index >= len(q.tracks) {
		return errors.Wrapf(ErrIndexOutOfRange, "index %d (len %d)", index, len(q.tracks))
	}
	q.current = index
	return nil
}

// Advance moves the current position one step in the given direction and
// returns the new index.
//
// Repeat-one keeps the current index. With shuffle on, the step walks the
// shuffle permutation and wraps around. Otherwise the step is sequential:
// past the end it wraps with repeat-all or fails with ErrQueueExhausted,
// before the start it wraps with repeat-all or clamps to zero.
func (q *Queue) Advance(dir Direction) (int, error) {
	n := len(q.tracks)
	if n == 0 || q.current == NoIndex {
		return NoIndex, ErrEmptyQueue
	}

	if q.repeat == RepeatOne {
		return q.current, nil
	}

	if q.shuffle {
		if len(q.order) != n {
			q.reshuffle()
		}
		pos := lo.IndexOf(q.order, q.current)
		if pos < 0 {
			q.reshuffle()
			pos = lo.IndexOf(q.order, q.current)
		}
		pos = ((pos+dir.step())%n + n) % n
		q.current = q.order[pos]
		return q.current, nil
	}

	next := q.current + dir.step()
	switch {
	case next >= n:
		if q.repeat != RepeatAll {
			return q.current, ErrQueueExhausted
		}
		next = 0
	case next < 0:
		if q.repeat == RepeatAll {
			next = n - 1
		} else {
			next = 0
		}
	}
	q.current = next
	return q.current, nil
}

// ToggleShuffle flips shuffle and returns the new setting. Turning it on
// always draws a fresh permutation.
func (q *Queue) ToggleShuffle() bool {
	q.shuffle = !q.shuffle
	if q.shuffle {
		q.reshuffle()
	} else {
		q.order = nil
	}
	return q.shuffle
}

// CycleRepeat moves to the next repeat mode (off → all → one → off).
func (q *Queue) CycleRepeat() RepeatMode {
	q.repeat = q.repeat.Next()
	return q.repeat
}

// SetRepeat sets the repeat mode directly.
func (q *Queue) SetRepeat(mode RepeatMode) {
	q.repeat = mode
}

// Current returns the track at the current position.
func (q *Queue) Current() (track.Track, bool) {
	if q.current < 0 || q.current >= len(q.tracks) {
		return track.Track{}, false
	}
	return q.tracks[q.current], true
}

// At returns the track at index.
func (q *Queue) At(index int) (track.Track, bool) {
	if index < 0 || index >= len(q.tracks) {
		return track.Track{}, false
	}
	return q.tracks[index], true
}

// IndexOf returns the index of the first track with the given ID, or NoIndex.
func (q *Queue) IndexOf(id string) int {
	_, index, ok := lo.FindIndexOf(q.tracks, func(t track.Track) bool {
		return t.ID == id
	})
	if !ok {
		return NoIndex
	}
	return index
}

// CurrentIndex returns the current position, or NoIndex.
func (q *Queue) CurrentIndex() int {
	return q.current
}

// Len returns the number of tracks.
func (q *Queue) Len() int {
	return len(q.tracks)
}

// Repeat returns the repeat mode.
func (q *Queue) Repeat() RepeatMode {
	return q.repeat
}

// Shuffled returns true if shuffle is on.
func (q *Queue) Shuffled() bool {
	return q.shuffle
}

// Tracks returns a copy of the tracks.
func (q *Queue) Tracks() []track.Track {
	result := make([]track.Track, len(q.tracks))
	copy(result, q.tracks)
	return result
}

// ShuffleOrder returns a copy of the shuffle permutation (nil when shuffle is off).
func (q *Queue) ShuffleOrder() []int {
	if q.order == nil {
		return nil
	}
	result := make([]int, len(q.order))
	copy(result, q.order)
	return result
}

// reshuffle draws a uniform permutation of [0, len) with Fisher-Yates.
func (q *Queue) reshuffle() {
	n := len(q.tracks)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := q.rng.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	q.order = order
}

// newRand seeds a generator from crypto/rand, falling back to the clock.
func newRand() *rand.Rand {
	var seed int64
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err == nil {
		seed = int64(binary.LittleEndian.Uint64(buf[:]))
	} else {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
