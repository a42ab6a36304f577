package queue

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/musicmind/internal/domain/track"
)

func makeTracks(ids ...string) []track.Track {
	tracks := make([]track.Track, len(ids))
	for i, id := range ids {
		tracks[i] = track.New(id, "title "+id, "artist", "https://cdn.example.com/"+id+".mp3", "", 0)
	}
	return tracks
}

func newQueue(t *testing.T, ids ...string) *Queue {
	t.Helper()
	q := New(WithRand(rand.New(rand.NewSource(42))))
	require.NoError(t, q.Set(makeTracks(ids...)))
	return q
}

func TestQueue_Set(t *testing.T) {
	q := New()
	assert.Equal(t, NoIndex, q.CurrentIndex())

	err := q.Set(nil)
	assert.ErrorIs(t, err, ErrEmptyQueue)
	assert.Equal(t, NoIndex, q.CurrentIndex())

	require.NoError(t, q.Set(makeTracks("a", "b", "c")))
	assert.Equal(t, 0, q.CurrentIndex())
	assert.Equal(t, 3, q.Len())

	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "a", cur.ID)

	// Empty replacement keeps the previous queue
	require.NoError(t, q.Select(2))
	assert.ErrorIs(t, q.Set([]track.Track{}), ErrEmptyQueue)
	assert.Equal(t, 2, q.CurrentIndex())
	assert.Equal(t, 3, q.Len())
}

func TestQueue_SetCopiesInput(t *testing.T) {
	tracks := makeTracks("a", "b")
	q := New()
	require.NoError(t, q.Set(tracks))

	tracks[0].ID = "mutated"
	cur, _ := q.Current()
	assert.Equal(t, "a", cur.ID)
}

func TestQueue_AdvanceEmpty(t *testing.T) {
	q := New()
	idx, err := q.Advance(Next)
	assert.ErrorIs(t, err, ErrEmptyQueue)
	assert.Equal(t, NoIndex, idx)
}

func TestQueue_AdvanceSequential(t *testing.T) {
	tests := []struct {
		name    string
		start   int
		repeat  RepeatMode
		dir     Direction
		want    int
		wantErr error
	}{
		{name: "next in middle", start: 0, repeat: RepeatOff, dir: Next, want: 1},
		{name: "previous in middle", start: 2, repeat: RepeatOff, dir: Previous, want: 1},
		{name: "next past end with repeat off", start: 2, repeat: RepeatOff, dir: Next, want: 2, wantErr: ErrQueueExhausted},
		{name: "previous before start with repeat off clamps", start: 0, repeat: RepeatOff, dir: Previous, want: 0},
		{name: "next past end with repeat all wraps", start: 2, repeat: RepeatAll, dir: Next, want: 0},
		{name: "previous before start with repeat all wraps", start: 0, repeat: RepeatAll, dir: Previous, want: 2},
		{name: "repeat one keeps index on next", start: 1, repeat: RepeatOne, dir: Next, want: 1},
		{name: "repeat one keeps index on previous", start: 1, repeat: RepeatOne, dir: Previous, want: 1},
		{name: "repeat one keeps index at end", start: 2, repeat: RepeatOne, dir: Next, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newQueue(t, "a", "b", "c")
			require.NoError(t, q.Select(tt.start))
			q.SetRepeat(tt.repeat)

			got, err := q.Advance(tt.dir)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, q.CurrentIndex())
		})
	}
}

func TestQueue_AdvanceShuffleVisitsAll(t *testing.T) {
	q := newQueue(t, "a", "b", "c", "d", "e")
	require.True(t, q.ToggleShuffle())

	order := q.ShuffleOrder()
	require.Len(t, order, 5)

	// Align the current index with the permutation start
	require.NoError(t, q.Select(order[0]))

	visited := map[int]bool{q.CurrentIndex(): true}
	for i := 1; i < 5; i++ {
		idx, err := q.Advance(Next)
		require.NoError(t, err)
		assert.Equal(t, order[i], idx)
		visited[idx] = true
	}
	assert.Len(t, visited, 5)

	// Wraps around to the permutation start
	idx, err := q.Advance(Next)
	require.NoError(t, err)
	assert.Equal(t, order[0], idx)

	// And backwards to the permutation end
	idx, err = q.Advance(Previous)
	require.NoError(t, err)
	assert.Equal(t, order[4], idx)
}

func TestQueue_AdvanceShuffleIgnoresRepeatOff(t *testing.T) {
	q := newQueue(t, "a", "b", "c")
	q.ToggleShuffle()
	for i := 0; i < 10; i++ {
		_, err := q.Advance(Next)
		require.NoError(t, err)
	}
}

func TestQueue_AdvanceShuffleRepeatOne(t *testing.T) {
	q := newQueue(t, "a", "b", "c")
	q.ToggleShuffle()
	q.SetRepeat(RepeatOne)
	require.NoError(t, q.Select(1))

	idx, err := q.Advance(Next)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}

func TestQueue_ShuffleRegeneratedOnSet(t *testing.T) {
	q := newQueue(t, "a", "b")
	q.ToggleShuffle()
	assert.Len(t, q.ShuffleOrder(), 2)

	require.NoError(t, q.Set(makeTracks("a", "b", "c", "d")))
	assert.Len(t, q.ShuffleOrder(), 4)

	idx, err := q.Advance(Next)
	require.NoError(t, err)
	assert.True(t, idx >= 0 && idx < 4)
}

func TestQueue_ToggleShuffle(t *testing.T) {
	q := newQueue(t, "a", "b", "c", "d")

	assert.True(t, q.ToggleShuffle())
	assert.True(t, q.Shuffled())
	assert.ElementsMatch(t, []int{0, 1, 2, 3}, q.ShuffleOrder())

	assert.False(t, q.ToggleShuffle())
	assert.False(t, q.Shuffled())
	assert.Nil(t, q.ShuffleOrder())
}

func TestQueue_ShuffleIsUniform(t *testing.T) {
	q := newQueue(t, "a", "b", "c")
	counts := make(map[[3]int]int)

	const rounds = 6000
	for i := 0; i < rounds; i++ {
		q.ToggleShuffle()
		order := q.ShuffleOrder()
		counts[[3]int{order[0], order[1], order[2]}]++
		q.ToggleShuffle()
	}

	// 3! permutations, each expected ~1000 times
	require.Len(t, counts, 6)
	for perm, n := range counts {
		assert.InDelta(t, rounds/6, n, 150, "permutation %v", perm)
	}
}

func TestQueue_CycleRepeat(t *testing.T) {
	q := New()
	assert.Equal(t, RepeatOff, q.Repeat())
	assert.Equal(t, RepeatAll, q.CycleRepeat())
	assert.Equal(t, RepeatOne, q.CycleRepeat())
	assert.Equal(t, RepeatOff, q.CycleRepeat())
}

func TestQueue_IndexOfAndSelect(t *testing.T) {
	q := newQueue(t, "a", "b", "c")

	assert.Equal(t, 1, q.IndexOf("b"))
	assert.Equal(t, NoIndex, q.IndexOf("zzz"))

	require.NoError(t, q.Select(2))
	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "c", cur.ID)

	assert.ErrorIs(t, q.Select(3), ErrIndexOutOfRange)
	assert.ErrorIs(t, q.Select(-1), ErrIndexOutOfRange)
	assert.Equal(t, 2, q.CurrentIndex())
}

func TestQueue_TracksReturnsCopy(t *testing.T) {
	q := newQueue(t, "a", "b")
	tracks := q.Tracks()
	tracks[0].ID = "x"

	got, ok := q.At(0)
	require.True(t, ok)
	assert.Equal(t, "a", got.ID)

	_, ok = q.At(5)
	assert.False(t, ok)
}

func TestParseRepeatMode(t *testing.T) {
	tests := []struct {
		in      string
		want    RepeatMode
		wantErr bool
	}{
		{in: "off", want: RepeatOff},
		{in: "", want: RepeatOff},
		{in: "ALL", want: RepeatAll},
		{in: " one ", want: RepeatOne},
		{in: "twice", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRepeatMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) RepeatMode {
	t.Helper()
	m, err := ParseRepeatMode(s)
	require.NoError(t, err)
	return m
}

func TestSkipLog(t *testing.T) {
	log := NewSkipLog(0)

	assert.True(t, log.Record(Skip{TrackID: "a", Position: 12}))
	assert.True(t, log.Record(Skip{TrackID: "b", Position: 3}))
	assert.False(t, log.Record(Skip{TrackID: "a", Position: 40}))
	assert.False(t, log.Record(Skip{}))

	entries := log.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].TrackID)
	assert.Equal(t, 12.0, entries[0].Position)
	assert.True(t, log.Contains("b"))
}

func TestSkipLog_Limit(t *testing.T) {
	log := NewSkipLog(2)
	log.Record(Skip{TrackID: "a"})
	log.Record(Skip{TrackID: "b"})
	log.Record(Skip{TrackID: "c"})

	assert.Equal(t, 2, log.Len())
	assert.False(t, log.Contains("a"))

	// Evicted entries can be logged again
	assert.True(t, log.Record(Skip{TrackID: "a"}))
}
