package queue

import "time"

// Skip is one user-initiated departure from a track.
type Skip struct {
	TrackID  string
	Position float64 // Seconds into the track when it was left
	Duration float64 // Track duration in seconds (zero when unknown)
	At       time.Time
}

// SkipLog keeps skipped tracks in arrival order, one entry per track ID.
// When a limit is set the oldest entries are dropped first.
type SkipLog struct {
	limit   int
	entries []Skip
	seen    map[string]struct{}
}

// NewSkipLog creates a skip log. A limit <= 0 keeps every entry.
func NewSkipLog(limit int) *SkipLog {
	return &SkipLog{
		limit:   limit,
		entries: make([]Skip, 0),
		seen:    make(map[string]struct{}),
	}
}

// Record appends s unless its track is already logged. Returns true when added.
func (l *SkipLog) Record(s Skip) bool {
	if s.TrackID == "" {
		return false
	}
	if _, ok := l.seen[s.TrackID]; ok {
		return false
	}

	l.entries = append(l.entries, s)
	l.seen[s.TrackID] = struct{}{}

	if l.limit > 0 && len(l.entries) > l.limit {
		dropped := l.entries[0]
		l.entries = l.entries[1:]
		delete(l.seen, dropped.TrackID)
	}
	return true
}

// Contains reports whether the track has been logged.
func (l *SkipLog) Contains(trackID string) bool {
	_, ok := l.seen[trackID]
	return ok
}

// Entries returns a copy of the logged skips.
func (l *SkipLog) Entries() []Skip {
	result := make([]Skip, len(l.entries))
	copy(result, l.entries)
	return result
}

// Len returns the number of logged skips.
func (l *SkipLog) Len() int {
	return len(l.entries)
}
