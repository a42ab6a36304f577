package playback

import "context"

// SkipRecord describes a track the user moved away from.
type SkipRecord struct {
	TrackID  string
	Position float64 // Seconds played before the skip
	Duration float64 // Seconds, 0 when unknown
}

// Reporter receives best-effort listening signals.
// Failures never influence playback.
type Reporter interface {
	RecordSkip(ctx context.Context, rec SkipRecord) error
	RecordPlay(ctx context.Context, trackID string) error
}

// NopReporter discards every signal.
type NopReporter struct{}

// RecordSkip implements Reporter.
func (NopReporter) RecordSkip(context.Context, SkipRecord) error { return nil }

// RecordPlay implements Reporter.
func (NopReporter) RecordPlay(context.Context, string) error { return nil }
