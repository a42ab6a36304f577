package playback

// EventType represents a backend lifecycle event type.
type EventType int

const (
	EventMetadata    EventType = iota // Duration became known
	EventCanPlay                      // Source can begin playback
	EventPlaying                      // Playback started or resumed
	EventPaused                       // Playback paused
	EventTimeUpdate                   // Position changed
	EventBuffering                    // Playback stalled waiting for data
	EventEnded                        // Natural completion
	EventError                        // Load or playback failure
	EventLoadTimeout                  // Load did not complete in time
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventMetadata:
		return "metadata"
	case EventCanPlay:
		return "canplay"
	case EventPlaying:
		return "playing"
	case EventPaused:
		return "paused"
	case EventTimeUpdate:
		return "timeupdate"
	case EventBuffering:
		return "buffering"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	case EventLoadTimeout:
		return "load_timeout"
	default:
		return "unknown"
	}
}

// Event is a lifecycle notification from a backend.
type Event struct {
	Type       EventType
	Generation uint64  // Load attempt the event belongs to, stamped by the sink
	Time       float64 // Position in seconds (EventTimeUpdate)
	Duration   float64 // Duration in seconds (EventMetadata, EventCanPlay)
	Err        error   // Failure cause (EventError)
}

// Sink receives events from one bound backend.
// Post may block until the event is queued, so backends must call it from
// their own goroutines and never from inside a transport call.
type Sink interface {
	Post(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Post calls f(e).
func (f SinkFunc) Post(e Event) {
	f(e)
}
