// Package playback binds tracks to audio backends and drives the queue.
package playback

// State represents the engine state.
type State int

const (
	StateIdle    State = iota // Nothing bound
	StateLoading              // Source is being acquired
	StateReady                // Source can play, start pending
	StatePlaying              // Source is playing
	StatePaused               // Source is paused (explicitly or by autoplay policy)
	StateEnded                // Source reached its end
	StateError                // Source failed to load or play
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// reloads reports whether re-selecting the bound track must load it again
// instead of toggling play/pause.
func (s State) reloads() bool {
	return s == StateIdle || s == StateEnded || s == StateError
}
