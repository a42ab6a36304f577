package audio

import "github.com/gopxl/beep/v2"

// Output mixes decoded streams into an audio device.
// Lock and Unlock guard streamer state against the mixing goroutine.
type Output interface {
	SampleRate() beep.SampleRate
	Play(s beep.Streamer)
	Lock()
	Unlock()
}
