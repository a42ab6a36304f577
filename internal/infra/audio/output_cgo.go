//go:build (linux && cgo) || windows || darwin

package audio

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// Available indicates whether a speaker output exists in this build.
const Available = true

var (
	speakerOnce sync.Once
	speakerOut  *speakerOutput
	speakerErr  error
)

type speakerOutput struct {
	rate beep.SampleRate
}

// NewSpeaker initialises the process-wide speaker. Later calls return the
// same output regardless of their arguments.
func NewSpeaker(sampleRate int, buffer time.Duration) (Output, error) {
	speakerOnce.Do(func() {
		rate := beep.SampleRate(sampleRate)
		if err := speaker.Init(rate, rate.N(buffer)); err != nil {
			speakerErr = errors.Wrap(err, "failed to initialise speaker")
			return
		}
		speakerOut = &speakerOutput{rate: rate}
	})
	if speakerErr != nil {
		return nil, speakerErr
	}
	return speakerOut, nil
}

func (o *speakerOutput) SampleRate() beep.SampleRate { return o.rate }
func (o *speakerOutput) Play(s beep.Streamer)        { speaker.Play(s) }
func (o *speakerOutput) Lock()                       { speaker.Lock() }
func (o *speakerOutput) Unlock()                     { speaker.Unlock() }
