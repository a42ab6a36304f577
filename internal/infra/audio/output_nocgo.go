//go:build !((linux && cgo) || windows || darwin)

package audio

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Available indicates whether a speaker output exists in this build.
const Available = false

// NewSpeaker always fails: the speaker needs cgo on this platform.
func NewSpeaker(int, time.Duration) (Output, error) {
	return nil, errors.New("audio output is not available in this build (requires cgo)")
}
