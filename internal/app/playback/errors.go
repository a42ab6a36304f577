package playback

import (
	"github.com/cockroachdb/errors"
)

// Errors
var (
	ErrSourceLoad       = errors.New("source could not be loaded")
	ErrAutoplayRejected = errors.New("autoplay rejected by platform policy")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrClosed           = errors.New("controller closed")

	// Leaves wrap their family so each keeps its own identity.
	ErrInvalidVolume = errors.Wrap(ErrInvalidParameter, "volume out of range")
	ErrInvalidSeek   = errors.Wrap(ErrInvalidParameter, "seek position out of range")
	ErrEmptyQueue    = errors.Wrap(ErrInvalidParameter, "queue is empty")
	ErrLoadTimeout   = errors.Wrap(ErrSourceLoad, "load timed out")
)

// ErrorKind classifies a playback error for observers.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrLoadTimeout):
		return "load_timeout"
	case errors.Is(err, ErrSourceLoad):
		return "source_load"
	case errors.Is(err, ErrInvalidParameter):
		return "invalid_parameter"
	default:
		return "playback"
	}
}
