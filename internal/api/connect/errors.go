package connect

import (
	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicmind/internal/app/catalog"
	"github.com/osa030/musicmind/internal/app/playback"
)

var errMissingTrackID = errors.New("track id is required")

// toConnectError maps application errors to RPC status codes.
func toConnectError(err error) error {
	var code connect.Code
	switch {
	case errors.Is(err, playback.ErrInvalidParameter), errors.Is(err, catalog.ErrInvalidRequest):
		code = connect.CodeInvalidArgument
	case errors.Is(err, catalog.ErrNoCandidates):
		code = connect.CodeNotFound
	case errors.Is(err, playback.ErrClosed):
		code = connect.CodeUnavailable
	default:
		zlog.Error().Err(err).Msg("api: request failed")
		code = connect.CodeInternal
	}
	return connect.NewError(code, err)
}
