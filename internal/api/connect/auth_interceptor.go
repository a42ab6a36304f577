package connect

import (
	"context"
	"crypto/subtle"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
)

const (
	// ControlTokenHeader is the header name for the control token.
	ControlTokenHeader = "X-Control-Token"
)

// readOnlyProcedures never require the control token.
var readOnlyProcedures = map[string]bool{
	PlayerServiceGetStateProcedure: true,
	PlayerServiceGetQueueProcedure: true,
}

// NewControlAuthInterceptor creates an interceptor that validates the control
// token on every mutating unary call. An empty token disables the check.
func NewControlAuthInterceptor(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if token == "" || readOnlyProcedures[req.Spec().Procedure] {
				return next(ctx, req)
			}

			got := req.Header().Get(ControlTokenHeader)
			if got == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("missing control token"))
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("invalid control token"))
			}

			return next(ctx, req)
		}
	}
}
