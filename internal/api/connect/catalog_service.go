package connect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicmind/internal/app/catalog"
)

// CatalogServiceName is the fully-qualified name of the CatalogService.
const CatalogServiceName = "musicmind.v1.CatalogService"

// CatalogService procedures.
const (
	CatalogServiceBuildQueueProcedure = "/" + CatalogServiceName + "/BuildQueue"
)

// Builder builds track lists from the catalog.
type Builder interface {
	Build(ctx context.Context, req catalog.Request) (catalog.Result, error)
}

var _ Builder = (*catalog.Service)(nil)

// CatalogService implements the CatalogService RPC.
type CatalogService struct {
	builder Builder
	player  Player
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(builder Builder, player Player) *CatalogService {
	return &CatalogService{
		builder: builder,
		player:  player,
	}
}

// NewCatalogServiceHandler builds an HTTP handler serving every
// CatalogService procedure. It returns the path to mount the handler on.
func NewCatalogServiceHandler(s *CatalogService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	handlers := map[string]http.Handler{
		CatalogServiceBuildQueueProcedure: connect.NewUnaryHandler(CatalogServiceBuildQueueProcedure, s.BuildQueue, opts...),
	}
	return "/" + CatalogServiceName + "/", routeProcedures(handlers)
}

// BuildQueue builds a track list and, unless DryRun is set, makes it the queue.
func (s *CatalogService) BuildQueue(
	ctx context.Context,
	req *connect.Request[BuildQueueRequest],
) (*connect.Response[BuildQueueResponse], error) {
	mode, err := catalog.ParseMode(req.Msg.Mode)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	creq := catalog.Request{
		Mode:  mode,
		Query: req.Msg.Query,
		Count: req.Msg.Count,
	}
	if mode.NeedsSeed() {
		switch {
		case req.Msg.Seed != nil && validTrack(*req.Msg.Seed):
			creq.Seed = toTrack(*req.Msg.Seed)
		case s.player.Snapshot().Track != nil:
			creq.Seed = *s.player.Snapshot().Track
		default:
			return nil, connect.NewError(connect.CodeFailedPrecondition,
				errors.Newf("%s needs a seed track and nothing is playing", mode))
		}
	}

	result, err := s.builder.Build(ctx, creq)
	if err != nil {
		return nil, toConnectError(err)
	}

	if !req.Msg.DryRun {
		if err := s.player.SetQueue(result.Tracks); err != nil {
			return nil, toConnectError(err)
		}
		zlog.Info().Msgf("api: queued %d tracks (%s)", len(result.Tracks), mode)
	}

	return connect.NewResponse(&BuildQueueResponse{
		Tracks:   fromTracks(result.Tracks),
		Sources:  result.Sources,
		Rejected: result.Rejected,
	}), nil
}
