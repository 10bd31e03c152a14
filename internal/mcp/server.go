// Package mcp exposes the read side of the image store to agents over the
// Model Context Protocol.
package mcp

import (
	"context"
	"log/slog"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mesh-intelligence/hoard/pkg/types"
)

// Querier is the part of the image store the tools read from.
type Querier interface {
	Summaries(ctx context.Context, f types.Filter) ([]types.EntitySummary, error)
	Find(ctx context.Context, name string) (*types.EntityInfo, error)
	EntityInfo(ctx context.Context, c types.Classification, name string) (*types.EntityInfo, error)
	ExistingImageTypes(ctx context.Context, ref types.VariantRef) (types.ImageTypeSet, error)
	LoadMetadata(ctx context.Context, ref types.VariantRef) (string, bool, error)
}

type Server struct {
	store Querier
	log   *slog.Logger
	mcp   *sdk.Server
}

func NewServer(store Querier, version string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		store: store,
		log:   log,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "hoard",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	s.log.Info("mcp server starting")
	return s.mcp.Run(ctx, transport)
}
