package cli

import (
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/hoard/internal/mcp"
	"github.com/mesh-intelligence/hoard/pkg/hoard"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve read-only store queries over MCP on stdio",
		Long: "Run a Model Context Protocol server on stdin/stdout exposing the\n" +
			"list_assets, find_asset, get_entity, existing_images and load_metadata tools.",
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			a.log.Info("mcp server starting", "root", s.Root(), "scheme", string(s.Scheme()))
			return mcp.NewServer(s, hoard.Version, a.log).Run(cmd.Context(), &sdk.StdioTransport{})
		},
	}
}
