package cmd

import (
	"github.com/schovi/screenrec/internal/daemon"
	"github.com/schovi/screenrec/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run an MCP server on stdio for AI agents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tools := mcp.NewToolRegistry(daemon.NewClient(cfg.SocketDir))
		return mcp.NewServer(tools, version).Run()
	},
}
