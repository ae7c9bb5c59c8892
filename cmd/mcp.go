package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/tessera-search/tessera/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long: `Starts a Model Context Protocol (MCP) server on stdio, exposing
document search and ingestion tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		// The queue dispatch loop must run so enqueue_document makes progress.
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go a.queue.Run(ctx)

		mcpserver.Version = Version
		fmt.Fprintf(os.Stderr, "tessera MCP server started on stdio (data=%s)\n", cfg.DataDir)

		srv := mcpserver.NewServer(a.engine, a.queue)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
