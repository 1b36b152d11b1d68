package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/pydefs/internal/mcp"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server exposing extract_definitions",
	Long: `Start a Model Context Protocol (MCP) server on stdio so coding assistants
can extract Python definitions on demand.

The server provides one tool, extract_definitions, which accepts either
inline source text or a path relative to the current directory.

Example:
  pydefs mcp`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	projectPath, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	fmt.Fprintf(os.Stderr, "pydefs MCP Server\n")
	fmt.Fprintf(os.Stderr, "Project: %s\n", projectPath)

	server, err := mcp.NewMCPServer(mcp.ServerConfig{
		RootDir:   projectPath,
		CacheSize: cfg.Processing.CacheSize,
		Version:   Version,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer server.Close()

	return server.Serve(context.Background())
}
