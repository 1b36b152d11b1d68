// Package mcp serves the extraction engine as an MCP tool over stdio.
package mcp

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/pydefs/internal/batch"
)

// ServerConfig configures the MCP server.
type ServerConfig struct {
	// RootDir resolves relative tool paths. Defaults to the working directory.
	RootDir   string
	CacheSize int
	Version   string
}

// MCPServer manages the MCP server lifecycle.
type MCPServer struct {
	processor *batch.Processor
	mcp       *server.MCPServer
}

// NewMCPServer creates a server with the extract_definitions tool registered.
func NewMCPServer(config ServerConfig) (*MCPServer, error) {
	if config.RootDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		config.RootDir = wd
	}
	if config.Version == "" {
		config.Version = "1.0.0"
	}

	processor, err := batch.NewProcessor(batch.Options{CacheSize: config.CacheSize})
	if err != nil {
		return nil, fmt.Errorf("failed to create processor: %w", err)
	}

	mcpServer := server.NewMCPServer(
		"pydefs",
		config.Version,
		server.WithToolCapabilities(true),
	)
	AddExtractDefinitionsTool(mcpServer, processor, config.RootDir)

	return &MCPServer{processor: processor, mcp: mcpServer}, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown.
func (s *MCPServer) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting MCP server on stdio...")
		if err := server.ServeStdio(s.mcp); err != nil {
			errCh <- fmt.Errorf("MCP server error: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-sigCh:
		log.Printf("Received shutdown signal, stopping gracefully...")
		return nil
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the processor cache.
func (s *MCPServer) Close() error {
	if s.processor != nil {
		s.processor.Close()
	}
	return nil
}
