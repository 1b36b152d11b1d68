package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/pydefs/internal/batch"
)

// defaultSourceName labels inline source that arrives without a name.
const defaultSourceName = "<source>"

// SourceProcessor extracts a single file or inline source.
type SourceProcessor interface {
	ProcessFile(path string) batch.Result
	ProcessSource(name string, content []byte) batch.Result
}

// AddExtractDefinitionsTool registers the extract_definitions tool with an MCP server.
// Relative paths are resolved against rootDir.
func AddExtractDefinitionsTool(s *server.MCPServer, processor SourceProcessor, rootDir string) {
	tool := mcp.NewTool(
		"extract_definitions",
		mcp.WithDescription(`Extract the top-level definitions of a Python module.

Returns JSON with the module docstring, every top-level class (name, docstring,
bases, methods) and every top-level function (name, docstring, exact source
text). Docstrings are null when absent.

Provide exactly one of:
- source: Python source text (optionally labelled with name)
- path: a .py file, relative to the project root or absolute`),
		mcp.WithString("source",
			mcp.Description("Python source text to extract")),
		mcp.WithString("name",
			mcp.Description("Label used in error messages for inline source (default: <source>)")),
		mcp.WithString("path",
			mcp.Description("Path of a Python file to extract")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createExtractDefinitionsHandler(processor, rootDir))
}

// createExtractDefinitionsHandler creates the handler function for extract_definitions.
func createExtractDefinitionsHandler(processor SourceProcessor, rootDir string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		argsMap, ok := request.Params.Arguments.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}

		hasSource := hasArg(argsMap, "source")
		hasPath := hasArg(argsMap, "path")
		if hasSource == hasPath {
			return mcp.NewToolResultError("provide exactly one of source or path"), nil
		}

		var result batch.Result
		if hasSource {
			source, err := parseStringArg(argsMap, "source", false)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			name, err := parseStringArg(argsMap, "name", false)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if name == "" {
				name = defaultSourceName
			}
			result = processor.ProcessSource(name, []byte(source))
		} else {
			path, err := parseStringArg(argsMap, "path", true)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if !filepath.IsAbs(path) && rootDir != "" {
				path = filepath.Join(rootDir, path)
			}
			result = processor.ProcessFile(path)
		}

		// Extraction failures are reported to the caller, not the transport
		if result.Err != nil {
			return mcp.NewToolResultError(result.Err.Error()), nil
		}

		jsonData, err := json.Marshal(result.Module)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal module record: %w", err)
		}

		return mcp.NewToolResultText(string(jsonData)), nil
	}
}
