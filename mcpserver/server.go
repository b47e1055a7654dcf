// Package mcpserver exposes registry tools to agent runtimes over the Model Context
// Protocol. stdout carries the protocol; all logging goes to stderr.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"k8s.io/klog/v2"

	"github.com/nachoal/coding-agent-server/llm"
	"github.com/nachoal/coding-agent-server/tools"
	"github.com/nachoal/coding-agent-server/tools/registry"
)

const (
	ServerName    = "vlm-analyzer"
	ServerVersion = "1.0.0"
)

// New builds an MCP server with one tool per registry entry
func New(reg *registry.Registry) (*server.MCPServer, error) {
	s := server.NewMCPServer(ServerName, ServerVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	for _, name := range reg.List() {
		tool, err := reg.Get(name)
		if err != nil {
			return nil, err
		}
		inputSchema, err := reg.InputSchema(name)
		if err != nil {
			return nil, fmt.Errorf("schema for %s: %w", name, err)
		}
		raw, err := json.Marshal(inputSchema)
		if err != nil {
			return nil, fmt.Errorf("marshal schema for %s: %w", name, err)
		}

		s.AddTool(mcp.NewToolWithRawSchema(name, tool.Description(), raw), Handler(reg, name))
	}

	return s, nil
}

// Handler adapts a registry tool to an MCP tool handler. Tool failures are returned
// as error results carrying the message verbatim, not as protocol errors; the
// ToolError code only goes to the log.
func Handler(reg *registry.Registry, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logger := klog.FromContext(ctx).WithValues("tool", name)

		raw, err := json.Marshal(request.Params.Arguments)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("INVALID_PARAMS: %v", err)), nil
		}
		_, args := llm.NormalizeArguments(raw)

		start := time.Now()
		out, err := reg.Execute(ctx, name, args)
		if err != nil {
			msg, code := err.Error(), ""
			var te *tools.ToolError
			if errors.As(err, &te) {
				msg, code = te.Message, te.Code
			}
			logger.Info("Tool call failed", "code", code, "elapsed", time.Since(start), "err", msg)
			return mcp.NewToolResultError(msg), nil
		}

		logger.V(1).Info("Tool call done", "elapsed", time.Since(start), "chars", len(out))
		return mcp.NewToolResultText(out), nil
	}
}

// ServeStdio serves s on in/out until ctx is cancelled or in reaches EOF
func ServeStdio(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s)
	stdio.SetErrorLogger(log.New(os.Stderr, "mcp: ", log.LstdFlags))

	klog.FromContext(ctx).Info("Serving tools over stdio", "server", ServerName)
	return stdio.Listen(ctx, in, out)
}
