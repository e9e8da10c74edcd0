// Package mcp serves the filtered tool catalog to MCP clients over stdio
// or streamable HTTP, delegating tool calls to the router.
package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/translation-helps-proxy/internal/catalog"
	"github.com/bobmcallan/translation-helps-proxy/internal/common"
)

// Info identifies the server in the initialize response.
type Info struct {
	Name    string
	Version string
}

// Server is the MCP server with the exposed catalog registered.
type Server struct {
	mcp     *server.MCPServer
	catalog *catalog.Catalog
	router  ToolRouter
	logger  *common.Logger
}

// NewServer creates the MCP server and registers every tool in cat.
func NewServer(cat *catalog.Catalog, rt ToolRouter, info Info, logger *common.Logger) *Server {
	mcpSrv := server.NewMCPServer(
		info.Name,
		info.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	toolCount := RegisterTools(mcpSrv, rt, cat.Tools())

	logger.Info().
		Int("tools", toolCount).
		Str("name", info.Name).
		Str("version", info.Version).
		Msg("MCP server initialized")

	return &Server{
		mcp:     mcpSrv,
		catalog: cat,
		router:  rt,
		logger:  logger,
	}
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Exposes reports whether a tool name is registered.
func (s *Server) Exposes(name string) bool {
	_, ok := s.catalog.Lookup(name)
	return ok
}

// CallTool runs a tool call outside mcp-go's dispatch. Used for names the
// catalog does not expose, so the client receives an error result rather
// than a protocol error.
func (s *Server) CallTool(ctx context.Context, r mcp.CallToolRequest) *mcp.CallToolResult {
	return callTool(ctx, s.router, r)
}

// callUnexposed answers a tools/call whose tool the catalog does not expose.
// handled is false for exposed tools, which go through mcp-go.
func (s *Server) callUnexposed(ctx context.Context, params json.RawMessage) (result *mcp.CallToolResult, handled bool, err error) {
	var req mcp.CallToolRequest
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req.Params); err != nil {
			return nil, false, err
		}
	}
	if s.Exposes(req.Params.Name) {
		return nil, false, nil
	}
	return s.CallTool(ctx, req), true, nil
}
