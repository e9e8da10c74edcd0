package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/translation-helps-proxy/internal/models"
	"github.com/bobmcallan/translation-helps-proxy/internal/normalize"
	"github.com/bobmcallan/translation-helps-proxy/internal/router"
)

// ToolRouter executes tool calls. *router.Router implements it.
type ToolRouter interface {
	Route(ctx context.Context, req models.ToolCallRequest) (normalize.Result, error)
}

// RegisterTools registers every exposed tool on the MCP server.
func RegisterTools(s *server.MCPServer, rt ToolRouter, tools []models.ToolDescriptor) int {
	for _, td := range tools {
		s.AddTool(BuildMCPTool(td), ToolHandler(rt))
	}
	return len(tools)
}

// BuildMCPTool converts an exposed descriptor into an mcp.Tool, keeping
// its (already filtered) input schema as-is.
func BuildMCPTool(td models.ToolDescriptor) mcp.Tool {
	schema, err := json.Marshal(td.InputSchema)
	if err != nil {
		schema = json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return mcp.NewToolWithRawSchema(td.Name, td.Description, schema)
}

// ToolHandler routes an MCP tool call through rt. Routing failures become
// error results; the handler itself never returns an error.
func ToolHandler(rt ToolRouter) server.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return callTool(ctx, rt, r), nil
	}
}

func callTool(ctx context.Context, rt ToolRouter, r mcp.CallToolRequest) *mcp.CallToolResult {
	result, err := rt.Route(ctx, models.ToolCallRequest{
		Name:      r.Params.Name,
		Arguments: r.GetArguments(),
	})
	if err != nil {
		return errorResult(router.ErrorText(err))
	}
	return toolResult(result)
}

// toolResult converts a normalized result into MCP text content.
func toolResult(result normalize.Result) *mcp.CallToolResult {
	content := make([]mcp.Content, 0, len(result))
	for _, b := range result {
		content = append(content, mcp.NewTextContent(b.Value))
	}
	return &mcp.CallToolResult{Content: content}
}

// errorResult creates an MCP error result.
func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(message),
		},
		IsError: true,
	}
}
