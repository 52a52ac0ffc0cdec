// Package mcpserver exposes the chat engine as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"chatbot/internal/engine"
	"chatbot/internal/repo"
)

type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

var toolRegistry = []toolEntry{
	{
		def: mcp.NewTool("submit_message",
			mcp.WithDescription("Send a chat message to the assistant and return its reply"),
			mcp.WithString("message", mcp.Required(), mcp.Description("Free-text message, e.g. 'add todo buy milk'")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSubmit },
	},
	{
		def:     mcp.NewTool("list_todos", mcp.WithDescription("List todos, newest first")),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleListTodos },
	},
	{
		def: mcp.NewTool("get_action",
			mcp.WithDescription("Get the status and result of a background action"),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Action identifier")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetAction },
	},
	{
		def: mcp.NewTool("list_actions",
			mcp.WithDescription("List recent background actions, newest first"),
			mcp.WithNumber("limit", mcp.Description("Maximum actions to return (default 10)")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleListActions },
	},
}

// ToolNames lists the registered tools in registration order.
func ToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for _, t := range toolRegistry {
		names = append(names, t.def.Name)
	}
	return names
}

type Handlers struct {
	engine *engine.Engine
}

func NewHandlers(e *engine.Engine) *Handlers {
	return &Handlers{engine: e}
}

// NewServer creates an MCP server with every tool registered.
func NewServer(e *engine.Engine, version string) *server.MCPServer {
	s := server.NewMCPServer("chatbot", version, server.WithToolCapabilities(true))
	h := NewHandlers(e)
	for _, entry := range toolRegistry {
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Run serves the tools on stdin/stdout until the client disconnects.
func Run(e *engine.Engine, version string) error {
	return server.ServeStdio(NewServer(e, version))
}

type submitRequest struct {
	Message string `json:"message"`
}

type idRequest struct {
	ID int64 `json:"id"`
}

type limitRequest struct {
	Limit int `json:"limit"`
}

func (h *Handlers) HandleSubmit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[submitRequest](req)
	if err != nil {
		return errorResult("invalid_request", err), nil
	}
	if input.Message == "" {
		return errorResult("invalid_request", errors.New("message is required")), nil
	}
	return mcp.NewToolResultText(h.engine.SubmitMessage(ctx, input.Message)), nil
}

func (h *Handlers) HandleListTodos(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	todos, err := h.engine.ListTodos(ctx)
	if err != nil {
		return errorResult("internal", err), nil
	}
	return mcp.NewToolResultJSON(map[string]any{"todos": todos})
}

func (h *Handlers) HandleGetAction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[idRequest](req)
	if err != nil {
		return errorResult("invalid_request", err), nil
	}
	a, err := h.engine.GetAction(ctx, input.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return errorResult("not_found", fmt.Errorf("action %d not found", input.ID)), nil
	}
	if err != nil {
		return errorResult("internal", err), nil
	}
	return mcp.NewToolResultJSON(a)
}

func (h *Handlers) HandleListActions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[limitRequest](req)
	if err != nil {
		return errorResult("invalid_request", err), nil
	}
	actions, err := h.engine.ListActions(ctx, input.Limit)
	if err != nil {
		return errorResult("internal", err), nil
	}
	return mcp.NewToolResultJSON(map[string]any{"actions": actions})
}

// decode unmarshals tool arguments into a typed struct.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, fmt.Errorf("marshal args: %w", err)
	}
	if err := json.Unmarshal(b, &result); err != nil {
		return result, fmt.Errorf("unmarshal args: %w", err)
	}
	return result, nil
}

func errorResult(code string, err error) *mcp.CallToolResult {
	content, _ := json.Marshal(map[string]any{"error": map[string]any{"code": code, "message": err.Error()}})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}
