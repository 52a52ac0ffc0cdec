package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatbot/internal/config"
	"chatbot/internal/db"
	"chatbot/internal/domain"
	"chatbot/internal/engine"
	"chatbot/internal/migrate"
	"chatbot/internal/repo"
)

func testHandlers(t *testing.T) (*Handlers, *engine.Engine) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default(), engine.Options{Log: zerolog.Nop()})
	return NewHandlers(e), e
}

func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return tc.Text
}

func TestSubmitMessage(t *testing.T) {
	h, _ := testHandlers(t)
	res, err := h.HandleSubmit(context.Background(), makeRequest(map[string]any{"message": "add todo buy milk"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "✅ Todo created: 'buy milk' (ID: 1)", resultText(t, res))

	res, err = h.HandleListTodos(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	var out struct {
		Todos []domain.TodoItem `json:"todos"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	require.Len(t, out.Todos, 1)
	assert.Equal(t, "buy milk", out.Todos[0].Title)
}

func TestSubmitRequiresMessage(t *testing.T) {
	h, _ := testHandlers(t)
	res, err := h.HandleSubmit(context.Background(), makeRequest(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "invalid_request")
}

func TestGetAction(t *testing.T) {
	h, e := testHandlers(t)
	a, err := e.Repo.InsertAction(context.Background(), domain.AgentAction{
		Kind:        domain.ActionCommand,
		Description: "Execute: ls",
		Status:      domain.StatusRunning,
		CreatedAt:   repo.Timestamp(e.Now()),
	})
	require.NoError(t, err)
	require.NoError(t, e.Repo.FinishAction(context.Background(), a.ID, domain.StatusCompleted, "ok"))

	res, err := h.HandleGetAction(context.Background(), makeRequest(map[string]any{"id": float64(a.ID)}))
	require.NoError(t, err)
	var got domain.AgentAction
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &got))
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, "ok", got.Result)

	res, err = h.HandleGetAction(context.Background(), makeRequest(map[string]any{"id": 42}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "not_found")

	res, err = h.HandleListActions(context.Background(), makeRequest(map[string]any{"limit": 5}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "Execute: ls")
}

func TestToolNames(t *testing.T) {
	assert.Equal(t, []string{"submit_message", "list_todos", "get_action", "list_actions"}, ToolNames())
	assert.NotNil(t, NewServer(nil, "test"))
}
