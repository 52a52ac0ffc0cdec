package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatbot/internal/app"
	"chatbot/internal/config"
	"chatbot/internal/engine"
	"chatbot/internal/events"
	"chatbot/internal/repo"
)

func openTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Health.Enabled = false
	a, err := app.Open(context.Background(), app.Options{Workspace: t.TempDir(), Config: cfg, Log: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a.Engine
}

type hookReceiver struct {
	mu      sync.Mutex
	events  []webhookEvent
	headers []http.Header
	fail    atomic.Bool
}

func (h *hookReceiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.fail.Load() {
		http.Error(w, "down", http.StatusServiceUnavailable)
		return
	}
	var evt webhookEvent
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.mu.Lock()
	h.events = append(h.events, evt)
	h.headers = append(h.headers, r.Header.Clone())
	h.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (h *hookReceiver) received() []webhookEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]webhookEvent(nil), h.events...)
}

func TestWebhookDeliversNewMatchingEvents(t *testing.T) {
	ctx := context.Background()
	e := openTestEngine(t)
	recv := &hookReceiver{}
	hookSrv := httptest.NewServer(recv)
	defer hookSrv.Close()

	_, err := e.CreateTodo(ctx, engine.TodoCreateOptions{Title: "before hooks"})
	require.NoError(t, err)

	d := NewWebhookDispatcher(e, []config.WebhookConfig{{
		URL:    hookSrv.URL,
		Events: []string{events.TodoCreated},
		Secret: "s3cret",
	}}, zerolog.Nop())
	d.dispatchAll(ctx)
	assert.Empty(t, recv.received(), "existing events are not replayed")

	todo, err := e.CreateTodo(ctx, engine.TodoCreateOptions{Title: "ship release"})
	require.NoError(t, err)
	_, err = e.UpdateTodo(ctx, todo.ID, repo.MarkCompleted(true))
	require.NoError(t, err)
	d.dispatchAll(ctx)

	got := recv.received()
	require.Len(t, got, 1)
	assert.Equal(t, events.TodoCreated, got[0].Type)
	assert.Equal(t, "todo", got[0].EntityKind)
	assert.Equal(t, todo.ID, got[0].EntityID)
	assert.Equal(t, "s3cret", recv.headers[0].Get("X-Chatbot-Secret"))
	assert.Equal(t, events.TodoCreated, recv.headers[0].Get("X-Chatbot-Event"))

	d.dispatchAll(ctx)
	assert.Len(t, recv.received(), 1, "delivered events are not resent")
}

func TestWebhookRetriesAfterFailure(t *testing.T) {
	ctx := context.Background()
	e := openTestEngine(t)
	recv := &hookReceiver{}
	hookSrv := httptest.NewServer(recv)
	defer hookSrv.Close()

	d := NewWebhookDispatcher(e, []config.WebhookConfig{{URL: hookSrv.URL}}, zerolog.Nop())
	d.dispatchAll(ctx)

	recv.fail.Store(true)
	_, err := e.CreateTodo(ctx, engine.TodoCreateOptions{Title: "retry me"})
	require.NoError(t, err)
	d.dispatchAll(ctx)
	assert.Empty(t, recv.received())

	recv.fail.Store(false)
	d.dispatchAll(ctx)
	got := recv.received()
	require.Len(t, got, 1)
	assert.Equal(t, "retry me", got[0].Payload["title"])
}

func TestWebhookDisabledHookIsSkipped(t *testing.T) {
	ctx := context.Background()
	e := openTestEngine(t)
	recv := &hookReceiver{}
	hookSrv := httptest.NewServer(recv)
	defer hookSrv.Close()

	off := false
	d := NewWebhookDispatcher(e, []config.WebhookConfig{{URL: hookSrv.URL, Enabled: &off}}, zerolog.Nop())
	d.dispatchAll(ctx)
	_, err := e.CreateTodo(ctx, engine.TodoCreateOptions{Title: "quiet"})
	require.NoError(t, err)
	d.dispatchAll(ctx)
	assert.Empty(t, recv.received())
}

func TestEventFilter(t *testing.T) {
	assert.True(t, newEventFilter(nil).match("todo.created"))
	assert.True(t, newEventFilter([]string{" ", ""}).match("anything"))
	f := newEventFilter([]string{"action.finished"})
	assert.True(t, f.match("action.finished"))
	assert.False(t, f.match("todo.created"))
}
