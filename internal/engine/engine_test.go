package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatbot/internal/config"
	"chatbot/internal/db"
	"chatbot/internal/domain"
	"chatbot/internal/engine"
	"chatbot/internal/format"
	"chatbot/internal/history"
	"chatbot/internal/intent"
	"chatbot/internal/migrate"
	"chatbot/internal/remote"
	"chatbot/internal/repo"
	"chatbot/internal/runner"
)

type fakeDesktop struct {
	startErr error
	started  int
}

func (d *fakeDesktop) VNCPort() int           { return 5900 }
func (d *fakeDesktop) ScreenshotPath() string { return "/tmp/screenshot.png" }
func (d *fakeDesktop) StartSession(context.Context) error {
	d.started++
	return d.startErr
}

type testEnv struct {
	Engine  *engine.Engine
	Runner  *runner.Runner
	Desktop *fakeDesktop
	Ctx     context.Context
}

func newTestEnv(t *testing.T, services config.Services) testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.Services = services

	r := runner.New(repo.Repo{DB: conn}, runner.Options{Workers: 1, SearchDelay: time.Millisecond, Log: zerolog.Nop()})
	r.Start(context.Background())
	t.Cleanup(func() { require.NoError(t, r.Stop()) })

	d := &fakeDesktop{}
	eng := engine.New(conn, cfg, engine.Options{
		Runner:  r,
		Remote:  remote.New(services, zerolog.Nop()),
		Desktop: d,
		History: history.NewMemory(50),
		Log:     zerolog.Nop(),
	})
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Runner: r, Desktop: d, Ctx: context.Background()}
}

// unreachable points every service at a port nothing listens on.
func unreachable() config.Services {
	svc := config.Service{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}
	return config.Services{Time: svc, Browser: svc, Thinking: svc, Search: svc, BrowserSecondary: svc, Memory: svc, DesktopCommander: svc}
}

func TestAddTodoRoundTrip(t *testing.T) {
	env := newTestEnv(t, unreachable())

	out := env.Engine.SubmitMessage(env.Ctx, "add todo buy milk")
	assert.Equal(t, "✅ Todo created: 'buy milk' (ID: 1)", out)

	todos, err := env.Engine.ListTodos(env.Ctx)
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, "buy milk", todos[0].Title)
	assert.False(t, todos[0].Completed)
	assert.Equal(t, domain.PriorityMedium, todos[0].Priority)
	assert.Equal(t, todos[0].CreatedAt, todos[0].UpdatedAt)

	again, err := env.Engine.ListTodos(env.Ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(todos, again); diff != "" {
		t.Fatalf("list not stable (-first +second):\n%s", diff)
	}

	listed := env.Engine.SubmitMessage(env.Ctx, "list todos")
	assert.Contains(t, listed, "buy milk (ID: 1)")
}

func TestAddTodoWithoutTitle(t *testing.T) {
	env := newTestEnv(t, unreachable())
	assert.Equal(t, intent.NeedTodoTitle, env.Engine.SubmitMessage(env.Ctx, "add todo"))
	todos, err := env.Engine.ListTodos(env.Ctx)
	require.NoError(t, err)
	assert.Empty(t, todos)
}

func TestCompleteTodo(t *testing.T) {
	env := newTestEnv(t, unreachable())
	for i := 0; i < 7; i++ {
		_, err := env.Engine.CreateTodo(env.Ctx, engine.TodoCreateOptions{Title: "item"})
		require.NoError(t, err)
	}
	_, err := env.Engine.UpdateTodo(env.Ctx, 7, repo.Rename("water plants"))
	require.NoError(t, err)

	assert.Equal(t, "✅ Todo completed: water plants", env.Engine.SubmitMessage(env.Ctx, "complete todo 7"))
	got, err := env.Engine.GetTodo(env.Ctx, 7)
	require.NoError(t, err)
	assert.True(t, got.Completed)
	assert.GreaterOrEqual(t, got.UpdatedAt, got.CreatedAt)

	assert.Equal(t, format.TodoNotFound(999), env.Engine.SubmitMessage(env.Ctx, "complete todo 999"))
	assert.Equal(t, intent.NeedTodoID, env.Engine.SubmitMessage(env.Ctx, "complete todo"))
}

func TestDeleteTodo(t *testing.T) {
	env := newTestEnv(t, unreachable())
	_, err := env.Engine.CreateTodo(env.Ctx, engine.TodoCreateOptions{Title: "old"})
	require.NoError(t, err)

	assert.Equal(t, "🗑️ Todo deleted: old", env.Engine.SubmitMessage(env.Ctx, "delete todo 1"))
	_, err = env.Engine.GetTodo(env.Ctx, 1)
	assert.True(t, errors.Is(err, repo.ErrNotFound))

	evts, err := env.Engine.LatestEvents(env.Ctx, 10, 0, "", "todo")
	require.NoError(t, err)
	require.Len(t, evts, 2)
	assert.Equal(t, "todo.deleted", evts[0].Type)
}

func TestSearchCreatesWebSearchAction(t *testing.T) {
	env := newTestEnv(t, unreachable())

	out := env.Engine.SubmitMessage(env.Ctx, "search python tutorials")
	assert.True(t, strings.HasPrefix(out, "🔍 Search started: python tutorials"), out)

	actions, err := env.Engine.ListActions(env.Ctx, 10)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, domain.ActionWebSearch, actions[0].Kind)
	assert.Contains(t, actions[0].Description, "Search: python tutorials")

	ctx, cancel := context.WithTimeout(env.Ctx, 5*time.Second)
	defer cancel()
	done, err := env.Runner.Await(ctx, actions[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, done.Status)
}

func TestExecuteCommandDispatches(t *testing.T) {
	env := newTestEnv(t, unreachable())
	out := env.Engine.SubmitMessage(env.Ctx, "execute command echo hi")
	assert.Equal(t, "🔄 Action started: Execute: echo hi (ID: 1)", out)

	ctx, cancel := context.WithTimeout(env.Ctx, 5*time.Second)
	defer cancel()
	done, err := env.Runner.Await(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, done.Status)
	assert.Contains(t, done.Result, "hi")

	assert.Equal(t, intent.NeedCommand, env.Engine.SubmitMessage(env.Ctx, "execute command"))
}

func TestTimeServiceUnreachable(t *testing.T) {
	env := newTestEnv(t, unreachable())
	out := env.Engine.SubmitMessage(env.Ctx, "what time is it in pst")
	assert.Contains(t, out, "Time service error")
	assert.Contains(t, out, "connection refused")
}

func TestScreenshotWebsiteUsesBrowser(t *testing.T) {
	var gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/screenshot" {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotURL, _ = body["url"].(string)
		_ = json.NewEncoder(w).Encode(map[string]any{"screenshot_path": "/tmp/shot.png"})
	}))
	defer srv.Close()

	services := unreachable()
	services.Browser = config.Service{BaseURL: srv.URL, Timeout: time.Second}
	env := newTestEnv(t, services)

	out := env.Engine.SubmitMessage(env.Ctx, "screenshot website https://example.com")
	assert.Equal(t, "📸 Screenshot saved: /tmp/shot.png", out)
	assert.Equal(t, "https://example.com", gotURL)

	assert.Equal(t, "🖥️ Screenshot saved to /tmp/screenshot.png", env.Engine.SubmitMessage(env.Ctx, "take a screenshot"))
}

func TestDesktopStart(t *testing.T) {
	env := newTestEnv(t, unreachable())
	assert.Equal(t, format.SessionStarted(true), env.Engine.SubmitMessage(env.Ctx, "start desktop"))
	env.Desktop.startErr = errors.New("no display")
	assert.Equal(t, format.SessionStarted(false), env.Engine.SubmitMessage(env.Ctx, "launch desktop"))
	assert.Equal(t, 2, env.Desktop.started)
}

func TestSmallTalk(t *testing.T) {
	env := newTestEnv(t, unreachable())
	assert.Equal(t, format.Greeting, env.Engine.SubmitMessage(env.Ctx, "hello there"))
	assert.Contains(t, env.Engine.SubmitMessage(env.Ctx, "status please"), "localhost:5900")
	assert.Equal(t, format.Acknowledge("good morning"), env.Engine.SubmitMessage(env.Ctx, "good morning"))
}

func TestConversationIsPersistedInOrder(t *testing.T) {
	env := newTestEnv(t, unreachable())
	env.Engine.SubmitMessage(env.Ctx, "hello")
	env.Engine.SubmitMessage(env.Ctx, "add todo")

	msgs, err := env.Engine.Conversation(env.Ctx, 4)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	roles := []domain.Role{msgs[0].Role, msgs[1].Role, msgs[2].Role, msgs[3].Role}
	assert.Equal(t, []domain.Role{domain.RoleUser, domain.RoleAssistant, domain.RoleUser, domain.RoleAssistant}, roles)
	assert.Equal(t, "add todo", msgs[2].Content)
	assert.Equal(t, "todo", msgs[3].Metadata["intent"])
	assert.NotEmpty(t, msgs[3].Metadata["request_id"])

	// more than the cache holds falls back to the durable log
	stored, err := env.Engine.Repo.RecentMessages(env.Ctx, 100)
	require.NoError(t, err)
	assert.Len(t, stored, 4)
}

func TestEveryReplyIsNonEmpty(t *testing.T) {
	env := newTestEnv(t, unreachable())
	inputs := []string{"", "   ", "todo", "run", "desktop", "browse", "think", "reason about life", "what is go", "screenshot web"}
	for _, in := range inputs {
		out := env.Engine.SubmitMessage(env.Ctx, in)
		assert.NotEmpty(t, strings.TrimSpace(out), "input %q", in)
	}
}
