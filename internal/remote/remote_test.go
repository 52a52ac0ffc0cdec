package remote_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"chatbot/internal/config"
	"chatbot/internal/remote"
)

// fakeServices serves every MCP endpoint from one mux.
func fakeServices(t *testing.T, mux *http.ServeMux) (*remote.Facade, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return facadeAt(srv.URL), srv
}

func facadeAt(base string) *remote.Facade {
	svcs := config.Default().Services
	for _, s := range []*config.Service{
		&svcs.Time, &svcs.Browser, &svcs.Thinking, &svcs.Search,
		&svcs.BrowserSecondary, &svcs.Memory, &svcs.DesktopCommander,
	} {
		s.BaseURL = base
		s.Timeout = 2 * time.Second
	}
	return remote.New(svcs, zerolog.Nop())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestCurrentTime(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/time", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "JST", r.URL.Query().Get("timezone"))
		assert.Equal(t, "iso", r.URL.Query().Get("format"))
		writeJSON(w, map[string]any{"current_time": "2024-01-01T09:00:00+09:00", "timezone": "Asia/Tokyo"})
	})
	f, _ := fakeServices(t, mux)
	got := f.CurrentTime(context.Background(), "JST")
	assert.Equal(t, "🕐 Current time: 2024-01-01T09:00:00+09:00 (Asia/Tokyo)", got)
}

func TestCurrentTimeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	got := facadeAt(base).CurrentTime(context.Background(), "UTC")
	assert.True(t, strings.HasPrefix(got, "Time service error: "), got)
	assert.Contains(t, got, "connect")
}

func TestNon200IsUniformError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/think", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	f, _ := fakeServices(t, mux)

	assert.Equal(t, "Thinking service error: HTTP 500", f.ThinkAbout(context.Background(), "x"))

	_, err := f.Thinking.Think(context.Background(), "x", 3, "")
	var re *remote.Error
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusInternalServerError, re.StatusCode)
	assert.Equal(t, "sequentialthinking", re.Service)
	assert.Equal(t, remote.Payload{"error": "HTTP 500"}, remote.Marker(err))
}

func TestThinkAbout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/think", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "primes", body["problem"])
		assert.EqualValues(t, remote.ThinkingSteps, body["max_steps"])
		writeJSON(w, map[string]any{
			"steps":      []any{"enumerate", map[string]any{"thought": "sieve"}},
			"conclusion": "infinite",
		})
	})
	f, _ := fakeServices(t, mux)
	got := f.ThinkAbout(context.Background(), "primes")
	assert.Equal(t, "🤔 **Thinking about: primes**\n\n1. enumerate\n2. sieve\n\n**Conclusion:** infinite", got)
}

func TestSearchAndInstant(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "golang", r.URL.Query().Get("q"))
		assert.Equal(t, "true", r.URL.Query().Get("safe_search"))
		results := make([]map[string]any, 7)
		for i := range results {
			results[i] = map[string]any{"title": "Go", "url": "https://go.dev", "snippet": "lang"}
		}
		writeJSON(w, map[string]any{"results": results})
	})
	mux.HandleFunc("/api/instant", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "python" {
			writeJSON(w, map[string]any{"answer": "a language"})
			return
		}
		writeJSON(w, map[string]any{})
	})
	f, _ := fakeServices(t, mux)
	ctx := context.Background()

	got := f.SearchWeb(ctx, "golang")
	assert.Equal(t, 5, strings.Count(got, "🔗 https://go.dev"))

	hits, err := f.SearchHits(ctx, "golang", 3)
	require.NoError(t, err)
	assert.Len(t, hits, 7)

	assert.Equal(t, "💡 **Instant Answer:** a language", f.InstantAnswer(ctx, "python"))
	assert.Equal(t, "No instant answer found for 'rust'", f.InstantAnswer(ctx, "rust"))
}

func TestWebScreenshot(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/screenshot", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://example.com", body["url"])
		assert.Nil(t, body["selector"])
		writeJSON(w, map[string]any{"screenshot_path": "/tmp/shot.png"})
	})
	f, _ := fakeServices(t, mux)
	assert.Equal(t, "📸 Screenshot saved: /tmp/shot.png", f.WebScreenshot(context.Background(), "https://example.com"))
}

func TestRawClients(t *testing.T) {
	seen := make(chan string, 16)
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Method + " " + r.URL.Path
		writeJSON(w, map[string]any{"ok": true})
	})
	f, _ := fakeServices(t, mux)
	ctx := context.Background()

	calls := []func() (remote.Payload, error){
		func() (remote.Payload, error) { return f.Time.TimezoneInfo(ctx, "CET") },
		func() (remote.Payload, error) { return f.Browser.Navigate(ctx, "https://a.test", 0) },
		func() (remote.Payload, error) { return f.BrowserSecondary.ExtractText(ctx, "https://a.test", "h1") },
		func() (remote.Payload, error) { return f.Thinking.Analyze(ctx, "why", "") },
		func() (remote.Payload, error) { return f.Memory.Store(ctx, "k", "v") },
		func() (remote.Payload, error) { return f.Memory.Get(ctx, "k") },
		func() (remote.Payload, error) { return f.Memory.Search(ctx, "k") },
		func() (remote.Payload, error) { return f.DesktopCommander.ExecuteCommand(ctx, "ls") },
		func() (remote.Payload, error) { return f.DesktopCommander.ListProcesses(ctx) },
		func() (remote.Payload, error) { return f.DesktopCommander.SystemInfo(ctx) },
	}
	want := []string{
		"GET /api/timezone/CET",
		"POST /api/navigate",
		"POST /api/extract",
		"POST /api/analyze",
		"POST /api/memory",
		"GET /api/memory/k",
		"GET /api/memory/search",
		"POST /api/command",
		"GET /api/processes",
		"GET /api/system",
	}
	for i, call := range calls {
		p, err := call()
		require.NoError(t, err)
		assert.Equal(t, true, p["ok"])
		assert.Equal(t, want[i], <-seen)
	}
}

func TestCheckAll(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"status": "ok"})
	}))
	defer healthy.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer broken.Close()
	gone := httptest.NewServer(http.NotFoundHandler())
	goneURL := gone.URL
	gone.Close()

	svcs := config.Default().Services
	svcs.Time.BaseURL = healthy.URL
	svcs.Browser.BaseURL = broken.URL
	svcs.Thinking.BaseURL = goneURL
	f := remote.New(svcs, zerolog.Nop())

	mon := remote.NewMonitor(f, "@every 1h", time.Second, zerolog.Nop())
	for _, st := range mon.Snapshot() {
		assert.Equal(t, remote.StatusUnknown, st.Status)
	}
	assert.NotZero(t, mon.Snapshot()[0].Port)

	got := mon.Refresh(context.Background())
	require.Len(t, got, 7)
	assert.Equal(t, "time", got[0].Name)
	assert.Equal(t, remote.StatusHealthy, got[0].Status)
	assert.Equal(t, "error_503", got[1].Status)
	assert.Equal(t, remote.StatusUnreachable, got[2].Status)
	assert.Equal(t, got, mon.Snapshot())
}

func TestCheckAllProbesConcurrently(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		writeJSON(w, map[string]any{"status": "ok"})
	}))
	defer slow.Close()

	f := facadeAt(slow.URL)
	start := time.Now()
	got := f.CheckAll(context.Background(), 2*time.Second)
	elapsed := time.Since(start)

	require.Len(t, got, 7)
	for _, st := range got {
		assert.Equal(t, remote.StatusHealthy, st.Status, st.Name)
	}
	assert.Less(t, elapsed, 7*300*time.Millisecond, "probes ran one after another")
}

func TestMonitorStartStop(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
	f := facadeAt("http://127.0.0.1:1")
	mon := remote.NewMonitor(f, "not a schedule", time.Second, zerolog.Nop())
	assert.Error(t, mon.Start())

	mon = remote.NewMonitor(f, "@every 1h", time.Second, zerolog.Nop())
	require.NoError(t, mon.Start())
	mon.Stop()
}
