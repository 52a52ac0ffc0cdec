package remote

import (
	"context"
	"net/url"
	"strconv"
)

// TimeClient talks to the time service.
type TimeClient struct{ *Client }

func (c TimeClient) CurrentTime(ctx context.Context, timezone, format string) (Payload, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	if format == "" {
		format = "iso"
	}
	return c.get(ctx, "/api/time", url.Values{"timezone": {timezone}, "format": {format}})
}

func (c TimeClient) TimezoneInfo(ctx context.Context, timezone string) (Payload, error) {
	return c.get(ctx, "/api/timezone/"+url.PathEscape(timezone), nil)
}

// BrowserClient drives a browser automation service (playwright or puppeteer).
type BrowserClient struct{ *Client }

// DefaultNavigateTimeoutMS is the page load budget passed to the service.
const DefaultNavigateTimeoutMS = 30000

func (c BrowserClient) Navigate(ctx context.Context, target string, timeoutMS int) (Payload, error) {
	if timeoutMS <= 0 {
		timeoutMS = DefaultNavigateTimeoutMS
	}
	return c.post(ctx, "/api/navigate", map[string]any{"url": target, "timeout": timeoutMS})
}

func (c BrowserClient) Screenshot(ctx context.Context, target, selector string) (Payload, error) {
	return c.post(ctx, "/api/screenshot", map[string]any{"url": target, "selector": optional(selector)})
}

func (c BrowserClient) ExtractText(ctx context.Context, target, selector string) (Payload, error) {
	return c.post(ctx, "/api/extract", map[string]any{"url": target, "selector": optional(selector)})
}

// ThinkingClient runs step-wise reasoning.
type ThinkingClient struct{ *Client }

func (c ThinkingClient) Think(ctx context.Context, problem string, maxSteps int, hint string) (Payload, error) {
	if maxSteps <= 0 {
		maxSteps = 5
	}
	return c.post(ctx, "/api/think", map[string]any{"problem": problem, "max_steps": maxSteps, "context": hint})
}

func (c ThinkingClient) Analyze(ctx context.Context, question, hint string) (Payload, error) {
	return c.post(ctx, "/api/analyze", map[string]any{"question": question, "context": hint, "analysis_type": "comprehensive"})
}

// SearchClient wraps the web search service.
type SearchClient struct{ *Client }

func (c SearchClient) Search(ctx context.Context, query string, maxResults int, safe bool) (Payload, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	return c.get(ctx, "/api/search", url.Values{
		"q":           {query},
		"max_results": {strconv.Itoa(maxResults)},
		"safe_search": {strconv.FormatBool(safe)},
	})
}

func (c SearchClient) InstantAnswer(ctx context.Context, query string) (Payload, error) {
	return c.get(ctx, "/api/instant", url.Values{"q": {query}})
}

// MemoryClient is a remote key/value memory.
type MemoryClient struct{ *Client }

func (c MemoryClient) Store(ctx context.Context, key, value string) (Payload, error) {
	return c.post(ctx, "/api/memory", map[string]any{"key": key, "value": value})
}

func (c MemoryClient) Get(ctx context.Context, key string) (Payload, error) {
	return c.get(ctx, "/api/memory/"+url.PathEscape(key), nil)
}

func (c MemoryClient) Search(ctx context.Context, query string) (Payload, error) {
	return c.get(ctx, "/api/memory/search", url.Values{"q": {query}})
}

// DesktopCommanderClient runs commands on a remote desktop host.
type DesktopCommanderClient struct{ *Client }

func (c DesktopCommanderClient) ExecuteCommand(ctx context.Context, command string) (Payload, error) {
	return c.post(ctx, "/api/command", map[string]any{"command": command})
}

func (c DesktopCommanderClient) ListProcesses(ctx context.Context) (Payload, error) {
	return c.get(ctx, "/api/processes", nil)
}

func (c DesktopCommanderClient) SystemInfo(ctx context.Context) (Payload, error) {
	return c.get(ctx, "/api/system", nil)
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}
