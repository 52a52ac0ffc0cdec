package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"chatbot/internal/remote"
)

// payloadOutput carries a raw service payload. Service failures are
// reported in-band as {"error": "..."} with status 200.
type payloadOutput struct {
	Body remote.Payload `json:"body"`
}

func passthrough(p remote.Payload, err error) (*payloadOutput, error) {
	if err != nil {
		return &payloadOutput{Body: remote.Marker(err)}, nil
	}
	if p == nil {
		p = remote.Payload{}
	}
	return &payloadOutput{Body: p}, nil
}

func pickBrowser(f *remote.Facade, name string) remote.BrowserClient {
	if name == "puppeteer" {
		return f.BrowserSecondary
	}
	return f.Browser
}

// registerPassthrough exposes the service operations chat does not route to.
func registerPassthrough(api huma.API, f *remote.Facade) {
	if f == nil {
		return
	}
	huma.Register(api, huma.Operation{
		OperationID: "remote-timezone",
		Method:      http.MethodGet,
		Path:        "/mcp/timezone/{timezone}",
		Summary:     "Timezone details from the time service",
	}, func(ctx context.Context, input *struct {
		Timezone string `path:"timezone"`
	}) (*payloadOutput, error) {
		return passthrough(f.Time.TimezoneInfo(ctx, input.Timezone))
	})

	huma.Register(api, huma.Operation{
		OperationID: "remote-navigate",
		Method:      http.MethodPost,
		Path:        "/mcp/navigate",
		Summary:     "Open a page in a browser service",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body BrowseRequest
	}) (*payloadOutput, error) {
		return passthrough(pickBrowser(f, input.Body.Browser).Navigate(ctx, input.Body.URL, input.Body.TimeoutMS))
	})

	huma.Register(api, huma.Operation{
		OperationID: "remote-extract",
		Method:      http.MethodPost,
		Path:        "/mcp/extract",
		Summary:     "Extract page text through a browser service",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body BrowseRequest
	}) (*payloadOutput, error) {
		return passthrough(pickBrowser(f, input.Body.Browser).ExtractText(ctx, input.Body.URL, input.Body.Selector))
	})

	huma.Register(api, huma.Operation{
		OperationID: "remote-analyze",
		Method:      http.MethodPost,
		Path:        "/mcp/analyze",
		Summary:     "Analyze a question with the thinking service",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body AnalyzeRequest
	}) (*payloadOutput, error) {
		return passthrough(f.Thinking.Analyze(ctx, input.Body.Question, input.Body.Context))
	})

	huma.Register(api, huma.Operation{
		OperationID: "remote-memory-store",
		Method:      http.MethodPost,
		Path:        "/mcp/memory",
		Summary:     "Store a value in the memory service",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body MemoryStoreRequest
	}) (*payloadOutput, error) {
		return passthrough(f.Memory.Store(ctx, input.Body.Key, input.Body.Value))
	})

	huma.Register(api, huma.Operation{
		OperationID: "remote-memory-search",
		Method:      http.MethodGet,
		Path:        "/mcp/memory",
		Summary:     "Search the memory service",
	}, func(ctx context.Context, input *struct {
		Query string `query:"q" minLength:"1" required:"true"`
	}) (*payloadOutput, error) {
		return passthrough(f.Memory.Search(ctx, input.Query))
	})

	huma.Register(api, huma.Operation{
		OperationID: "remote-memory-get",
		Method:      http.MethodGet,
		Path:        "/mcp/memory/{key}",
		Summary:     "Read a value from the memory service",
	}, func(ctx context.Context, input *struct {
		Key string `path:"key"`
	}) (*payloadOutput, error) {
		return passthrough(f.Memory.Get(ctx, input.Key))
	})

	huma.Register(api, huma.Operation{
		OperationID: "remote-command",
		Method:      http.MethodPost,
		Path:        "/mcp/desktop/command",
		Summary:     "Run a command through the desktop commander service",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body RemoteCommandRequest
	}) (*payloadOutput, error) {
		return passthrough(f.DesktopCommander.ExecuteCommand(ctx, input.Body.Command))
	})

	huma.Register(api, huma.Operation{
		OperationID: "remote-processes",
		Method:      http.MethodGet,
		Path:        "/mcp/desktop/processes",
		Summary:     "List processes on the desktop commander host",
	}, func(ctx context.Context, input *struct{}) (*payloadOutput, error) {
		return passthrough(f.DesktopCommander.ListProcesses(ctx))
	})

	huma.Register(api, huma.Operation{
		OperationID: "remote-system",
		Method:      http.MethodGet,
		Path:        "/mcp/desktop/system",
		Summary:     "System information from the desktop commander host",
	}, func(ctx context.Context, input *struct{}) (*payloadOutput, error) {
		return passthrough(f.DesktopCommander.SystemInfo(ctx))
	})
}
