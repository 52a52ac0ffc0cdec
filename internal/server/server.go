package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"

	"chatbot/internal/desktop"
	"chatbot/internal/domain"
	"chatbot/internal/engine"
	"chatbot/internal/remote"
	"chatbot/internal/repo"
	"chatbot/internal/runner"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   *engine.Engine
	Remote   *remote.Facade
	Monitor  *remote.Monitor
	Desktop  *desktop.Controller
	BasePath string
	Log      zerolog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"todo not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"id\":7}"`
}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the chat API, the websocket chat
// endpoint and Prometheus metrics.
func New(cfg Config) (http.Handler, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine is required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	hcfg := huma.DefaultConfig("Chatbot API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerStatus(group, cfg)
	registerChat(group, cfg.Engine)
	registerTodos(group, cfg.Engine)
	registerActions(group, cfg.Engine)
	registerDesktop(group, cfg)
	registerServices(group, cfg)
	registerPassthrough(group, cfg.Remote)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/ws/chat", newChatHub(cfg.Engine, cfg.Log).serve)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	if errors.Is(err, runner.ErrStopped) {
		return newAPIError(http.StatusServiceUnavailable, "", err.Error(), nil)
	}
	var re *remote.Error
	if errors.As(err, &re) {
		return newAPIError(http.StatusBadGateway, "remote_error", err.Error(), map[string]any{"service": re.Service, "status": re.StatusCode})
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusServiceUnavailable:
		return "unavailable"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		spec []byte
	)
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			spec, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Chatbot API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerStatus(api huma.API, cfg Config) {
	e := cfg.Engine
	huma.Register(api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Assistant status",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]any `json:"body"`
	}, error) {
		messages, err := e.Repo.CountMessages(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		todos, err := e.ListTodos(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		body := map[string]any{
			"status":   "running",
			"messages": messages,
			"todos":    len(todos),
			"web_port": e.Config.Server.WebPort,
		}
		if cfg.Desktop != nil {
			body["vnc_port"] = cfg.Desktop.VNCPort()
		}
		if cfg.Monitor != nil {
			body["services"] = mapServices(cfg.Monitor.Snapshot())
		}
		return &struct {
			Body map[string]any `json:"body"`
		}{Body: body}, nil
	})
}

func registerChat(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "submit-message",
		Method:      http.MethodPost,
		Path:        "/chat",
		Summary:     "Submit a chat message",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Format string `query:"format" enum:"text,html" default:"text"`
		Body   ChatRequest
	}) (*struct {
		Body ChatResponse `json:"body"`
	}, error) {
		reply := e.Submit(ctx, input.Body.Message)
		resp := ChatResponse{Response: reply.Text, Intent: reply.Intent, Action: reply.Action, RequestID: reply.RequestID}
		if input.Format == "html" {
			var buf bytes.Buffer
			if err := goldmark.Convert([]byte(reply.Text), &buf); err != nil {
				return nil, handleError(fmt.Errorf("render reply: %w", err))
			}
			resp.HTML = buf.String()
		}
		return &struct {
			Body ChatResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "chat-history",
		Method:      http.MethodGet,
		Path:        "/chat/history",
		Summary:     "Recent conversation, oldest first",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"20"`
	}) (*struct {
		Body []MessageResponse `json:"body"`
	}, error) {
		msgs, err := e.Conversation(ctx, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []MessageResponse `json:"body"`
		}{Body: mapMessages(msgs)}, nil
	})
}

type todoPath struct {
	ID int64 `path:"id"`
}

func registerTodos(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-todos",
		Method:      http.MethodGet,
		Path:        "/todos",
		Summary:     "List todos, newest first",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []TodoResponse `json:"body"`
	}, error) {
		todos, err := e.ListTodos(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TodoResponse `json:"body"`
		}{Body: mapTodos(todos)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-todo",
		Method:        http.MethodPost,
		Path:          "/todos",
		Summary:       "Create a todo",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateTodoRequest
	}) (*struct {
		Body TodoResponse `json:"body"`
	}, error) {
		t, err := e.CreateTodo(ctx, engine.TodoCreateOptions{
			Title:       input.Body.Title,
			Description: strPtrValue(input.Body.Description),
			Priority:    domain.Priority(input.Body.Priority),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TodoResponse `json:"body"`
		}{Body: todoResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-todo",
		Method:      http.MethodGet,
		Path:        "/todos/{id}",
		Summary:     "Get a todo",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *todoPath) (*struct {
		Body TodoResponse `json:"body"`
	}, error) {
		t, err := e.GetTodo(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TodoResponse `json:"body"`
		}{Body: todoResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-todo",
		Method:      http.MethodPut,
		Path:        "/todos/{id}",
		Summary:     "Update a todo",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body UpdateTodoRequest
	}) (*struct {
		Body TodoResponse `json:"body"`
	}, error) {
		var updates []repo.TodoUpdate
		if input.Body.Title != nil {
			updates = append(updates, repo.Rename(*input.Body.Title))
		}
		if input.Body.Description != nil {
			updates = append(updates, repo.SetDescription(*input.Body.Description))
		}
		if input.Body.Completed != nil {
			updates = append(updates, repo.MarkCompleted(*input.Body.Completed))
		}
		if input.Body.Priority != nil {
			updates = append(updates, repo.SetPriority(domain.Priority(*input.Body.Priority)))
		}
		t, err := e.UpdateTodo(ctx, input.ID, updates...)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TodoResponse `json:"body"`
		}{Body: todoResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-todo",
		Method:      http.MethodDelete,
		Path:        "/todos/{id}",
		Summary:     "Delete a todo",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *todoPath) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		if _, err := e.DeleteTodo(ctx, input.ID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, newAPIError(http.StatusNotFound, "not_found", "Todo not found", map[string]any{"id": input.ID})
			}
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"message": "Todo deleted successfully"}}, nil
	})
}

func registerActions(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-actions",
		Method:      http.MethodGet,
		Path:        "/agent/actions",
		Summary:     "Recent background actions, newest first",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"10"`
	}) (*struct {
		Body []ActionResponse `json:"body"`
	}, error) {
		items, err := e.ListActions(ctx, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ActionResponse `json:"body"`
		}{Body: mapActions(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-action",
		Method:      http.MethodGet,
		Path:        "/agent/actions/{id}",
		Summary:     "Get a background action",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body ActionResponse `json:"body"`
	}, error) {
		a, err := e.GetAction(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ActionResponse `json:"body"`
		}{Body: actionResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "dispatch-action",
		Method:        http.MethodPost,
		Path:          "/agent/actions",
		Summary:       "Dispatch a background action",
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{http.StatusBadRequest, http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *struct {
		Body CreateActionRequest
	}) (*struct {
		Body ActionResponse `json:"body"`
	}, error) {
		desc := input.Body.Description
		if desc == "" {
			desc = input.Body.ActionType
		}
		a, err := e.DispatchAction(ctx, runner.Request{
			Kind:        domain.ActionKind(input.Body.ActionType),
			Description: desc,
			Params:      input.Body.Parameters,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ActionResponse `json:"body"`
		}{Body: actionResponse(a)}, nil
	})
}

func registerDesktop(api huma.API, cfg Config) {
	if cfg.Desktop == nil {
		return
	}
	huma.Register(api, huma.Operation{
		OperationID: "desktop-status",
		Method:      http.MethodGet,
		Path:        "/xfce/status",
		Summary:     "Desktop session status",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body desktop.Status `json:"body"`
	}, error) {
		return &struct {
			Body desktop.Status `json:"body"`
		}{Body: cfg.Desktop.Status()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "desktop-action",
		Method:        http.MethodPost,
		Path:          "/xfce/action",
		Summary:       "Queue a simulated desktop action",
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body DesktopActionRequest
	}) (*struct {
		Body map[string]any `json:"body"`
	}, error) {
		params := map[string]string{}
		for k, v := range input.Body.Params {
			params[k] = v
		}
		params["action"] = input.Body.Action
		a, err := cfg.Engine.DispatchAction(ctx, runner.Request{
			Kind:        domain.ActionDesktop,
			Description: "XFCE: " + input.Body.Action,
			Params:      params,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]any `json:"body"`
		}{Body: map[string]any{"action_id": a.ID, "message": "Action started"}}, nil
	})
}

func registerServices(api huma.API, cfg Config) {
	f := cfg.Remote
	if f == nil {
		return
	}
	huma.Register(api, huma.Operation{
		OperationID: "list-services",
		Method:      http.MethodGet,
		Path:        "/mcp/services",
		Summary:     "Remote service health",
	}, func(ctx context.Context, input *struct {
		Refresh bool `query:"refresh"`
	}) (*struct {
		Body []ServiceStatusResponse `json:"body"`
	}, error) {
		var statuses []remote.ServiceStatus
		switch {
		case cfg.Monitor == nil:
			statuses = f.CheckAll(ctx, 2*time.Second)
		case input.Refresh:
			statuses = cfg.Monitor.Refresh(ctx)
		default:
			statuses = cfg.Monitor.Snapshot()
		}
		return &struct {
			Body []ServiceStatusResponse `json:"body"`
		}{Body: mapServices(statuses)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remote-time",
		Method:      http.MethodGet,
		Path:        "/mcp/time",
		Summary:     "Current time from the time service",
	}, func(ctx context.Context, input *struct {
		Timezone string `query:"timezone" default:"UTC"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"timezone": input.Timezone, "time": f.CurrentTime(ctx, input.Timezone)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remote-think",
		Method:      http.MethodPost,
		Path:        "/mcp/think",
		Summary:     "Step-by-step analysis of a problem",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body ThinkRequest
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"problem": input.Body.Problem, "analysis": f.ThinkAbout(ctx, input.Body.Problem)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remote-search",
		Method:      http.MethodPost,
		Path:        "/mcp/search",
		Summary:     "Web search",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body SearchRequest
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"query": input.Body.Query, "results": f.SearchWeb(ctx, input.Body.Query)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remote-screenshot",
		Method:      http.MethodPost,
		Path:        "/mcp/screenshot",
		Summary:     "Screenshot a web page",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body ScreenshotRequest
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"url": input.Body.URL, "screenshot": f.WebScreenshot(ctx, input.Body.URL)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remote-instant",
		Method:      http.MethodGet,
		Path:        "/mcp/instant/{query}",
		Summary:     "Instant answer",
	}, func(ctx context.Context, input *struct {
		Query string `path:"query"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"query": input.Query, "answer": f.InstantAnswer(ctx, input.Query)}}, nil
	})
}

func registerEvents(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.LatestEvents(ctx, limit+1, cursorID, input.Type, input.EntityKind)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			items = items[:limit]
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}

func strPtrValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
