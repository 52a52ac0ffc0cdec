package server

import (
	"chatbot/internal/domain"
	"chatbot/internal/remote"
)

// Request payloads

type ChatRequest struct {
	Message string `json:"message" minLength:"1"`
}

type CreateTodoRequest struct {
	Title       string  `json:"title" minLength:"1"`
	Description *string `json:"description,omitempty"`
	Priority    string  `json:"priority,omitempty" enum:"low,medium,high"`
}

// UpdateTodoRequest carries only the fields that may change.
type UpdateTodoRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
	Priority    *string `json:"priority,omitempty" enum:"low,medium,high"`
}

type CreateActionRequest struct {
	ActionType  string            `json:"action_type" minLength:"1" doc:"command, file_operation, web_search or desktop_action; other types complete with an explanatory result"`
	Description string            `json:"description,omitempty"`
	Parameters  map[string]string `json:"parameters,omitempty"`
}

type DesktopActionRequest struct {
	Action string            `json:"action" minLength:"1"`
	Params map[string]string `json:"params,omitempty"`
}

type ThinkRequest struct {
	Problem  string `json:"problem" minLength:"1"`
	MaxSteps int    `json:"max_steps,omitempty"`
}

type SearchRequest struct {
	Query      string `json:"query" minLength:"1"`
	MaxResults int    `json:"max_results,omitempty"`
}

type ScreenshotRequest struct {
	URL string `json:"url" minLength:"1"`
}

type BrowseRequest struct {
	URL       string `json:"url" minLength:"1"`
	Selector  string `json:"selector,omitempty"`
	TimeoutMS int    `json:"timeout_ms,omitempty" minimum:"0"`
	Browser   string `json:"browser,omitempty" enum:"playwright,puppeteer"`
}

type AnalyzeRequest struct {
	Question string `json:"question" minLength:"1"`
	Context  string `json:"context,omitempty"`
}

type MemoryStoreRequest struct {
	Key   string `json:"key" minLength:"1"`
	Value string `json:"value"`
}

type RemoteCommandRequest struct {
	Command string `json:"command" minLength:"1"`
}

// Response payloads

type ChatResponse struct {
	Response  string `json:"response"`
	HTML      string `json:"html,omitempty"`
	Intent    string `json:"intent"`
	Action    string `json:"action"`
	RequestID string `json:"request_id"`
}

type TodoResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Completed   bool   `json:"completed"`
	Priority    string `json:"priority" enum:"low,medium,high"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

type MessageResponse struct {
	ID        int64          `json:"id"`
	Role      string         `json:"role" enum:"user,assistant,system"`
	Content   string         `json:"content"`
	Timestamp string         `json:"timestamp" format:"date-time"`
	Metadata  map[string]any `json:"metadata"`
}

type ActionResponse struct {
	ID          int64  `json:"id"`
	ActionType  string `json:"action_type"`
	Description string `json:"description"`
	Status      string `json:"status" enum:"pending,running,completed,failed"`
	Result      string `json:"result"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   int64          `json:"entity_id,omitempty"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type ServiceStatusResponse struct {
	Name      string `json:"name"`
	Port      int    `json:"port"`
	URL       string `json:"url"`
	Status    string `json:"status"`
	CheckedAt string `json:"checked_at,omitempty"`
}

// Conversion helpers

func todoResponse(t domain.TodoItem) TodoResponse {
	return TodoResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		Priority:    string(t.Priority),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func mapTodos(items []domain.TodoItem) []TodoResponse {
	res := make([]TodoResponse, 0, len(items))
	for _, t := range items {
		res = append(res, todoResponse(t))
	}
	return res
}

func messageResponse(m domain.ChatMessage) MessageResponse {
	meta := m.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return MessageResponse{ID: m.ID, Role: string(m.Role), Content: m.Content, Timestamp: m.Timestamp, Metadata: meta}
}

func mapMessages(items []domain.ChatMessage) []MessageResponse {
	res := make([]MessageResponse, 0, len(items))
	for _, m := range items {
		res = append(res, messageResponse(m))
	}
	return res
}

func actionResponse(a domain.AgentAction) ActionResponse {
	return ActionResponse{
		ID:          a.ID,
		ActionType:  string(a.Kind),
		Description: a.Description,
		Status:      string(a.Status),
		Result:      a.Result,
		CreatedAt:   a.CreatedAt,
	}
}

func mapActions(items []domain.AgentAction) []ActionResponse {
	res := make([]ActionResponse, 0, len(items))
	for _, a := range items {
		res = append(res, actionResponse(a))
	}
	return res
}

func eventResponse(e domain.Event) EventResponse {
	payload := e.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return EventResponse{ID: e.ID, TS: e.TS, Type: e.Type, EntityKind: e.EntityKind, EntityID: e.EntityID, Payload: payload}
}

func mapServices(items []remote.ServiceStatus) []ServiceStatusResponse {
	res := make([]ServiceStatusResponse, 0, len(items))
	for _, s := range items {
		res = append(res, ServiceStatusResponse(s))
	}
	return res
}
