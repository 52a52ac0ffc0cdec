package chatbotsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal chatbot HTTP API client.
type Client struct {
	BaseURL    string
	BasePath   string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults. Remote service calls made by the
// server can take a while, so the timeout is generous.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/api",
		Timeout:  60 * time.Second,
	}
}

// Reply is the assistant's answer to one message.
type Reply struct {
	Response  string `json:"response"`
	HTML      string `json:"html,omitempty"`
	Intent    string `json:"intent"`
	Action    string `json:"action"`
	RequestID string `json:"request_id"`
}

type Todo struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Completed   bool   `json:"completed"`
	Priority    string `json:"priority"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// TodoUpdate sends only the non-nil fields.
type TodoUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
	Priority    *string `json:"priority,omitempty"`
}

type Action struct {
	ID          int64  `json:"id"`
	ActionType  string `json:"action_type"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Result      string `json:"result"`
	CreatedAt   string `json:"created_at"`
}

type Message struct {
	ID        int64          `json:"id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp string         `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

type ServiceStatus struct {
	Name      string `json:"name"`
	Port      int    `json:"port"`
	URL       string `json:"url"`
	Status    string `json:"status"`
	CheckedAt string `json:"checked_at,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   int64          `json:"entity_id"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Send submits a chat message.
func (c *Client) Send(ctx context.Context, message string) (Reply, error) {
	var resp Reply
	err := c.do(ctx, http.MethodPost, "chat", map[string]string{"message": message}, &resp)
	return resp, err
}

// History returns the last limit messages, oldest first.
func (c *Client) History(ctx context.Context, limit int) ([]Message, error) {
	var resp []Message
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("chat/history?limit=%d", limit), nil, &resp)
	return resp, err
}

func (c *Client) ListTodos(ctx context.Context) ([]Todo, error) {
	var resp []Todo
	err := c.do(ctx, http.MethodGet, "todos", nil, &resp)
	return resp, err
}

func (c *Client) CreateTodo(ctx context.Context, title, priority string) (Todo, error) {
	body := map[string]any{"title": title}
	if priority != "" {
		body["priority"] = priority
	}
	var resp Todo
	err := c.do(ctx, http.MethodPost, "todos", body, &resp)
	return resp, err
}

func (c *Client) UpdateTodo(ctx context.Context, id int64, update TodoUpdate) (Todo, error) {
	var resp Todo
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("todos/%d", id), update, &resp)
	return resp, err
}

func (c *Client) DeleteTodo(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("todos/%d", id), nil, nil)
}

func (c *Client) ListActions(ctx context.Context, limit int) ([]Action, error) {
	var resp []Action
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("agent/actions?limit=%d", limit), nil, &resp)
	return resp, err
}

func (c *Client) GetAction(ctx context.Context, id int64) (Action, error) {
	var resp Action
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("agent/actions/%d", id), nil, &resp)
	return resp, err
}

// Services returns remote service health; refresh forces a probe.
func (c *Client) Services(ctx context.Context, refresh bool) ([]ServiceStatus, error) {
	var resp []ServiceStatus
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("mcp/services?refresh=%t", refresh), nil, &resp)
	return resp, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
