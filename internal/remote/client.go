package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chatbot/internal/config"
	"chatbot/internal/metrics"
)

// Payload is the decoded JSON object returned by a service.
type Payload map[string]any

// Error is the uniform failure value for every remote call.
// StatusCode is zero for transport failures.
type Error struct {
	Service    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

func (e *Error) Unwrap() error { return e.Err }

// Marker renders err in the {"error": "..."} form used on the wire.
func Marker(err error) Payload {
	return Payload{"error": err.Error()}
}

// Client issues one HTTP request per operation against a service base URL.
type Client struct {
	Name       string
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(name string, svc config.Service) *Client {
	timeout := svc.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		Name:       name,
		BaseURL:    svc.BaseURL,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Health probes GET /health.
func (c *Client) Health(ctx context.Context) (Payload, error) {
	return c.get(ctx, "/health", nil)
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (Payload, error) {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string, body any) (Payload, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (Payload, error) {
	start := time.Now()
	out, err := c.roundTrip(ctx, method, path, body)
	metrics.RemoteDuration.WithLabelValues(c.Name).Observe(time.Since(start).Seconds())
	outcome := "ok"
	var re *Error
	if errors.As(err, &re) {
		outcome = "transport_error"
		if re.StatusCode != 0 {
			outcome = "http_error"
		}
	}
	metrics.RemoteRequests.WithLabelValues(c.Name, outcome).Inc()
	return out, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any) (Payload, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, c.fail(0, err)
		}
	}
	endpoint := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, &buf)
	if err != nil {
		return nil, c.fail(0, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, c.fail(0, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, c.fail(resp.StatusCode, nil)
	}
	out := Payload{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return nil, c.fail(0, fmt.Errorf("decode response: %w", err))
	}
	return out, nil
}

func (c *Client) fail(status int, err error) *Error {
	return &Error{Service: c.Name, StatusCode: status, Err: err}
}

func (p Payload) str(key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (p Payload) list(key string) []any {
	items, _ := p[key].([]any)
	return items
}
