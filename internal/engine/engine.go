// Package engine is the single entry point every transport uses: it owns
// the collaborators, classifies each message and turns the outcome into one
// display string persisted next to the inbound text.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chatbot/internal/config"
	"chatbot/internal/domain"
	"chatbot/internal/events"
	"chatbot/internal/format"
	"chatbot/internal/history"
	"chatbot/internal/intent"
	"chatbot/internal/metrics"
	"chatbot/internal/repo"
	"chatbot/internal/runner"
)

// Remote is the subset of the service façade reachable from chat.
type Remote interface {
	CurrentTime(ctx context.Context, timezone string) string
	ThinkAbout(ctx context.Context, problem string) string
	SearchWeb(ctx context.Context, query string) string
	InstantAnswer(ctx context.Context, query string) string
	WebScreenshot(ctx context.Context, target string) string
}

// Dispatcher queues background actions.
type Dispatcher interface {
	Dispatch(ctx context.Context, req runner.Request) (domain.AgentAction, error)
}

type Desktop interface {
	VNCPort() int
	ScreenshotPath() string
	StartSession(ctx context.Context) error
}

type handlerFunc func(ctx context.Context, res intent.Result) (string, error)

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Config  *config.Config
	Now     func() time.Time
	Runner  Dispatcher
	Remote  Remote
	Desktop Desktop
	History history.Cache

	log      zerolog.Logger
	handlers map[intent.Intent]handlerFunc
	// serializes SubmitMessage so messages persist in arrival order
	mu sync.Mutex
}

type Options struct {
	Runner  Dispatcher
	Remote  Remote
	Desktop Desktop
	History history.Cache
	Log     zerolog.Logger
}

func New(db *sql.DB, cfg *config.Config, opts Options) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.History == nil {
		opts.History = history.NewMemory(cfg.History.Size)
	}
	e := &Engine{
		DB:      db,
		Repo:    repo.Repo{DB: db},
		Events:  events.Writer{DB: db},
		Config:  cfg,
		Now:     time.Now,
		Runner:  opts.Runner,
		Remote:  opts.Remote,
		Desktop: opts.Desktop,
		History: opts.History,
		log:     opts.Log,
	}
	e.handlers = map[intent.Intent]handlerFunc{
		intent.Todo:      e.handleTodo,
		intent.Agent:     e.handleAgent,
		intent.Desktop:   e.handleDesktop,
		intent.WebSearch: e.handleWeb,
		intent.Remote:    e.handleRemote,
		intent.Fallback:  e.handleChat,
	}
	return e
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) timestamp() string {
	return repo.Timestamp(e.now())
}

// Reply is the outcome of one submitted message.
type Reply struct {
	Text      string `json:"response"`
	Intent    string `json:"intent"`
	Action    string `json:"action"`
	RequestID string `json:"request_id"`
}

// SubmitMessage handles one inbound message and always returns a non-empty
// display string. Failures underneath are logged and rendered, never returned.
func (e *Engine) SubmitMessage(ctx context.Context, text string) string {
	return e.Submit(ctx, text).Text
}

// Submit is SubmitMessage with the classification details attached.
func (e *Engine) Submit(ctx context.Context, text string) Reply {
	e.mu.Lock()
	defer e.mu.Unlock()

	reqID := uuid.NewString()
	log := e.log.With().Str("request_id", reqID).Logger()

	if err := e.record(ctx, domain.RoleUser, text, nil); err != nil {
		log.Error().Err(err).Msg("persist user message")
	}

	res := intent.Classify(text)
	log.Debug().Str("intent", string(res.Intent)).Str("action", string(res.Action)).Str("text", text).Msg("message classified")
	metrics.MessagesTotal.WithLabelValues(string(res.Intent)).Inc()

	out := res.Guidance
	if out == "" {
		var err error
		out, err = e.handle(ctx, res)
		if err != nil {
			log.Error().Err(err).Str("intent", string(res.Intent)).Msg("handle message")
			out = format.StorageError(err)
		}
	}
	out = format.NonEmpty(out)

	meta := map[string]any{"intent": string(res.Intent), "action": string(res.Action), "request_id": reqID}
	if err := e.record(ctx, domain.RoleAssistant, out, meta); err != nil {
		log.Error().Err(err).Msg("persist assistant message")
	}
	return Reply{Text: out, Intent: string(res.Intent), Action: string(res.Action), RequestID: reqID}
}

// handle runs the intent's handler, converting panics into errors so no
// failure escapes to the transport.
func (e *Engine) handle(ctx context.Context, res intent.Result) (out string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.New("internal error")
			e.log.Error().Interface("panic", p).Str("intent", string(res.Intent)).Msg("handler panicked")
		}
	}()
	h, ok := e.handlers[res.Intent]
	if !ok {
		return e.handleChat(ctx, res)
	}
	return h(ctx, res)
}

func (e *Engine) record(ctx context.Context, role domain.Role, content string, meta map[string]any) error {
	m, err := e.Repo.InsertMessage(ctx, domain.ChatMessage{
		Role:      role,
		Content:   content,
		Timestamp: e.timestamp(),
		Metadata:  meta,
	})
	if err != nil {
		return err
	}
	if e.History != nil {
		if err := e.History.Append(ctx, m); err != nil {
			e.log.Warn().Err(err).Msg("append history cache")
		}
	}
	return nil
}

// Conversation returns the last limit messages, oldest first. The cache answers
// when it holds enough entries; otherwise the durable log does.
func (e *Engine) Conversation(ctx context.Context, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 20
	}
	if e.History != nil {
		if n, err := e.History.Len(ctx); err == nil && n >= limit {
			if msgs, err := e.History.Recent(ctx, limit); err == nil {
				return msgs, nil
			}
		}
	}
	return e.Repo.RecentMessages(ctx, limit)
}
