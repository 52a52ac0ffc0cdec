// Package runner executes agent actions in the background. Actions are
// recorded as running before Dispatch returns, queued on a bounded channel,
// and finished exactly once by a worker pool.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"chatbot/internal/domain"
	"chatbot/internal/events"
	"chatbot/internal/format"
	"chatbot/internal/metrics"
	"chatbot/internal/repo"
)

var ErrStopped = errors.New("runner stopped")

// Store is the durable mirror of action state.
type Store interface {
	InsertAction(ctx context.Context, a domain.AgentAction) (domain.AgentAction, error)
	GetAction(ctx context.Context, id int64) (domain.AgentAction, error)
	FinishAction(ctx context.Context, id int64, status domain.ActionStatus, result string) error
}

// Searcher backs live web-search actions.
type Searcher interface {
	SearchHits(ctx context.Context, query string, max int) ([]format.SearchHit, error)
}

// Desktop performs simulated desktop actions.
type Desktop interface {
	Perform(action string) string
}

// Request describes one unit of background work. Params keys per kind:
// command: command; file_operation: operation, file_path, content;
// web_search: query; desktop_action: action.
type Request struct {
	Kind        domain.ActionKind
	Description string
	Params      map[string]string
}

type Options struct {
	Workers     int
	QueueSize   int
	SearchDelay time.Duration
	LiveSearch  bool
	Shell       Shell
	Fs          afero.Fs
	Searcher    Searcher
	Desktop     Desktop
	Events      *events.Writer
	Log         zerolog.Logger
	Now         func() time.Time
}

type job struct {
	action domain.AgentAction
	params map[string]string
}

type Runner struct {
	store Store
	opts  Options

	queue chan job
	group *errgroup.Group

	mu      sync.Mutex
	stopped bool
	started bool
	pending map[int64]chan struct{}
}

func New(store Store, opts Options) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 16
	}
	if opts.Shell == nil {
		opts.Shell = ExecShell{Path: "/bin/sh"}
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{
		store:   store,
		opts:    opts,
		queue:   make(chan job, opts.QueueSize),
		pending: map[int64]chan struct{}{},
	}
}

// Start launches the worker pool. Cancelling ctx aborts running commands.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.group = &errgroup.Group{}
	for i := 0; i < r.opts.Workers; i++ {
		r.group.Go(func() error {
			for j := range r.queue {
				r.run(ctx, j)
			}
			return nil
		})
	}
}

// Stop refuses new work and waits for queued actions to finish.
func (r *Runner) Stop() error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	close(r.queue)
	g := r.group
	r.mu.Unlock()
	if g == nil {
		return nil
	}
	return g.Wait()
}

// Dispatch records the action as running and queues it. It never blocks on
// execution. An action that cannot be queued is finished as failed.
func (r *Runner) Dispatch(ctx context.Context, req Request) (domain.AgentAction, error) {
	if strings.TrimSpace(string(req.Kind)) == "" {
		return domain.AgentAction{}, errors.New("action type is required")
	}
	a, err := r.store.InsertAction(ctx, domain.AgentAction{
		Kind:        req.Kind,
		Description: req.Description,
		Status:      domain.StatusRunning,
		CreatedAt:   repo.Timestamp(r.opts.Now()),
	})
	if err != nil {
		return domain.AgentAction{}, fmt.Errorf("record action: %w", err)
	}
	r.event(ctx, events.ActionStarted, a.ID, events.EventPayload{"kind": string(a.Kind), "description": a.Description})
	metrics.ActionsInFlight.Inc()

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return r.reject(a, ErrStopped.Error()), nil
	}
	done := make(chan struct{})
	r.pending[a.ID] = done
	select {
	case r.queue <- job{action: a, params: req.Params}:
		r.mu.Unlock()
	default:
		r.mu.Unlock()
		r.opts.Log.Warn().Int64("action_id", a.ID).Msg("action queue full")
		return r.reject(a, "action queue full"), nil
	}
	return a, nil
}

func (r *Runner) reject(a domain.AgentAction, reason string) domain.AgentAction {
	r.finish(a, domain.StatusFailed, reason)
	a.Status = domain.StatusFailed
	a.Result = reason
	return a
}

// Await blocks until the action reaches a terminal status or ctx ends,
// then returns its stored state.
func (r *Runner) Await(ctx context.Context, id int64) (domain.AgentAction, error) {
	r.mu.Lock()
	done, ok := r.pending[id]
	r.mu.Unlock()
	if ok {
		select {
		case <-done:
		case <-ctx.Done():
			return domain.AgentAction{}, ctx.Err()
		}
	}
	return r.store.GetAction(ctx, id)
}

// Pending reports how many dispatched actions have not finished.
func (r *Runner) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Runner) run(ctx context.Context, j job) {
	status, result := r.execute(ctx, j)
	r.finish(j.action, status, result)
}

// execute converts every failure, including panics, into a failed result.
func (r *Runner) execute(ctx context.Context, j job) (status domain.ActionStatus, result string) {
	defer func() {
		if p := recover(); p != nil {
			status, result = domain.StatusFailed, fmt.Sprint(p)
		}
	}()
	out, err := r.body(ctx, j.action.Kind, j.params)
	if err != nil {
		return domain.StatusFailed, err.Error()
	}
	return domain.StatusCompleted, out
}

func (r *Runner) finish(a domain.AgentAction, status domain.ActionStatus, result string) {
	ctx := context.Background()
	log := r.opts.Log.With().Int64("action_id", a.ID).Str("kind", string(a.Kind)).Logger()
	if err := r.store.FinishAction(ctx, a.ID, status, result); err != nil {
		log.Error().Err(err).Msg("record action result")
	} else if status == domain.StatusFailed {
		log.Warn().Str("result", result).Msg("action failed")
	} else {
		log.Info().Msg("action completed")
	}
	r.event(ctx, events.ActionFinished, a.ID, events.EventPayload{"status": string(status)})
	kind := string(a.Kind)
	if !a.Kind.Valid() {
		kind = "unknown"
	}
	metrics.ActionsTotal.WithLabelValues(kind, string(status)).Inc()
	metrics.ActionsInFlight.Dec()

	r.mu.Lock()
	if done, ok := r.pending[a.ID]; ok {
		close(done)
		delete(r.pending, a.ID)
	}
	r.mu.Unlock()
}

func (r *Runner) event(ctx context.Context, typ string, id int64, payload events.EventPayload) {
	if r.opts.Events == nil {
		return
	}
	if err := r.opts.Events.Append(ctx, nil, typ, "action", id, payload); err != nil {
		r.opts.Log.Warn().Err(err).Str("type", typ).Msg("append event")
	}
}
