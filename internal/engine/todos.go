package engine

import (
	"context"
	"fmt"

	"chatbot/internal/domain"
	"chatbot/internal/events"
	"chatbot/internal/repo"
)

type TodoCreateOptions struct {
	Title       string
	Description string
	Priority    domain.Priority
}

func (e *Engine) CreateTodo(ctx context.Context, opts TodoCreateOptions) (domain.TodoItem, error) {
	t, err := e.Repo.InsertTodo(ctx, domain.TodoItem{
		Title:       opts.Title,
		Description: opts.Description,
		Priority:    opts.Priority,
		CreatedAt:   e.timestamp(),
	})
	if err != nil {
		return domain.TodoItem{}, fmt.Errorf("create todo: %w", err)
	}
	e.event(ctx, events.TodoCreated, t.ID, events.EventPayload{"title": t.Title, "priority": string(t.Priority)})
	return t, nil
}

func (e *Engine) ListTodos(ctx context.Context) ([]domain.TodoItem, error) {
	return e.Repo.ListTodos(ctx)
}

func (e *Engine) GetTodo(ctx context.Context, id int64) (domain.TodoItem, error) {
	return e.Repo.GetTodo(ctx, id)
}

// UpdateTodo applies typed updates and returns the stored result.
func (e *Engine) UpdateTodo(ctx context.Context, id int64, updates ...repo.TodoUpdate) (domain.TodoItem, error) {
	if err := e.Repo.UpdateTodo(ctx, id, e.timestamp(), updates...); err != nil {
		return domain.TodoItem{}, err
	}
	t, err := e.Repo.GetTodo(ctx, id)
	if err != nil {
		return domain.TodoItem{}, err
	}
	e.event(ctx, events.TodoUpdated, t.ID, events.EventPayload{"completed": t.Completed, "priority": string(t.Priority)})
	return t, nil
}

// DeleteTodo removes the todo and returns it as it was.
func (e *Engine) DeleteTodo(ctx context.Context, id int64) (domain.TodoItem, error) {
	t, err := e.Repo.GetTodo(ctx, id)
	if err != nil {
		return domain.TodoItem{}, err
	}
	if err := e.Repo.DeleteTodo(ctx, id); err != nil {
		return domain.TodoItem{}, err
	}
	e.event(ctx, events.TodoDeleted, id, events.EventPayload{"title": t.Title})
	return t, nil
}

func (e *Engine) LatestEvents(ctx context.Context, limit int, cursor int64, evtType, entityKind string) ([]domain.Event, error) {
	return e.Repo.LatestEvents(ctx, limit, cursor, evtType, entityKind)
}

func (e *Engine) event(ctx context.Context, typ string, id int64, payload events.EventPayload) {
	if err := e.Events.Append(ctx, nil, typ, "todo", id, payload); err != nil {
		e.log.Warn().Err(err).Str("type", typ).Msg("append event")
	}
}
