package engine

import (
	"context"
	"errors"
	"fmt"

	"chatbot/internal/domain"
	"chatbot/internal/format"
	"chatbot/internal/intent"
	"chatbot/internal/repo"
	"chatbot/internal/runner"
)

var errNoRemote = errors.New("remote services not configured")

func (e *Engine) handleTodo(ctx context.Context, res intent.Result) (string, error) {
	switch res.Action {
	case intent.TodoAdd:
		t, err := e.CreateTodo(ctx, TodoCreateOptions{Title: res.Params.Title})
		if err != nil {
			return "", err
		}
		return format.TodoCreated(t), nil
	case intent.TodoList:
		todos, err := e.ListTodos(ctx)
		if err != nil {
			return "", err
		}
		return format.TodoList(todos), nil
	case intent.TodoComplete:
		t, err := e.UpdateTodo(ctx, res.Params.ID, repo.MarkCompleted(true))
		if errors.Is(err, repo.ErrNotFound) {
			return format.TodoNotFound(res.Params.ID), nil
		}
		if err != nil {
			return "", err
		}
		return format.TodoCompleted(t), nil
	case intent.TodoDelete:
		t, err := e.DeleteTodo(ctx, res.Params.ID)
		if errors.Is(err, repo.ErrNotFound) {
			return format.TodoNotFound(res.Params.ID), nil
		}
		if err != nil {
			return "", err
		}
		return format.TodoDeleted(t), nil
	}
	return format.TodoHelp, nil
}

func (e *Engine) handleAgent(ctx context.Context, res intent.Result) (string, error) {
	switch res.Action {
	case intent.AgentCommand:
		cmd := res.Params.Command
		a, err := e.DispatchAction(ctx, runner.Request{
			Kind:        domain.ActionCommand,
			Description: "Execute: " + cmd,
			Params:      map[string]string{"command": cmd},
		})
		if err != nil {
			return "", err
		}
		if a.Status == domain.StatusFailed {
			return format.ActionRejected(a, a.Result), nil
		}
		return format.ActionStarted(a), nil
	case intent.AgentFileHelp:
		return format.FileHelp, nil
	}
	return format.AgentHelp, nil
}

func (e *Engine) handleDesktop(ctx context.Context, res intent.Result) (string, error) {
	if e.Desktop == nil {
		return format.DesktopHelp, nil
	}
	switch res.Action {
	case intent.DesktopScreenshot:
		return format.DesktopScreenshot(e.Desktop.ScreenshotPath()), nil
	case intent.DesktopVNC:
		return format.VNCInfo(e.Desktop.VNCPort()), nil
	case intent.DesktopStart:
		if err := e.Desktop.StartSession(ctx); err != nil {
			e.log.Warn().Err(err).Msg("start desktop session")
			return format.SessionStarted(false), nil
		}
		return format.SessionStarted(true), nil
	}
	return format.DesktopHelp, nil
}

func (e *Engine) handleWeb(ctx context.Context, res intent.Result) (string, error) {
	if res.Action != intent.WebQuery {
		return format.WebHelp, nil
	}
	q := res.Params.Query
	a, err := e.DispatchAction(ctx, runner.Request{
		Kind:        domain.ActionWebSearch,
		Description: "Search: " + q,
		Params:      map[string]string{"query": q},
	})
	if err != nil {
		return "", err
	}
	if a.Status == domain.StatusFailed {
		return format.ActionRejected(a, a.Result), nil
	}
	return format.SearchStarted(q, a), nil
}

func (e *Engine) handleRemote(ctx context.Context, res intent.Result) (string, error) {
	if res.Action == intent.RemoteHelp {
		return format.RemoteHelp, nil
	}
	if e.Remote == nil {
		return "", errNoRemote
	}
	p := res.Params
	switch res.Action {
	case intent.RemoteTime:
		return e.Remote.CurrentTime(ctx, p.Timezone), nil
	case intent.RemoteThink:
		return e.Remote.ThinkAbout(ctx, p.Problem), nil
	case intent.RemoteScreenshot:
		return e.Remote.WebScreenshot(ctx, p.URL), nil
	case intent.RemoteInstant:
		return e.Remote.InstantAnswer(ctx, p.Query), nil
	}
	return format.RemoteHelp, nil
}

func (e *Engine) handleChat(_ context.Context, res intent.Result) (string, error) {
	switch res.Action {
	case intent.ChatGreeting:
		return format.Greeting, nil
	case intent.ChatHelp:
		return format.Help, nil
	case intent.ChatStatus:
		vnc := 0
		if e.Desktop != nil {
			vnc = e.Desktop.VNCPort()
		}
		return format.Status(vnc, e.Config.Server.WebPort, e.Config.Server.Addr), nil
	}
	return format.Acknowledge(res.Params.Text), nil
}

// DispatchAction hands a request to the background runner.
func (e *Engine) DispatchAction(ctx context.Context, req runner.Request) (domain.AgentAction, error) {
	if e.Runner == nil {
		return domain.AgentAction{}, fmt.Errorf("action runner not configured")
	}
	return e.Runner.Dispatch(ctx, req)
}

func (e *Engine) GetAction(ctx context.Context, id int64) (domain.AgentAction, error) {
	return e.Repo.GetAction(ctx, id)
}

func (e *Engine) ListActions(ctx context.Context, limit int) ([]domain.AgentAction, error) {
	return e.Repo.ListActions(ctx, limit)
}
