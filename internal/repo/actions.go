package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"chatbot/internal/domain"
)

const actionColumns = `id,action_type,description,status,COALESCE(result,'') AS result,created_at`

func scanAction(row rowScanner) (domain.AgentAction, error) {
	var a domain.AgentAction
	var kind, status string
	err := row.Scan(&a.ID, &kind, &a.Description, &status, &a.Result, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	a.Kind = domain.ActionKind(kind)
	a.Status = domain.ActionStatus(status)
	return a, err
}

// InsertAction records a new action. Status defaults to pending.
func (r Repo) InsertAction(ctx context.Context, a domain.AgentAction) (domain.AgentAction, error) {
	if strings.TrimSpace(string(a.Kind)) == "" {
		return domain.AgentAction{}, errors.New("action type is required")
	}
	if a.Status == "" {
		a.Status = domain.StatusPending
	}
	res, err := r.DB.ExecContext(ctx, `INSERT INTO agent_actions(action_type,description,status,result,created_at) VALUES (?,?,?,?,?)`,
		string(a.Kind), a.Description, string(a.Status), nullable(a.Result), a.CreatedAt)
	if err != nil {
		return domain.AgentAction{}, err
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return domain.AgentAction{}, err
	}
	return a, nil
}

func (r Repo) GetAction(ctx context.Context, id int64) (domain.AgentAction, error) {
	return scanAction(r.DB.QueryRowContext(ctx, `SELECT `+actionColumns+` FROM agent_actions WHERE id=?`, id))
}

// ListActions returns the most recent actions, newest first.
func (r Repo) ListActions(ctx context.Context, limit int) ([]domain.AgentAction, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+actionColumns+` FROM agent_actions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.AgentAction{}
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// FinishAction moves a non-terminal action to a terminal status. It runs at
// most once per action; later calls return ErrTerminal.
func (r Repo) FinishAction(ctx context.Context, id int64, status domain.ActionStatus, result string) error {
	if !status.Terminal() {
		return fmt.Errorf("invalid terminal status %q", status)
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE agent_actions SET status=?, result=? WHERE id=? AND status NOT IN ('completed','failed')`,
		string(status), result, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := r.GetAction(ctx, id); err != nil {
		return err
	}
	return ErrTerminal
}
