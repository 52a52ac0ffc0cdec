package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatbot/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound = errors.New("not found")
	// ErrTerminal is returned when an action already reached completed or failed.
	ErrTerminal = errors.New("action already in terminal state")
)

// timeLayout is fixed width so stored timestamps compare lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Timestamp formats t the way every table stores it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

const todoColumns = `id,title,COALESCE(description,'') AS description,completed,priority,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (domain.TodoItem, error) {
	var t domain.TodoItem
	var completed int
	var priority string
	err := row.Scan(&t.ID, &t.Title, &t.Description, &completed, &priority, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	t.Completed = completed != 0
	t.Priority = domain.Priority(priority)
	return t, err
}

// InsertTodo stores a new todo; created and updated timestamps are both set to createdAt.
func (r Repo) InsertTodo(ctx context.Context, t domain.TodoItem) (domain.TodoItem, error) {
	if strings.TrimSpace(t.Title) == "" {
		return domain.TodoItem{}, errors.New("title is required")
	}
	if t.Priority == "" {
		t.Priority = domain.PriorityMedium
	}
	if !t.Priority.Valid() {
		return domain.TodoItem{}, fmt.Errorf("invalid priority %q", t.Priority)
	}
	t.UpdatedAt = t.CreatedAt
	res, err := r.DB.ExecContext(ctx, `INSERT INTO todos(title,description,completed,priority,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		t.Title, nullable(t.Description), boolInt(t.Completed), string(t.Priority), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return domain.TodoItem{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.TodoItem{}, err
	}
	t.ID = id
	return t, nil
}

func (r Repo) GetTodo(ctx context.Context, id int64) (domain.TodoItem, error) {
	return scanTodo(r.DB.QueryRowContext(ctx, `SELECT `+todoColumns+` FROM todos WHERE id=?`, id))
}

// ListTodos returns every todo, newest first.
func (r Repo) ListTodos(ctx context.Context) ([]domain.TodoItem, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+todoColumns+` FROM todos ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.TodoItem{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// TodoUpdate is one typed field change. Build values with MarkCompleted,
// Rename, SetDescription or SetPriority.
type TodoUpdate struct {
	column string
	value  any
	check  func() error
}

func MarkCompleted(done bool) TodoUpdate {
	return TodoUpdate{column: "completed", value: boolInt(done)}
}

func Rename(title string) TodoUpdate {
	return TodoUpdate{column: "title", value: title, check: func() error {
		if strings.TrimSpace(title) == "" {
			return errors.New("title is required")
		}
		return nil
	}}
}

func SetDescription(desc string) TodoUpdate {
	return TodoUpdate{column: "description", value: nullable(desc)}
}

func SetPriority(p domain.Priority) TodoUpdate {
	return TodoUpdate{column: "priority", value: string(p), check: func() error {
		if !p.Valid() {
			return fmt.Errorf("invalid priority %q", p)
		}
		return nil
	}}
}

// UpdateTodo applies updates and refreshes updated_at, never moving it before created_at.
func (r Repo) UpdateTodo(ctx context.Context, id int64, now string, updates ...TodoUpdate) error {
	fields := make([]string, 0, len(updates)+1)
	args := make([]any, 0, len(updates)+2)
	for _, u := range updates {
		if u.column == "" {
			continue
		}
		if u.check != nil {
			if err := u.check(); err != nil {
				return err
			}
		}
		fields = append(fields, u.column+"=?")
		args = append(args, u.value)
	}
	fields = append(fields, "updated_at=max(?,created_at)")
	args = append(args, now, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE todos SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteTodo(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM todos WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
