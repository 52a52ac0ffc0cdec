package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Writer appends activity rows for todo and action lifecycle changes.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

const (
	TodoCreated    = "todo.created"
	TodoUpdated    = "todo.updated"
	TodoDeleted    = "todo.deleted"
	ActionStarted  = "action.started"
	ActionFinished = "action.finished"
)

// Append writes one event. When ex is nil the writer's DB is used.
func (w Writer) Append(ctx context.Context, ex Execer, evtType, entityKind string, entityID int64, payload EventPayload) error {
	if ex == nil {
		ex = w.DB
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = ex.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,payload_json) VALUES (?,?,?,?,?)`,
		now().UTC().Format(time.RFC3339), evtType, entityKind, nullableID(entityID), string(data))
	return err
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
