package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"chatbot/internal/domain"
)

func (r Repo) InsertMessage(ctx context.Context, m domain.ChatMessage) (domain.ChatMessage, error) {
	if !m.Role.Valid() {
		return domain.ChatMessage{}, fmt.Errorf("invalid role %q", m.Role)
	}
	if m.Metadata == nil {
		m.Metadata = map[string]any{}
	}
	meta, err := json.Marshal(m.Metadata)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("marshal metadata: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, `INSERT INTO chat_messages(role,content,timestamp,metadata_json) VALUES (?,?,?,?)`,
		string(m.Role), m.Content, m.Timestamp, string(meta))
	if err != nil {
		return domain.ChatMessage{}, err
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return domain.ChatMessage{}, err
	}
	return m, nil
}

// RecentMessages returns the last limit messages in chronological order.
func (r Repo) RecentMessages(ctx context.Context, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,role,content,timestamp,metadata_json FROM (
		SELECT id,role,content,timestamp,metadata_json FROM chat_messages ORDER BY id DESC LIMIT ?
	) ORDER BY id ASC`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.ChatMessage{}
	for rows.Next() {
		var m domain.ChatMessage
		var role, meta string
		if err := rows.Scan(&m.ID, &role, &m.Content, &m.Timestamp, &meta); err != nil {
			return nil, err
		}
		m.Role = domain.Role(role)
		m.Metadata = map[string]any{}
		if meta != "" {
			if err := json.Unmarshal([]byte(meta), &m.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for message %d: %w", m.ID, err)
			}
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) CountMessages(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_messages`).Scan(&n)
	return n, err
}
