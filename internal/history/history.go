// Package history keeps a bounded cache of the most recent chat messages.
// The durable message log remains the source of truth.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"chatbot/internal/domain"
)

// DefaultSize is the number of messages kept when none is configured.
const DefaultSize = 50

type Cache interface {
	Append(ctx context.Context, m domain.ChatMessage) error
	// Recent returns up to n messages, oldest first.
	Recent(ctx context.Context, n int) ([]domain.ChatMessage, error)
	Len(ctx context.Context) (int, error)
	Close() error
}

// Memory is an in-process ring.
type Memory struct {
	mu    sync.Mutex
	size  int
	items []domain.ChatMessage
}

func NewMemory(size int) *Memory {
	if size <= 0 {
		size = DefaultSize
	}
	return &Memory{size: size}
}

func (m *Memory) Append(_ context.Context, msg domain.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, msg)
	if over := len(m.items) - m.size; over > 0 {
		m.items = append([]domain.ChatMessage(nil), m.items[over:]...)
	}
	return nil
}

func (m *Memory) Recent(_ context.Context, n int) ([]domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return tail(m.items, n), nil
}

func (m *Memory) Len(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items), nil
}

func (m *Memory) Close() error { return nil }

func tail(items []domain.ChatMessage, n int) []domain.ChatMessage {
	if n <= 0 || n > len(items) {
		n = len(items)
	}
	out := make([]domain.ChatMessage, n)
	copy(out, items[len(items)-n:])
	return out
}

// Redis stores the ring as a capped list so several processes share it.
type Redis struct {
	rdb  *redis.Client
	key  string
	size int
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
	Size     int
}

// NewRedis connects and verifies the server is reachable.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	if opts.Key == "" {
		opts.Key = "chatbot:history"
	}
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	return &Redis{rdb: rdb, key: opts.Key, size: opts.Size}, nil
}

func (r *Redis) Append(ctx context.Context, msg domain.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	pipe := r.rdb.TxPipeline()
	pipe.RPush(ctx, r.key, data)
	pipe.LTrim(ctx, r.key, int64(-r.size), -1)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *Redis) Recent(ctx context.Context, n int) ([]domain.ChatMessage, error) {
	if n <= 0 || n > r.size {
		n = r.size
	}
	raw, err := r.rdb.LRange(ctx, r.key, int64(-n), -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var msg domain.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decode cached message: %w", err)
		}
		out = append(out, msg)
	}
	return out, nil
}

func (r *Redis) Len(ctx context.Context) (int, error) {
	n, err := r.rdb.LLen(ctx, r.key).Result()
	return int(n), err
}

// Reset drops the cached list.
func (r *Redis) Reset(ctx context.Context) error {
	return r.rdb.Del(ctx, r.key).Err()
}

func (r *Redis) Close() error { return r.rdb.Close() }
