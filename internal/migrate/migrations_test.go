package migrate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"chatbot/internal/db"
	"chatbot/internal/migrate"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, migrate.Migrate(conn))
	require.NoError(t, migrate.Migrate(conn))

	v, err := migrate.Version(context.Background(), conn)
	require.NoError(t, err)
	require.Equal(t, 1, v)

	for _, table := range []string{"todos", "chat_messages", "agent_actions", "events"} {
		var name string
		err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, table)
	}
}
