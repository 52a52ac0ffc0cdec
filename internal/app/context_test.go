package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatbot/internal/app"
	"chatbot/internal/config"
	"chatbot/internal/history"
)

func TestOpenWiresCollaborators(t *testing.T) {
	dir := t.TempDir()
	a, err := app.Open(context.Background(), app.Options{Workspace: dir, Log: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))

	out := a.Engine.SubmitMessage(context.Background(), "add todo write tests")
	assert.Contains(t, out, "write tests")
	_, isMemory := a.History.(*history.Memory)
	assert.True(t, isMemory)
	assert.Len(t, a.Monitor.Snapshot(), 7)

	require.NoError(t, a.Close())
	_, err = os.Stat(filepath.Join(dir, ".chatbot", "chatbot.db"))
	assert.NoError(t, err)
}

func TestLoadConfigExplicitPathMustExist(t *testing.T) {
	_, err := app.LoadConfig(t.TempDir(), filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(config.Path(dir), []byte("runner:\n  workers: 2\n"), 0o644))
	cfg, err := app.LoadConfig(dir, "")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Runner.Workers)
}
