package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatbot/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 50, cfg.History.Size)
	assert.Equal(t, "http://localhost:8001", cfg.Services.Time.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Services.Browser.Timeout)
	assert.Equal(t, "http://localhost:8007", cfg.Services.DesktopCommander.BaseURL)
	assert.Equal(t, time.Second, cfg.Runner.SearchDelay)
	assert.Len(t, cfg.Services.All(), 7)
}

func TestFromYAMLOverridesDefaults(t *testing.T) {
	cfg, err := config.FromYAML([]byte(`
server:
  base_path: v1/
services:
  time:
    base_url: http://time.internal:9000
    timeout: 3s
`))
	require.NoError(t, err)
	assert.Equal(t, "/v1", cfg.Server.BasePath)
	assert.Equal(t, "http://time.internal:9000", cfg.Services.Time.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Services.Time.Timeout)
	assert.Equal(t, "http://localhost:8003", cfg.Services.Thinking.BaseURL)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"bad backend":   "history:\n  backend: disk\n",
		"zero workers":  "runner:\n  workers: 0\n",
		"bad url":       "services:\n  search:\n    base_url: localhost:8004\n",
		"redis no addr": "history:\n  backend: redis\n  redis:\n    addr: \"\"\n",
		"bad yaml":      "server: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte("history:\n  size: 5\n"), 0o644))
	cfg, err = config.LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.History.Size)

	_, err = config.Load(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err)
}

func TestWebhooks(t *testing.T) {
	cfg, err := config.FromYAML([]byte(`
webhooks:
  - url: https://hooks.example.com/chatbot
    events: [todo.created]
    timeout: 2s
    enabled: false
`))
	require.NoError(t, err)
	require.Len(t, cfg.Webhooks, 1)
	hook := cfg.Webhooks[0]
	assert.Equal(t, []string{"todo.created"}, hook.Events)
	assert.Equal(t, 2*time.Second, hook.Timeout)
	require.NotNil(t, hook.Enabled)
	assert.False(t, *hook.Enabled)

	_, err = config.FromYAML([]byte("webhooks:\n  - url: ftp://nope\n"))
	assert.ErrorContains(t, err, "webhooks[0].url")
	assert.Empty(t, config.Default().Webhooks)
}
