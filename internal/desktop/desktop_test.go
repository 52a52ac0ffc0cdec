package desktop_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatbot/internal/desktop"
)

func TestStartSessionScript(t *testing.T) {
	var gotShell, gotScript string
	c := desktop.New(desktop.Config{Display: ":2"}).WithRunner(func(_ context.Context, shell, script string) error {
		gotShell, gotScript = shell, script
		return nil
	})
	require.NoError(t, c.StartSession(context.Background()))
	assert.Equal(t, "/bin/sh", gotShell)
	assert.Equal(t, "export DISPLAY=:2 && startxfce4 &", gotScript)

	c.WithRunner(func(context.Context, string, string) error { return errors.New("no x") })
	assert.Error(t, c.StartSession(context.Background()))
}

func TestPerform(t *testing.T) {
	c := desktop.New(desktop.Config{ScreenshotPath: "/tmp/s.png", VNCPort: 5901})
	assert.Equal(t, "Screenshot taken and saved to /tmp/s.png", c.Perform("screenshot"))
	assert.Equal(t, "Terminal opened in XFCE desktop", c.Perform("open_terminal"))
	assert.Contains(t, c.Perform("list_applications"), "- Thunar")
	assert.Equal(t, "XFCE action 'wiggle' executed", c.Perform("wiggle"))
	assert.Equal(t, 5901, c.Status().VNCPort)
	assert.Equal(t, "running", c.Status().Status)
}
