// Package desktop is a thin controller for the local XFCE session. Only
// session start touches the host; the other operations report configuration.
package desktop

import (
	"context"
	"fmt"
	"os/exec"
)

type Config struct {
	VNCPort        int
	ChromeCDPPort  int
	ScreenshotPath string
	Display        string
	StartCommand   string
	Shell          string
}

type Controller struct {
	cfg Config
	// run executes a shell script; replaced in tests.
	run func(ctx context.Context, shell, script string) error
}

func New(cfg Config) *Controller {
	if cfg.Shell == "" {
		cfg.Shell = "/bin/sh"
	}
	if cfg.Display == "" {
		cfg.Display = ":1"
	}
	if cfg.StartCommand == "" {
		cfg.StartCommand = "startxfce4"
	}
	return &Controller{cfg: cfg, run: runDetached}
}

// WithRunner swaps the script executor.
func (c *Controller) WithRunner(run func(ctx context.Context, shell, script string) error) *Controller {
	c.run = run
	return c
}

type Status struct {
	VNCPort       int    `json:"vnc_port"`
	ChromeCDPPort int    `json:"chrome_cdp_port"`
	Status        string `json:"status"`
}

func (c *Controller) Status() Status {
	return Status{VNCPort: c.cfg.VNCPort, ChromeCDPPort: c.cfg.ChromeCDPPort, Status: "running"}
}

func (c *Controller) VNCPort() int { return c.cfg.VNCPort }

// ScreenshotPath is where desktop captures are written.
func (c *Controller) ScreenshotPath() string { return c.cfg.ScreenshotPath }

// StartSession launches the desktop in the background on the configured display.
func (c *Controller) StartSession(ctx context.Context) error {
	script := fmt.Sprintf("export DISPLAY=%s && %s &", c.cfg.Display, c.cfg.StartCommand)
	return c.run(ctx, c.cfg.Shell, script)
}

// Perform runs a simulated desktop action and returns its canned outcome.
func (c *Controller) Perform(action string) string {
	switch action {
	case "screenshot":
		return "Screenshot taken and saved to " + c.cfg.ScreenshotPath
	case "open_terminal":
		return "Terminal opened in XFCE desktop"
	case "list_applications":
		return "XFCE Applications:\n- Firefox\n- Thunar\n- Terminal\n- Text Editor"
	}
	return fmt.Sprintf("XFCE action '%s' executed", action)
}

func runDetached(ctx context.Context, shell, script string) error {
	return exec.CommandContext(ctx, shell, "-c", script).Run()
}
