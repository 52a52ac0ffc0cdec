package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"

	"chatbot/internal/format"
)

// Shell runs a command line and captures its output.
type Shell interface {
	Run(ctx context.Context, command string) (CommandResult, error)
}

type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// ExecShell runs commands through Path -c. A non-zero exit is a result, not
// an error; failing to spawn the shell is an error.
type ExecShell struct {
	Path string
}

func (s ExecShell) Run(ctx context.Context, command string) (CommandResult, error) {
	path := s.Path
	if path == "" {
		path = "/bin/sh"
	}
	cmd := exec.CommandContext(ctx, path, "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	res := CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var ee *exec.ExitError
		if !errors.As(err, &ee) {
			return res, err
		}
		res.ExitCode = ee.ExitCode()
	}
	return res, nil
}

func formatCommand(command string, res CommandResult) string {
	return format.CommandOutput(command, res.Stdout, res.Stderr, res.ExitCode)
}
