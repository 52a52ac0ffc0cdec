package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"

	"chatbot/internal/domain"
)

func (r *Runner) body(ctx context.Context, kind domain.ActionKind, p map[string]string) (string, error) {
	switch kind {
	case domain.ActionCommand:
		return r.command(ctx, p["command"])
	case domain.ActionFileOperation:
		return r.fileOperation(p["operation"], p["file_path"], p["content"])
	case domain.ActionWebSearch:
		return r.webSearch(ctx, p["query"])
	case domain.ActionDesktop:
		if r.opts.Desktop == nil {
			return "", errors.New("desktop controller not configured")
		}
		return r.opts.Desktop.Perform(p["action"]), nil
	}
	// completed rather than failed, unlike execution errors
	return fmt.Sprintf("Unknown action type: %s", kind), nil
}

func (r *Runner) command(ctx context.Context, command string) (string, error) {
	if strings.TrimSpace(command) == "" {
		return "", errors.New("command is required")
	}
	res, err := r.opts.Shell.Run(ctx, command)
	if err != nil {
		return "", err
	}
	return formatCommand(command, res), nil
}

// fileOperation treats an unknown operation as a completed action that
// carries an explanatory message; I/O errors fail the action.
func (r *Runner) fileOperation(op, path, content string) (string, error) {
	switch op {
	case "read":
		data, err := afero.ReadFile(r.opts.Fs, path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case "write":
		if err := afero.WriteFile(r.opts.Fs, path, []byte(content), 0o644); err != nil {
			return "", err
		}
		return "File written successfully: " + path, nil
	case "append":
		f, err := r.opts.Fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return "", err
		}
		if _, err := f.WriteString(content); err != nil {
			f.Close()
			return "", err
		}
		if err := f.Close(); err != nil {
			return "", err
		}
		return "Content appended to: " + path, nil
	}
	return fmt.Sprintf("Unknown file operation: %s", op), nil
}

// webSearch returns placeholder results unless live search is enabled.
func (r *Runner) webSearch(ctx context.Context, query string) (string, error) {
	if r.opts.LiveSearch && r.opts.Searcher != nil {
		hits, err := r.opts.Searcher.SearchHits(ctx, query, 3)
		if err != nil {
			return "", err
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Search results for '%s':", query)
		for i, h := range hits {
			fmt.Fprintf(&b, "\n%d. %s", i+1, h.Title)
			if h.URL != "" {
				fmt.Fprintf(&b, " - %s", h.URL)
			}
		}
		return b.String(), nil
	}
	if r.opts.SearchDelay > 0 {
		t := time.NewTimer(r.opts.SearchDelay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return fmt.Sprintf("Search results for '%s':\n1. Result 1\n2. Result 2\n3. Result 3", query), nil
}
