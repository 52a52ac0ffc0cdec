package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"chatbot/internal/app"
	"chatbot/internal/db"
)

// lineReader is the REPL input; readline when a terminal is available.
type lineReader interface {
	ReadLine() (string, error)
	Close() error
}

type readlineInput struct {
	instance *readline.Instance
}

func newReadlineInput(historyPath string) (*readlineInput, error) {
	instance, err := readline.NewEx(&readline.Config{
		Prompt:            "> ",
		HistoryFile:       historyPath,
		HistorySearchFold: true,
	})
	if err != nil {
		return nil, err
	}
	return &readlineInput{instance: instance}, nil
}

func (r *readlineInput) ReadLine() (string, error) {
	line, err := r.instance.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", io.EOF
	}
	return line, err
}

func (r *readlineInput) Close() error {
	return r.instance.Close()
}

type basicInput struct {
	reader *bufio.Reader
}

func (b *basicInput) ReadLine() (string, error) {
	fmt.Print("> ")
	line, err := b.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (b *basicInput) Close() error { return nil }

func newLineReader(workspace string) lineReader {
	dir, err := db.EnsureWorkspace(workspace)
	if err != nil {
		return &basicInput{reader: bufio.NewReader(os.Stdin)}
	}
	in, err := newReadlineInput(filepath.Join(dir, "history"))
	if err != nil {
		return &basicInput{reader: bufio.NewReader(os.Stdin)}
	}
	return in
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := newLineReader(viper.GetString("workspace"))
			defer in.Close()
			if c := remoteClient(); c != nil {
				return chatLoop(cmd.Context(), in, func(ctx context.Context, msg string) (string, error) {
					reply, err := c.Send(ctx, msg)
					return reply.Response, err
				})
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return chatLoop(ctx, in, func(ctx context.Context, msg string) (string, error) {
					return a.Engine.SubmitMessage(ctx, msg), nil
				})
			})
		},
	}
}

func chatLoop(ctx context.Context, in lineReader, send func(context.Context, string) (string, error)) error {
	fmt.Println("Type a message, 'help' for examples, 'exit' to quit.")
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := in.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "quit", "/exit", "/quit":
			return nil
		}
		reply, err := send(ctx, line)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		fmt.Println(reply)
	}
}
