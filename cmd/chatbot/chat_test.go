package main

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedInput struct {
	lines []string
}

func (s *scriptedInput) ReadLine() (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptedInput) Close() error { return nil }

func TestChatLoopSendsUntilExit(t *testing.T) {
	in := &scriptedInput{lines: []string{"hello", "   ", "list todos", "exit", "never sent"}}
	var sent []string
	err := chatLoop(context.Background(), in, func(_ context.Context, msg string) (string, error) {
		sent = append(sent, msg)
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "list todos"}, sent)
}

func TestChatLoopKeepsGoingAfterSendError(t *testing.T) {
	in := &scriptedInput{lines: []string{"first", "second"}}
	calls := 0
	err := chatLoop(context.Background(), in, func(context.Context, string) (string, error) {
		calls++
		return "", errors.New("server down")
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	for _, bad := range []string{"0", "-3", "abc"} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}
