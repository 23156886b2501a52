package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input  string
		expect slog.Level
	}{
		{input: "debug", expect: slog.LevelDebug},
		{input: "INFO", expect: slog.LevelInfo},
		{input: "warning", expect: slog.LevelWarn},
		{input: " error ", expect: slog.LevelError},
		{input: "bogus", expect: slog.LevelInfo},
	}
	for _, testCase := range testCases {
		t.Run(testCase.input, func(t *testing.T) {
			assert.Equal(t, testCase.expect, ParseLevel(testCase.input))
		})
	}
	assert.Equal(t, LevelWarn, LevelName(slog.LevelWarn))
	assert.Equal(t, LevelDebug, LevelName(slog.LevelDebug-4))
}

func TestNew(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(Config{Level: LevelWarn, Format: FormatJSON}, buf)
	logger.Info("hidden")
	logger.Warn("shown", "slot", 2)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"slot":2`)
}

func TestForwardHandler(t *testing.T) {
	var lines []string
	level := &slog.LevelVar{}
	level.Set(slog.LevelWarn)
	handler := NewForwardHandler(level, func(ctx context.Context, lvl slog.Level, text string) error {
		lines = append(lines, text)
		return nil
	}, nil)
	logger := slog.New(handler).With("slot", 3)

	logger.Info("dropped")
	logger.Warn("forwarded", "seq", 7)
	assert.Len(t, lines, 1)
	assert.Contains(t, lines[0], "msg=forwarded")
	assert.Contains(t, lines[0], "slot=3")
	assert.Contains(t, lines[0], "seq=7")
	assert.NotContains(t, lines[0], "time=")

	level.Set(slog.LevelDebug)
	logger.Debug("now visible")
	assert.Len(t, lines, 2)
}

func TestForwardHandler_Fallback(t *testing.T) {
	buf := &bytes.Buffer{}
	level := &slog.LevelVar{}
	handler := NewForwardHandler(level, func(ctx context.Context, lvl slog.Level, text string) error {
		return errors.New("coordinator gone")
	}, slog.NewTextHandler(buf, nil))
	slog.New(handler).Info("kept locally")
	assert.Contains(t, buf.String(), "kept locally")
}
