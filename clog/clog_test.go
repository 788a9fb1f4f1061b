package clog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T, level string, opts ...Option) (Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger, err := New(&Config{Level: level, Format: "json"}, append(opts, WithWriter(buf))...)
	require.NoError(t, err)
	return logger, buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{name: "valid config", config: &Config{Level: "info", Format: "console", Output: "stdout"}},
		{name: "nil config", config: nil},
		{name: "defaults filled", config: &Config{}},
		{name: "invalid level", config: &Config{Level: "verbose"}, wantErr: true},
		{name: "invalid format", config: &Config{Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestLogger_JSONOutput(t *testing.T) {
	logger, buf := newBufferLogger(t, "info", WithNamespace("meshnode"))

	logger.WithNamespace("catalog").
		With(String("action", "users.get")).
		Info("endpoint list created", Int("count", 1), Error(errors.New("ignored?")))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	entry := lines[0]
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "endpoint list created", entry["msg"])
	assert.Equal(t, "meshnode.catalog", entry[NamespaceKey])
	assert.Equal(t, "users.get", entry["action"])
	assert.EqualValues(t, 1, entry["count"])
	assert.Equal(t, "ignored?", entry["err_msg"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(t, "warn")

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")
	assert.Len(t, decodeLines(t, buf), 1)

	t.Run("SetLevel 对子 Logger 同样生效", func(t *testing.T) {
		child := logger.WithNamespace("discovery")
		require.NoError(t, logger.SetLevel(DebugLevel))
		buf.Reset()
		child.Debug("now visible")
		lines := decodeLines(t, buf)
		require.Len(t, lines, 1)
		assert.Equal(t, "DEBUG", lines[0]["level"])
	})
}

func TestLogger_ContextFields(t *testing.T) {
	type ctxKey string
	logger, buf := newBufferLogger(t, "info", WithContextField(ctxKey("request_id"), "request_id"))

	ctx := context.WithValue(context.Background(), ctxKey("request_id"), "req-42")
	logger.InfoContext(ctx, "dispatch")
	logger.InfoContext(context.Background(), "no request")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "req-42", lines[0]["request_id"])
	assert.NotContains(t, lines[1], "request_id")
}

func TestLogger_WithDoesNotLeak(t *testing.T) {
	logger, buf := newBufferLogger(t, "info")

	a := logger.With(String("node_id", "a"))
	b := logger.With(String("node_id", "b"))
	a.Info("x")
	b.Info("y")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "a", lines[0]["node_id"])
	assert.Equal(t, "b", lines[1]["node_id"])
}

func TestErrorWithCode(t *testing.T) {
	logger, buf := newBufferLogger(t, "info")
	logger.Error("select failed", ErrorWithCode(errors.New("endpoint list is empty"), "EMPTY_ENDPOINT_LIST"))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	group, ok := lines[0]["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "EMPTY_ENDPOINT_LIST", group["code"])
	assert.Equal(t, "endpoint list is empty", group["msg"])
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{
		"debug": DebugLevel, "INFO": InfoLevel, "warning": WarnLevel, "error": ErrorLevel, "fatal": FatalLevel,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
	assert.Equal(t, "warn", WarnLevel.String())
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Info("nothing")
	assert.NotNil(t, l.With(String("k", "v")).WithNamespace("x"))
	assert.NoError(t, l.SetLevel(DebugLevel))
}
