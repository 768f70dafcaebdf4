package logging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), sc.Text())
		out = append(out, m)
	}
	return out
}

func TestJSONSlogLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewJSONSlogLogger(&buf, "debug")
	require.NoError(t, err)
	ctx := context.Background()

	log.Debug(ctx, "retry", "attempt", 1)
	log.Info(ctx, "http request", "status", 200)
	log.Warn(ctx, "database unreachable", "error", "refused")
	log.Error(ctx, "request failed", "error", "boom")

	recs := records(t, &buf)
	require.Len(t, recs, 4)

	want := []struct{ level, msg string }{
		{"DEBUG", "retry"},
		{"INFO", "http request"},
		{"WARN", "database unreachable"},
		{"ERROR", "request failed"},
	}
	for i, w := range want {
		assert.Equal(t, w.level, recs[i]["level"])
		assert.Equal(t, w.msg, recs[i]["msg"])
	}
	assert.EqualValues(t, 200, recs[1]["status"])
}

func TestSlogLogger_WithKeepsParentUntouched(t *testing.T) {
	var buf bytes.Buffer
	base := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	child := base.With("component", "httpapi")
	child.Info(context.Background(), "child")
	base.Info(context.Background(), "parent")

	recs := records(t, &buf)
	require.Len(t, recs, 2)
	assert.Equal(t, "httpapi", recs[0]["component"])
	assert.NotContains(t, recs[1], "component")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNewJSONSlogLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewJSONSlogLogger(&buf, "warn")
	require.NoError(t, err)

	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown", "k", "v")

	recs := records(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "shown", recs[0]["msg"])
	assert.Equal(t, "v", recs[0]["k"])

	_, err = NewJSONSlogLogger(&buf, "nope")
	assert.Error(t, err)
}
