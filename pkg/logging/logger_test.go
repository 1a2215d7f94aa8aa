package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSON(&buf, slog.LevelDebug).WithDictionary("kw.test")

	log.LogMutation(context.Background(), "add", "secret", true, 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "add applied", rec["msg"])
	assert.Equal(t, "kw.test", rec["dictionary"])
	assert.Equal(t, "secret", rec["keyword"])
	assert.Equal(t, float64(3), rec["generation"])
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := NewText(&buf, slog.LevelInfo)

	log.LogScan(context.Background(), "a.txt", 10, 1, nil)
	assert.Empty(t, buf.String(), "debug records are dropped at info")

	log.LogScan(context.Background(), "a.txt", 10, 0, errors.New("boom"))
	assert.Contains(t, buf.String(), "scan failed")
	assert.Contains(t, buf.String(), "boom")
}

func TestParseFormat(t *testing.T) {
	var buf bytes.Buffer

	l, err := ParseFormat(&buf, "JSON", slog.LevelInfo)
	require.NoError(t, err)
	l.LogBuild(context.Background(), 2, 5)
	assert.True(t, json.Valid(bytes.TrimSpace(buf.Bytes())))

	_, err = ParseFormat(&buf, "yaml", slog.LevelInfo)
	assert.Error(t, err)
}

func TestNoop(t *testing.T) {
	log := Noop()
	assert.False(t, log.Enabled(context.Background(), slog.LevelError))
	log.WithSession("s1").LogSession(context.Background(), "opened", 0, 0)
}
