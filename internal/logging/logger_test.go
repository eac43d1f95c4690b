package logging

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_HistoryKeepsMostRecent(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, LevelDebug)
	l.hist.max = 3

	for _, msg := range []string{"one", "two", "three", "four"} {
		l.Info("test", msg, nil)
	}

	hist := l.GetHistory(0)
	require.Len(t, hist, 3)
	assert.Equal(t, "two", hist[0].Message)
	assert.Equal(t, "four", hist[2].Message)

	last := l.GetHistory(1)
	require.Len(t, last, 1)
	assert.Equal(t, "four", last[0].Message)
}

func TestLogger_LevelFiltersHistory(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, LevelWarn)

	l.Debug("test", "hidden", nil)
	l.Info("test", "hidden", nil)
	l.Warn("test", "shown", map[string]interface{}{"k": 1})

	hist := l.GetHistory(0)
	require.Len(t, hist, 1)
	assert.Equal(t, "warn", hist[0].Level)
	assert.Equal(t, "k=1", hist[0].Data)
	assert.Contains(t, buf.String(), `"component":"test"`)
	assert.NotContains(t, buf.String(), "hidden")
}

func TestLogger_ErrorIncludesCause(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, LevelInfo)

	l.Error("chat", "request failed", errors.New("boom"), map[string]interface{}{"status": 500})

	hist := l.GetHistory(0)
	require.Len(t, hist, 1)
	assert.Equal(t, "status=500 error=boom", hist[0].Data)
	assert.Contains(t, buf.String(), `"error":"boom"`)
}

func TestFormatData_SortedKeys(t *testing.T) {
	assert.Equal(t, "", formatData(nil))
	assert.Equal(t, "a=1, b=x", formatData(map[string]interface{}{"b": "x", "a": 1}))
}

func TestLogger_HistoryCapturesComponentLoggers(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, LevelInfo)

	zl := l.Component("bridge")
	zl.Info().Str("status", "Ready").Msg("status changed")

	hist := l.GetHistory(0)
	require.Len(t, hist, 1)
	assert.Equal(t, "bridge", hist[0].Component)
	assert.Equal(t, "info", hist[0].Level)
	assert.Equal(t, "status changed", hist[0].Message)
	assert.Equal(t, "status=Ready", hist[0].Data)
}

func TestLogger_OnLogCallback(t *testing.T) {
	l := NewWriter(io.Discard, LevelInfo)

	got := make(chan LogEntry, 1)
	l.SetOnLog(func(e LogEntry) { got <- e })
	l.Info("panel", "hello", nil)

	select {
	case e := <-got:
		assert.Equal(t, "hello", e.Message)
	case <-time.After(time.Second):
		t.Fatal("callback not called")
	}
}

func TestNew_WritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	l, err := New(&Config{LogDir: dir, Level: LevelDebug, File: true})
	require.NoError(t, err)

	l.Debug("test", "to file", nil)
	require.NoError(t, l.Close())

	assert.Equal(t, dir, filepath.Dir(l.GetLogPath()))
	data, err := os.ReadFile(l.GetLogPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"to file"`)
	assert.Contains(t, string(data), `"app":"lumiavatar"`)
}
