package logger

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{"Error", LevelError},
		{"bogus", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestStdLogger_FiltersAndFormats(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLoggerTo(&buf, LevelInfo)

	l.Debug(context.Background(), "hidden")
	l.Info(context.Background(), "scan done", map[string]interface{}{"symbol": "BTCUSDT", "bars": 168})
	l.Error(context.Background(), errors.New("boom"), "publish failed")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[INFO] scan done | bars=168 symbol=BTCUSDT")
	assert.Contains(t, out, "[ERROR] publish failed | error: boom")
}

func TestZapLogger_Fields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewZapLoggerFrom(zap.New(core))

	l.Warn(context.Background(), "stale data", map[string]interface{}{"key": "bars:BTCUSDT:1h"})
	l.Error(context.Background(), errors.New("timeout"), "fetch failed")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "stale data", entries[0].Message)
	assert.Equal(t, "bars:BTCUSDT:1h", entries[0].ContextMap()["key"])
	assert.Equal(t, "timeout", entries[1].ContextMap()["error"])
}

func TestNew_UnknownFormat(t *testing.T) {
	_, err := New("xml", LevelInfo, FileConfig{})
	assert.Error(t, err)

	l, err := New("text", LevelInfo, FileConfig{})
	require.NoError(t, err)
	assert.IsType(t, &StdLogger{}, l)
}

func TestStdLogger_MergesAndQuotesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLoggerTo(&buf, LevelDebug)

	l.Warn(context.Background(), "skipped",
		map[string]interface{}{"symbol": "ETHUSDT", "reason": "no price"},
		map[string]interface{}{"symbol": "SOLUSDT"},
	)

	assert.Contains(t, buf.String(), `[WARN] skipped | reason="no price" symbol=SOLUSDT`)
}

func TestNew_TextWithFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.log")
	l, err := New("text", LevelInfo, FileConfig{Path: path, MaxSizeMB: 1})
	require.NoError(t, err)

	l.Info(context.Background(), "report published", map[string]interface{}{"openTrades": 2})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[INFO] report published | openTrades=2")
}
