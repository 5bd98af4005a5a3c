package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_KeyValues(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewFromZap(zap.New(core)).With("pipeline", "etl")

	l.Info("staging completed", "table", "staging_events", "rows", 12)
	l.Named("copy").Warn("slow statement")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "staging completed", entries[0].Message)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "etl", ctx["pipeline"])
	assert.Equal(t, "staging_events", ctx["table"])
	assert.EqualValues(t, 12, ctx["rows"])
	assert.Equal(t, "copy", entries[1].LoggerName)
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	require.Error(t, err)
}

func TestInitLogger_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sparkify.log")
	prev := Default()
	t.Cleanup(func() {
		mu.Lock()
		std = prev
		mu.Unlock()
	})

	l, err := InitLogger(Config{Mode: "prod", Level: "info", File: path})
	require.NoError(t, err)
	assert.Same(t, l, Default())

	Infof("Creating tables is completed (%d statements)", 7)
	Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Creating tables is completed (7 statements)")
}
