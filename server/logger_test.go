package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger_WritesFile(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	path := filepath.Join(t.TempDir(), "slaparena.log")
	require.NoError(t, InitLogger(LogConfig{File: path, Level: "info", MaxSizeMB: 1}))
	Log.Debugw("hidden below level")
	Log.Infow("room created", "room", "r1")
	SyncLogger()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "room created")
	assert.NotContains(t, string(data), "hidden below level")
}

func TestInitLogger_BadLevel(t *testing.T) {
	assert.Error(t, InitLogger(LogConfig{File: filepath.Join(t.TempDir(), "x.log"), Level: "chatty"}))
}
