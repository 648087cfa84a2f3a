package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_JSONFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Init(LogOption{Format: "json", LogDir: dir, Level: "debug"}))
	t.Cleanup(func() { _ = Init(LogOption{}) })

	Debugf("[Test] slot=%d", 42)
	With("component", "test").Warnw("with fields")
	require.NoError(t, Sync())

	data, err := os.ReadFile(filepath.Join(dir, logFileName))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "DEBUG", first["level"])
	assert.Equal(t, "[Test] slot=42", first["msg"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "test", second["component"])
}

func TestInit_LevelFilters(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Init(LogOption{Format: "console", LogDir: dir, Level: "warn"}))
	t.Cleanup(func() { _ = Init(LogOption{}) })

	Infof("dropped")
	Errorf("kept")
	require.NoError(t, Sync())

	data, err := os.ReadFile(filepath.Join(dir, logFileName))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}

func TestInit_InvalidOptions(t *testing.T) {
	assert.Error(t, Init(LogOption{Level: "loud"}))
	assert.Error(t, Init(LogOption{Format: "xml"}))
}
