package logger_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/brimdata/jsoniq/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	l, err := logger.New(logger.Config{Level: "debug", Path: path})
	require.NoError(t, err)
	l.Debug("hello")
	require.NoError(t, l.Sync())
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"hello"`)
}

func TestBadLevel(t *testing.T) {
	_, err := logger.New(logger.Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestOff(t *testing.T) {
	l, err := logger.New(logger.Config{Path: "off"})
	require.NoError(t, err)
	l.Error("dropped")
}
