package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "chatty"})
	require.Error(t, err)
}

func TestNew_Levels(t *testing.T) {
	l, err := New(Config{Level: "warn", Development: true})
	require.NoError(t, err)
	defer l.Close()

	assert.False(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Desugar().Core().Enabled(zapcore.WarnLevel))
}

func TestNew_File(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "docstore.log")
	l, err := New(Config{Level: "info", File: file, MaxSizeMB: 1, MaxFiles: 1})
	require.NoError(t, err)

	l.Infow("database created", "database", "shop")
	require.NoError(t, l.Close())

	b, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"database created"`)
	assert.Contains(t, string(b), `"database":"shop"`)
}
