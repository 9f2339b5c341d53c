package docstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":1338", cfg.Addr)
	assert.Equal(t, "file", cfg.Backend)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "xid", cfg.IDGenerator)
	assert.EqualValues(t, 10<<20, cfg.MaxBodyBytes)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docstore.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9000"
backend: bolt
rules:
  - path: "shop/{id}"
    allow:
      - methods: [READ]
`), 0o600))

	t.Setenv("DOCSTORE_DATADIR", "/var/lib/docstore")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "bolt", cfg.Backend)
	assert.Equal(t, "/var/lib/docstore", cfg.DataDir)
	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, "shop/{id}", cfg.Rules[0].Path)
}
