package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "qldb-data", cfg.DataDir)
	assert.Equal(t, 50, cfg.BTreeOrder)
	assert.Equal(t, time.Duration(0), cfg.StatementTimeout)
}

func TestParseOverridesOnlyGivenFields(t *testing.T) {
	cfg, err := Parse([]byte(`
data_dir: /var/lib/qldb
statement_timeout: 2s
`))
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/qldb", cfg.DataDir)
	assert.Equal(t, 50, cfg.BTreeOrder)
	assert.Equal(t, 2*time.Second, cfg.StatementTimeout)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`bogus_field: 1`))
	assert.Error(t, err)
}

func TestParseRejectsInvalidDuration(t *testing.T) {
	_, err := Parse([]byte(`statement_timeout: "not-a-duration"`))
	assert.Error(t, err)
}

func TestLoadReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qldb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_database: analytics\nbtree_order: 8\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "analytics", cfg.DefaultDatabase)
	assert.Equal(t, 8, cfg.BTreeOrder)
}
