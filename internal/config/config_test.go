package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "definitions", cfg.DefinitionsDir)
	assert.Equal(t, "build", cfg.OutputDir)
	assert.Equal(t, "app", cfg.EnvelopeSchema)
	assert.Equal(t, "tb_", cfg.TablePrefix)
	assert.Equal(t, 999, cfg.IdentifierMax)
	assert.Empty(t, cfg.Database.DSN)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `
definitions_dir: specs
envelope_schema: core
database:
  dsn: postgres://localhost/forge
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "specs", cfg.DefinitionsDir)
	assert.Equal(t, "core", cfg.EnvelopeSchema)
	assert.Equal(t, "postgres://localhost/forge", cfg.Database.DSN)
	// Untouched keys keep their defaults.
	assert.Equal(t, "tb_", cfg.TablePrefix)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	content := `
database:
  dsn: postgres://localhost/from_file
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileNameAlt), []byte(content), 0o644))

	t.Setenv("SPECFORGE_DATABASE__DSN", "postgres://localhost/from_env")
	t.Setenv("SPECFORGE_OUTPUT_DIR", "dist")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/from_env", cfg.Database.DSN)
	assert.Equal(t, "dist", cfg.OutputDir)
}
