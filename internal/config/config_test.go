package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
profile: openapi
outDir: gen
workers: 2
strict: true
watchDebounce: 1s
`), 0o644))
	t.Setenv("RESFORGE_OUT_DIR", "build")
	t.Setenv("RESFORGE_FORCE", "yes")
	t.Setenv("RESFORGE_WORKERS", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openapi", cfg.Profile)
	assert.Equal(t, "build", cfg.OutDir)
	assert.True(t, cfg.Force)
	assert.True(t, cfg.Strict)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, time.Second, cfg.WatchDebounce)
	assert.Equal(t, "specs", cfg.SpecDir)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	// the default path is optional
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Profile, cfg.Profile)
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("RESFORGE_WORKERS", "many")
	_, err := Load(filepath.Join(t.TempDir(), "x.yaml"))
	assert.Error(t, err)

	t.Chdir(t.TempDir())
	_, err = Load("")
	assert.ErrorContains(t, err, "RESFORGE_WORKERS")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Profile = ""
	cfg.Workers = 0
	cfg.LogFormat = "xml"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile is empty")
	assert.Contains(t, err.Error(), "workers must be positive")
	assert.Contains(t, err.Error(), "logFormat")
}
