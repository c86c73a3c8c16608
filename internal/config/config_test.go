package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "readquiz.db", cfg.DBPath)
	assert.Equal(t, 5*time.Second, cfg.ReloadRetry)
	assert.Equal(t, 0, cfg.RotationHour)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("READQUIZ_DB", "/tmp/x.db")
	t.Setenv("READQUIZ_RELOAD_RETRY", "250ms")
	t.Setenv("READQUIZ_ROTATION_HOUR", "4")
	t.Setenv("READQUIZ_ROTATION_MINUTE", "30")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, 250*time.Millisecond, cfg.ReloadRetry)
	assert.Equal(t, 4, cfg.RotationHour)
	assert.Equal(t, 30, cfg.RotationMinute)
}

func TestLoadFromEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("READQUIZ_ADMIN_ID=ops\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("READQUIZ_ADMIN_ID") })

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "ops", cfg.AdminID)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("READQUIZ_ROTATION_HOUR", "25")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadMissingEnvFileIsFine(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.env"))
	assert.NoError(t, err)
}
