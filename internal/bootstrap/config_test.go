package bootstrap

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, string(StorageMemory), cfg.StorageDriver)
	assert.Equal(t, string(BusMemory), cfg.BusDriver)
	assert.True(t, cfg.SnapshotReadEnabled)
	assert.True(t, cfg.SnapshotWriteEnabled)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "embedded")
	t.Setenv("SERVER_ADDRESS", ":9000")

	cfg := Default()
	require.NoError(t, LoadFromEnv(&cfg))

	assert.Equal(t, "embedded", cfg.StorageDriver)
	assert.Equal(t, ":9000", cfg.ServerAddress)
}

func TestLoadFromFile_YAML(t *testing.T) {
	path := t.TempDir() + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte("storage_driver: embedded\ndata_dir: /tmp/flow\n"), 0o600))

	cfg := Default()
	require.NoError(t, LoadFromFile(&cfg, path))

	assert.Equal(t, "embedded", cfg.StorageDriver)
	assert.Equal(t, "/tmp/flow", cfg.DataDir)
}

func TestLoadFromFile_MissingFileErrors(t *testing.T) {
	cfg := Default()
	err := LoadFromFile(&cfg, "/nonexistent/path/config.yaml")
	require.Error(t, err)
}

func TestConfig_RetryConfig(t *testing.T) {
	cfg := Default()
	cfg.RetryMaxRetries = 3
	cfg.RetryInitialBackoffMS = 20
	cfg.RetryMaxBackoffMS = 500
	cfg.RetryJitterFactorPercent = 10

	retry := cfg.RetryConfig()
	assert.Equal(t, 3, retry.MaxRetries)
	assert.Equal(t, 20*time.Millisecond, retry.InitialBackoff)
	assert.Equal(t, 500*time.Millisecond, retry.MaxBackoff)
	assert.Equal(t, 0.10, retry.JitterFactor)
}

func TestConfig_RetryConfig_ZeroFallsBackToDefault(t *testing.T) {
	cfg := Config{}

	retry := cfg.RetryConfig()
	assert.Greater(t, retry.MaxRetries, 0)
}
