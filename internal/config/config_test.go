package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultIsValid(t *testing.T) {
	cfg := NewDefault()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := NewDefault()
	cfg.Storage.Backend = "tape"
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresBucketForS3Backend(t *testing.T) {
	cfg := NewDefault()
	cfg.Storage.Backend = "s3"
	assert.Error(t, cfg.Validate())

	cfg.Storage.S3.Bucket = "my-bucket"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := NewDefault()
	cfg.Global.LogLevel = "VERBOSE"
	assert.Error(t, cfg.Validate())
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	cfg := NewDefault()
	cfg.Storage.Backend = "s3"
	cfg.Storage.S3.Bucket = "round-trip-bucket"

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, cfg.SaveToFile(path))

	loaded := &Configuration{}
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, "s3", loaded.Storage.Backend)
	assert.Equal(t, "round-trip-bucket", loaded.Storage.S3.Bucket)
}

func TestLoadFromEnvOverridesDefaults(t *testing.T) {
	os.Setenv("SHELFCLOUD_STORAGE_BACKEND", "s3")
	os.Setenv("SHELFCLOUD_S3_BUCKET", "env-bucket")
	defer os.Unsetenv("SHELFCLOUD_STORAGE_BACKEND")
	defer os.Unsetenv("SHELFCLOUD_S3_BUCKET")

	cfg := NewDefault()
	require.NoError(t, cfg.LoadFromEnv())
	assert.Equal(t, "s3", cfg.Storage.Backend)
	assert.Equal(t, "env-bucket", cfg.Storage.S3.Bucket)
}
