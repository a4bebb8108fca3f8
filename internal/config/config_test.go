package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "local", cfg.BlobBackend)
	assert.Equal(t, "./data/notedrop.db", cfg.DBPath)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 4, cfg.Workers)
	assert.Empty(t, cfg.TikaURL, "extraction is off unless configured")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("NOTEDROP_PORT", "9090")
	t.Setenv("NOTEDROP_DATA_DIR", "/var/lib/notedrop")
	t.Setenv("NOTEDROP_CACHE_TTL", "30s")
	t.Setenv("NOTEDROP_WORKERS", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/var/lib/notedrop/notedrop.db", cfg.DBPath)
	assert.Equal(t, "/var/lib/notedrop/files", cfg.BlobDir)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, 8, cfg.Workers)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("NOTEDROP_BLOB_BACKEND", "ftp")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRequiresS3Credentials(t *testing.T) {
	t.Setenv("NOTEDROP_BLOB_BACKEND", "s3")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("NOTEDROP_S3_ENDPOINT", "minio:9000")
	t.Setenv("NOTEDROP_S3_ACCESS_KEY", "key")
	t.Setenv("NOTEDROP_S3_SECRET_KEY", "secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "s3", cfg.BlobBackend)
	assert.Equal(t, "notedrop", cfg.S3Bucket)
}
