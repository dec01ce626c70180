package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "./data/driveindex.db", cfg.Database.Path)
	assert.Equal(t, 6800, cfg.Aria2.Port)
	assert.Equal(t, 30*time.Second, cfg.Aria2.Timeout)
	assert.Equal(t, "local", cfg.Upload.Sink)
	assert.True(t, cfg.Sweeper.Enabled)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9000
aria2:
  host: aria2.local
  token: fromfile
upload:
  workers: 4
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("DRIVEINDEX_ARIA2_TOKEN", "fromenv")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "aria2.local", cfg.Aria2.Host)
	assert.Equal(t, "fromenv", cfg.Aria2.Token)
	assert.Equal(t, 4, cfg.Upload.Workers)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Upload.Sink = "s3"
	assert.Error(t, cfg.Validate(), "s3 sink without bucket")

	cfg.Upload.S3Bucket = "bucket"
	assert.NoError(t, cfg.Validate())

	cfg.Upload.Sink = "ftp"
	assert.Error(t, cfg.Validate())
}

func TestServerConfig_Address(t *testing.T) {
	c := ServerConfig{Host: "127.0.0.1", Port: 8080}
	assert.Equal(t, "127.0.0.1:8080", c.Address())
}
