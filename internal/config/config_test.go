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
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.Store.URL)
	assert.Equal(t, 2*time.Second, cfg.Poll.Interval)
	assert.Equal(t, "inline", cfg.Images.Host)
	assert.Equal(t, 1080, cfg.Images.MaxWidth)
	assert.Equal(t, "file", cfg.Session.Backend)
	assert.Equal(t, uint32(5), cfg.Breaker.MaxFailures)
	assert.Equal(t, "in-memory", cfg.Server.Storage)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  url: https://nexus-default-rtdb.example.com
poll:
  interval: 500ms
images:
  host: imgbb
  imgbb_key: abc
log:
  level: debug
`), 0o600))

	t.Setenv("NEXUS_POLL_INTERVAL", "3s")
	t.Setenv("NEXUS_SESSION_BACKEND", "memory")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://nexus-default-rtdb.example.com", cfg.Store.URL)
	assert.Equal(t, 3*time.Second, cfg.Poll.Interval, "env wins over file")
	assert.Equal(t, "imgbb", cfg.Images.Host)
	assert.Equal(t, "abc", cfg.Images.ImgbbKey)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("NEXUS_AUTH_API_KEY=from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("NEXUS_AUTH_API_KEY") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Auth.APIKey)
}

func TestLoad_Invalid(t *testing.T) {
	chdir(t, t.TempDir())

	t.Setenv("NEXUS_IMAGES_HOST", "ftp")
	_, err := Load("")
	assert.ErrorContains(t, err, "images.host")

	t.Setenv("NEXUS_IMAGES_HOST", "s3")
	_, err = Load("")
	assert.ErrorContains(t, err, "bucket")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
