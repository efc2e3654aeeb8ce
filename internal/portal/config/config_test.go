package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := []byte("version: \"0.1.0\"\nserver_url: portal.example.com:8080\nrequest_timeout: 10s\n")
	require.NoError(t, os.WriteFile(path, content, 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example.com:8080", cfg.GetServerURL())
	assert.Equal(t, 10*time.Second, cfg.GetRequestTimeout())
	assert.Empty(t, cfg.GetToken())
	assert.True(t, cfg.GetTokenExpiry().IsZero())
}

func TestLoadConfigMissingServer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"0.1.0\"\n"), 0600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveAndClearToken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := NewConfig("http://localhost:9000", path)
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, cfg.SaveToken("tok-abc", expiry))

	reloaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", reloaded.GetToken())
	assert.True(t, reloaded.GetTokenExpiry().Equal(expiry))

	require.NoError(t, reloaded.ClearToken())

	cleared, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Empty(t, cleared.GetToken())
	assert.True(t, cleared.GetTokenExpiry().IsZero())
}

func TestMorphServer(t *testing.T) {
	assert.Equal(t, "https://example.com:8080", MorphServer("example.com:8080/"))
	assert.Equal(t, "http://localhost:9000", MorphServer("http://localhost:9000"))
	assert.Equal(t, "", MorphServer(""))
}
