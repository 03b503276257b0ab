package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	assert.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, "en", cfg.Client.Language)
	assert.Equal(t, time.Second, cfg.Upload.PollInterval)
	assert.Equal(t, 30, cfg.Upload.MaxAttempts)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
api:
  base_url: https://api.example.com
  timeout: 10s
client:
  language: de
  specialty: dermatology
upload:
  poll_interval: 500ms
  max_attempts: 10
`)
	assert.NoError(t, os.WriteFile(path, content, 0o644))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	assert.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, "de", cfg.Client.Language)
	assert.Equal(t, "dermatology", cfg.Client.Specialty)
	assert.Equal(t, 500*time.Millisecond, cfg.Upload.PollInterval)
	assert.Equal(t, 10, cfg.Upload.MaxAttempts)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("GUESTCHAT_API_URL", "https://env.example.com")
	t.Setenv("GUESTCHAT_LANGUAGE", "fr")

	cfg, err := Load()
	assert.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.API.BaseURL)
	assert.Equal(t, "fr", cfg.Client.Language)
}

func TestLoad_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("api:\n  base_url: not-a-url\n"), 0o644))
	t.Setenv("CONFIG_PATH", path)

	_, err := Load()
	assert.Error(t, err)
}
