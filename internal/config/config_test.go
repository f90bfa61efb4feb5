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
	t.Setenv("CHAMA_BASE_URL", "")
	t.Setenv("CHAMA_DEBOUNCE", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, "ws://127.0.0.1:5000/realtime", cfg.RealtimeURL)
	assert.Equal(t, 500*time.Millisecond, cfg.Debounce)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chama.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_url: https://chama.example.com/api/
debounce: 250ms
log_level: debug
`), 0600))

	t.Setenv("CHAMA_BASE_URL", "")
	t.Setenv("CHAMA_DEBOUNCE", "")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://chama.example.com/api", cfg.BaseURL)
	assert.Equal(t, "wss://chama.example.com/api/realtime", cfg.RealtimeURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce)
	assert.Equal(t, "debug", cfg.LogLevel)

	t.Setenv("CHAMA_DEBOUNCE", "1s")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.Debounce)
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	t.Setenv("CHAMA_BASE_URL", "")
	t.Setenv("CHAMA_DEBOUNCE", "")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.BaseURL = "not a url"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Debounce = 0
	assert.Error(t, cfg.Validate())

	t.Setenv("CHAMA_DEBOUNCE", "soon")
	_, err := Load("")
	assert.Error(t, err)
}
