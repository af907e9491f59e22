package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"heartlink/pkg/config"
)

func TestDurationUnmarshal(t *testing.T) {
	var cfg struct {
		A config.Duration `yaml:"a"`
		B config.Duration `yaml:"b"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("a: 1500ms\nb: 250\n"), &cfg))
	assert.Equal(t, 1500*time.Millisecond, time.Duration(cfg.A))
	assert.Equal(t, 250*time.Millisecond, time.Duration(cfg.B), "bare integers are milliseconds")

	assert.Error(t, yaml.Unmarshal([]byte("a: soon\n"), &cfg))
}

func TestDurationStdDefault(t *testing.T) {
	var d config.Duration
	assert.Equal(t, 5*time.Second, d.Std(5*time.Second))
	d = config.Duration(time.Second)
	assert.Equal(t, time.Second, d.Std(5*time.Second))
}

func TestSizeBytesUnmarshal(t *testing.T) {
	var cfg struct {
		S config.SizeBytes `yaml:"s"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("s: 4MB\n"), &cfg))
	assert.Equal(t, config.SizeBytes(4_000_000), cfg.S)

	require.NoError(t, yaml.Unmarshal([]byte("s: 1024\n"), &cfg))
	assert.Equal(t, config.SizeBytes(1024), cfg.S)
}

func TestLoadEffectiveFilePlusEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: https://api.example.test
  timeout: 3s
realtime:
  url: wss://push.example.test/ws
session:
  path: /tmp/hl
sync:
  reconcile_window: 10s
  confirm_timeout: 5s
  send_rps: 2
  send_burst: 4
`), 0o600))

	t.Setenv("HEARTLINK_WS_URL", "wss://override.example.test/ws")

	eff, err := config.LoadEffective(config.Flags{Config: path, Set: map[string]bool{}})
	require.NoError(t, err)
	cfg := eff.Config
	assert.Equal(t, "https://api.example.test", cfg.API.BaseURL)
	assert.Equal(t, "wss://override.example.test/ws", cfg.Realtime.URL, "env wins over file")
	assert.Equal(t, 10*time.Second, time.Duration(cfg.Sync.ReconcileWindow))
	assert.Equal(t, float64(2), cfg.Sync.SendRPS)
	assert.Equal(t, "config+env", eff.Source)
}

func TestLoadEffectiveFlagsWin(t *testing.T) {
	eff, err := config.LoadEffective(config.Flags{
		API:     "http://flagged:1234",
		WS:      "ws://flagged:1234/ws",
		Session: "./flagged",
		Config:  "/nonexistent/config.yaml",
		Set:     map[string]bool{"api": true},
	})
	require.NoError(t, err)
	assert.Equal(t, "http://flagged:1234", eff.Config.API.BaseURL)
	// unset flags still backfill empty values
	assert.Equal(t, "ws://flagged:1234/ws", eff.Config.Realtime.URL)
	assert.Equal(t, "./flagged", eff.Config.Session.Path)
}

func TestLoadEffectiveMalformedFileFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [not a map"), 0o600))

	_, err := config.LoadEffective(config.Flags{Config: path, Set: map[string]bool{}})
	assert.Error(t, err)
}
