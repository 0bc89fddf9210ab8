package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "127.0.0.1:37780", cfg.ListenAddr())
	assert.Equal(t, 3, cfg.Queue.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.Queue.RetryDelay)
	assert.Equal(t, 100, cfg.Cache.MaxSize)
	assert.Equal(t, 0.8, cfg.Cache.Threshold)
	assert.Equal(t, 30*24*time.Hour, cfg.Cache.Retention)
	assert.Equal(t, 5, cfg.Cache.KeepUses)
	assert.Equal(t, 50, cfg.Usage.MonthlyLimit)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Remote.BaseURL, cfg.Remote.BaseURL)
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
server:
  port: 9000
remote:
  base_url: https://reminders.example.com/api
  user_id: u-42
  timeout: 3s
queue:
  max_retries: 5
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Bind, "unset keys keep defaults")
	assert.Equal(t, "https://reminders.example.com/api", cfg.Remote.BaseURL)
	assert.Equal(t, "u-42", cfg.Remote.UserID)
	assert.Equal(t, 3*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 5, cfg.Queue.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.Queue.RetryDelay)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TETHER_REMOTE_URL", "http://remote.test")
	t.Setenv("TETHER_TOKEN", "secret")
	t.Setenv("TETHER_PORT", "4242")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://remote.test", cfg.Remote.BaseURL)
	assert.Equal(t, "secret", cfg.Remote.Token)
	assert.Equal(t, 4242, cfg.Server.Port)
}

func TestLoadBadPortEnv(t *testing.T) {
	t.Setenv("TETHER_PORT", "not-a-port")
	_, err := Load("")
	assert.Error(t, err)
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
}

func TestLoadRejectsUnusableValues(t *testing.T) {
	cases := map[string]string{
		"zero retries":      "queue:\n  max_retries: 0\n",
		"negative limit":    "usage:\n  monthly_limit: -1\n",
		"zero cache size":   "cache:\n  max_size: 0\n",
		"threshold above 1": "cache:\n  similarity_threshold: 1.5\n",
		"zero threshold":    "cache:\n  similarity_threshold: 0\n",
		"negative delay":    "queue:\n  retry_delay: -1s\n",
		"port out of range": "server:\n  port: 70000\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

			_, err := Load(path)
			assert.ErrorContains(t, err, "invalid config")
		})
	}
}

func TestLoadAllowsDisabledIntervals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "queue:\n  drain_interval: 0s\ncache:\n  prune_interval: 0s\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.Queue.DrainInterval)
}

func TestLoadRejectsZeroPortEnv(t *testing.T) {
	t.Setenv("TETHER_PORT", "0")
	_, err := Load("")
	assert.Error(t, err)
}
