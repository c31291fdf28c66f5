package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flowscope.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, int64(1<<20), cfg.HTTP.MaxBodyBytes)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.False(t, cfg.Store.EnforceUniqueUsername)
	assert.Equal(t, "random", cfg.Analysis.Mode)
	assert.Equal(t, 28, cfg.Report.WindowSamples)
	assert.Equal(t, "report", cfg.Report.EmptyPolicy)
	assert.Equal(t, 0, cfg.Retention.Weeks)
	assert.Equal(t, time.Hour, cfg.Retention.Interval)
	assert.Equal(t, 3, cfg.Notify.FailureThreshold)
	assert.Empty(t, cfg.Notify.Endpoints)
	assert.True(t, cfg.Seed.Demo)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: ":9090"
  shutdown_timeout: 3s
log:
  level: debug
  format: console
analysis:
  mode: rules
report:
  window_samples: 14
  empty_policy: error
  messages:
    healthy: "Looking good."
retention:
  weeks: 52
notify:
  endpoints:
    - http://hooks.local/a
    - http://hooks.local/b
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 3*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "rules", cfg.Analysis.Mode)
	assert.Equal(t, 14, cfg.Report.WindowSamples)
	assert.Equal(t, "error", cfg.Report.EmptyPolicy)
	assert.Equal(t, "Looking good.", cfg.Report.Messages.Healthy)
	assert.Equal(t, 52, cfg.Retention.Weeks)
	assert.Equal(t, []string{"http://hooks.local/a", "http://hooks.local/b"}, cfg.Notify.Endpoints)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FLOWSCOPE_HTTP_ADDR", ":7070")
	t.Setenv("FLOWSCOPE_STORE_ENFORCE_UNIQUE_USERNAME", "true")
	t.Setenv("FLOWSCOPE_CACHE_DRIVER", "none")
	t.Setenv("FLOWSCOPE_ANALYSIS_SEED", "42")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.True(t, cfg.Store.EnforceUniqueUsername)
	assert.Equal(t, "none", cfg.Cache.Driver)
	assert.Equal(t, int64(42), cfg.Analysis.Seed)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"bad mode":      "analysis:\n  mode: oracle\n",
		"bad driver":    "store:\n  driver: sqlite\n",
		"no dsn":        "store:\n  driver: postgres\n",
		"zero window":   "report:\n  window_samples: 0\n",
		"bad policy":    "report:\n  empty_policy: skip\n",
		"remote no url": "analysis:\n  mode: remote\n",
		"bad level":     "log:\n  level: loud\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}
