package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flowscope/internal/config"
	"flowscope/internal/logs"
	"flowscope/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Analysis.Mode = "rules"
	return cfg
}

func TestNewAppSeedsDemoUser(t *testing.T) {
	cfg := testConfig(t)
	a, err := newApp(context.Background(), cfg, zap.NewNop(), logs.NewRing(10))
	require.NoError(t, err)
	defer a.close()

	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/users/1", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var u store.User
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&u))
	assert.Equal(t, "demo", u.Username)
	assert.Equal(t, "john.doe@example.com", u.Email)
}

func TestNewAppAppliesSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
users:
  - username: alice
    password: secret
    firstName: Alice
    lastName: Smith
    email: alice@example.com
    samples:
      - timestamp: 2026-03-01T08:00:00Z
        heartRate: 72
        bloodOxygen: 98
`), 0o600))

	cfg := testConfig(t)
	cfg.Seed.Demo = false
	cfg.Seed.File = path

	a, err := newApp(context.Background(), cfg, zap.NewNop(), nil)
	require.NoError(t, err)
	defer a.close()

	stats, err := a.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.Stats{Users: 1, Samples: 1}, stats)

	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/reports/generate", bytes.NewBufferString(`{"userId":1}`)))
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestNewAppRejectsMissingSeedFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Seed.File = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := newApp(context.Background(), cfg, zap.NewNop(), nil)
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTP.Addr = "127.0.0.1:0"

	a, err := newApp(context.Background(), cfg, zap.NewNop(), nil)
	require.NoError(t, err)
	defer a.close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.run(ctx) }()

	cancel()
	assert.NoError(t, <-done)
}

func TestClassifyCommand(t *testing.T) {
	color.NoColor = true

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"classify", "heart_rate", "72"}, "heart_rate: healthy"},
		{[]string{"classify", "blood_pressure", "150", "95"}, "blood_pressure: critical"},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs(tt.args)
		require.NoError(t, rootCmd.Execute())
		assert.Contains(t, out.String(), tt.want)
	}

	rootCmd.SetArgs([]string{"classify", "heart_rate", "fast"})
	assert.Error(t, rootCmd.Execute())
}
