package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flowscope/internal/store"
	"flowscope/internal/vitals"
)

const fixture = `
users:
  - username: alice
    password: secret
    firstName: Alice
    lastName: Smith
    email: alice@example.com
    samples:
      - timestamp: 2026-09-01T08:00:00Z
        heartRate: 72
        bloodOxygen: 98
        bloodPressureSystolic: 118
        bloodPressureDiastolic: 75
        ecgData:
          - {timestamp: 1, value: 0.5}
      - timestamp: 2026-09-02T08:00:00Z
        bloodOxygen: 88
      - timestamp: 2026-09-03T08:00:00Z
        heartRate: 90
        healthStatus: concerning
  - username: bob
    email: bob@example.com
`

func TestParseAndApply(t *testing.T) {
	fx, err := Parse([]byte(fixture))
	require.NoError(t, err)
	require.Len(t, fx.Users, 2)

	st := store.NewMemoryStore(store.Options{}, nil)
	ctx := context.Background()

	res, err := Apply(ctx, st, fx, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, Result{Users: 2, Samples: 3}, res)

	alice, err := st.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)

	samples, err := st.GetSamplesForUser(ctx, alice.ID, 0)
	require.NoError(t, err)
	require.Len(t, samples, 3)

	// newest first
	assert.Equal(t, vitals.StatusConcerning, samples[0].HealthStatus)
	assert.Equal(t, vitals.StatusCritical, samples[1].HealthStatus, "derived from spo2 88")
	assert.Equal(t, vitals.StatusHealthy, samples[2].HealthStatus)
	require.Len(t, samples[2].ECGData, 1)
	assert.Equal(t, 0.5, samples[2].ECGData[0].Value)
}

func TestApply_Idempotent(t *testing.T) {
	fx, err := Parse([]byte(fixture))
	require.NoError(t, err)

	st := store.NewMemoryStore(store.Options{}, nil)
	ctx := context.Background()

	_, err = Apply(ctx, st, fx, nil)
	require.NoError(t, err)

	res, err := Apply(ctx, st, fx, nil)
	require.NoError(t, err)
	assert.Equal(t, Result{Skipped: 2}, res)

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Stats{Users: 2, Samples: 3}, stats)
}

func TestApply_RejectsBadStatus(t *testing.T) {
	fx, err := Parse([]byte(`
users:
  - username: x
    email: x@example.com
    samples:
      - timestamp: 2026-09-01T08:00:00Z
        healthStatus: fine
`))
	require.NoError(t, err)

	_, err = Apply(context.Background(), store.NewMemoryStore(store.Options{}, nil), fx, nil)
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("users: [unclosed"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o600))

	fx, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "alice", fx.Users[0].Username)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnsureDemo(t *testing.T) {
	st := store.NewMemoryStore(store.Options{}, nil)
	ctx := context.Background()

	u, created, err := EnsureDemo(ctx, st)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, "john.doe@example.com", u.Email)

	again, created, err := EnsureDemo(ctx, st)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, u.ID, again.ID)
}
