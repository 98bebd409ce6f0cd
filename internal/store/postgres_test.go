package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nexus-trading/scout/internal/model"
)

func setupPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container test skipped in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("scout"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := NewPostgresStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.EnsureSchema(ctx))
	return s
}

func TestPostgresStore(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "degen")
	assert.ErrorIs(t, err, ErrNotFound)

	m := model.DefaultModel()
	m.ID = "degen"
	m.Rules = []model.RuleRef{model.Ref("liquidity_10k"), model.Ref("mcap_under_100k").WithWeight(3)}
	require.NoError(t, s.Put(ctx, m))

	got, err := s.Get(ctx, "degen")
	require.NoError(t, err)
	assert.Equal(t, m.Rules[0].ID, got.Rules[0].ID)
	require.NotNil(t, got.Rules[1].Weight)
	assert.Equal(t, 3.0, *got.Rules[1].Weight)

	m.MinScore = model.Float(80)
	require.NoError(t, s.Put(ctx, m))
	other := model.DefaultModel()
	other.ID = "alpha"
	require.NoError(t, s.Put(ctx, other))

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].ID)
	assert.Equal(t, 80.0, *all[1].MinScore)

	assert.ErrorIs(t, s.Put(ctx, model.Model{}), ErrInvalidInput)
}
