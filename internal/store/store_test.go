package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-trading/scout/internal/checks"
	"github.com/nexus-trading/scout/internal/model"
	"github.com/nexus-trading/scout/internal/rules"
)

const catalogYAML = `
models:
  - id: degen
    name: Degen sniper
    chains: [solana]
    min_liquidity: 2000
    rules:
      - liquidity_10k
      - {id: mcap_under_100k, weight: 3, mandatory: true}
  - id: safe
    require_lp_locked: true

check_models:
  - id: quick
    mandatory: [not_honeypot]
    weighted:
      - {id: risk_score, weight: 2}
`

func TestParseCatalog(t *testing.T) {
	s, err := ParseCatalog([]byte(catalogYAML))
	require.NoError(t, err)
	ctx := context.Background()

	m, err := s.Get(ctx, "degen")
	require.NoError(t, err)
	assert.Equal(t, 2000.0, *m.MinLiquidityUSD)
	assert.Equal(t, 120.0, *m.MaxTokenAgeMinutes) // default kept
	require.Len(t, m.Rules, 2)
	assert.Equal(t, "liquidity_10k", m.Rules[0].ID)
	require.NotNil(t, m.Rules[1].Weight)
	assert.Equal(t, 3.0, *m.Rules[1].Weight)

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "degen", all[0].ID)
	assert.True(t, all[1].RequireLPLocked)

	cm, err := s.GetCheckModel(ctx, "quick")
	require.NoError(t, err)
	assert.Equal(t, []string{"not_honeypot"}, cm.Mandatory)
	assert.Equal(t, 60.0, *cm.MinScore)
}

func TestParseCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing id", "models:\n  - name: anon\n"},
		{"duplicate id", "models:\n  - id: a\n  - id: a\n"},
		{"duplicate check id", "check_models:\n  - id: a\n  - id: a\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	_, err := ParseCatalog([]byte("models: {"))
	assert.Error(t, err)
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o644))

	s, err := LoadCatalog(path)
	require.NoError(t, err)
	_, err = s.Get(context.Background(), "safe")
	assert.NoError(t, err)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadCatalog_ShippedConfig(t *testing.T) {
	st, err := LoadCatalog(filepath.Join("..", "..", "config", "models.yaml"))
	require.NoError(t, err)

	ctx := context.Background()
	models, err := st.List(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, models)
	for _, m := range models {
		for _, ref := range m.Rules {
			_, ok := rules.Get(ref.ID)
			assert.True(t, ok, "model %s references unknown rule %s", m.ID, ref.ID)
		}
	}

	cms, err := st.ListCheckModels(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, cms)
	reg := checks.Default()
	for _, m := range cms {
		ids := append([]string{}, m.Mandatory...)
		for _, w := range m.Weighted {
			ids = append(ids, w.ID)
		}
		for _, id := range ids {
			_, ok := reg.Get(id)
			assert.True(t, ok, "check model %s references unknown check %s", m.ID, id)
		}
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "x")
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.ErrorIs(t, s.Put(ctx, model.Model{}), ErrInvalidInput)

	m := model.DefaultModel()
	m.ID = "x"
	require.NoError(t, s.Put(ctx, m))
	m.MinScore = model.Float(75)
	require.NoError(t, s.Put(ctx, m))

	got, err := s.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 75.0, *got.MinScore)

	*got.MinScore = 1
	again, err := s.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 75.0, *again.MinScore, "stored thresholds must not alias returned models")

	require.NoError(t, s.Put(ctx, model.Model{ID: "bare"}))
	bare, err := s.Get(ctx, "bare")
	require.NoError(t, err)
	require.NotNil(t, bare.MinScore)
	assert.Equal(t, 50.0, *bare.MinScore)

	_, err = s.GetCheckModel(ctx, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}
