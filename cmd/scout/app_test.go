package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-trading/scout/internal/config"
	"github.com/nexus-trading/scout/internal/observability"
	"github.com/nexus-trading/scout/internal/store"
)

func TestNewApp_DefaultCatalog(t *testing.T) {
	c := config.Default()
	a, err := newApp(context.Background(), c)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "default", c.Scoring.DefaultModelID)
	models, err := a.selectModels(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Len(t, models[0].Rules, a.rules.Len())

	_, err = a.selectModels(context.Background(), []string{"missing"})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Nil(t, a.metrics)

	h := a.health.Check(context.Background())
	require.Len(t, h.Components, 1)
	assert.Equal(t, "feed", h.Components[0].Name)
	assert.Equal(t, observability.StatusHealthy, h.Status)
}

func TestNewApp_CatalogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
models:
  - id: degen
    rules: [not_honeypot]
check_models:
  - id: safety
    mandatory: [not_honeypot]
`), 0o600))

	c := config.Default()
	c.Scoring.ModelsFile = path
	c.Metrics.Enabled = true
	a, err := newApp(context.Background(), c)
	require.NoError(t, err)
	defer a.Close()

	m, err := a.models.Get(context.Background(), "degen")
	require.NoError(t, err)
	assert.Len(t, m.Rules, 1)
	_, err = a.checkModels.GetCheckModel(context.Background(), "safety")
	require.NoError(t, err)
	assert.NotNil(t, a.metrics)
	assert.Empty(t, c.Scoring.DefaultModelID)
}

func TestRunRules_JSON(t *testing.T) {
	rulesFormat, rulesCategory = "json", "liquidity"
	defer func() { rulesFormat, rulesCategory = "table", "" }()

	var buf bytes.Buffer
	rulesCmd.SetOut(&buf)
	require.NoError(t, runRules(rulesCmd, nil))
	assert.Contains(t, buf.String(), `"category": "LIQUIDITY"`)

	rulesCategory = "vibes"
	assert.Error(t, runRules(rulesCmd, nil))
}
