package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-trading/scout/internal/audit"
	"github.com/nexus-trading/scout/internal/checks"
	"github.com/nexus-trading/scout/internal/model"
	"github.com/nexus-trading/scout/internal/observability"
	"github.com/nexus-trading/scout/internal/scan"
	"github.com/nexus-trading/scout/internal/store"
)

var openModel = model.Model{
	ID:                 "open",
	MinTokenAgeMinutes: model.Float(0),
	MaxTokenAgeMinutes: model.Float(1000),
	MinLiquidityUSD:    model.Float(0),
	MinScore:           model.Float(0),
	MaxRiskScore:       model.Float(100),
	MinMoonScore:       model.Float(0),
	BlockSerialRuggers: model.Bool(false),
	Rules:              []model.RuleRef{model.Ref("not_honeypot"), model.Ref("mint_revoked")},
}

func newTestServer(t *testing.T) (*Server, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	require.NoError(t, st.Put(context.Background(), openModel))
	cm := checks.DefaultModel()
	cm.ID = "safety"
	cm.Mandatory = []string{"not_honeypot"}
	cm.Weighted = []checks.WeightedCheck{{ID: "mint_revoked", Weight: 1}, {ID: "socials", Weight: 1}}
	require.NoError(t, st.PutCheckModel(cm))

	srv := NewServer(Deps{
		Models:         st,
		CheckModels:    st,
		DefaultModelID: "open",
		Metrics:        observability.NewMetrics(),
		Health:         observability.NewHealth(0),
	})
	return srv, st
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rec)
	env, ok := body["error"].(map[string]any)
	require.True(t, ok, "missing error envelope: %s", rec.Body.String())
	return env["code"].(string)
}

func TestEvaluate(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler(nil)

	t.Run("default model", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/v1/evaluate",
			`{"snapshot":{"token_age_minutes":10,"honeypot":false,"mint_authority_revoked":true}}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		res := decodeBody(t, rec)["result"].(map[string]any)
		assert.Equal(t, "open", res["model_id"])
		assert.Equal(t, true, res["passed"])
		assert.Equal(t, false, res["invalidated"])
	})

	t.Run("honeypot invalidates", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/v1/evaluate",
			`{"model_id":"open","snapshot":{"token_age_minutes":10,"honeypot":true}}`)
		require.Equal(t, http.StatusOK, rec.Code)

		res := decodeBody(t, rec)["result"].(map[string]any)
		assert.Equal(t, false, res["passed"])
		assert.Equal(t, true, res["invalidated"])
	})

	t.Run("inline model", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/v1/evaluate",
			`{"model":{"id":"inline","rules":["not_honeypot"]},"snapshot":{}}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "inline", decodeBody(t, rec)["result"].(map[string]any)["model_id"])
	})

	t.Run("enrich attaches risk and moonshot", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/v1/evaluate",
			`{"enrich":true,"snapshot":{"token_age_minutes":10,"liquidity_usd":20000}}`)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Contains(t, body, "risk")
		assert.Contains(t, body, "moonshot")
	})

	t.Run("unknown model", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/v1/evaluate", `{"model_id":"nope","snapshot":{}}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, ErrCodeNotFound, errorCode(t, rec))
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/v1/evaluate", `{"snapshot":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, ErrCodeInvalidInput, errorCode(t, rec))
	})
}

func TestEvaluate_NoDefaultModel(t *testing.T) {
	srv := NewServer(Deps{Models: store.NewMemoryStore()})
	rec := do(t, srv.Handler(nil), http.MethodPost, "/v1/evaluate", `{"snapshot":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrCodeInvalidInput, errorCode(t, rec))
}

func TestCheck(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler(nil)

	rec := do(t, h, http.MethodPost, "/v1/check",
		`{"model_id":"safety","snapshot":{"honeypot":false,"mint_authority_revoked":true}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, 50.0, body["score"])
	assert.Equal(t, "D", body["grade"])

	rec = do(t, h, http.MethodPost, "/v1/check", `{"model_id":"safety","snapshot":{"honeypot":true}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "F", decodeBody(t, rec)["grade"])

	rec = do(t, h, http.MethodPost, "/v1/check", `{"snapshot":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRiskAndMoonshot(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler(nil)

	rec := do(t, h, http.MethodPost, "/v1/risk", `{"snapshot":{"liquidity_usd":1000}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	score := body["risk_score"].(float64)
	assert.GreaterOrEqual(t, score, 1.0)
	assert.LessOrEqual(t, score, 100.0)
	assert.Contains(t, []any{"LOW", "MEDIUM", "HIGH"}, body["risk_level"])

	rec = do(t, h, http.MethodPost, "/v1/moonshot?profile=pre_bonding", `{"snapshot":{}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "LOW", body["moon_label"])
}

func TestModels(t *testing.T) {
	srv, st := newTestServer(t)
	h := srv.Handler(nil)

	rec := do(t, h, http.MethodGet, "/v1/models", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["models"], 1)

	rec = do(t, h, http.MethodGet, "/v1/models/open", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "open", decodeBody(t, rec)["id"])

	rec = do(t, h, http.MethodGet, "/v1/models/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	t.Run("put stores the model under the path id", func(t *testing.T) {
		rec := do(t, h, http.MethodPut, "/v1/models/fresh", `{"rules":["not_honeypot",{"id":"lp_locked","weight":4}]}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		m, err := st.Get(context.Background(), "fresh")
		require.NoError(t, err)
		assert.Equal(t, "fresh", m.ID)
		assert.Len(t, m.Rules, 2)
	})

	t.Run("put rejects mismatched id", func(t *testing.T) {
		rec := do(t, h, http.MethodPut, "/v1/models/a", `{"id":"b"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("put rejects unknown rules", func(t *testing.T) {
		rec := do(t, h, http.MethodPut, "/v1/models/a", `{"rules":["no_such_rule"]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, ErrCodeInvalidInput, errorCode(t, rec))
	})

	rec = do(t, h, http.MethodGet, "/v1/check-models", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["check_models"], 1)
}

func TestRules(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler(nil)

	rec := do(t, h, http.MethodGet, "/v1/rules", "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decodeBody(t, rec)["rules"].([]any)
	assert.NotEmpty(t, all)

	rec = do(t, h, http.MethodGet, "/v1/rules?category=liquidity", "")
	require.Equal(t, http.StatusOK, rec.Code)
	liq := decodeBody(t, rec)["rules"].([]any)
	require.NotEmpty(t, liq)
	assert.Less(t, len(liq), len(all))
	for _, r := range liq {
		assert.Equal(t, "LIQUIDITY", r.(map[string]any)["category"])
	}

	rec = do(t, h, http.MethodGet, "/v1/rules?category=vibes", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthMetricsAndRouting(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler([]string{"https://scout.example"})

	rec := do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])

	do(t, h, http.MethodPost, "/v1/evaluate", `{"snapshot":{}}`)
	rec = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "scout_")

	rec = do(t, h, http.MethodGet, "/v2/nothing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ErrCodeNotFound, errorCode(t, rec))

	req := httptest.NewRequest(http.MethodOptions, "/v1/evaluate", nil)
	req.Header.Set("Origin", "https://scout.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	pre := httptest.NewRecorder()
	h.ServeHTTP(pre, req)
	assert.Equal(t, "https://scout.example", pre.Header().Get("Access-Control-Allow-Origin"))
}

func TestAlerts(t *testing.T) {
	trail := audit.NewTrail(nil, 10)
	ctx := context.Background()
	for i, token := range []string{"A", "B", "A"} {
		require.NoError(t, trail.Emit(ctx, scan.Alert{ID: fmt.Sprintf("a-%d", i), Token: token}))
	}
	srv := NewServer(Deps{Models: store.NewMemoryStore(), Alerts: trail})
	h := srv.Handler(nil)

	rec := do(t, h, http.MethodGet, "/v1/alerts?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	alerts := decodeBody(t, rec)["alerts"].([]any)
	require.Len(t, alerts, 2)
	assert.Equal(t, "a-2", alerts[0].(map[string]any)["id"])

	rec = do(t, h, http.MethodGet, "/v1/alerts?token=A", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["alerts"], 2)

	rec = do(t, h, http.MethodGet, "/v1/alerts?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth_Unhealthy(t *testing.T) {
	health := observability.NewHealth(0)
	health.Register("store", observability.PingCheck(func(context.Context) error {
		return assert.AnError
	}))
	srv := NewServer(Deps{Models: store.NewMemoryStore(), Health: health})

	rec := do(t, srv.Handler(nil), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
