package moonshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-trading/scout/internal/snapshot"
)

func strongSnapshot() snapshot.Snapshot {
	return snapshot.Snapshot{
		"name":                   "Doge AI",
		"market_cap_usd":         500_000,
		"liquidity_usd":          60_000,
		"price_usd":              0.002,
		"mint_authority_revoked": true,
		"lp_locked_pct":          100,
		"holder_count":           300,
		"price_change_1h":        10,
		"buys_1h":                100,
		"sells_1h":               20,
		"volume_samples":         []float64{10, 20, 30, 40},
	}
}

func TestConfluenceFactor_Monotonic(t *testing.T) {
	assert.Equal(t, 0.4, ConfluenceFactor(0))
	assert.Equal(t, 0.4, ConfluenceFactor(1))
	assert.Equal(t, 0.65, ConfluenceFactor(2))
	assert.Equal(t, 0.85, ConfluenceFactor(3))
	assert.Equal(t, 1.0, ConfluenceFactor(6))

	for n := 1; n <= len(Categories); n++ {
		assert.GreaterOrEqual(t, ConfluenceFactor(n), ConfluenceFactor(n-1), "count %d", n)
	}
}

func TestScore_EmptySnapshot(t *testing.T) {
	res := Score(snapshot.Snapshot{}, "")
	assert.Equal(t, 14, res.Score) // 35 * 0.4
	assert.Equal(t, LabelLow, res.Label)
	assert.Equal(t, 0, res.Confluence.Count)
	assert.Empty(t, res.Contributions)
	assert.False(t, res.Exits.Valid)
	assert.False(t, res.Curve.Applicable)
	assert.Equal(t, snapshot.ProfileNewListing, res.Profile)
}

func TestScore_FullConfluence(t *testing.T) {
	res := Score(strongSnapshot(), "")

	assert.Equal(t, 97, res.RawScore)
	assert.Equal(t, 97, res.Score)
	assert.Equal(t, LabelHigh, res.Label)
	assert.Equal(t, 6, res.Confluence.Count)
	assert.Equal(t, 1.0, res.Confluence.Factor)
	assert.Equal(t, "AI_AGENTS", res.Narrative)
	assert.Equal(t, "accumulating", res.Volume.Pattern)

	require.True(t, res.Exits.Valid)
	assert.Equal(t, "mid", res.Exits.Tier)
	assert.Len(t, res.Exits.TakeProfits, 3)
}

func TestScore_FewCategoriesDiscounted(t *testing.T) {
	s := snapshot.Snapshot{
		"market_cap_usd":         500_000,
		"mint_authority_revoked": true,
	}
	res := Score(s, "")
	assert.Equal(t, 53, res.RawScore)
	assert.Equal(t, 0.65, res.Confluence.Factor)
	assert.Equal(t, 34, res.Score)
	assert.Equal(t, []Category{CategorySafety, CategoryMarket}, res.Confluence.Categories)
}

func TestScore_Clamped(t *testing.T) {
	e := New(Config{BaseScore: 200})
	assert.Equal(t, 100, e.Score(strongSnapshot(), "").Score)

	e = New(Config{BaseScore: -50})
	assert.Equal(t, 1, e.Score(snapshot.Snapshot{}, "").Score)
}

func TestScore_ProfileHint(t *testing.T) {
	s := snapshot.Snapshot{"holder_count": 60}

	res := Score(s, "pre_bonding")
	assert.Equal(t, snapshot.ProfilePreBonding, res.Profile)
	assert.Equal(t, 1, res.Confluence.Count)

	res = Score(s, "nonsense")
	assert.Equal(t, snapshot.ProfileNewListing, res.Profile)
	assert.Equal(t, 0, res.Confluence.Count)
}

func TestScore_ExplicitNarrativeWins(t *testing.T) {
	s := snapshot.Snapshot{"name": "Doge AI", "narrative": "GAMING"}
	assert.Equal(t, "GAMING", Score(s, "").Narrative)
}

func TestResult_Fields(t *testing.T) {
	res := Score(strongSnapshot(), "")
	merged := snapshot.Snapshot{}.Merge(res.Fields())
	assert.Equal(t, 97.0, merged.Float(snapshot.FieldMoonScore, 0))
	assert.Equal(t, "HIGH", merged.String(snapshot.FieldMoonLabel, ""))
}

func TestBondingCurveStage(t *testing.T) {
	tests := []struct {
		name     string
		s        snapshot.Snapshot
		stage    string
		bonus    int
		progress float64
	}{
		{"not curve native", snapshot.Snapshot{"platform": "raydium"}, "", 0, 0},
		{"launch", snapshot.Snapshot{"platform": "pump.fun", "bonding_curve_pct": 5}, StageLaunch, 2, 5},
		{"early", snapshot.Snapshot{"bonding_curve_pct": 10}, StageEarly, 5, 10},
		{"building from reserves", snapshot.Snapshot{"real_sol_reserves": 42.5}, StageBuilding, 8, 50},
		{"momentum", snapshot.Snapshot{"bonding_curve_pct": 70}, StageMomentum, 12, 70},
		{"pre graduation", snapshot.Snapshot{"bonding_curve_pct": 95}, StagePreGraduation, 15, 95},
		{"full curve", snapshot.Snapshot{"real_sol_reserves": 120}, StageGraduated, 10, 100},
		{"graduated flag", snapshot.Snapshot{"platform": "pump.fun", "graduated": true}, StageGraduated, 10, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := BondingCurveStage(tt.s)
			assert.Equal(t, tt.stage != "", st.Applicable)
			assert.Equal(t, tt.stage, st.Stage)
			assert.Equal(t, tt.bonus, st.Bonus)
			assert.InDelta(t, tt.progress, st.ProgressPct, 1e-9)
		})
	}
}

func TestAnalyzeSocialVelocity(t *testing.T) {
	s := snapshot.Snapshot{
		"hours_since_detection":    2,
		"reply_count":              60,
		"reply_count_at_detection": 20,
	}

	t.Run("profile weighting", func(t *testing.T) {
		v := AnalyzeSocialVelocity(s, snapshot.ProfileNewListing)
		assert.Equal(t, 20.0, v.RepliesPerHour)
		assert.Equal(t, 4, v.Bonus)

		v = AnalyzeSocialVelocity(s, snapshot.ProfilePreBonding)
		assert.Equal(t, 7, v.Bonus) // round(4 * 1.8)
	})

	t.Run("capped", func(t *testing.T) {
		hot := snapshot.Snapshot{
			"hours_since_detection":         1,
			"reply_count":                   100,
			"reply_count_at_detection":      0,
			"telegram_members":              500,
			"telegram_members_at_detection": 100,
		}
		assert.Equal(t, 12, AnalyzeSocialVelocity(hot, snapshot.ProfilePreBonding).Bonus)
	})

	t.Run("stagnation", func(t *testing.T) {
		dead := snapshot.Snapshot{
			"hours_since_detection":         3,
			"reply_count":                   20,
			"reply_count_at_detection":      20,
			"telegram_members":              90,
			"telegram_members_at_detection": 100,
		}
		v := AnalyzeSocialVelocity(dead, snapshot.ProfileDefault)
		assert.Equal(t, 0, v.Bonus)
		assert.Equal(t, -7, v.Penalty)
		assert.Equal(t, -7, v.Points())
	})

	t.Run("no elapsed time", func(t *testing.T) {
		v := AnalyzeSocialVelocity(snapshot.Snapshot{"reply_count": 500}, snapshot.ProfileDefault)
		assert.Zero(t, v.Points())
		assert.Zero(t, v.RepliesPerHour)
	})

	t.Run("timestamps in millis", func(t *testing.T) {
		ts := snapshot.Snapshot{"detected_at": 1_700_000_000_000, "observed_at": 1_700_007_200_000}
		assert.InDelta(t, 2.0, elapsedHours(ts), 1e-9)
	})
}

func TestEngine_Metrics(t *testing.T) {
	e := New(DefaultConfig())
	e.Score(snapshot.Snapshot{}, "")
	e.Score(strongSnapshot(), "")
	assert.Equal(t, int64(2), e.Metrics()["scored_total"])
}
