package risk

import (
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/nexus-trading/scout/internal/graph"
	"github.com/nexus-trading/scout/internal/snapshot"
)

// ---------------------------------------------------------------------------
// Token Risk Engine — base score + independent sub-analysis deltas
// Liquidity depth, description red flags, volume shape, insiders, holders.
// ---------------------------------------------------------------------------

// Level is the categorical risk level.
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

// MaxFlags caps the human-readable findings carried by a Result.
const MaxFlags = 5

// Config configures the risk engine.
type Config struct {
	BaseScore    int          `yaml:"base_score"`  // default 35
	MediumFrom   int          `yaml:"medium_from"` // default 35
	HighFrom     int          `yaml:"high_from"`   // default 70
	FundingGraph graph.Config `yaml:"funding_graph"`
}

// DefaultConfig returns the default scoring constants.
func DefaultConfig() Config {
	return Config{
		BaseScore:    35,
		MediumFrom:   35,
		HighFrom:     70,
		FundingGraph: graph.DefaultConfig(),
	}
}

// Result is the risk verdict for one snapshot.
type Result struct {
	Score       int                 `json:"risk_score"` // 1-100
	Level       Level               `json:"risk_level"`
	Flags       []string            `json:"flags"`
	Liquidity   LiquidityDepth      `json:"liquidity_depth"`
	Description DescriptionAnalysis `json:"description"`
	Volume      VolumePattern       `json:"volume_pattern"`
	Insiders    InsiderAnalysis     `json:"insiders"`
	Holders     HolderAnalysis      `json:"holders"`
}

// Fields returns the keys merged back into the snapshot.
func (r Result) Fields() map[string]any {
	return map[string]any{
		snapshot.FieldRiskScore: r.Score,
		snapshot.FieldRiskLevel: string(r.Level),
	}
}

// Engine scores token risk. It holds only counters and is safe for concurrent use.
type Engine struct {
	config Config

	scored atomic.Int64
	high   atomic.Int64
	faults atomic.Int64
}

// New creates a risk engine.
func New(cfg Config) *Engine {
	return &Engine{config: cfg}
}

var defaultEngine = New(DefaultConfig())

// Score scores s with the default engine.
func Score(s snapshot.Snapshot) Result {
	return defaultEngine.Score(s)
}

// Score computes the risk result for s. It never panics; a failing
// sub-analysis contributes nothing.
func (e *Engine) Score(s snapshot.Snapshot) Result {
	profile := s.Profile()

	res := Result{
		Liquidity:   guard(e, "liquidity", func() LiquidityDepth { return AnalyzeLiquidityDepth(ProvidersFromSnapshot(s), profile) }),
		Description: guard(e, "description", func() DescriptionAnalysis { return AnalyzeDescription(s.String(snapshot.FieldDescription, "")) }),
		Volume:      guard(e, "volume", func() VolumePattern { return AnalyzeVolume(VolumeSamples(s)) }),
		Insiders:    guard(e, "insiders", func() InsiderAnalysis { return AnalyzeInsiders(s, e.config.FundingGraph) }),
		Holders:     guard(e, "holders", func() HolderAnalysis { return AnalyzeHolders(s) }),
	}

	raw := e.config.BaseScore +
		res.Liquidity.RiskAdded +
		res.Description.RiskAdded +
		res.Volume.RiskAdded +
		res.Insiders.RiskAdded +
		res.Holders.RiskAdded
	res.Score = clamp(raw, 1, 100)
	res.Level = e.level(res.Score)

	var flags []string
	flags = append(flags, res.Liquidity.Flags...)
	flags = append(flags, res.Description.Flags...)
	flags = append(flags, res.Volume.Flags...)
	flags = append(flags, res.Insiders.Flags...)
	flags = append(flags, res.Holders.Flags...)
	if len(flags) > MaxFlags {
		flags = flags[:MaxFlags]
	}
	res.Flags = append([]string{}, flags...)

	e.scored.Add(1)
	if res.Level == LevelHigh {
		e.high.Add(1)
	}
	log.Debug().
		Int("score", res.Score).
		Str("level", string(res.Level)).
		Str("profile", string(profile)).
		Msg("risk: scored")

	return res
}

func (e *Engine) level(score int) Level {
	switch {
	case score >= e.config.HighFrom:
		return LevelHigh
	case score >= e.config.MediumFrom:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Metrics returns risk engine counters.
func (e *Engine) Metrics() map[string]interface{} {
	return map[string]interface{}{
		"scored_total": e.scored.Load(),
		"high_total":   e.high.Load(),
		"faults_total": e.faults.Load(),
	}
}

// guard runs one sub-analysis, turning a panic into its zero value.
func guard[T any](e *Engine, name string, fn func() T) (out T) {
	defer func() {
		if r := recover(); r != nil {
			e.faults.Add(1)
			log.Warn().Str("analysis", name).Interface("panic", r).Msg("risk: sub-analysis failed")
			var zero T
			out = zero
		}
	}()
	return fn()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
