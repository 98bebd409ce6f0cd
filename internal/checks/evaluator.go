package checks

import (
	"context"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/nexus-trading/scout/internal/snapshot"
)

// ---------------------------------------------------------------------------
// Check Evaluator — mandatory checks gate, weighted checks grade A-F
// Any mandatory failure is an immediate F with no partial credit.
// ---------------------------------------------------------------------------

// Grade is a letter grade over the 0-100 check score.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// GradeFor maps a 0-100 score to a letter grade.
func GradeFor(score float64) Grade {
	switch {
	case score >= 85:
		return GradeA
	case score >= 70:
		return GradeB
	case score >= 55:
		return GradeC
	case score >= 40:
		return GradeD
	default:
		return GradeF
	}
}

// Outcome is the result of one check.
type Outcome struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Weight float64 `json:"weight,omitempty"`
	Passed bool    `json:"passed"`
	Error  string  `json:"error,omitempty"`
}

// Result is the verdict of a check model.
type Result struct {
	ModelID         string    `json:"model_id,omitempty"`
	Passed          bool      `json:"passed"`
	Grade           Grade     `json:"grade"`
	Score           float64   `json:"score"` // 0-100
	MandatoryFailed []string  `json:"mandatory_failed"`
	Mandatory       []Outcome `json:"mandatory"`
	Weighted        []Outcome `json:"weighted"`
	EarnedWeight    float64   `json:"earned_weight"`
	TotalWeight     float64   `json:"total_weight"`
}

// Evaluator runs check models against snapshots. Safe for concurrent use.
type Evaluator struct {
	registry *Registry
}

// NewEvaluator creates an evaluator over reg (the built-in checks when nil).
func NewEvaluator(reg *Registry) *Evaluator {
	if reg == nil {
		reg = Default()
	}
	return &Evaluator{registry: reg}
}

// Evaluate runs m against s with the built-in checks.
func Evaluate(ctx context.Context, s snapshot.Snapshot, m Model) Result {
	return NewEvaluator(nil).Evaluate(ctx, s, m)
}

// Evaluate computes the graded verdict of s against m. Unset thresholds take
// their defaults. Faults, unknown ids and cancellation never surface as errors.
func (e *Evaluator) Evaluate(ctx context.Context, s snapshot.Snapshot, m Model) Result {
	m = m.WithDefaults()
	res := Result{
		ModelID:         m.ID,
		Grade:           GradeF,
		MandatoryFailed: []string{},
		Mandatory:       []Outcome{},
		Weighted:        []Outcome{},
	}

	for _, id := range m.Mandatory {
		c, ok := e.registry.Get(id)
		if !ok {
			continue
		}
		out := e.run(ctx, c, s, m)
		res.Mandatory = append(res.Mandatory, out)
		if !out.Passed {
			res.MandatoryFailed = append(res.MandatoryFailed, c.Name())
		}
	}
	if len(res.MandatoryFailed) > 0 {
		log.Debug().Str("model", m.ID).Strs("failed", res.MandatoryFailed).Msg("checks: mandatory gate failed")
		return res
	}

	for _, wc := range m.Weighted {
		c, ok := e.registry.Get(wc.ID)
		if !ok || wc.Weight <= 0 {
			continue
		}
		out := e.run(ctx, c, s, m)
		out.Weight = wc.Weight
		res.Weighted = append(res.Weighted, out)
		res.TotalWeight += wc.Weight
		if out.Passed {
			res.EarnedWeight += wc.Weight
		}
	}

	if res.TotalWeight > 0 {
		res.Score = math.Round(res.EarnedWeight/res.TotalWeight*1000) / 10
	}
	res.Grade = GradeFor(res.Score)
	res.Passed = res.Score >= *m.MinScore

	log.Debug().
		Str("model", m.ID).
		Float64("score", res.Score).
		Str("grade", string(res.Grade)).
		Bool("passed", res.Passed).
		Msg("checks: evaluation complete")

	return res
}

func (e *Evaluator) run(ctx context.Context, c Check, s snapshot.Snapshot, m Model) Outcome {
	out := Outcome{ID: c.ID(), Name: c.Name()}
	passed, err := run(ctx, c, s, m)
	out.Passed = passed
	if err != nil {
		out.Error = err.Error()
	}
	return out
}
