package model

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/nexus-trading/scout/internal/rules"
	"github.com/nexus-trading/scout/internal/snapshot"
)

// ---------------------------------------------------------------------------
// Model Evaluator — honeypot veto → hard gates → weighted rules → verdict
// Pure function of (snapshot, model); predicate faults count as failed rules.
// ---------------------------------------------------------------------------

// HoneypotReason is the invalidation reason of the honeypot short-circuit.
const HoneypotReason = "Honeypot detected"

// RuleView is the per-rule diagnostic entry of a Result.
type RuleView struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Weight    float64 `json:"weight"`
	Mandatory bool    `json:"mandatory"`
}

// Result is the verdict of evaluating one snapshot against one model.
type Result struct {
	ModelID            string     `json:"model_id,omitempty"`
	Passed             bool       `json:"passed"`
	Invalidated        bool       `json:"invalidated"`
	InvalidationReason string     `json:"invalidation_reason,omitempty"`
	Score              float64    `json:"score"`
	MaxPossibleScore   float64    `json:"max_possible_score"`
	PassedRules        []RuleView `json:"passed_rules"`
	FailedRules        []RuleView `json:"failed_rules"`
	MandatoryFailed    []string   `json:"mandatory_failed"`
	GateFailures       []string   `json:"gate_failures"`
	ConfluenceCount    int        `json:"confluence_count"`
	ConfluenceFraction string     `json:"confluence_fraction"`
}

// ScorePct returns the score as a percentage of the maximum possible score,
// or 0 when no rule was evaluated.
func (r Result) ScorePct() float64 {
	if r.MaxPossibleScore <= 0 {
		return 0
	}
	return r.Score / r.MaxPossibleScore * 100
}

func newResult(modelID string) Result {
	return Result{
		ModelID:            modelID,
		PassedRules:        []RuleView{},
		FailedRules:        []RuleView{},
		MandatoryFailed:    []string{},
		GateFailures:       []string{},
		ConfluenceFraction: "0/0",
	}
}

// FaultObserver is notified of every absorbed predicate fault.
type FaultObserver func(ruleID string, err error)

// Evaluator evaluates snapshots against models using a rule registry.
// It holds no mutable state and is safe for concurrent use.
type Evaluator struct {
	registry *rules.Registry
	onFault  FaultObserver
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithFaultObserver registers a callback for absorbed predicate faults.
func WithFaultObserver(fn FaultObserver) Option {
	return func(e *Evaluator) { e.onFault = fn }
}

// NewEvaluator creates an evaluator over reg (the default registry when nil).
func NewEvaluator(reg *rules.Registry, opts ...Option) *Evaluator {
	if reg == nil {
		reg = rules.Default()
	}
	e := &Evaluator{registry: reg}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs m against s with the default registry.
func Evaluate(s snapshot.Snapshot, m Model) Result {
	return NewEvaluator(nil).Evaluate(s, m)
}

// Evaluate computes the verdict of s against m.
func (e *Evaluator) Evaluate(s snapshot.Snapshot, m Model) Result {
	m = m.WithDefaults()
	res := newResult(m.ID)

	// Absolute veto: nothing else is looked at.
	if s.Honeypot() {
		res.Invalidated = true
		res.InvalidationReason = HoneypotReason
		res.GateFailures = append(res.GateFailures, HoneypotReason)
		return res
	}

	res.GateFailures = append(res.GateFailures, checkGates(s, m)...)

	for _, ref := range m.Rules {
		rule, ok := e.registry.Get(ref.ID)
		if !ok {
			continue
		}

		weight := rule.Weight()
		if ref.Weight != nil {
			weight = *ref.Weight
		}
		mandatory := rule.Mandatory()
		if ref.Mandatory != nil {
			mandatory = *ref.Mandatory
		}
		res.MaxPossibleScore += weight

		view := RuleView{ID: rule.ID(), Name: rule.Name(), Weight: weight, Mandatory: mandatory}
		passed, err := rules.Safe(rule.ID(), func() (bool, error) {
			return rule.Evaluate(s)
		})
		if err != nil && e.onFault != nil {
			e.onFault(rule.ID(), err)
		}

		if passed {
			res.Score += weight
			res.PassedRules = append(res.PassedRules, view)
			continue
		}
		res.FailedRules = append(res.FailedRules, view)
		if mandatory {
			res.MandatoryFailed = append(res.MandatoryFailed, rule.Name())
		}
	}

	res.Invalidated = len(res.GateFailures) > 0 || len(res.MandatoryFailed) > 0
	switch {
	case len(res.GateFailures) > 0:
		res.InvalidationReason = res.GateFailures[0]
	case len(res.MandatoryFailed) > 0:
		res.InvalidationReason = "Mandatory rules failed: " + strings.Join(res.MandatoryFailed, ", ")
	}
	res.Passed = !res.Invalidated && res.Score >= *m.MinScore

	res.ConfluenceCount = len(res.PassedRules)
	res.ConfluenceFraction = fmt.Sprintf("%d/%d", len(res.PassedRules), len(res.PassedRules)+len(res.FailedRules))

	log.Debug().
		Str("model", m.ID).
		Bool("passed", res.Passed).
		Float64("score", res.Score).
		Float64("max", res.MaxPossibleScore).
		Int("gate_failures", len(res.GateFailures)).
		Msg("model: evaluation complete")

	return res
}

// EvaluateAll evaluates s against every model in order.
func (e *Evaluator) EvaluateAll(s snapshot.Snapshot, models []Model) []Result {
	out := make([]Result, 0, len(models))
	for _, m := range models {
		out = append(out, e.Evaluate(s, m))
	}
	return out
}
