package rules

import (
	"errors"
	"fmt"
	"math"

	"github.com/nexus-trading/scout/internal/snapshot"
)

// ---------------------------------------------------------------------------
// Rule Library — named, independently defined predicates over a snapshot
// Rules carry default weight/mandatory semantics that models may override.
// ---------------------------------------------------------------------------

// Category groups rules by the signal family they inspect.
type Category string

const (
	CategoryDevReputation      Category = "DEV REPUTATION"
	CategoryContractSafety     Category = "CONTRACT SAFETY"
	CategoryLiquidity          Category = "LIQUIDITY"
	CategoryHolderDistribution Category = "HOLDER DISTRIBUTION"
	CategoryMomentum           Category = "MOMENTUM"
	CategoryTokenAge           Category = "TOKEN AGE"
	CategoryNarrativeSocials   Category = "NARRATIVE AND SOCIALS"
	CategoryMarketCap          Category = "MARKET CAP"
	CategoryRiskScore          Category = "RISK SCORE"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryDevReputation,
	CategoryContractSafety,
	CategoryLiquidity,
	CategoryHolderDistribution,
	CategoryMomentum,
	CategoryTokenAge,
	CategoryNarrativeSocials,
	CategoryMarketCap,
	CategoryRiskScore,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

// Rule is a single weighted predicate. Evaluate must be a pure function of
// the snapshot; callers go through TryEvaluate so faults never escape.
type Rule interface {
	ID() string
	Name() string
	Category() Category
	Weight() float64
	Mandatory() bool
	Evaluate(s snapshot.Snapshot) (bool, error)
}

// Meta carries the identity and default scoring semantics of a rule.
type Meta struct {
	RuleID           string
	RuleName         string
	Cat              Category
	DefaultWeight    float64
	DefaultMandatory bool
}

func (m Meta) ID() string         { return m.RuleID }
func (m Meta) Name() string       { return m.RuleName }
func (m Meta) Category() Category { return m.Cat }
func (m Meta) Weight() float64    { return m.DefaultWeight }
func (m Meta) Mandatory() bool    { return m.DefaultMandatory }

// ErrMalformedField is returned when a present field cannot be read as the expected type.
var ErrMalformedField = errors.New("malformed field")

// Op is a numeric comparison operator.
type Op int

const (
	OpGTE Op = iota
	OpGT
	OpLTE
	OpLT
)

func (o Op) String() string {
	switch o {
	case OpGT:
		return ">"
	case OpLTE:
		return "<="
	case OpLT:
		return "<"
	default:
		return ">="
	}
}

func (o Op) compare(a, b float64) bool {
	switch o {
	case OpGT:
		return a > b
	case OpLTE:
		return a <= b
	case OpLT:
		return a < b
	default:
		return a >= b
	}
}

// Threshold compares a numeric field against a fixed value.
// A missing field never satisfies the rule.
type Threshold struct {
	Meta
	Field string
	Op    Op
	Value float64
}

func (r Threshold) Evaluate(s snapshot.Snapshot) (bool, error) {
	if !s.Has(r.Field) {
		return false, nil
	}
	v := s.Float(r.Field, math.NaN())
	if math.IsNaN(v) {
		return false, fmt.Errorf("%s: %w", r.Field, ErrMalformedField)
	}
	return r.Op.compare(v, r.Value), nil
}

// Flag checks a boolean field. Default is assumed when the field is missing.
type Flag struct {
	Meta
	Field   string
	Want    bool
	Default bool
}

func (r Flag) Evaluate(s snapshot.Snapshot) (bool, error) {
	return s.Bool(r.Field, r.Default) == r.Want, nil
}

// MaxRatio stands in for a ratio whose denominator is zero and numerator positive.
const MaxRatio = 999.0

// Ratio compares Numerator/Denominator against a fixed value.
type Ratio struct {
	Meta
	Numerator   string
	Denominator string
	Op          Op
	Value       float64
}

func (r Ratio) Evaluate(s snapshot.Snapshot) (bool, error) {
	if !s.Has(r.Numerator) || !s.Has(r.Denominator) {
		return false, nil
	}
	return r.Op.compare(SafeRatio(s.NonNegFloat(r.Numerator), s.NonNegFloat(r.Denominator)), r.Value), nil
}

// SafeRatio divides num by den, returning MaxRatio for a positive numerator over
// a zero denominator and 0 when both are zero.
func SafeRatio(num, den float64) float64 {
	if den <= 0 {
		if num > 0 {
			return MaxRatio
		}
		return 0
	}
	return num / den
}

// NotEqual passes when a label field differs from Value after normalisation.
// A missing field passes.
type NotEqual struct {
	Meta
	Field string
	Value string
}

func (r NotEqual) Evaluate(s snapshot.Snapshot) (bool, error) {
	return snapshot.NormalizeLabel(s.String(r.Field, "")) != snapshot.NormalizeLabel(r.Value), nil
}

// Func adapts an arbitrary predicate.
type Func struct {
	Meta
	Fn func(s snapshot.Snapshot) (bool, error)
}

func (r Func) Evaluate(s snapshot.Snapshot) (bool, error) {
	if r.Fn == nil {
		return false, fmt.Errorf("rule %s: nil predicate", r.RuleID)
	}
	return r.Fn(s)
}
