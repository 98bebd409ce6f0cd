package checks

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// WeightedCheck references a check contributing weight to the percentage score.
type WeightedCheck struct {
	ID     string  `yaml:"id" json:"id"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// Model is a check-style scoring model: mandatory checks gate, weighted checks
// grade. Nil thresholds take the documented defaults.
type Model struct {
	ID        string          `yaml:"id" json:"id"`
	Name      string          `yaml:"name" json:"name"`
	Mandatory []string        `yaml:"mandatory" json:"mandatory"`
	Weighted  []WeightedCheck `yaml:"weighted" json:"weighted"`
	MinScore  *float64        `yaml:"min_score,omitempty" json:"min_score,omitempty"` // 0-100

	// Thresholds read by the built-in checks.
	MinLiquidityUSD *float64 `yaml:"min_liquidity,omitempty" json:"min_liquidity,omitempty"`
	MaxTop10Pct     *float64 `yaml:"max_top10_pct,omitempty" json:"max_top10_pct,omitempty"`
	MaxDevPct       *float64 `yaml:"max_dev_pct,omitempty" json:"max_dev_pct,omitempty"`
	MinHolders      *float64 `yaml:"min_holders,omitempty" json:"min_holders,omitempty"`
	MaxRiskScore    *float64 `yaml:"max_risk_score,omitempty" json:"max_risk_score,omitempty"`
	MinMoonScore    *float64 `yaml:"min_moon_score,omitempty" json:"min_moon_score,omitempty"`
	MaxAgeMinutes   *float64 `yaml:"max_age_minutes,omitempty" json:"max_age_minutes,omitempty"`
}

// Float returns a pointer to v, for setting model thresholds.
func Float(v float64) *float64 { return &v }

// DefaultModel returns the default check model thresholds with no checks.
func DefaultModel() Model {
	return Model{}.WithDefaults()
}

// WithDefaults returns a copy of m with every unset threshold filled in.
// The result shares no threshold pointers with m.
func (m Model) WithDefaults() Model {
	m.MinScore = orFloat(m.MinScore, 60)
	m.MinLiquidityUSD = orFloat(m.MinLiquidityUSD, 5000)
	m.MaxTop10Pct = orFloat(m.MaxTop10Pct, 50)
	m.MaxDevPct = orFloat(m.MaxDevPct, 10)
	m.MinHolders = orFloat(m.MinHolders, 50)
	m.MaxRiskScore = orFloat(m.MaxRiskScore, 60)
	m.MinMoonScore = orFloat(m.MinMoonScore, 40)
	m.MaxAgeMinutes = orFloat(m.MaxAgeMinutes, 24*60)
	return m
}

func orFloat(v *float64, def float64) *float64 {
	if v == nil {
		return Float(def)
	}
	return Float(*v)
}

// UnmarshalYAML fills absent thresholds with their defaults.
func (m *Model) UnmarshalYAML(value *yaml.Node) error {
	type plain Model
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*m = Model(p).WithDefaults()
	return nil
}

// UnmarshalJSON fills absent thresholds with their defaults.
func (m *Model) UnmarshalJSON(data []byte) error {
	type plain Model
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = Model(p).WithDefaults()
	return nil
}
