package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nexus-trading/scout/internal/snapshot"
)

// Model is a declarative, externally persisted rule set: hard gates plus an
// ordered list of weighted rule references. Nil thresholds take the
// documented defaults; an explicit zero is kept as zero.
type Model struct {
	ID     string   `yaml:"id" json:"id"`
	Name   string   `yaml:"name" json:"name"`
	Chains []string `yaml:"chains" json:"chains"`

	MinTokenAgeMinutes *float64 `yaml:"min_token_age_minutes,omitempty" json:"min_token_age_minutes,omitempty"`
	MaxTokenAgeMinutes *float64 `yaml:"max_token_age_minutes,omitempty" json:"max_token_age_minutes,omitempty"`
	MinLiquidityUSD    *float64 `yaml:"min_liquidity,omitempty" json:"min_liquidity,omitempty"`
	MinScore           *float64 `yaml:"min_score,omitempty" json:"min_score,omitempty"` // 0-100

	BlockSerialRuggers      *bool `yaml:"block_serial_ruggers,omitempty" json:"block_serial_ruggers,omitempty"`
	RequireLPLocked         bool  `yaml:"require_lp_locked" json:"require_lp_locked"`
	RequireMintRevoked      bool  `yaml:"require_mint_revoked" json:"require_mint_revoked"`
	RequireVerifiedContract bool  `yaml:"require_verified_contract" json:"require_verified_contract"`

	MaxRiskScore *float64 `yaml:"max_risk_score,omitempty" json:"max_risk_score,omitempty"`
	MinMoonScore *float64 `yaml:"min_moon_score,omitempty" json:"min_moon_score,omitempty"`

	Rules []RuleRef `yaml:"rules" json:"rules"`
}

// Default thresholds applied to unset model fields.
const (
	DefaultMinTokenAgeMinutes = 2
	DefaultMaxTokenAgeMinutes = 120
	DefaultMinLiquidityUSD    = 5000
	DefaultMinScore           = 50
	DefaultMaxRiskScore       = 60
	DefaultMinMoonScore       = 40
)

// Float returns a pointer to v, for setting model thresholds.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// DefaultModel returns a model carrying the documented default thresholds
// and no rules.
func DefaultModel() Model {
	return Model{Chains: []string{snapshot.DefaultChain}}.WithDefaults()
}

// WithDefaults returns a copy of m with every unset threshold filled in.
// Set thresholds are copied, so the result shares no pointers with m.
func (m Model) WithDefaults() Model {
	m.MinTokenAgeMinutes = orFloat(m.MinTokenAgeMinutes, DefaultMinTokenAgeMinutes)
	m.MaxTokenAgeMinutes = orFloat(m.MaxTokenAgeMinutes, DefaultMaxTokenAgeMinutes)
	m.MinLiquidityUSD = orFloat(m.MinLiquidityUSD, DefaultMinLiquidityUSD)
	m.MinScore = orFloat(m.MinScore, DefaultMinScore)
	m.MaxRiskScore = orFloat(m.MaxRiskScore, DefaultMaxRiskScore)
	m.MinMoonScore = orFloat(m.MinMoonScore, DefaultMinMoonScore)
	if m.BlockSerialRuggers == nil {
		m.BlockSerialRuggers = Bool(true)
	} else {
		m.BlockSerialRuggers = Bool(*m.BlockSerialRuggers)
	}
	return m
}

func orFloat(v *float64, def float64) *float64 {
	if v == nil {
		return Float(def)
	}
	return Float(*v)
}

// EnabledChains returns the upper-cased chain set, falling back to the default chain.
func (m Model) EnabledChains() []string {
	out := make([]string, 0, len(m.Chains))
	for _, c := range m.Chains {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return []string{snapshot.DefaultChain}
	}
	return out
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

// RuleRef references a registered rule, optionally overriding its default
// weight and mandatory flag for this model.
type RuleRef struct {
	ID        string   `yaml:"id" json:"id"`
	Weight    *float64 `yaml:"weight,omitempty" json:"weight,omitempty"`
	Mandatory *bool    `yaml:"mandatory,omitempty" json:"mandatory,omitempty"`
}

// Ref builds a bare reference that inherits all rule defaults.
func Ref(id string) RuleRef {
	return RuleRef{ID: id}
}

// WithWeight returns a copy of r overriding the weight.
func (r RuleRef) WithWeight(w float64) RuleRef {
	r.Weight = &w
	return r
}

// WithMandatory returns a copy of r overriding the mandatory flag.
func (r RuleRef) WithMandatory(mandatory bool) RuleRef {
	r.Mandatory = &mandatory
	return r
}

func (r RuleRef) bare() bool {
	return r.Weight == nil && r.Mandatory == nil
}

// UnmarshalYAML accepts either a bare rule id or a mapping.
func (r *RuleRef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*r = RuleRef{ID: strings.TrimSpace(value.Value)}
		return nil
	}
	type plain RuleRef
	var p plain
	if err := value.Decode(&p); err != nil {
		return fmt.Errorf("rule ref: %w", err)
	}
	*r = RuleRef(p)
	return nil
}

// MarshalYAML writes bare references as plain ids.
func (r RuleRef) MarshalYAML() (any, error) {
	if r.bare() {
		return r.ID, nil
	}
	type plain RuleRef
	return plain(r), nil
}

// UnmarshalJSON accepts either a bare rule id string or an object.
func (r *RuleRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = RuleRef{ID: strings.TrimSpace(id)}
		return nil
	}
	type plain RuleRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("rule ref: %w", err)
	}
	*r = RuleRef(p)
	return nil
}

// MarshalJSON writes bare references as plain id strings.
func (r RuleRef) MarshalJSON() ([]byte, error) {
	if r.bare() {
		return json.Marshal(r.ID)
	}
	type plain RuleRef
	return json.Marshal(plain(r))
}
