package exits

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Smart Exits — liquidity-tiered take-profit ladder, stop loss, time stop
// Deterministic function of entry price and liquidity; not a forecast.
// ---------------------------------------------------------------------------

// MaxRiskReward is returned by RiskReward when the stop equals the entry.
const MaxRiskReward = 99.0

// Tier caps the realistic upside for a liquidity band.
type Tier struct {
	Name            string  `yaml:"name" json:"name"`
	MaxLiquidityUSD float64 `yaml:"max_liquidity_usd" json:"max_liquidity_usd"` // exclusive; 0 = unbounded
	MaxMultiple     float64 `yaml:"max_multiple" json:"max_multiple"`
}

// TPLevel places a take profit at a fraction of the tier's upside.
type TPLevel struct {
	UpsideFraction float64 `yaml:"upside_fraction"` // 0.25 = a quarter of the way to max multiple
	SellPct        float64 `yaml:"sell_pct"`        // % of original position to sell
}

// Config configures the exit ladder.
type Config struct {
	Tiers           []Tier    `yaml:"tiers"`
	TPLevels        []TPLevel `yaml:"tp_levels"`
	StopLossPct     float64   `yaml:"stop_loss_pct"` // 30 = sell everything at -30%
	TimeStopMinutes int       `yaml:"time_stop_minutes"`

	// Position sizing is off unless both are positive.
	AccountUSD float64 `yaml:"account_usd"`
	RiskPct    float64 `yaml:"risk_pct"` // percent of AccountUSD lost at the stop
}

// DefaultConfig returns the default ladder.
func DefaultConfig() Config {
	return Config{
		Tiers: []Tier{
			{Name: "micro", MaxLiquidityUSD: 10_000, MaxMultiple: 3},
			{Name: "small", MaxLiquidityUSD: 50_000, MaxMultiple: 5},
			{Name: "mid", MaxLiquidityUSD: 250_000, MaxMultiple: 8},
			{Name: "deep", MaxMultiple: 10},
		},
		TPLevels: []TPLevel{
			{UpsideFraction: 0.25, SellPct: 40},
			{UpsideFraction: 0.50, SellPct: 30},
			{UpsideFraction: 1.00, SellPct: 30},
		},
		StopLossPct:     30,
		TimeStopMinutes: 30,
	}
}

// Level is one exit price in the plan.
type Level struct {
	Label    string          `json:"label"`
	Price    decimal.Decimal `json:"price"`
	Multiple decimal.Decimal `json:"multiple"`
	SellPct  float64         `json:"sell_pct"`
}

// Plan is a computed exit ladder.
type Plan struct {
	Valid           bool            `json:"valid"`
	Entry           decimal.Decimal `json:"entry"`
	Tier            string          `json:"tier"`
	MaxMultiple     float64         `json:"max_multiple"`
	TakeProfits     []Level         `json:"take_profits"`
	StopLoss        Level           `json:"stop_loss"`
	TimeStopMinutes int             `json:"time_stop_minutes"`
	TimeStopNote    string          `json:"time_stop_note,omitempty"`
	RiskReward      float64         `json:"risk_reward"`   // TP1 reward over stop risk
	PositionSize    decimal.Decimal `json:"position_size"` // tokens; zero when sizing is off
}

// TierFor returns the tier for a liquidity depth. Negative liquidity counts as zero.
func (c Config) TierFor(liquidityUSD float64) Tier {
	if liquidityUSD < 0 {
		liquidityUSD = 0
	}
	for _, t := range c.Tiers {
		if t.MaxLiquidityUSD <= 0 || liquidityUSD < t.MaxLiquidityUSD {
			return t
		}
	}
	if len(c.Tiers) > 0 {
		return c.Tiers[len(c.Tiers)-1]
	}
	return Tier{Name: "default", MaxMultiple: 2}
}

// Ladder computes the exit plan using DefaultConfig.
func Ladder(entry decimal.Decimal, liquidityUSD float64) Plan {
	return DefaultConfig().Ladder(entry, liquidityUSD)
}

// Ladder computes the exit plan for an entry price and liquidity depth.
// A non-positive entry yields an empty plan with Valid=false.
func (c Config) Ladder(entry decimal.Decimal, liquidityUSD float64) Plan {
	plan := Plan{
		Entry:           entry,
		TakeProfits:     []Level{},
		TimeStopMinutes: c.TimeStopMinutes,
	}
	if !entry.IsPositive() {
		return plan
	}

	tier := c.TierFor(liquidityUSD)
	plan.Valid = true
	plan.Tier = tier.Name
	plan.MaxMultiple = tier.MaxMultiple

	one := decimal.NewFromInt(1)
	upside := decimal.NewFromFloat(tier.MaxMultiple).Sub(one)
	for i, lvl := range c.TPLevels {
		mult := one.Add(upside.Mul(decimal.NewFromFloat(lvl.UpsideFraction)))
		plan.TakeProfits = append(plan.TakeProfits, Level{
			Label:    fmt.Sprintf("TP%d", i+1),
			Price:    entry.Mul(mult),
			Multiple: mult,
			SellPct:  lvl.SellPct,
		})
	}

	slMult := one.Sub(decimal.NewFromFloat(c.StopLossPct / 100))
	plan.StopLoss = Level{
		Label:    "SL",
		Price:    entry.Mul(slMult),
		Multiple: slMult,
		SellPct:  100,
	}

	if len(plan.TakeProfits) > 0 {
		plan.RiskReward = RiskReward(entry, plan.StopLoss.Price, plan.TakeProfits[0].Price)
	}
	if c.AccountUSD > 0 && c.RiskPct > 0 {
		plan.PositionSize = PositionSize(decimal.NewFromFloat(c.AccountUSD), c.RiskPct, entry, plan.StopLoss.Price)
	}

	if c.TimeStopMinutes > 0 && len(plan.TakeProfits) > 0 {
		plan.TimeStopNote = fmt.Sprintf("exit remaining position if %s is not hit within %d minutes",
			plan.TakeProfits[0].Label, c.TimeStopMinutes)
	}
	return plan
}

// PositionSize returns the token quantity that risks riskPct of account if the
// stop is hit. Degenerate inputs yield zero.
func PositionSize(account decimal.Decimal, riskPct float64, entry, stop decimal.Decimal) decimal.Decimal {
	if !account.IsPositive() || riskPct <= 0 || !entry.IsPositive() {
		return decimal.Zero
	}
	perUnit := entry.Sub(stop).Abs()
	if perUnit.IsZero() {
		return decimal.Zero
	}
	risk := account.Mul(decimal.NewFromFloat(riskPct / 100))
	return risk.DivRound(perUnit, 8)
}

// RiskReward returns reward/risk for a trade, MaxRiskReward when the risk is
// zero, and never less than zero.
func RiskReward(entry, stop, target decimal.Decimal) float64 {
	risk := entry.Sub(stop).Abs()
	if risk.IsZero() {
		return MaxRiskReward
	}
	reward := target.Sub(entry)
	if !reward.IsPositive() {
		return 0
	}
	rr, _ := reward.DivRound(risk, 4).Float64()
	if rr > MaxRiskReward {
		return MaxRiskReward
	}
	return rr
}
