package rules

import (
	"strings"

	"github.com/nexus-trading/scout/internal/snapshot"
)

func meta(id, name string, c Category, weight float64, mandatory bool) Meta {
	return Meta{RuleID: id, RuleName: name, Cat: c, DefaultWeight: weight, DefaultMandatory: mandatory}
}

func atLeast(m Meta, field string, v float64) Rule {
	return Threshold{Meta: m, Field: field, Op: OpGTE, Value: v}
}

func above(m Meta, field string, v float64) Rule {
	return Threshold{Meta: m, Field: field, Op: OpGT, Value: v}
}

func atMost(m Meta, field string, v float64) Rule {
	return Threshold{Meta: m, Field: field, Op: OpLTE, Value: v}
}

func below(m Meta, field string, v float64) Rule {
	return Threshold{Meta: m, Field: field, Op: OpLT, Value: v}
}

func flag(m Meta, field string, want, def bool) Rule {
	return Flag{Meta: m, Field: field, Want: want, Default: def}
}

// Builtin returns the built-in rule declarations in display order.
func Builtin() []Rule {
	const (
		dev     = CategoryDevReputation
		safety  = CategoryContractSafety
		liq     = CategoryLiquidity
		holders = CategoryHolderDistribution
		mom     = CategoryMomentum
		age     = CategoryTokenAge
		social  = CategoryNarrativeSocials
		mcap    = CategoryMarketCap
		risk    = CategoryRiskScore
	)

	return []Rule{
		// Dev reputation.
		NotEqual{Meta: meta("dev_not_serial_rugger", "Dev is not a serial rugger", dev, 3, true),
			Field: snapshot.FieldDevReputation, Value: "SERIAL_RUGGER"},
		Func{Meta: meta("dev_reputation_clean", "Dev reputation clean", dev, 2, false), Fn: devClean},
		atMost(meta("dev_no_prior_rugs", "Dev has no prior rugs", dev, 2, false), snapshot.FieldDevRugCount, 0),
		atLeast(meta("dev_wallet_aged_30d", "Dev wallet older than 30 days", dev, 1, false), snapshot.FieldDevWalletAgeDays, 30),
		below(meta("dev_holding_under_10", "Dev holds under 10%", dev, 2, false), snapshot.FieldDevHoldingPct, 10),
		below(meta("dev_holding_under_5", "Dev holds under 5%", dev, 1, false), snapshot.FieldDevHoldingPct, 5),
		atLeast(meta("dev_successful_launch", "Dev has a successful prior launch", dev, 1, false), snapshot.FieldDevSuccessfulTokens, 1),

		// Contract safety.
		flag(meta("not_honeypot", "Not a honeypot", safety, 5, true), snapshot.FieldHoneypot, false, false),
		flag(meta("mint_revoked", "Mint authority revoked", safety, 3, false), snapshot.FieldMintRevoked, true, false),
		flag(meta("freeze_revoked", "Freeze authority revoked", safety, 3, false), snapshot.FieldFreezeRevoked, true, false),
		flag(meta("contract_verified", "Contract verified", safety, 1, false), snapshot.FieldContractVerified, true, false),
		flag(meta("metadata_immutable", "Metadata immutable", safety, 1, false), snapshot.FieldMetadataMutable, false, true),
		below(meta("buy_tax_under_5", "Buy tax under 5%", safety, 1, false), snapshot.FieldBuyTaxPct, 5),
		below(meta("sell_tax_under_5", "Sell tax under 5%", safety, 2, false), snapshot.FieldSellTaxPct, 5),

		// Liquidity.
		atLeast(meta("liquidity_5k", "Liquidity over $5,000", liq, 1, false), snapshot.FieldLiquidityUSD, 5_000),
		atLeast(meta("liquidity_10k", "Liquidity over $10,000", liq, 2, false), snapshot.FieldLiquidityUSD, 10_000),
		atLeast(meta("liquidity_50k", "Liquidity over $50,000", liq, 2, false), snapshot.FieldLiquidityUSD, 50_000),
		atLeast(meta("liquidity_100k", "Liquidity over $100,000", liq, 1, false), snapshot.FieldLiquidityUSD, 100_000),
		above(meta("lp_locked", "LP locked", liq, 2, false), snapshot.FieldLPLockedPct, 0),
		atLeast(meta("lp_locked_80", "LP over 80% locked", liq, 2, false), snapshot.FieldLPLockedPct, 80),
		flag(meta("lp_burned", "LP burned", liq, 2, false), snapshot.FieldLPBurned, true, false),
		Ratio{Meta: meta("liquidity_mcap_10pct", "Liquidity at least 10% of market cap", liq, 1, false),
			Numerator: snapshot.FieldLiquidityUSD, Denominator: snapshot.FieldMarketCapUSD, Op: OpGTE, Value: 0.10},

		// Holder distribution.
		atLeast(meta("holders_50", "Over 50 holders", holders, 1, false), snapshot.FieldHolderCount, 50),
		atLeast(meta("holders_100", "Over 100 holders", holders, 1, false), snapshot.FieldHolderCount, 100),
		atLeast(meta("holders_250", "Over 250 holders", holders, 2, false), snapshot.FieldHolderCount, 250),
		atLeast(meta("holders_500", "Over 500 holders", holders, 2, false), snapshot.FieldHolderCount, 500),
		below(meta("top1_under_10", "Top holder under 10%", holders, 2, false), snapshot.FieldTop1HolderPct, 10),
		below(meta("top1_under_5", "Top holder under 5%", holders, 1, false), snapshot.FieldTop1HolderPct, 5),
		below(meta("top10_under_30", "Top 10 holders under 30%", holders, 2, false), snapshot.FieldTop10HolderPct, 30),
		below(meta("top10_under_50", "Top 10 holders under 50%", holders, 1, false), snapshot.FieldTop10HolderPct, 50),
		below(meta("bundles_under_10", "Bundled wallets under 10%", holders, 2, false), snapshot.FieldBundledPct, 10),

		// Momentum.
		atLeast(meta("volume_1h_10k", "1h volume over $10,000", mom, 1, false), snapshot.FieldVolume1hUSD, 10_000),
		atLeast(meta("volume_24h_100k", "24h volume over $100,000", mom, 1, false), snapshot.FieldVolume24hUSD, 100_000),
		Ratio{Meta: meta("buy_pressure", "Buy/sell ratio above 1.5", mom, 2, false),
			Numerator: snapshot.FieldBuys1h, Denominator: snapshot.FieldSells1h, Op: OpGT, Value: 1.5},
		above(meta("price_up_5m", "Price up in last 5 minutes", mom, 1, false), snapshot.FieldPriceChange5m, 0),
		above(meta("price_up_1h", "Price up in last hour", mom, 1, false), snapshot.FieldPriceChange1h, 0),
		below(meta("not_overextended_1h", "1h gain under 300%", mom, 1, false), snapshot.FieldPriceChange1h, 300),
		Func{Meta: meta("txns_1h_100", "Over 100 transactions in last hour", mom, 1, false), Fn: busyHour},

		// Token age.
		atLeast(meta("age_over_5m", "Token older than 5 minutes", age, 1, false), snapshot.FieldTokenAgeMinutes, 5),
		atMost(meta("age_under_30m", "Token under 30 minutes old", age, 1, false), snapshot.FieldTokenAgeMinutes, 30),
		atMost(meta("age_under_2h", "Token under 2 hours old", age, 1, false), snapshot.FieldTokenAgeMinutes, 120),
		atLeast(meta("age_over_24h", "Token survived 24 hours", age, 1, false), snapshot.FieldTokenAgeMinutes, 24*60),

		// Narrative and socials.
		flag(meta("has_twitter", "Has Twitter", social, 1, false), snapshot.FieldHasTwitter, true, false),
		flag(meta("has_telegram", "Has Telegram", social, 1, false), snapshot.FieldHasTelegram, true, false),
		flag(meta("has_website", "Has website", social, 1, false), snapshot.FieldHasWebsite, true, false),
		atLeast(meta("twitter_1k", "Over 1,000 Twitter followers", social, 1, false), snapshot.FieldTwitterFollowers, 1_000),
		atLeast(meta("telegram_500", "Over 500 Telegram members", social, 1, false), snapshot.FieldTelegramMembers, 500),
		Func{Meta: meta("has_narrative", "Matches a trending narrative", social, 2, false), Fn: hasNarrative},
		Func{Meta: meta("has_description", "Has a real description", social, 1, false), Fn: hasDescription},

		// Market cap.
		Func{Meta: meta("mcap_under_100k", "Market cap under $100,000", mcap, 2, false), Fn: mcapBelow(100_000)},
		Func{Meta: meta("mcap_under_1m", "Market cap under $1M", mcap, 1, false), Fn: mcapBelow(1_000_000)},
		Func{Meta: meta("mcap_under_10m", "Market cap under $10M", mcap, 1, false), Fn: mcapBelow(10_000_000)},
		atLeast(meta("mcap_over_50k", "Market cap over $50,000", mcap, 1, false), snapshot.FieldMarketCapUSD, 50_000),

		// Composite scores merged into the snapshot by the risk and moonshot engines.
		below(meta("risk_under_30", "Risk score under 30", risk, 3, false), snapshot.FieldRiskScore, 30),
		below(meta("risk_under_50", "Risk score under 50", risk, 2, false), snapshot.FieldRiskScore, 50),
		atLeast(meta("moon_over_50", "Moon score over 50", risk, 2, false), snapshot.FieldMoonScore, 50),
		atLeast(meta("moon_over_70", "Moon score over 70", risk, 3, false), snapshot.FieldMoonScore, 70),
	}
}

func devClean(s snapshot.Snapshot) (bool, error) {
	switch s.DevReputation() {
	case "CLEAN", "TRUSTED", "GOOD":
		return true, nil
	}
	return false, nil
}

func busyHour(s snapshot.Snapshot) (bool, error) {
	if !s.Has(snapshot.FieldBuys1h) && !s.Has(snapshot.FieldSells1h) {
		return false, nil
	}
	return s.NonNegFloat(snapshot.FieldBuys1h)+s.NonNegFloat(snapshot.FieldSells1h) >= 100, nil
}

func hasNarrative(s snapshot.Snapshot) (bool, error) {
	return strings.TrimSpace(s.String(snapshot.FieldNarrative, "")) != "", nil
}

func hasDescription(s snapshot.Snapshot) (bool, error) {
	return len(strings.TrimSpace(s.String(snapshot.FieldDescription, ""))) >= 20, nil
}

// mcapBelow requires a known, positive market cap under limit.
func mcapBelow(limit float64) func(snapshot.Snapshot) (bool, error) {
	return func(s snapshot.Snapshot) (bool, error) {
		m := s.Float(snapshot.FieldMarketCapUSD, 0)
		return m > 0 && m < limit, nil
	}
}
