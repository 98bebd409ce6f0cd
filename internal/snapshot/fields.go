package snapshot

import "strings"

// Field names shared by every snapshot reader.
const (
	FieldChain    = "chain"
	FieldAddress  = "address"
	FieldName     = "name"
	FieldSymbol   = "symbol"
	FieldPlatform = "platform"
	FieldProfile  = "profile"

	FieldPriceUSD       = "price_usd"
	FieldLiquidityUSD   = "liquidity_usd"
	FieldMarketCapUSD   = "market_cap_usd"
	FieldVolume1hUSD    = "volume_1h_usd"
	FieldVolume24hUSD   = "volume_24h_usd"
	FieldPriceChange5m  = "price_change_5m"
	FieldPriceChange1h  = "price_change_1h"
	FieldPriceChange24h = "price_change_24h"
	FieldBuys1h         = "buys_1h"
	FieldSells1h        = "sells_1h"
	FieldVolumeSamples  = "volume_samples"
	FieldCandles        = "candles"
	FieldTransactions   = "transactions"

	FieldHolderCount    = "holder_count"
	FieldTop1HolderPct  = "top1_holder_pct"
	FieldTop10HolderPct = "top10_holder_pct"
	FieldBundledPct     = "bundled_wallet_pct"
	FieldLPProviders    = "lp_providers"

	FieldDevWallet           = "dev_wallet"
	FieldDevReputation       = "dev_reputation"
	FieldDevRugCount         = "dev_rug_count"
	FieldDevSuccessfulTokens = "dev_successful_launches"
	FieldDevHoldingPct       = "dev_holding_pct"
	FieldDevWalletAgeDays    = "dev_wallet_age_days"
	FieldDevFirstMinutePct   = "dev_first_minute_pct"
	FieldEarlyBuyers         = "early_buyers"
	FieldFundingEdges        = "funding_edges"
	FieldPrefundedWallets    = "prefunded_wallets"

	FieldHoneypot             = "honeypot"
	FieldMintRevoked          = "mint_authority_revoked"
	FieldFreezeRevoked        = "freeze_authority_revoked"
	FieldLPLockedPct          = "lp_locked_pct"
	FieldLPBurned             = "lp_burned"
	FieldContractVerified     = "contract_verified"
	FieldMetadataMutable      = "metadata_mutable"
	FieldBuyTaxPct            = "buy_tax_pct"
	FieldSellTaxPct           = "sell_tax_pct"
	FieldTokenAgeMinutes      = "token_age_minutes"
	FieldGraduated            = "graduated"
	FieldBondingCurvePct      = "bonding_curve_pct"
	FieldRealSOLReserves      = "real_sol_reserves"
	FieldDescription          = "description"
	FieldNarrative            = "narrative"
	FieldHasTwitter           = "has_twitter"
	FieldHasTelegram          = "has_telegram"
	FieldHasWebsite           = "has_website"
	FieldTwitterFollowers     = "twitter_followers"
	FieldTelegramMembers      = "telegram_members"
	FieldTelegramAtDetection  = "telegram_members_at_detection"
	FieldReplyCount           = "reply_count"
	FieldReplyCountDetection  = "reply_count_at_detection"
	FieldHoursSinceDetection  = "hours_since_detection"
	FieldDetectedAt           = "detected_at"
	FieldObservedAt           = "observed_at"

	FieldRiskScore = "risk_score"
	FieldRiskLevel = "risk_level"
	FieldMoonScore = "moon_score"
	FieldMoonLabel = "moon_label"
)

// DefaultChain is assumed when a snapshot or model names no chain.
const DefaultChain = "SOL"

// Chain returns the normalised chain of the token.
func (s Snapshot) Chain() string {
	c := strings.ToUpper(strings.TrimSpace(s.String(FieldChain, "")))
	if c == "" {
		return DefaultChain
	}
	return c
}

// Honeypot reports whether upstream flagged the token as a honeypot.
func (s Snapshot) Honeypot() bool {
	return s.Bool(FieldHoneypot, false)
}

// DevReputation returns the dev reputation label normalised to
// upper snake case ("serial rugger" → "SERIAL_RUGGER").
func (s Snapshot) DevReputation() string {
	return NormalizeLabel(s.String(FieldDevReputation, ""))
}

// NormalizeLabel upper-cases a free-form label and joins words with underscores.
func NormalizeLabel(v string) string {
	v = strings.ToUpper(strings.TrimSpace(v))
	return strings.Join(strings.FieldsFunc(v, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "_")
}
