package checks

import (
	"context"

	"github.com/nexus-trading/scout/internal/snapshot"
)

type predicate func(ctx context.Context, s snapshot.Snapshot, m Model) (bool, error)

func check(id, name string, fn predicate) Check {
	return CheckFunc{CheckID: id, CheckName: name, Fn: func(ctx context.Context, s snapshot.Snapshot, m Model) (bool, error) {
		return fn(ctx, s, m.WithDefaults())
	}}
}

// Builtin returns the built-in checks. Thresholds come from the model.
func Builtin() []Check {
	return []Check{
		check("not_honeypot", "Not a honeypot", func(_ context.Context, s snapshot.Snapshot, _ Model) (bool, error) {
			return !s.Honeypot(), nil
		}),
		check("dev_not_serial_rugger", "Dev is not a serial rugger", func(_ context.Context, s snapshot.Snapshot, _ Model) (bool, error) {
			return s.DevReputation() != "SERIAL_RUGGER", nil
		}),
		check("mint_revoked", "Mint authority revoked", func(_ context.Context, s snapshot.Snapshot, _ Model) (bool, error) {
			return s.Bool(snapshot.FieldMintRevoked, false), nil
		}),
		check("freeze_revoked", "Freeze authority revoked", func(_ context.Context, s snapshot.Snapshot, _ Model) (bool, error) {
			return s.Bool(snapshot.FieldFreezeRevoked, false), nil
		}),
		check("lp_locked", "LP locked or burned", func(_ context.Context, s snapshot.Snapshot, _ Model) (bool, error) {
			return s.NonNegFloat(snapshot.FieldLPLockedPct) > 0 || s.Bool(snapshot.FieldLPBurned, false), nil
		}),
		check("min_liquidity", "Liquidity above model minimum", func(_ context.Context, s snapshot.Snapshot, m Model) (bool, error) {
			return s.NonNegFloat(snapshot.FieldLiquidityUSD) >= *m.MinLiquidityUSD, nil
		}),
		check("top10_concentration", "Top 10 holders within model limit", func(_ context.Context, s snapshot.Snapshot, m Model) (bool, error) {
			if !s.Has(snapshot.FieldTop10HolderPct) {
				return false, nil
			}
			return s.NonNegFloat(snapshot.FieldTop10HolderPct) <= *m.MaxTop10Pct, nil
		}),
		check("dev_holding", "Dev holding within model limit", func(_ context.Context, s snapshot.Snapshot, m Model) (bool, error) {
			return s.NonNegFloat(snapshot.FieldDevHoldingPct) <= *m.MaxDevPct, nil
		}),
		check("min_holders", "Holder count above model minimum", func(_ context.Context, s snapshot.Snapshot, m Model) (bool, error) {
			return s.NonNegFloat(snapshot.FieldHolderCount) >= *m.MinHolders, nil
		}),
		check("risk_score", "Risk score within model limit", func(_ context.Context, s snapshot.Snapshot, m Model) (bool, error) {
			if !s.Has(snapshot.FieldRiskScore) {
				return false, nil
			}
			return s.Float(snapshot.FieldRiskScore, 100) <= *m.MaxRiskScore, nil
		}),
		check("moon_score", "Moon score above model minimum", func(_ context.Context, s snapshot.Snapshot, m Model) (bool, error) {
			return s.Float(snapshot.FieldMoonScore, 0) >= *m.MinMoonScore, nil
		}),
		check("token_age", "Token age within model window", func(_ context.Context, s snapshot.Snapshot, m Model) (bool, error) {
			if !s.Has(snapshot.FieldTokenAgeMinutes) {
				return false, nil
			}
			return s.NonNegFloat(snapshot.FieldTokenAgeMinutes) <= *m.MaxAgeMinutes, nil
		}),
		check("buy_pressure", "More buys than sells", func(_ context.Context, s snapshot.Snapshot, _ Model) (bool, error) {
			return s.NonNegFloat(snapshot.FieldBuys1h) > s.NonNegFloat(snapshot.FieldSells1h), nil
		}),
		check("socials", "Has at least one social link", func(_ context.Context, s snapshot.Snapshot, _ Model) (bool, error) {
			return s.Bool(snapshot.FieldHasTwitter, false) ||
				s.Bool(snapshot.FieldHasTelegram, false) ||
				s.Bool(snapshot.FieldHasWebsite, false), nil
		}),
	}
}
