package model

import (
	"fmt"
	"strings"

	"github.com/nexus-trading/scout/internal/snapshot"
)

// checkGates evaluates every hard gate in fixed order and returns all failures.
func checkGates(s snapshot.Snapshot, m Model) []string {
	var failures []string
	m = m.WithDefaults()
	minAge, maxAge := *m.MinTokenAgeMinutes, *m.MaxTokenAgeMinutes

	chain := s.Chain()
	enabled := m.EnabledChains()
	if !contains(enabled, chain) {
		failures = append(failures, fmt.Sprintf("Chain %s not enabled (enabled: %s)", chain, strings.Join(enabled, ", ")))
	}

	age := s.NonNegFloat(snapshot.FieldTokenAgeMinutes)
	if age < minAge || age > maxAge {
		failures = append(failures, fmt.Sprintf("Token age %.1fm outside %g-%gm window", age, minAge, maxAge))
	}

	liq := s.NonNegFloat(snapshot.FieldLiquidityUSD)
	if liq < *m.MinLiquidityUSD {
		failures = append(failures, fmt.Sprintf("Liquidity $%.0f below minimum $%.0f", liq, *m.MinLiquidityUSD))
	}

	if *m.BlockSerialRuggers && s.DevReputation() == "SERIAL_RUGGER" {
		failures = append(failures, "Dev is a serial rugger")
	}

	if m.RequireLPLocked && s.NonNegFloat(snapshot.FieldLPLockedPct) <= 0 {
		failures = append(failures, "LP not locked")
	}

	if m.RequireMintRevoked && !s.Bool(snapshot.FieldMintRevoked, false) {
		failures = append(failures, "Mint authority not revoked")
	}

	if m.RequireVerifiedContract && !s.Bool(snapshot.FieldContractVerified, false) {
		failures = append(failures, "Contract not verified")
	}

	risk := s.Float(snapshot.FieldRiskScore, 0)
	if risk > *m.MaxRiskScore {
		failures = append(failures, fmt.Sprintf("Risk score %.0f above max %.0f", risk, *m.MaxRiskScore))
	}

	moon := s.Float(snapshot.FieldMoonScore, 0)
	if moon < *m.MinMoonScore {
		failures = append(failures, fmt.Sprintf("Moon score %.0f below min %.0f", moon, *m.MinMoonScore))
	}

	return failures
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}
