package risk

import (
	"fmt"
	"math"
	"sort"

	"github.com/nexus-trading/scout/internal/snapshot"
)

// Provider is one LP position in the token's pool.
type Provider struct {
	Address string  `json:"address"`
	Share   float64 `json:"share"` // any unit; normalised against the total
}

// LiquidityDepth describes how the pool's liquidity is distributed.
type LiquidityDepth struct {
	Providers     int      `json:"providers"`
	TopSharePct   float64  `json:"top_share_pct"`
	ProfileWeight float64  `json:"profile_weight"`
	RiskAdded     int      `json:"risk_added"`
	Flags         []string `json:"flags,omitempty"`
}

// ProfileWeight scales liquidity-depth risk by lifecycle profile. Curve tokens
// have no LP yet; mature pools should be deep.
func ProfileWeight(p snapshot.Profile) float64 {
	switch p {
	case snapshot.ProfilePreBonding:
		return 0.3
	case snapshot.ProfileGraduated:
		return 1.5
	case snapshot.ProfileEstablished:
		return 2.0
	default:
		return 1.0
	}
}

// ProvidersFromSnapshot reads lp_providers records ({address, share_pct} or
// {address, amount}). Records without a positive share are skipped.
func ProvidersFromSnapshot(s snapshot.Snapshot) []Provider {
	recs := s.Records(snapshot.FieldLPProviders)
	out := make([]Provider, 0, len(recs))
	for _, r := range recs {
		share := r.NonNegFloat("share_pct")
		if share == 0 {
			share = r.NonNegFloat("amount")
		}
		if share <= 0 {
			continue
		}
		out = append(out, Provider{Address: r.String("address", ""), Share: share})
	}
	return out
}

// AnalyzeLiquidityDepth scores LP concentration. No providers means no signal.
func AnalyzeLiquidityDepth(providers []Provider, profile snapshot.Profile) LiquidityDepth {
	d := LiquidityDepth{Providers: len(providers), ProfileWeight: ProfileWeight(profile)}
	if len(providers) == 0 {
		return d
	}

	total := 0.0
	shares := make([]float64, 0, len(providers))
	for _, p := range providers {
		total += p.Share
		shares = append(shares, p.Share)
	}
	if total <= 0 {
		return d
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(shares)))
	d.TopSharePct = shares[0] / total * 100

	raw := 0
	switch {
	case d.Providers == 1:
		raw = 15
		d.Flags = append(d.Flags, "Single LP provider")
	case d.TopSharePct > 80:
		raw = 10
		d.Flags = append(d.Flags, fmt.Sprintf("Top LP provider holds %.0f%% of liquidity", d.TopSharePct))
	case d.Providers >= 5 && d.TopSharePct <= 50:
		raw = -8
	}
	d.RiskAdded = int(math.Round(float64(raw) * d.ProfileWeight))
	return d
}
