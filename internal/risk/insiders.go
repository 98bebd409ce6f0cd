package risk

import (
	"fmt"
	"sort"

	"github.com/nexus-trading/scout/internal/graph"
	"github.com/nexus-trading/scout/internal/snapshot"
)

// coordinationWindowSec is how soon after the first buy other buys count as coordinated.
const coordinationWindowSec = 60

// InsiderAnalysis summarises insider-accumulation signals.
type InsiderAnalysis struct {
	ConnectedBuyers    int      `json:"connected_buyers"`
	CoordinatedWallets int      `json:"coordinated_wallets"`
	Coordinated        bool     `json:"coordinated"`
	DevFirstMinutePct  float64  `json:"dev_first_minute_pct"`
	Prefunded          bool     `json:"prefunded"`
	RiskAdded          int      `json:"risk_added"`
	Flags              []string `json:"flags,omitempty"`
}

type buy struct {
	wallet string
	ts     float64
}

// AnalyzeInsiders looks for early buyers funded by the dev, coordinated first
// buys, dev first-minute accumulation and pre-funded wallets. Each signal adds
// risk independently; pre-funded wallets weigh the most.
func AnalyzeInsiders(s snapshot.Snapshot, cfg graph.Config) InsiderAnalysis {
	a := InsiderAnalysis{}
	buys := earlyBuys(s)

	if dev := s.String(snapshot.FieldDevWallet, ""); dev != "" && len(buys) > 0 {
		wallets := make([]string, 0, len(buys))
		for _, b := range buys {
			wallets = append(wallets, b.wallet)
		}
		g := graph.NewFundingGraph(cfg, graph.EdgesFromSnapshot(s))
		a.ConnectedBuyers = len(g.ConnectedTo(dev, wallets))
	}
	switch {
	case a.ConnectedBuyers >= 3:
		a.RiskAdded += 12
		a.Flags = append(a.Flags, fmt.Sprintf("%d early buyers funded by dev", a.ConnectedBuyers))
	case a.ConnectedBuyers >= 1:
		a.RiskAdded += 5
		a.Flags = append(a.Flags, fmt.Sprintf("%d early buyer(s) funded by dev", a.ConnectedBuyers))
	}

	a.CoordinatedWallets = coordinated(buys)
	if a.CoordinatedWallets >= 3 {
		a.Coordinated = true
		a.RiskAdded += 8
		a.Flags = append(a.Flags, fmt.Sprintf("%d wallets bought within %ds of launch", a.CoordinatedWallets, coordinationWindowSec))
	}

	a.DevFirstMinutePct = s.NonNegFloat(snapshot.FieldDevFirstMinutePct)
	if a.DevFirstMinutePct > 20 {
		a.RiskAdded += 10
		a.Flags = append(a.Flags, fmt.Sprintf("Dev bought %.0f%% in the first minute", a.DevFirstMinutePct))
	}

	a.Prefunded = prefunded(s)
	if a.Prefunded {
		a.RiskAdded += 15
		a.Flags = append(a.Flags, "Pre-funded sniper wallets")
	}
	return a
}

// earlyBuys reads buy-side transactions, falling back to early_buyers records.
// Millisecond timestamps are normalised to seconds.
func earlyBuys(s snapshot.Snapshot) []buy {
	var out []buy
	for _, tx := range s.Records(snapshot.FieldTransactions) {
		side := tx.String("side", tx.String("type", "buy"))
		if side != "buy" {
			continue
		}
		if w := tx.String("wallet", ""); w != "" {
			out = append(out, buy{wallet: w, ts: seconds(tx.NonNegFloat("timestamp"))})
		}
	}
	if len(out) == 0 {
		for _, r := range s.Records(snapshot.FieldEarlyBuyers) {
			if w := r.String("wallet", ""); w != "" {
				out = append(out, buy{wallet: w, ts: seconds(r.NonNegFloat("timestamp"))})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ts < out[j].ts })
	return out
}

func seconds(ts float64) float64 {
	if ts > 1e12 {
		return ts / 1000
	}
	return ts
}

// coordinated counts distinct wallets buying within the window of the first buy.
func coordinated(buys []buy) int {
	if len(buys) == 0 || buys[0].ts <= 0 {
		return 0
	}
	limit := buys[0].ts + coordinationWindowSec
	seen := map[string]bool{}
	for _, b := range buys {
		if b.ts > limit {
			break
		}
		seen[b.wallet] = true
	}
	return len(seen)
}

// prefunded accepts a count, a boolean or a list of wallets.
func prefunded(s snapshot.Snapshot) bool {
	switch v := s[snapshot.FieldPrefundedWallets].(type) {
	case nil:
		return false
	case []any:
		return len(v) > 0
	case []string:
		return len(v) > 0
	case bool:
		return v
	}
	return s.Float(snapshot.FieldPrefundedWallets, 0) > 0
}

// HolderAnalysis is the holder-concentration signal.
type HolderAnalysis struct {
	Top1Pct   float64  `json:"top1_pct"`
	Top10Pct  float64  `json:"top10_pct"`
	RiskAdded int      `json:"risk_added"`
	Flags     []string `json:"flags,omitempty"`
}

// AnalyzeHolders adds risk for concentrated supply.
func AnalyzeHolders(s snapshot.Snapshot) HolderAnalysis {
	h := HolderAnalysis{
		Top1Pct:  s.NonNegFloat(snapshot.FieldTop1HolderPct),
		Top10Pct: s.NonNegFloat(snapshot.FieldTop10HolderPct),
	}
	if h.Top10Pct > 50 {
		h.RiskAdded += 8
		h.Flags = append(h.Flags, fmt.Sprintf("Top 10 holders own %.0f%%", h.Top10Pct))
	}
	if h.Top1Pct > 20 {
		h.RiskAdded += 6
		h.Flags = append(h.Flags, fmt.Sprintf("Top holder owns %.0f%%", h.Top1Pct))
	}
	return h
}
