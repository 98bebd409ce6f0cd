package scan

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nexus-trading/scout/internal/moonshot"
	"github.com/nexus-trading/scout/internal/risk"
	"github.com/nexus-trading/scout/internal/snapshot"
	"github.com/nexus-trading/scout/internal/walletage"
)

// Enricher derives risk, moonshot and dev-wallet age fields for a snapshot.
type Enricher struct {
	risk *risk.Engine
	moon *moonshot.Engine
	ages walletage.Lookup
	obs  Observer
	now  func() time.Time
}

// NewEnricher builds an enricher. ages may be nil to skip wallet-age lookups;
// nil engines fall back to their defaults.
func NewEnricher(riskEngine *risk.Engine, moonEngine *moonshot.Engine, ages walletage.Lookup, obs Observer) *Enricher {
	if riskEngine == nil {
		riskEngine = risk.New(risk.DefaultConfig())
	}
	if moonEngine == nil {
		moonEngine = moonshot.New(moonshot.DefaultConfig())
	}
	return &Enricher{
		risk: riskEngine,
		moon: moonEngine,
		ages: ages,
		obs:  observerOrNop(obs),
		now:  time.Now,
	}
}

// Enrich returns a new snapshot carrying risk_score, risk_level, moon_score,
// moon_label and, when resolvable, dev_wallet_age_days. s is not modified.
// Lookup failures are logged and leave the age field absent.
func (e *Enricher) Enrich(ctx context.Context, s snapshot.Snapshot) (snapshot.Snapshot, risk.Result, moonshot.Result) {
	out := s.Merge(nil)

	if e.ages != nil && !out.Has(snapshot.FieldDevWalletAgeDays) {
		if dev := out.String(snapshot.FieldDevWallet, ""); dev != "" {
			created, err := e.ages.CreatedAt(ctx, dev)
			if err != nil {
				log.Debug().Err(err).Str("dev_wallet", dev).Msg("scan: wallet age lookup failed")
			} else {
				out[snapshot.FieldDevWalletAgeDays] = walletage.AgeDays(created, e.now())
			}
		}
	}

	rr := e.risk.Score(out)
	out = out.Merge(rr.Fields())
	e.obs.ObserveRisk(rr.Score, string(rr.Level))

	mr := e.moon.Score(out, "")
	out = out.Merge(mr.Fields())
	e.obs.ObserveMoon(mr.Score, string(mr.Label))

	return out, rr, mr
}
