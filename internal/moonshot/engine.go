package moonshot

import (
	"math"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/nexus-trading/scout/internal/exits"
	"github.com/nexus-trading/scout/internal/narrative"
	"github.com/nexus-trading/scout/internal/risk"
	"github.com/nexus-trading/scout/internal/snapshot"
)

// ---------------------------------------------------------------------------
// Moonshot Engine — upside potential with a confluence discount
// raw = base + category signals; score = raw * factor(#categories with a signal)
// ---------------------------------------------------------------------------

// Category groups upside signals for the confluence count.
type Category string

const (
	CategoryNarrative Category = "narrative"
	CategoryMomentum  Category = "momentum"
	CategorySafety    Category = "safety"
	CategoryMarket    Category = "market"
	CategoryCommunity Category = "community"
	CategoryTechnical Category = "technical"
)

// Categories lists the confluence categories in report order.
var Categories = []Category{
	CategoryNarrative, CategoryMomentum, CategorySafety,
	CategoryMarket, CategoryCommunity, CategoryTechnical,
}

// Label is the categorical moonshot label.
type Label string

const (
	LabelHigh   Label = "HIGH"
	LabelMedium Label = "MEDIUM"
	LabelLow    Label = "LOW"
)

// Contribution is one scored signal.
type Contribution struct {
	Category Category `json:"category"`
	Signal   string   `json:"signal"`
	Points   int      `json:"points"`
}

// Confluence reports how many categories agree and the resulting discount.
type Confluence struct {
	Categories []Category `json:"categories"`
	Count      int        `json:"count"`
	Factor     float64    `json:"factor"`
}

// ConfluenceFactor discounts scores built from few categories. Non-increasing
// as count decreases.
func ConfluenceFactor(count int) float64 {
	switch {
	case count >= 4:
		return 1.0
	case count == 3:
		return 0.85
	case count == 2:
		return 0.65
	default:
		return 0.4
	}
}

// Config configures the moonshot engine.
type Config struct {
	BaseScore  int                  `yaml:"base_score"` // default 35
	Narratives []narrative.Keywords `yaml:"narratives"`
	Exits      exits.Config         `yaml:"exits"`
}

// DefaultConfig returns the default scoring constants.
func DefaultConfig() Config {
	return Config{
		BaseScore:  35,
		Narratives: narrative.DefaultNarratives(),
		Exits:      exits.DefaultConfig(),
	}
}

// Result is the moonshot verdict for one snapshot.
type Result struct {
	Score         int                `json:"moon_score"` // 1-100
	Label         Label              `json:"moon_label"`
	RawScore      int                `json:"raw_score"`
	Profile       snapshot.Profile   `json:"profile"`
	Narrative     string             `json:"narrative,omitempty"`
	Contributions []Contribution     `json:"contributions"`
	Curve         CurveStage         `json:"bonding_curve"`
	Social        SocialVelocity     `json:"social_velocity"`
	Volume        risk.VolumePattern `json:"volume_pattern"`
	Confluence    Confluence         `json:"confluence"`
	Exits         exits.Plan         `json:"smart_exits"`
}

// Fields returns the keys merged back into the snapshot.
func (r Result) Fields() map[string]any {
	return map[string]any{
		snapshot.FieldMoonScore: r.Score,
		snapshot.FieldMoonLabel: string(r.Label),
	}
}

// Engine scores upside potential. Safe for concurrent use.
type Engine struct {
	config     Config
	classifier *narrative.Classifier

	scored atomic.Int64
	faults atomic.Int64
}

// New creates a moonshot engine.
func New(cfg Config) *Engine {
	return &Engine{
		config:     cfg,
		classifier: narrative.NewClassifier(cfg.Narratives),
	}
}

var defaultEngine = New(DefaultConfig())

// Score scores s with the default engine.
func Score(s snapshot.Snapshot, profileHint string) Result {
	return defaultEngine.Score(s, profileHint)
}

// Score computes the moonshot result. profileHint overrides the derived
// lifecycle profile when it names a known profile.
func (e *Engine) Score(s snapshot.Snapshot, profileHint string) (res Result) {
	profile := snapshot.ParseProfile(profileHint)
	if profile == snapshot.ProfileDefault {
		profile = s.Profile()
	}

	defer func() {
		if r := recover(); r != nil {
			e.faults.Add(1)
			log.Warn().Interface("panic", r).Msg("moonshot: scoring failed")
			res = e.finish(Result{Profile: profile, Contributions: []Contribution{}}, e.config.BaseScore)
		}
	}()

	res = Result{Profile: profile, Contributions: []Contribution{}}
	add := func(c Category, signal string, points int) {
		if points != 0 {
			res.Contributions = append(res.Contributions, Contribution{Category: c, Signal: signal, Points: points})
		}
	}

	// Market.
	if mcap := s.NonNegFloat(snapshot.FieldMarketCapUSD); mcap > 0 {
		switch {
		case mcap < 1_000_000:
			add(CategoryMarket, "market cap under $1M", 12)
		case mcap < 5_000_000:
			add(CategoryMarket, "market cap under $5M", 8)
		case mcap < 20_000_000:
			add(CategoryMarket, "market cap under $20M", 5)
		}
	}
	liquidity := s.NonNegFloat(snapshot.FieldLiquidityUSD)
	if liquidity > 50_000 {
		add(CategoryMarket, "liquidity over $50k", 8)
	}

	// Safety.
	if s.Bool(snapshot.FieldMintRevoked, false) {
		add(CategorySafety, "mint revoked", 6)
	}
	if s.NonNegFloat(snapshot.FieldLPLockedPct) > 0 || s.Bool(snapshot.FieldLPBurned, false) {
		add(CategorySafety, "LP locked", 4)
	}

	// Community.
	if s.NonNegFloat(snapshot.FieldHolderCount) >= float64(HolderThreshold(profile)) {
		add(CategoryCommunity, "holder count", 8)
	}
	res.Social = AnalyzeSocialVelocity(s, profile)
	add(CategoryCommunity, "social velocity", res.Social.Bonus)
	add(CategoryCommunity, "social stagnation", res.Social.Penalty)

	// Narrative.
	res.Narrative = s.String(snapshot.FieldNarrative, "")
	if res.Narrative == "" {
		res.Narrative = e.classifier.Classify(
			s.String(snapshot.FieldName, ""),
			s.String(snapshot.FieldSymbol, ""),
			s.String(snapshot.FieldDescription, ""),
		)
	}
	if res.Narrative != "" {
		add(CategoryNarrative, "narrative "+res.Narrative, 6)
	}

	// Momentum.
	if s.Float(snapshot.FieldPriceChange1h, 0) > 0 {
		add(CategoryMomentum, "price up 1h", 5)
	}
	buys, sells := s.NonNegFloat(snapshot.FieldBuys1h), s.NonNegFloat(snapshot.FieldSells1h)
	if buys > 0 && (sells == 0 || buys/sells > 1.5) {
		add(CategoryMomentum, "buy pressure", 5)
	}

	// Technical.
	res.Curve = BondingCurveStage(s)
	if res.Curve.Applicable {
		add(CategoryTechnical, "bonding curve "+res.Curve.Stage, res.Curve.Bonus)
	}
	res.Volume = risk.AnalyzeVolume(risk.VolumeSamples(s))
	add(CategoryTechnical, "volume "+res.Volume.Pattern, res.Volume.MoonAdded)

	raw := e.config.BaseScore
	for _, c := range res.Contributions {
		raw += c.Points
	}

	res.Exits = e.config.Exits.Ladder(decimal.NewFromFloat(s.NonNegFloat(snapshot.FieldPriceUSD)), liquidity)

	return e.finish(res, raw)
}

// finish applies the confluence discount, clamps and labels.
func (e *Engine) finish(res Result, raw int) Result {
	positive := map[Category]bool{}
	for _, c := range res.Contributions {
		if c.Points > 0 {
			positive[c.Category] = true
		}
	}
	res.Confluence.Categories = []Category{}
	for _, c := range Categories {
		if positive[c] {
			res.Confluence.Categories = append(res.Confluence.Categories, c)
		}
	}
	res.Confluence.Count = len(res.Confluence.Categories)
	res.Confluence.Factor = ConfluenceFactor(res.Confluence.Count)

	res.RawScore = raw
	score := int(math.Round(float64(raw) * res.Confluence.Factor))
	res.Score = max(1, min(100, score))
	res.Label = labelFor(res.Score)

	e.scored.Add(1)
	log.Debug().
		Int("score", res.Score).
		Int("raw", raw).
		Int("confluence", res.Confluence.Count).
		Str("profile", string(res.Profile)).
		Msg("moonshot: scored")
	return res
}

func labelFor(score int) Label {
	switch {
	case score >= 75:
		return LabelHigh
	case score >= 50:
		return LabelMedium
	default:
		return LabelLow
	}
}

// HolderThreshold is the holder count that signals a real community for a profile.
func HolderThreshold(p snapshot.Profile) int {
	switch p {
	case snapshot.ProfilePreBonding:
		return 50
	case snapshot.ProfileGraduated:
		return 200
	default:
		return 100
	}
}

// Metrics returns moonshot engine counters.
func (e *Engine) Metrics() map[string]interface{} {
	return map[string]interface{}{
		"scored_total": e.scored.Load(),
		"faults_total": e.faults.Load(),
	}
}
