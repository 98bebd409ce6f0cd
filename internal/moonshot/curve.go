package moonshot

import (
	"math"

	"github.com/nexus-trading/scout/internal/snapshot"
)

// GraduationSOL is the real SOL reserve at which a bonding curve migrates.
const GraduationSOL = 85.0

// Curve stage names.
const (
	StageLaunch        = "launch"
	StageEarly         = "early"
	StageBuilding      = "building"
	StageMomentum      = "momentum"
	StagePreGraduation = "pre_graduation"
	StageGraduated     = "graduated"
)

// CurveStage places a curve-native token on its bonding curve.
type CurveStage struct {
	Applicable  bool    `json:"applicable"`
	Stage       string  `json:"stage,omitempty"`
	ProgressPct float64 `json:"progress_pct"`
	Bonus       int     `json:"bonus"`
	Note        string  `json:"note,omitempty"`
}

type stageDef struct {
	below float64
	name  string
	bonus int
	note  string
}

var stages = []stageDef{
	{10, StageLaunch, 2, "just launched, most tokens die here"},
	{30, StageEarly, 5, "early buyers in, dev dump risk still high"},
	{60, StageBuilding, 8, "organic demand building"},
	{85, StageMomentum, 12, "strong demand, watch for sniper exits"},
	{100, StagePreGraduation, 15, "close to migration, graduation pump likely"},
}

var graduatedStage = stageDef{name: StageGraduated, bonus: 10, note: "migrated to AMM, liquidity now deep"}

// BondingCurveStage classifies the curve progress of s. Tokens not launched on
// a curve are not applicable and score nothing.
func BondingCurveStage(s snapshot.Snapshot) CurveStage {
	if !s.CurveNative() {
		return CurveStage{}
	}

	if s.Bool(snapshot.FieldGraduated, false) {
		return graduated()
	}

	var progress float64
	if s.Has(snapshot.FieldBondingCurvePct) {
		progress = s.NonNegFloat(snapshot.FieldBondingCurvePct)
	} else {
		progress = s.NonNegFloat(snapshot.FieldRealSOLReserves) / GraduationSOL * 100
	}
	progress = math.Min(progress, 100)

	for _, st := range stages {
		if progress < st.below {
			return CurveStage{Applicable: true, Stage: st.name, ProgressPct: progress, Bonus: st.bonus, Note: st.note}
		}
	}
	return graduated()
}

func graduated() CurveStage {
	return CurveStage{
		Applicable:  true,
		Stage:       graduatedStage.name,
		ProgressPct: 100,
		Bonus:       graduatedStage.bonus,
		Note:        graduatedStage.note,
	}
}
