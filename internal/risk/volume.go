package risk

import (
	"fmt"
	"math"

	"github.com/nexus-trading/scout/internal/snapshot"
)

// Volume pattern names.
const (
	PatternInsufficient = "insufficient"
	PatternAccumulating = "accumulating"
	PatternUniform      = "uniform"
	PatternPumped       = "pumped"
	PatternDying        = "dying"
	PatternNormal       = "normal"
)

// VolumePattern is the shape of recent volume samples. MoonAdded is consumed
// by the moonshot engine.
type VolumePattern struct {
	Pattern   string   `json:"pattern"`
	Samples   int      `json:"samples"`
	CV        float64  `json:"cv"`
	RiskAdded int      `json:"risk_added"`
	MoonAdded int      `json:"moon_added"`
	Flags     []string `json:"flags,omitempty"`
}

// VolumeSamples reads volume_samples, falling back to the volume of each candle.
func VolumeSamples(s snapshot.Snapshot) []float64 {
	if v := s.Floats(snapshot.FieldVolumeSamples); len(v) > 0 {
		return v
	}
	candles := s.Records(snapshot.FieldCandles)
	out := make([]float64, 0, len(candles))
	for _, c := range candles {
		out = append(out, c.NonNegFloat("volume"))
	}
	return out
}

// AnalyzeVolume classifies samples (oldest first). Patterns are checked in
// order: accumulating, uniform, pumped, dying. Negative samples count as zero.
func AnalyzeVolume(samples []float64) VolumePattern {
	p := VolumePattern{Pattern: PatternInsufficient, Samples: len(samples)}
	if len(samples) < 3 {
		return p
	}

	vols := make([]float64, len(samples))
	sum, peak := 0.0, 0.0
	for i, v := range samples {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		vols[i] = v
		sum += v
		peak = math.Max(peak, v)
	}
	if sum == 0 {
		return p
	}

	mean := sum / float64(len(vols))
	variance := 0.0
	for _, v := range vols {
		variance += (v - mean) * (v - mean)
	}
	p.CV = math.Sqrt(variance/float64(len(vols))) / mean

	half := len(vols) / 2
	first, second := 0.0, 0.0
	for i, v := range vols {
		if i < half {
			first += v
		} else {
			second += v
		}
	}
	last := vols[len(vols)-1]

	switch {
	case len(vols) >= 4 && nonDecreasing(vols) && last > vols[0]:
		p.Pattern = PatternAccumulating
		p.MoonAdded = 8
	case p.CV < 0.3:
		p.Pattern = PatternUniform
		p.RiskAdded = 12
		p.Flags = append(p.Flags, fmt.Sprintf("Uniform volume (CV %.2f), possible wash trading", p.CV))
	case second > 0 && first > 5*second:
		p.Pattern = PatternPumped
		p.RiskAdded = 10
		p.Flags = append(p.Flags, "Volume pumped then collapsed")
	case last < 0.2*peak:
		p.Pattern = PatternDying
		p.RiskAdded = 6
		p.Flags = append(p.Flags, "Volume dying")
	default:
		p.Pattern = PatternNormal
	}
	return p
}

func nonDecreasing(v []float64) bool {
	for i := 1; i < len(v); i++ {
		if v[i] < v[i-1] {
			return false
		}
	}
	return true
}
