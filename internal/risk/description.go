package risk

import (
	"strings"
	"unicode"
)

// DescriptionAnalysis is the red-flag scan of a token's free-text description.
type DescriptionAnalysis struct {
	Length          int      `json:"length"`
	UrgencyHits     []string `json:"urgency_hits,omitempty"`
	CapsRatio       float64  `json:"caps_ratio"`
	Guarantee       bool     `json:"guarantee"`
	BoilerplateHits int      `json:"boilerplate_hits"`
	Utility         bool     `json:"utility"`
	RiskAdded       int      `json:"risk_added"`
	Flags           []string `json:"flags,omitempty"`
}

var (
	urgencyPhrases = []string{
		"act fast", "ape now", "before it's too late", "buy now", "don't miss",
		"dont miss", "fomo", "hurry", "last chance", "limited time", "next 100x", "now or never",
	}
	guaranteePhrases = []string{
		"can't lose", "cannot lose", "guarantee", "guaranteed", "no risk",
		"risk free", "risk-free", "sure profit",
	}
	boilerplatePhrases = []string{
		"100% safu", "community driven", "community-driven", "fair launch", "join our telegram",
		"lp burned", "next gem", "no team tokens", "renounced", "stealth launch", "to the moon",
	}
	utilityKeywords = map[string]bool{
		"api": true, "app": true, "bridge": true, "dao": true, "governance": true,
		"marketplace": true, "platform": true, "protocol": true, "roadmap": true,
		"sdk": true, "staking": true, "whitepaper": true,
	}
)

const (
	urgencyEach     = 3
	urgencyCap      = 9
	capsRisk        = 5
	guaranteeRisk   = 10
	boilerplateHigh = 6
	boilerplateLow  = 3
	missingRisk     = 3
	longCleanBonus  = -3
	utilityBonus    = -2
	descriptionMin  = -5
	descriptionMax  = 25
)

// AnalyzeDescription scans text for pressure tactics and copy-paste filler.
// The delta is bounded to [-5, +25].
func AnalyzeDescription(text string) DescriptionAnalysis {
	text = strings.TrimSpace(text)
	a := DescriptionAnalysis{Length: len([]rune(text))}
	if text == "" {
		a.RiskAdded = missingRisk
		a.Flags = append(a.Flags, "No description")
		return a
	}
	lower := strings.ToLower(text)

	for _, p := range urgencyPhrases {
		if strings.Contains(lower, p) {
			a.UrgencyHits = append(a.UrgencyHits, p)
		}
	}
	urgency := len(a.UrgencyHits) * urgencyEach
	if urgency > urgencyCap {
		urgency = urgencyCap
	}
	risk := urgency
	if urgency > 0 {
		a.Flags = append(a.Flags, "Urgency language in description")
	}

	a.CapsRatio = capsRatio(text)
	if a.CapsRatio > 0.4 {
		risk += capsRisk
		a.Flags = append(a.Flags, "Excessive capitalisation in description")
	}

	for _, p := range guaranteePhrases {
		if strings.Contains(lower, p) {
			a.Guarantee = true
			break
		}
	}
	if a.Guarantee {
		risk += guaranteeRisk
		a.Flags = append(a.Flags, "Guaranteed-return claims in description")
	}

	for _, p := range boilerplatePhrases {
		if strings.Contains(lower, p) {
			a.BoilerplateHits++
		}
	}
	switch {
	case a.BoilerplateHits >= 3:
		risk += boilerplateHigh
		a.Flags = append(a.Flags, "Boilerplate description")
	case a.BoilerplateHits == 2:
		risk += boilerplateLow
	}

	redFlags := urgency > 0 || a.CapsRatio > 0.4 || a.Guarantee || a.BoilerplateHits >= 2
	if a.Length >= 200 && !redFlags {
		risk += longCleanBonus
	}

	for _, w := range strings.FieldsFunc(lower, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }) {
		if utilityKeywords[w] {
			a.Utility = true
			break
		}
	}
	if a.Utility {
		risk += utilityBonus
	}

	a.RiskAdded = clamp(risk, descriptionMin, descriptionMax)
	return a
}

// capsRatio is the share of upper-case letters; short texts count as zero.
func capsRatio(text string) float64 {
	letters, upper := 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters < 10 {
		return 0
	}
	return float64(upper) / float64(letters)
}
