package snapshot

import "strings"

// Profile is a coarse classification of a token's maturity stage.
type Profile string

const (
	ProfilePreBonding  Profile = "pre_bonding"
	ProfileGraduated   Profile = "graduated"
	ProfileNewListing  Profile = "new_listing"
	ProfileEstablished Profile = "established"
	ProfileDefault     Profile = "default"
)

// establishedAfterMinutes is the age (7 days) from which a token counts as established.
const establishedAfterMinutes = 7 * 24 * 60

// curvePlatforms launch tokens on a bonding curve before migrating to an AMM.
var curvePlatforms = map[string]bool{
	"pump.fun":  true,
	"pumpfun":   true,
	"pump":      true,
	"moonshot":  true,
	"letsbonk":  true,
	"bonk.fun":  true,
	"believe":   true,
	"launchlab": true,
}

// ParseProfile maps a free-form hint to a Profile. Unknown hints yield ProfileDefault.
func ParseProfile(hint string) Profile {
	switch Profile(strings.ToLower(strings.TrimSpace(hint))) {
	case ProfilePreBonding, "prebonding", "pre-bonding", "bonding":
		return ProfilePreBonding
	case ProfileGraduated:
		return ProfileGraduated
	case ProfileNewListing, "new", "new-listing":
		return ProfileNewListing
	case ProfileEstablished, "mature":
		return ProfileEstablished
	}
	return ProfileDefault
}

// CurveNative reports whether the token was launched on a bonding curve.
func (s Snapshot) CurveNative() bool {
	if curvePlatforms[strings.ToLower(s.String(FieldPlatform, ""))] {
		return true
	}
	return s.Has(FieldBondingCurvePct) || s.Has(FieldRealSOLReserves)
}

// Profile classifies the token's lifecycle stage. An explicit "profile" field
// wins; otherwise the classification derives from platform, graduation and age.
func (s Snapshot) Profile() Profile {
	if p := ParseProfile(s.String(FieldProfile, "")); p != ProfileDefault {
		return p
	}
	graduated := s.Bool(FieldGraduated, false)
	switch {
	case s.CurveNative() && !graduated:
		return ProfilePreBonding
	case s.NonNegFloat(FieldTokenAgeMinutes) >= establishedAfterMinutes:
		return ProfileEstablished
	case graduated:
		return ProfileGraduated
	}
	return ProfileNewListing
}
