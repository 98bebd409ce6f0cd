package moonshot

import (
	"math"

	"github.com/nexus-trading/scout/internal/snapshot"
)

// maxVelocityBonus caps the social velocity bonus after profile weighting.
const maxVelocityBonus = 12

// SocialVelocity is the community growth rate since detection.
type SocialVelocity struct {
	HoursElapsed    float64 `json:"hours_elapsed"`
	RepliesPerHour  float64 `json:"replies_per_hour"`
	TelegramPerHour float64 `json:"telegram_per_hour"`
	Weight          float64 `json:"weight"`
	Bonus           int     `json:"bonus"`
	Penalty         int     `json:"penalty"` // <= 0
}

// Points returns the net contribution.
func (v SocialVelocity) Points() int { return v.Bonus + v.Penalty }

// AnalyzeSocialVelocity computes reply and Telegram growth per hour since the
// token was detected. Zero elapsed time yields zero rates and no points.
func AnalyzeSocialVelocity(s snapshot.Snapshot, profile snapshot.Profile) SocialVelocity {
	v := SocialVelocity{Weight: 1.0, HoursElapsed: elapsedHours(s)}
	if profile == snapshot.ProfilePreBonding {
		v.Weight = 1.8
	}
	if v.HoursElapsed <= 0 {
		v.HoursElapsed = 0
		return v
	}

	replies := s.NonNegFloat(snapshot.FieldReplyCount)
	repliesAt := s.NonNegFloat(snapshot.FieldReplyCountDetection)
	tg := s.NonNegFloat(snapshot.FieldTelegramMembers)
	tgAt := s.NonNegFloat(snapshot.FieldTelegramAtDetection)

	v.RepliesPerHour = math.Max(replies-repliesAt, 0) / v.HoursElapsed
	v.TelegramPerHour = math.Max(tg-tgAt, 0) / v.HoursElapsed

	raw := 0
	switch {
	case v.RepliesPerHour >= 50:
		raw += 6
	case v.RepliesPerHour >= 20:
		raw += 4
	case v.RepliesPerHour >= 5:
		raw += 2
	}
	switch {
	case v.TelegramPerHour >= 100:
		raw += 6
	case v.TelegramPerHour >= 30:
		raw += 4
	case v.TelegramPerHour >= 10:
		raw += 2
	}
	v.Bonus = int(math.Min(math.Round(float64(raw)*v.Weight), maxVelocityBonus))

	if s.Has(snapshot.FieldReplyCountDetection) && v.HoursElapsed >= 1 && replies <= repliesAt {
		v.Penalty -= 3
	}
	if s.Has(snapshot.FieldTelegramAtDetection) && s.Has(snapshot.FieldTelegramMembers) && tg < tgAt {
		v.Penalty -= 4
	}
	return v
}

// elapsedHours prefers hours_since_detection, then observed_at - detected_at
// (unix seconds or millis), then the token age.
func elapsedHours(s snapshot.Snapshot) float64 {
	if h := s.NonNegFloat(snapshot.FieldHoursSinceDetection); h > 0 {
		return h
	}
	detected := unixSeconds(s.NonNegFloat(snapshot.FieldDetectedAt))
	observed := unixSeconds(s.NonNegFloat(snapshot.FieldObservedAt))
	if detected > 0 && observed > detected {
		return (observed - detected) / 3600
	}
	return s.NonNegFloat(snapshot.FieldTokenAgeMinutes) / 60
}

func unixSeconds(ts float64) float64 {
	if ts > 1e12 {
		return ts / 1000
	}
	return ts
}
