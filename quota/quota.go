// Package quota holds the pure allow/deny gates of the entitlement
// engine. A gate only looks at a user record, the configured limits and
// the clock; recording the consumption it allowed is the caller's job and
// happens in the database package, after the external call succeeded.
package quota

import (
	"time"

	"voiceclone-bot/config"
	"voiceclone-bot/models"
)

// Decision is a gate outcome. Anything but Allow is terminal for the
// current action and maps to a specific user-facing explanation.
type Decision int

const (
	Allow Decision = iota
	DenyCharLimitExceeded
	DenyTrialsExhausted
	DenyAlreadyCloned
	DenyCloneQuotaReached
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case DenyCharLimitExceeded:
		return "char limit exceeded"
	case DenyTrialsExhausted:
		return "trials exhausted"
	case DenyAlreadyCloned:
		return "already cloned"
	case DenyCloneQuotaReached:
		return "clone quota reached"
	default:
		return "unknown"
	}
}

// FreeCharsRemaining returns what is left of the cumulative free budget.
func FreeCharsRemaining(u *models.User, limits config.Limits) int64 {
	remaining := limits.FreeCharLimitTotal - u.Usage.TotalCharsUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CheckUsage decides whether a synthesis request of n characters may
// proceed. Active premium (trial included) bypasses all free-tier
// counting; its own budget is enforced by premium.Deduct. A request must
// fit entirely within the remaining free budget; there is no truncation.
func CheckUsage(u *models.User, n int, limits config.Limits, now time.Time) Decision {
	if u.PremiumActiveAt(now) {
		return Allow
	}

	remaining := limits.FreeCharLimitTotal - u.Usage.TotalCharsUsed
	if remaining <= 0 {
		return DenyCharLimitExceeded
	}
	if int64(n) > remaining {
		return DenyCharLimitExceeded
	}
	if limits.MaxFreeTrials > 0 && u.Usage.RequestCount >= limits.MaxFreeTrials {
		return DenyTrialsExhausted
	}
	return Allow
}

// CheckClone decides whether the user may clone (or re-clone) a voice.
// Premium users get a counted allowance; free users get exactly one.
func CheckClone(u *models.User, now time.Time) Decision {
	if u.PremiumActiveAt(now) {
		if u.Premium.VoiceClonesUsed < u.Premium.MaxVoiceClones {
			return Allow
		}
		return DenyCloneQuotaReached
	}
	if u.VoiceCloned {
		return DenyAlreadyCloned
	}
	return Allow
}
