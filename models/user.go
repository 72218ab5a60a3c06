package models

import "time"

// Plan types stored in Premium.PlanType.
const (
	PlanTrial   = "trial"
	PlanPremium = "premium"
)

// Who activated a premium plan (Premium.ActivatedBy).
const (
	ActivatedByAdmin = "admin"
	ActivatedByUser  = "user"
)

// Usage tracks free-tier consumption. Both counters only ever go up.
type Usage struct {
	TotalCharsUsed int64 `bson:"total_chars_used"`
	RequestCount   int64 `bson:"request_count"`
}

// Voice is the provider-issued voice profile. One active voice per user;
// re-cloning overwrites it.
type Voice struct {
	VoiceID string `bson:"voice_id,omitempty"`
	Status  string `bson:"status,omitempty"`
}

// Premium is the paid entitlement sub-record. RemainingChars is only
// meaningful while IsPremium is true; trial plans hold the trial budget
// there, paid plans the monthly one.
type Premium struct {
	IsPremium       bool       `bson:"is_premium"`
	PlanType        string     `bson:"plan_type,omitempty"`
	ActivatedAt     *time.Time `bson:"activated_at,omitempty"`
	ExpiresOn       *time.Time `bson:"expires_on,omitempty"`
	DeactivatedOn   *time.Time `bson:"deactivated_on,omitempty"`
	RemainingChars  int64      `bson:"remaining_chars"`
	TotalChars      int64      `bson:"total_chars"`
	VoiceClonesUsed int        `bson:"voice_clones_used"`
	MaxVoiceClones  int        `bson:"max_voice_clones"`
	ActivatedBy     string     `bson:"activated_by,omitempty"`
	ActivatedByID   int64      `bson:"activated_by_id,omitempty"`
}

type User struct {
	TelegramUserID int64     `bson:"telegram_user_id"`
	Username       string    `bson:"username,omitempty"`
	FullName       string    `bson:"full_name,omitempty"`
	CreatedAt      time.Time `bson:"created_at"`
	LastUsedAt     time.Time `bson:"last_used_at,omitempty"`
	LastUpdated    time.Time `bson:"last_updated"`
	Usage          Usage     `bson:"usage"`
	VoiceCloned    bool      `bson:"voice_cloned"`
	Voice          Voice     `bson:"voice"`
	Premium        Premium   `bson:"premium"`
}

// HasVoice reports whether a usable voice profile exists.
func (u *User) HasVoice() bool {
	return u.Voice.VoiceID != ""
}

// PremiumActiveAt reports whether the premium sub-record is live at the
// given instant. It does not touch the store; lazy expiry belongs to
// premium.Service.IsActive.
func (u *User) PremiumActiveAt(now time.Time) bool {
	return u.Premium.IsPremium && u.Premium.ExpiresOn != nil && now.Before(*u.Premium.ExpiresOn)
}
