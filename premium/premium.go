// Package premium centralizes subscription state: activation,
// deactivation, lazy expiry and metered character deduction. Expiry is
// checked in exactly one place (IsActive) so its semantics cannot drift
// between call sites.
package premium

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"voiceclone-bot/config"
	"voiceclone-bot/models"
)

// Store is the slice of the user accessor the premium manager needs.
type Store interface {
	SetPremium(ctx context.Context, id int64, p models.Premium) error
	ClearPremium(ctx context.Context, id int64, deactivatedOn time.Time) error
	DeductPremiumChars(ctx context.Context, id int64, chars int64) (bool, error)
	RefundPremiumChars(ctx context.Context, id int64, chars int64) error
}

type Service struct {
	store  Store
	limits config.Limits
	now    func() time.Time
}

func NewService(store Store, limits config.Limits) *Service {
	return &Service{store: store, limits: limits, now: func() time.Time { return time.Now().UTC() }}
}

// ActivateOpts qualifies an activation.
type ActivateOpts struct {
	Trial   bool
	AdminID int64 // 0 when the user activated it themselves (payment)
}

// Activate turns premium on for durationDays. Re-activating overwrites:
// the budget and expiry are reset, never stacked.
func (s *Service) Activate(ctx context.Context, userID int64, durationDays int, opts ActivateOpts) error {
	now := s.now()
	expires := now.AddDate(0, 0, durationDays)

	p := models.Premium{
		IsPremium:      true,
		PlanType:       models.PlanPremium,
		ActivatedAt:    &now,
		ExpiresOn:      &expires,
		MaxVoiceClones: s.limits.MaxVoiceClonesPremium,
		ActivatedBy:    models.ActivatedByUser,
	}
	if opts.Trial {
		p.PlanType = models.PlanTrial
		p.RemainingChars = s.limits.TrialCharBudget
		p.TotalChars = s.limits.TrialCharBudget
	} else {
		p.RemainingChars = s.limits.MonthlyPremiumCharBudget
		p.TotalChars = s.limits.MonthlyPremiumCharBudget
	}
	if opts.AdminID != 0 {
		p.ActivatedBy = models.ActivatedByAdmin
		p.ActivatedByID = opts.AdminID
	}

	if err := s.store.SetPremium(ctx, userID, p); err != nil {
		return err
	}
	logrus.Infof("premium activated for %d: plan=%s days=%d by=%s", userID, p.PlanType, durationDays, p.ActivatedBy)
	return nil
}

// Deactivate turns premium off. Historical usage counters and the voice
// profile survive.
func (s *Service) Deactivate(ctx context.Context, userID int64) error {
	return s.store.ClearPremium(ctx, userID, s.now())
}

// IsActive reports whether u holds live premium right now. A record that
// claims premium but is past its expiry is flipped off in the store as a
// side effect, and the in-memory copy is updated to match.
func (s *Service) IsActive(ctx context.Context, u *models.User) bool {
	if !u.Premium.IsPremium {
		return false
	}
	now := s.now()
	if u.Premium.ExpiresOn != nil && now.Before(*u.Premium.ExpiresOn) {
		return true
	}

	// Lazy expiry: deactivate on read, not eagerly.
	if err := s.store.ClearPremium(ctx, u.TelegramUserID, now); err != nil {
		logrus.Errorf("failed to expire premium for %d: %v", u.TelegramUserID, err)
	} else {
		logrus.Infof("premium expired for %d", u.TelegramUserID)
	}
	u.Premium.IsPremium = false
	u.Premium.DeactivatedOn = &now
	u.Premium.RemainingChars = 0
	return false
}

// Deduct spends chars from the plan budget before a synthesis call:
// premium against the monthly budget, trial against the trial budget
// snapshotted at activation. The decrement is atomic and fails without
// mutation when the budget is short. For non-premium users this is a
// no-op returning true: free-tier metering belongs to the usage gate
// and RecordUsage.
func (s *Service) Deduct(ctx context.Context, u *models.User, chars int64) (bool, error) {
	if !s.IsActive(ctx, u) {
		return true, nil
	}
	ok, err := s.store.DeductPremiumChars(ctx, u.TelegramUserID, chars)
	if err != nil {
		return false, err
	}
	if ok {
		u.Premium.RemainingChars -= chars
		u.Usage.TotalCharsUsed += chars
	}
	return ok, nil
}

// Refund returns chars deducted for a synthesis that then failed
// downstream, so provider outages never consume the budget.
func (s *Service) Refund(ctx context.Context, u *models.User, chars int64) {
	if !u.Premium.IsPremium {
		return
	}
	if err := s.store.RefundPremiumChars(ctx, u.TelegramUserID, chars); err != nil {
		logrus.Errorf("failed to refund %d chars for %d: %v", chars, u.TelegramUserID, err)
		return
	}
	u.Premium.RemainingChars += chars
}
