package premium

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceclone-bot/config"
	"voiceclone-bot/models"
)

var testLimits = config.Limits{
	MaxVoiceClonesPremium:    3,
	MonthlyPremiumCharBudget: 100000,
	TrialDays:                3,
	TrialCharBudget:          2000,
}

type fakeStore struct {
	set       map[int64]models.Premium
	cleared   map[int64]time.Time
	remaining map[int64]int64
	refunded  map[int64]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		set:       make(map[int64]models.Premium),
		cleared:   make(map[int64]time.Time),
		remaining: make(map[int64]int64),
		refunded:  make(map[int64]int64),
	}
}

func (f *fakeStore) SetPremium(_ context.Context, id int64, p models.Premium) error {
	f.set[id] = p
	f.remaining[id] = p.RemainingChars
	return nil
}

func (f *fakeStore) ClearPremium(_ context.Context, id int64, deactivatedOn time.Time) error {
	f.cleared[id] = deactivatedOn
	f.remaining[id] = 0
	return nil
}

func (f *fakeStore) DeductPremiumChars(_ context.Context, id int64, chars int64) (bool, error) {
	if f.remaining[id] < chars {
		return false, nil
	}
	f.remaining[id] -= chars
	return true, nil
}

func (f *fakeStore) RefundPremiumChars(_ context.Context, id int64, chars int64) error {
	f.remaining[id] += chars
	f.refunded[id] += chars
	return nil
}

func newTestService(store *fakeStore, now time.Time) *Service {
	s := NewService(store, testLimits)
	s.now = func() time.Time { return now }
	return s
}

func TestActivate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("monthly plan", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store, now)

		require.NoError(t, svc.Activate(ctx, 42, 30, ActivateOpts{AdminID: 7}))

		p := store.set[42]
		assert.True(t, p.IsPremium)
		assert.Equal(t, models.PlanPremium, p.PlanType)
		assert.Equal(t, testLimits.MonthlyPremiumCharBudget, p.RemainingChars)
		assert.Equal(t, testLimits.MonthlyPremiumCharBudget, p.TotalChars)
		assert.Equal(t, testLimits.MaxVoiceClonesPremium, p.MaxVoiceClones)
		assert.Equal(t, now.AddDate(0, 0, 30), *p.ExpiresOn)
		assert.Equal(t, models.ActivatedByAdmin, p.ActivatedBy)
		assert.Equal(t, int64(7), p.ActivatedByID)
	})

	t.Run("trial plan", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store, now)

		require.NoError(t, svc.Activate(ctx, 42, testLimits.TrialDays, ActivateOpts{Trial: true}))

		p := store.set[42]
		assert.Equal(t, models.PlanTrial, p.PlanType)
		assert.Equal(t, testLimits.TrialCharBudget, p.RemainingChars)
		assert.Equal(t, models.ActivatedByUser, p.ActivatedBy)
	})

	t.Run("re-activation overwrites instead of stacking", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store, now)

		require.NoError(t, svc.Activate(ctx, 42, 30, ActivateOpts{}))
		// Spend some of the budget, then activate again.
		ok, err := store.DeductPremiumChars(ctx, 42, 60000)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, svc.Activate(ctx, 42, 30, ActivateOpts{}))

		p := store.set[42]
		assert.Equal(t, testLimits.MonthlyPremiumCharBudget, p.RemainingChars)
		assert.Equal(t, now.AddDate(0, 0, 30), *p.ExpiresOn)
	})
}

func TestIsActive(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("live premium", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store, now)
		expires := now.Add(time.Hour)
		u := &models.User{TelegramUserID: 42, Premium: models.Premium{IsPremium: true, ExpiresOn: &expires}}

		assert.True(t, svc.IsActive(ctx, u))
		assert.Empty(t, store.cleared)
	})

	t.Run("expired premium is flipped off lazily", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store, now)
		expires := now.Add(-time.Hour)
		u := &models.User{TelegramUserID: 42, Premium: models.Premium{
			IsPremium:      true,
			ExpiresOn:      &expires,
			RemainingChars: 500,
		}}

		assert.False(t, svc.IsActive(ctx, u))
		assert.Equal(t, now, store.cleared[42])
		assert.False(t, u.Premium.IsPremium)
		assert.Equal(t, int64(0), u.Premium.RemainingChars)
	})

	t.Run("non-premium", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store, now)
		u := &models.User{TelegramUserID: 42}

		assert.False(t, svc.IsActive(ctx, u))
		assert.Empty(t, store.cleared)
	})
}

func TestDeactivatePreservesUsage(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	svc := newTestService(store, now)

	require.NoError(t, svc.Deactivate(ctx, 42))
	assert.Equal(t, now, store.cleared[42])
	// The fake clears only premium state; usage counters are not part of
	// the Store surface at all, so deactivation cannot touch them.
}

func TestDeduct(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	activeUser := func(plan string, remaining int64) *models.User {
		expires := now.Add(time.Hour)
		return &models.User{TelegramUserID: 42, Premium: models.Premium{
			IsPremium:      true,
			PlanType:       plan,
			ExpiresOn:      &expires,
			RemainingChars: remaining,
		}}
	}

	t.Run("metered premium decrements", func(t *testing.T) {
		store := newFakeStore()
		store.remaining[42] = 1000
		svc := newTestService(store, now)
		u := activeUser(models.PlanPremium, 1000)

		ok, err := svc.Deduct(ctx, u, 300)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(700), store.remaining[42])
		assert.Equal(t, int64(700), u.Premium.RemainingChars)
	})

	t.Run("insufficient budget rejects without mutation", func(t *testing.T) {
		store := newFakeStore()
		store.remaining[42] = 100
		svc := newTestService(store, now)
		u := activeUser(models.PlanPremium, 100)

		ok, err := svc.Deduct(ctx, u, 300)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, int64(100), store.remaining[42])
		assert.Equal(t, int64(100), u.Premium.RemainingChars)
	})

	t.Run("trial premium is metered against its own budget", func(t *testing.T) {
		store := newFakeStore()
		store.remaining[42] = 100
		svc := newTestService(store, now)
		u := activeUser(models.PlanTrial, 100)

		ok, err := svc.Deduct(ctx, u, 40)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(60), store.remaining[42])

		ok, err = svc.Deduct(ctx, u, 300)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, int64(60), store.remaining[42])
	})

	t.Run("non-premium is a no-op returning true", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store, now)
		u := &models.User{TelegramUserID: 42}

		ok, err := svc.Deduct(ctx, u, 300)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestRefund(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("metered premium refunds", func(t *testing.T) {
		store := newFakeStore()
		store.remaining[42] = 700
		svc := newTestService(store, now)
		expires := now.Add(time.Hour)
		u := &models.User{TelegramUserID: 42, Premium: models.Premium{
			IsPremium:      true,
			PlanType:       models.PlanPremium,
			ExpiresOn:      &expires,
			RemainingChars: 700,
		}}

		svc.Refund(ctx, u, 300)
		assert.Equal(t, int64(1000), store.remaining[42])
		assert.Equal(t, int64(1000), u.Premium.RemainingChars)
	})

	t.Run("trial premium refunds too", func(t *testing.T) {
		store := newFakeStore()
		store.remaining[42] = 60
		svc := newTestService(store, now)
		expires := now.Add(time.Hour)
		u := &models.User{TelegramUserID: 42, Premium: models.Premium{
			IsPremium:      true,
			PlanType:       models.PlanTrial,
			ExpiresOn:      &expires,
			RemainingChars: 60,
		}}

		svc.Refund(ctx, u, 40)
		assert.Equal(t, int64(100), store.remaining[42])
		assert.Equal(t, int64(40), store.refunded[42])
	})

	t.Run("non-premium refunds nothing", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store, now)
		u := &models.User{TelegramUserID: 42}

		svc.Refund(ctx, u, 300)
		assert.Equal(t, int64(0), store.refunded[42])
	})
}
