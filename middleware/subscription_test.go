package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/telebot.v3"
)

type fakeChecker struct {
	statuses map[string]telebot.MemberStatus
	errs     map[string]error
	calls    int
}

func (f *fakeChecker) MemberStatus(channel string, userID int64) (telebot.MemberStatus, error) {
	f.calls++
	if err := f.errs[channel]; err != nil {
		return "", err
	}
	return f.statuses[channel], nil
}

func TestCheckMembership(t *testing.T) {
	ctx := context.Background()
	channels := []string{"@news", "@updates"}

	t.Run("empty channel list passes everyone", func(t *testing.T) {
		checker := &fakeChecker{}
		sub := NewSubscription(checker, nil, nil)

		ok, missing := sub.CheckMembership(ctx, 42)
		assert.True(t, ok)
		assert.Empty(t, missing)
		assert.Zero(t, checker.calls)
	})

	t.Run("member of all channels passes", func(t *testing.T) {
		checker := &fakeChecker{statuses: map[string]telebot.MemberStatus{
			"@news":    telebot.Member,
			"@updates": telebot.Administrator,
		}}
		sub := NewSubscription(checker, channels, nil)

		ok, missing := sub.CheckMembership(ctx, 42)
		assert.True(t, ok)
		assert.Empty(t, missing)
	})

	t.Run("creator counts as subscribed", func(t *testing.T) {
		checker := &fakeChecker{statuses: map[string]telebot.MemberStatus{
			"@news":    telebot.Creator,
			"@updates": telebot.Member,
		}}
		sub := NewSubscription(checker, channels, nil)

		ok, _ := sub.CheckMembership(ctx, 42)
		assert.True(t, ok)
	})

	t.Run("left channel is reported missing", func(t *testing.T) {
		checker := &fakeChecker{statuses: map[string]telebot.MemberStatus{
			"@news":    telebot.Member,
			"@updates": telebot.Left,
		}}
		sub := NewSubscription(checker, channels, nil)

		ok, missing := sub.CheckMembership(ctx, 42)
		assert.False(t, ok)
		assert.Equal(t, []string{"@updates"}, missing)
	})

	t.Run("kicked is reported missing", func(t *testing.T) {
		checker := &fakeChecker{statuses: map[string]telebot.MemberStatus{
			"@news":    telebot.Kicked,
			"@updates": telebot.Member,
		}}
		sub := NewSubscription(checker, channels, nil)

		ok, missing := sub.CheckMembership(ctx, 42)
		assert.False(t, ok)
		assert.Equal(t, []string{"@news"}, missing)
	})

	t.Run("query failure counts as missing", func(t *testing.T) {
		checker := &fakeChecker{
			statuses: map[string]telebot.MemberStatus{"@news": telebot.Member},
			errs:     map[string]error{"@updates": errors.New("api: chat not found")},
		}
		sub := NewSubscription(checker, channels, nil)

		ok, missing := sub.CheckMembership(ctx, 42)
		assert.False(t, ok)
		assert.Equal(t, []string{"@updates"}, missing)
	})

	t.Run("every channel is checked even after one misses", func(t *testing.T) {
		checker := &fakeChecker{statuses: map[string]telebot.MemberStatus{
			"@news":    telebot.Left,
			"@updates": telebot.Left,
		}}
		sub := NewSubscription(checker, channels, nil)

		ok, missing := sub.CheckMembership(ctx, 42)
		assert.False(t, ok)
		assert.Len(t, missing, 2)
		assert.Equal(t, 2, checker.calls)
	})
}

func TestJoinPrompt(t *testing.T) {
	kb, msg := joinPrompt([]string{"@news", "-1001234567890"})

	// One URL row for @news plus the verify row; the private channel
	// cannot have a join link.
	assert.Len(t, kb.InlineKeyboard, 2)
	assert.Equal(t, "https://t.me/news", kb.InlineKeyboard[0][0].URL)
	assert.Contains(t, msg, "@news")
	assert.Contains(t, msg, "private channel")
	assert.NotContains(t, msg, "-1001234567890")
}
