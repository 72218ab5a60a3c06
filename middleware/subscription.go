package middleware

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// MembershipChecker answers "what is this user's status in this channel".
// *telebot.Bot satisfies it through telebotChecker; tests plug in a fake.
type MembershipChecker interface {
	MemberStatus(channel string, userID int64) (telebot.MemberStatus, error)
}

// Subscription gates every handler behind membership in the configured
// channels. With an empty channel list the gate is a pass-through.
type Subscription struct {
	checker  MembershipChecker
	channels []string
	cache    *redis.Client
	cacheTTL time.Duration
}

func NewSubscription(checker MembershipChecker, channels []string, cache *redis.Client) *Subscription {
	return &Subscription{
		checker:  checker,
		channels: channels,
		cache:    cache,
		cacheTTL: 5 * time.Minute,
	}
}

// CheckMembership returns whether the user may proceed and which channels
// are still missing. Statuses member/administrator/creator satisfy the
// check; left, kicked and query failures count as missing.
func (s *Subscription) CheckMembership(ctx context.Context, userID int64) (bool, []string) {
	if len(s.channels) == 0 {
		return true, nil
	}
	if s.cacheHit(ctx, userID) {
		return true, nil
	}

	var missing []string
	for _, channel := range s.channels {
		status, err := s.checker.MemberStatus(channel, userID)
		if err != nil {
			logrus.Errorf("membership check failed for %s: %v", channel, err)
			missing = append(missing, channel)
			continue
		}
		switch status {
		case telebot.Member, telebot.Administrator, telebot.Creator:
		default:
			missing = append(missing, channel)
		}
	}

	if len(missing) == 0 {
		s.cacheStore(ctx, userID)
		return true, nil
	}
	return false, missing
}

// Require wraps a handler with the membership gate.
func (s *Subscription) Require(next telebot.HandlerFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		ok, missing := s.CheckMembership(context.Background(), c.Sender().ID)
		if ok {
			return next(c)
		}
		return s.sendJoinPrompt(c, missing)
	}
}

// HandleVerify is the callback behind the "I joined" button. It bypasses
// and refreshes the cache so a just-joined user passes immediately.
func (s *Subscription) HandleVerify(c telebot.Context) error {
	ctx := context.Background()
	s.cacheInvalidate(ctx, c.Sender().ID)

	ok, missing := s.CheckMembership(ctx, c.Sender().ID)
	if !ok {
		if err := c.Respond(&telebot.CallbackResponse{Text: "You haven't joined all the channels yet."}); err != nil {
			return err
		}
		return s.sendJoinPrompt(c, missing)
	}

	if err := c.Respond(&telebot.CallbackResponse{
		Text:      "✅ Subscription verified! You can use the bot now.",
		ShowAlert: true,
	}); err != nil {
		return err
	}
	return c.Delete()
}

func (s *Subscription) sendJoinPrompt(c telebot.Context, missing []string) error {
	kb, msg := joinPrompt(missing)
	return c.Send(msg, kb)
}

// joinPrompt builds the keyboard and message for channels the user still
// has to join. Id-form channels are private; a t.me link needs a
// username, so they are listed without a join button.
func joinPrompt(missing []string) (*telebot.ReplyMarkup, string) {
	kb := &telebot.ReplyMarkup{}
	rows := make([]telebot.Row, 0, len(missing)+1)

	var list strings.Builder
	for _, channel := range missing {
		if !strings.HasPrefix(channel, "@") {
			list.WriteString("➡️ a private channel (ask an admin for the invite link)\n")
			continue
		}
		name := strings.TrimPrefix(channel, "@")
		rows = append(rows, kb.Row(telebot.Btn{
			Text: "🔔 Join @" + name,
			URL:  "https://t.me/" + name,
		}))
		list.WriteString("➡️ @" + name + "\n")
	}
	rows = append(rows, kb.Row(kb.Data("✅ I joined, verify", "verify_subscription")))
	kb.Inline(rows...)

	msg := fmt.Sprintf(
		"🚫 To use this bot, please join the following channels first, then press the verify button:\n\n%s",
		list.String(),
	)
	return kb, msg
}

func (s *Subscription) cacheKey(userID int64) string {
	return "subok:" + strconv.FormatInt(userID, 10)
}

func (s *Subscription) cacheHit(ctx context.Context, userID int64) bool {
	if s.cache == nil {
		return false
	}
	val, err := s.cache.Get(ctx, s.cacheKey(userID)).Result()
	return err == nil && val == "1"
}

func (s *Subscription) cacheStore(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(userID), "1", s.cacheTTL).Err(); err != nil {
		logrus.Errorf("failed to cache membership for %d: %v", userID, err)
	}
}

func (s *Subscription) cacheInvalidate(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.cacheKey(userID)).Err(); err != nil {
		logrus.Errorf("failed to drop membership cache for %d: %v", userID, err)
	}
}

// telebotChecker resolves channels through the Bot API. Channels are
// either @usernames or raw chat ids (for private channels).
type telebotChecker struct {
	bot *telebot.Bot
}

// NewTelebotChecker wraps a live bot as a MembershipChecker.
func NewTelebotChecker(bot *telebot.Bot) MembershipChecker {
	return &telebotChecker{bot: bot}
}

func (t *telebotChecker) MemberStatus(channel string, userID int64) (telebot.MemberStatus, error) {
	var chat *telebot.Chat
	if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
		chat = &telebot.Chat{ID: id}
	} else {
		resolved, err := t.bot.ChatByUsername(channel)
		if err != nil {
			return "", err
		}
		chat = resolved
	}

	member, err := t.bot.ChatMemberOf(chat, &telebot.User{ID: userID})
	if err != nil {
		return "", err
	}
	return member.Role, nil
}
