package handlers

import (
	"bytes"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"voiceclone-bot/quota"
)

// HandleText runs the synthesis flow. Counters are charged only after the
// provider call succeeded; a denial names the exact limit that was hit.
func (h *Handler) HandleText(c telebot.Context) error {
	senderID := c.Sender().ID

	// Admin panel conversations claim the next text message.
	if h.claimAwaitingBroadcast(senderID) {
		return h.runBroadcast(c)
	}
	if h.claimAwaitingUpgrade(senderID) {
		return h.runUpgradeInput(c)
	}

	ctx, cancel := requestContext()
	defer cancel()

	text := c.Text()
	chars := utf8.RuneCountInString(text)
	if chars == 0 {
		return nil
	}

	user, err := h.loadUser(ctx, c)
	if user == nil {
		return err
	}

	if !user.HasVoice() {
		return c.Send("❌ Clone your voice first: send me a voice message (10–30 seconds).")
	}

	premiumActive := h.premium.IsActive(ctx, user)

	if !premiumActive && chars > h.cfg.Limits.MaxCharsPerRequest {
		return c.Send(fmt.Sprintf(
			"❌ That's %d characters — the limit is %d per request. Please send a shorter text.",
			chars, h.cfg.Limits.MaxCharsPerRequest,
		))
	}

	if !premiumActive {
		switch quota.CheckUsage(user, chars, h.cfg.Limits, time.Now().UTC()) {
		case quota.DenyCharLimitExceeded:
			remaining := quota.FreeCharsRemaining(user, h.cfg.Limits)
			if remaining > 0 {
				return c.Send(fmt.Sprintf(
					"❌ That text doesn't fit your free budget: %d characters left, the message has %d.\n\n💎 /premium removes the limit.",
					remaining, chars,
				))
			}
			return c.Send("❌ Your free character budget is used up.\n\n💎 Get /premium to keep going.")
		case quota.DenyTrialsExhausted:
			return c.Send(fmt.Sprintf(
				"❌ You've used all %d free requests.\n\n💎 Get /premium to keep going.",
				h.cfg.Limits.MaxFreeTrials,
			))
		}
	}

	// Premium (trial included) pays its own budget up front so it can
	// never go negative; a provider failure refunds it below.
	if premiumActive {
		ok, err := h.premium.Deduct(ctx, user, int64(chars))
		if err != nil {
			logrus.Errorf("failed to deduct chars for %d: %v", senderID, err)
			return c.Send(retryMessage)
		}
		if !ok {
			return c.Send(fmt.Sprintf(
				"❌ Your plan's budget has %d characters left, the message has %d.",
				user.Premium.RemainingChars, chars,
			))
		}
	}

	if err := c.Notify(telebot.RecordingAudio); err != nil {
		logrus.Debugf("notify failed for %d: %v", senderID, err)
	}

	audio, err := h.speech.Synthesize(ctx, text, user.Voice.VoiceID)
	if err != nil {
		if premiumActive {
			h.premium.Refund(ctx, user, int64(chars))
		}
		return h.sendProviderError(c, senderID, err)
	}

	if !premiumActive {
		if err := h.users.RecordUsage(ctx, senderID, int64(chars)); err != nil {
			// The user already got their audio; log the lost charge.
			logrus.Errorf("failed to record usage for %d: %v", senderID, err)
		}
	}

	voice := &telebot.Voice{File: telebot.FromReader(bytes.NewReader(audio))}
	return c.Send(voice)
}
