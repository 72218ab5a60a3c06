package handlers

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/telebot.v3"

	"voiceclone-bot/quota"
)

// HandleStatus shows the caller's account card: plan, expiry, remaining
// budgets and voice state. Reading the card is also where an expired
// premium record gets flipped off.
func (h *Handler) HandleStatus(c telebot.Context) error {
	ctx, cancel := requestContext()
	defer cancel()

	user, err := h.loadUser(ctx, c)
	if user == nil {
		return err
	}

	voiceLine := "🎙 Voice: not cloned yet — send a voice message to clone it"
	if user.HasVoice() {
		voiceLine = fmt.Sprintf("🎙 Voice: cloned (<code>%s</code>)", user.Voice.VoiceID)
	}

	p := message.NewPrinter(language.English)

	if h.premium.IsActive(ctx, user) {
		budget := p.Sprintf("%d of %d characters left", user.Premium.RemainingChars, user.Premium.TotalChars)
		msg := fmt.Sprintf(
			"👤 <b>Your account</b>\n\n"+
				"🆔 User ID: <code>%d</code>\n"+
				"👑 Plan: <b>%s</b> (until %s)\n"+
				"📊 Budget: %s\n"+
				"🔁 Voice clones: %d/%d used\n"+
				"%s",
			user.TelegramUserID,
			user.Premium.PlanType,
			user.Premium.ExpiresOn.Format("2 January 2006 15:04"),
			budget,
			user.Premium.VoiceClonesUsed,
			user.Premium.MaxVoiceClones,
			voiceLine,
		)
		return c.Send(msg, telebot.ModeHTML)
	}

	msg := p.Sprintf(
		"👤 <b>Your account</b>\n\n"+
			"🆔 User ID: <code>%d</code>\n"+
			"👑 Plan: <b>free</b>\n"+
			"📊 Free characters left: %d of %d\n"+
			"🔢 Requests used: %d of %d\n"+
			"%s\n\n"+
			"💎 Upgrade any time with /premium.",
		user.TelegramUserID,
		quota.FreeCharsRemaining(user, h.cfg.Limits),
		h.cfg.Limits.FreeCharLimitTotal,
		user.Usage.RequestCount,
		h.cfg.Limits.MaxFreeTrials,
		voiceLine,
	)
	return c.Send(msg, telebot.ModeHTML)
}
