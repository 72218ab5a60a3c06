package handlers

import (
	"fmt"
	"strings"

	"gopkg.in/telebot.v3"

	"voiceclone-bot/quota"
)

// HandleStart greets the user and creates their record on first contact.
func (h *Handler) HandleStart(c telebot.Context) error {
	ctx, cancel := requestContext()
	defer cancel()

	user, err := h.loadUser(ctx, c)
	if user == nil {
		return err
	}

	var channels string
	if len(h.cfg.RequiredChannels) > 0 {
		channels = "\n📣 Required channels: " + strings.Join(h.cfg.RequiredChannels, ", ")
	}

	welcome := fmt.Sprintf(
		"Hi, %s! 👋\n\n"+
			"I can clone your voice and read any text back in it.\n\n"+
			"<b>How it works:</b>\n"+
			"1️⃣ Send me a voice message (10–30 seconds) — I'll clone your voice.\n"+
			"2️⃣ Then send me any text and I'll say it in your voice. 🎙\n\n"+
			"🆓 Free tier: %d requests, up to %d characters each, %d characters total.\n"+
			"You have <b>%d</b> free characters left.\n"+
			"💎 Want more? Check /premium.%s\n\n"+
			"ℹ️ /status shows your account at any time.",
		c.Sender().FirstName,
		h.cfg.Limits.MaxFreeTrials,
		h.cfg.Limits.MaxCharsPerRequest,
		h.cfg.Limits.FreeCharLimitTotal,
		quota.FreeCharsRemaining(user, h.cfg.Limits),
		channels,
	)

	return c.Send(welcome, telebot.ModeHTML)
}
