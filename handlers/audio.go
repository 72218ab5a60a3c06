package handlers

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"voiceclone-bot/database"
	"voiceclone-bot/quota"
	"voiceclone-bot/speech"
)

const (
	minSampleSeconds = 10
	maxSampleSeconds = 30
	maxSampleBytes   = 10 << 20
)

// HandleAudio runs the voice-clone flow: gate, download the sample, call
// the provider, record the result. The clone is recorded only after the
// provider succeeded, through a filtered update so a double-submission
// cannot clone twice.
func (h *Handler) HandleAudio(c telebot.Context) error {
	ctx, cancel := requestContext()
	defer cancel()

	var file telebot.File
	var duration int
	switch {
	case c.Message().Voice != nil:
		file = c.Message().Voice.File
		duration = c.Message().Voice.Duration
	case c.Message().Audio != nil:
		file = c.Message().Audio.File
		duration = c.Message().Audio.Duration
	default:
		return c.Send("Please send a voice message (10–30 seconds).")
	}

	if duration < minSampleSeconds || duration > maxSampleSeconds {
		return c.Send(fmt.Sprintf(
			"The sample must be between %d and %d seconds long — yours is %d. Please record again.",
			minSampleSeconds, maxSampleSeconds, duration,
		))
	}
	if file.FileSize > maxSampleBytes {
		return c.Send("That file is too large. Please send a shorter recording.")
	}

	user, err := h.loadUser(ctx, c)
	if user == nil {
		return err
	}

	// Lazy expiry before the gate looks at the premium flags.
	premiumActive := h.premium.IsActive(ctx, user)

	switch quota.CheckClone(user, time.Now().UTC()) {
	case quota.DenyAlreadyCloned:
		return c.Send(
			"🎙 Your voice is already cloned — the free tier includes one clone.\n\n" +
				"Just send me text to hear it, or get /premium to re-clone with a new sample.")
	case quota.DenyCloneQuotaReached:
		return c.Send(fmt.Sprintf(
			"You've used all %d voice clones included in your plan.",
			user.Premium.MaxVoiceClones,
		))
	}

	reader, err := h.bot.File(&file)
	if err != nil {
		logrus.Errorf("failed to download sample from %d: %v", user.TelegramUserID, err)
		return c.Send(retryMessage)
	}
	defer reader.Close()

	sample, err := io.ReadAll(io.LimitReader(reader, maxSampleBytes))
	if err != nil {
		logrus.Errorf("failed to read sample from %d: %v", user.TelegramUserID, err)
		return c.Send(retryMessage)
	}

	if err := c.Send("⏳ Cloning your voice, one moment..."); err != nil {
		return err
	}

	voiceID, err := h.speech.CloneVoice(ctx, c.Sender().FirstName, sample)
	if err != nil {
		return h.sendProviderError(c, user.TelegramUserID, err)
	}

	if premiumActive {
		err = h.users.RecordPremiumClone(ctx, user.TelegramUserID, voiceID, "active")
	} else {
		err = h.users.RecordFirstClone(ctx, user.TelegramUserID, voiceID, "active")
	}
	if err != nil {
		if errors.Is(err, database.ErrConflict) {
			return c.Send("🎙 Your voice was already cloned by another request just now. Send me text to hear it!")
		}
		logrus.Errorf("failed to record clone for %d: %v", user.TelegramUserID, err)
		return c.Send(retryMessage)
	}

	logrus.Infof("voice cloned for %d (premium=%v)", user.TelegramUserID, premiumActive)
	return c.Send(
		"✅ <b>Your voice is cloned!</b>\n\n"+
			"Now send me any text and I'll read it back in your voice. 🎧",
		telebot.ModeHTML,
	)
}

// sendProviderError turns a provider failure into the right user message:
// structured rejections show the provider's own words, outages ask to
// retry without consuming anything.
func (h *Handler) sendProviderError(c telebot.Context, userID int64, err error) error {
	var perr *speech.ProviderError
	if errors.As(err, &perr) {
		logrus.Errorf("provider rejected request from %d: %v", userID, err)
		if perr.Message != "" {
			return c.Send("❌ The voice service rejected the request: " + perr.Message)
		}
		return c.Send("❌ The voice service rejected the request. Please try different audio or text.")
	}
	logrus.Errorf("provider unavailable for %d: %v", userID, err)
	return c.Send("⚠️ The voice service is unavailable right now. Nothing was charged — please try again shortly.")
}
