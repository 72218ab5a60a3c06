package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/telebot.v3"

	"voiceclone-bot/database"
	"voiceclone-bot/middleware"
	"voiceclone-bot/premium"
)

// Admin panel buttons. Every callback re-checks the allow-list at the
// point of use: a replayed callback payload from a non-admin must not
// reach a privileged action.
var (
	adminMenu         = &telebot.ReplyMarkup{}
	adminStatsBtn     = adminMenu.Data("📊 Stats", "admin_stats")
	adminBroadcastBtn = adminMenu.Data("📢 Broadcast", "admin_broadcast")
	adminUpgradeBtn   = adminMenu.Data("👑 Activate premium", "admin_upgrade")
)

func init() {
	adminMenu.Inline(
		adminMenu.Row(adminStatsBtn),
		adminMenu.Row(adminBroadcastBtn),
		adminMenu.Row(adminUpgradeBtn),
	)
}

// denyNonAdmin logs the attempt and answers tersely.
func (h *Handler) denyNonAdmin(c telebot.Context) error {
	logrus.Warnf("unauthorized admin access attempt by %d (@%s)", c.Sender().ID, c.Sender().Username)
	if c.Callback() != nil {
		return c.Respond(&telebot.CallbackResponse{Text: "❌ Not allowed."})
	}
	return c.Send("❌ Not allowed.")
}

// HandleAdminPanel shows the admin menu.
func (h *Handler) HandleAdminPanel(c telebot.Context) error {
	if !h.isAdmin(c.Sender().ID) {
		return h.denyNonAdmin(c)
	}
	return c.Send("🛠 <b>Admin panel</b>", adminMenu, telebot.ModeHTML)
}

// HandleAdminStats renders the aggregate dashboard.
func (h *Handler) HandleAdminStats(c telebot.Context) error {
	if !h.isAdmin(c.Sender().ID) {
		return h.denyNonAdmin(c)
	}

	ctx, cancel := requestContext()
	defer cancel()

	now := time.Now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	stats, err := h.users.GetStats(ctx, startOfDay)
	if err != nil {
		logrus.Errorf("failed to load stats: %v", err)
		return c.Send(retryMessage)
	}

	p := message.NewPrinter(language.English)
	msg := p.Sprintf(
		"📊 <b>Stats</b>\n\n"+
			"👥 Total users: %d\n"+
			"👑 Premium users: %d\n"+
			"🔥 Active today: %d\n"+
			"🔤 Characters synthesized: %d",
		stats.TotalUsers,
		stats.PremiumUsers,
		stats.ActiveToday,
		stats.TotalCharsAllUsers,
	)
	if c.Callback() != nil {
		return c.Edit(msg, adminMenu, telebot.ModeHTML)
	}
	return c.Send(msg, telebot.ModeHTML)
}

// HandleAdminBroadcastPrompt arms the broadcast conversation.
func (h *Handler) HandleAdminBroadcastPrompt(c telebot.Context) error {
	if !h.isAdmin(c.Sender().ID) {
		return h.denyNonAdmin(c)
	}
	h.mu.Lock()
	h.awaitingBroadcast[c.Sender().ID] = true
	h.mu.Unlock()
	return c.Edit("📢 Send the message to broadcast to every user.")
}

// HandleAdminUpgradePrompt arms the premium-activation conversation.
func (h *Handler) HandleAdminUpgradePrompt(c telebot.Context) error {
	if !h.isAdmin(c.Sender().ID) {
		return h.denyNonAdmin(c)
	}
	h.mu.Lock()
	h.awaitingUpgrade[c.Sender().ID] = true
	h.mu.Unlock()
	return c.Edit("👑 Send the user id to activate, optionally followed by the number of days (default 30). Add \"trial\" for a trial plan.")
}

func (h *Handler) claimAwaitingBroadcast(id int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.awaitingBroadcast[id] {
		delete(h.awaitingBroadcast, id)
		return true
	}
	return false
}

func (h *Handler) claimAwaitingUpgrade(id int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.awaitingUpgrade[id] {
		delete(h.awaitingUpgrade, id)
		return true
	}
	return false
}

// runBroadcast fans the message out to every known user, continuing past
// individual failures and reporting them instead of aborting.
func (h *Handler) runBroadcast(c telebot.Context) error {
	if !h.isAdmin(c.Sender().ID) {
		return h.denyNonAdmin(c)
	}

	ctx, cancel := requestContext()
	defer cancel()

	ids, err := h.users.AllUserIDs(ctx)
	if err != nil {
		logrus.Errorf("failed to list users for broadcast: %v", err)
		return c.Send(retryMessage)
	}

	text := c.Text()
	sent := 0
	var failed []int64
	for _, id := range ids {
		if _, err := h.bot.Send(&telebot.User{ID: id}, text); err != nil {
			failed = append(failed, id)
			continue
		}
		sent++
	}

	logrus.Infof("broadcast by %d: sent=%d failed=%d", c.Sender().ID, sent, len(failed))

	report := fmt.Sprintf("✅ Broadcast sent to %d users.", sent)
	if len(failed) > 0 {
		shown := failed
		if len(shown) > 10 {
			shown = shown[:10]
		}
		parts := make([]string, len(shown))
		for i, id := range shown {
			parts[i] = strconv.FormatInt(id, 10)
		}
		report += fmt.Sprintf("\n⚠️ Failed for %d users: %s", len(failed), strings.Join(parts, ", "))
	}
	return c.Send(report)
}

// runUpgradeInput parses "<id> [days] [trial]" from the armed conversation.
func (h *Handler) runUpgradeInput(c telebot.Context) error {
	if !h.isAdmin(c.Sender().ID) {
		return h.denyNonAdmin(c)
	}
	args := strings.Fields(c.Text())
	return h.activateFromArgs(c, args)
}

// HandleUpgradeCommand is the direct /upgrade <id> [days] [trial] form.
func (h *Handler) HandleUpgradeCommand(c telebot.Context) error {
	if !h.isAdmin(c.Sender().ID) {
		return h.denyNonAdmin(c)
	}
	return h.activateFromArgs(c, c.Args())
}

func (h *Handler) activateFromArgs(c telebot.Context, args []string) error {
	if len(args) == 0 {
		return c.Send("Usage: /upgrade <user id> [days] [trial]")
	}

	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Send("❌ That doesn't look like a user id.")
	}

	days := 30
	trial := false
	for _, arg := range args[1:] {
		if strings.EqualFold(arg, "trial") {
			trial = true
			continue
		}
		if d, err := strconv.Atoi(arg); err == nil && d > 0 {
			days = d
		}
	}
	if trial {
		days = h.cfg.Limits.TrialDays
	}

	ctx, cancel := requestContext()
	defer cancel()

	// Target must exist: admin activation never creates phantom records.
	if _, err := h.users.Get(ctx, targetID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return c.Send("❌ User not found.")
		}
		logrus.Errorf("failed to look up %d: %v", targetID, err)
		return c.Send(retryMessage)
	}

	opts := premium.ActivateOpts{Trial: trial, AdminID: c.Sender().ID}
	if err := h.premium.Activate(ctx, targetID, days, opts); err != nil {
		logrus.Errorf("failed to activate premium for %d: %v", targetID, err)
		return c.Send(retryMessage)
	}

	plan := "premium"
	if trial {
		plan = "trial"
	}
	if _, err := h.bot.Send(&telebot.User{ID: targetID}, fmt.Sprintf(
		"🎉 Your %s plan is active for %d days. Enjoy!", plan, days,
	)); err != nil {
		logrus.Warnf("could not notify %d about activation: %v", targetID, err)
	}
	return c.Send(fmt.Sprintf("✅ Activated %s for %d (%d days).", plan, targetID, days))
}

// HandleRevokeCommand deactivates premium: /revoke <id>.
func (h *Handler) HandleRevokeCommand(c telebot.Context) error {
	if !h.isAdmin(c.Sender().ID) {
		return h.denyNonAdmin(c)
	}
	args := c.Args()
	if len(args) != 1 {
		return c.Send("Usage: /revoke <user id>")
	}
	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Send("❌ That doesn't look like a user id.")
	}

	ctx, cancel := requestContext()
	defer cancel()

	if err := h.premium.Deactivate(ctx, targetID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return c.Send("❌ User not found.")
		}
		logrus.Errorf("failed to deactivate premium for %d: %v", targetID, err)
		return c.Send(retryMessage)
	}
	return c.Send(fmt.Sprintf("✅ Premium deactivated for %d.", targetID))
}

// HandleDeleteUserCommand removes a record entirely: /deluser <id>.
// Escape hatch only; records are never deleted in the normal flow.
func (h *Handler) HandleDeleteUserCommand(c telebot.Context) error {
	if !h.isAdmin(c.Sender().ID) {
		return h.denyNonAdmin(c)
	}
	args := c.Args()
	if len(args) != 1 {
		return c.Send("Usage: /deluser <user id>")
	}
	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Send("❌ That doesn't look like a user id.")
	}

	ctx, cancel := requestContext()
	defer cancel()

	if err := h.users.Delete(ctx, targetID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return c.Send("❌ User not found.")
		}
		logrus.Errorf("failed to delete user %d: %v", targetID, err)
		return c.Send(retryMessage)
	}
	logrus.Warnf("user %d deleted by admin %d", targetID, c.Sender().ID)
	return c.Send(fmt.Sprintf("🗑 User %d deleted.", targetID))
}

// HandleResetSpamCommand clears the anti-spam state: /resetspam <id>.
func (h *Handler) HandleResetSpamCommand(c telebot.Context) error {
	if !h.isAdmin(c.Sender().ID) {
		return h.denyNonAdmin(c)
	}
	args := c.Args()
	if len(args) != 1 {
		return c.Send("Usage: /resetspam <user id>")
	}
	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Send("❌ That doesn't look like a user id.")
	}
	middleware.ResetUserSpam(targetID)
	return c.Send(fmt.Sprintf("🔄 Spam protection reset for %d.", targetID))
}
