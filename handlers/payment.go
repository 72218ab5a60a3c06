package handlers

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/telebot.v3"

	"voiceclone-bot/database"
	"voiceclone-bot/models"
	"voiceclone-bot/premium"
)

type premiumPlan struct {
	Days   int
	Amount int
}

// QRIS price list, keyed by callback unique.
var premiumPlans = map[string]premiumPlan{
	"prem_7d":  {Days: 7, Amount: 15000},
	"prem_30d": {Days: 30, Amount: 45000},
	"prem_90d": {Days: 90, Amount: 110000},
}

type paymentCreateResponse struct {
	Payment struct {
		PaymentNumber string `json:"payment_number"`
		ExpiredAt     string `json:"expired_at"`
	} `json:"payment"`
}

// HandlePremium shows the current plan, or the price list when there is
// none.
func (h *Handler) HandlePremium(c telebot.Context) error {
	ctx, cancel := requestContext()
	defer cancel()

	user, err := h.loadUser(ctx, c)
	if user == nil {
		return err
	}

	planMenu := &telebot.ReplyMarkup{}
	plan7 := planMenu.Data("🎟 7 days — Rp15.000", "prem_7d")
	plan30 := planMenu.Data("🌟 30 days — Rp45.000", "prem_30d")
	plan90 := planMenu.Data("👑 90 days — Rp110.000", "prem_90d")
	planMenu.Inline(
		planMenu.Row(plan7),
		planMenu.Row(plan30),
		planMenu.Row(plan90),
	)

	if h.premium.IsActive(ctx, user) {
		msg := fmt.Sprintf(
			"✨ <b>Premium is active</b> until %s.\n\n"+
				"Buying a new plan replaces it with a fresh budget — it does not stack.",
			user.Premium.ExpiresOn.Format("2 January 2006 15:04"),
		)
		if c.Callback() != nil {
			return c.Edit(msg, planMenu, telebot.ModeHTML)
		}
		return c.Send(msg, planMenu, telebot.ModeHTML)
	}

	p := message.NewPrinter(language.English)
	msg := p.Sprintf(
		"💎 <b>Premium</b>\n\n"+
			"• %d characters per month\n"+
			"• Up to %d voice clones (re-clone any time)\n"+
			"• No per-request limits\n\n"+
			"Pick a plan — it activates automatically after payment:",
		h.cfg.Limits.MonthlyPremiumCharBudget,
		h.cfg.Limits.MaxVoiceClonesPremium,
	)
	if c.Callback() != nil {
		return c.Edit(msg, planMenu, telebot.ModeHTML)
	}
	return c.Send(msg, planMenu, telebot.ModeHTML)
}

// HandleBuyPlan creates a QRIS transaction for the chosen plan and sends
// the QR code with a cancel button.
func (h *Handler) HandleBuyPlan(planCode string) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		plan, ok := premiumPlans[planCode]
		if !ok {
			return c.Send("❌ Unknown plan.")
		}

		ctx, cancel := requestContext()
		defer cancel()

		user := c.Sender()
		transactionID := generateTransactionID()

		payload := map[string]interface{}{
			"project":  h.cfg.PaymentProject,
			"order_id": transactionID,
			"amount":   plan.Amount,
			"api_key":  h.cfg.PaymentAPIKey,
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			"https://app.pakasir.com/api/transactioncreate/qris", bytes.NewReader(raw))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			logrus.Errorf("payment create failed for %d: %v", user.ID, err)
			return c.Send("⚠️ The payment service is unavailable. Please try again shortly.")
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			logrus.Errorf("payment create returned %d for %d: %s", resp.StatusCode, user.ID, body)
			return c.Send("⚠️ Could not prepare the payment. Please try again shortly.")
		}

		var result paymentCreateResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || result.Payment.PaymentNumber == "" {
			logrus.Errorf("payment create returned bad payload for %d: %v", user.ID, err)
			return c.Send("⚠️ Could not prepare the payment. Please try again shortly.")
		}

		png, err := qrcode.Encode(result.Payment.PaymentNumber, qrcode.Medium, 256)
		if err != nil {
			logrus.Errorf("qr encode failed for %d: %v", user.ID, err)
			return c.Send("⚠️ Could not prepare the payment. Please try again shortly.")
		}

		pending := models.TransactionPending{
			TransactionID: transactionID,
			TelegramID:    user.ID,
			PlanDays:      plan.Days,
			Amount:        plan.Amount,
		}
		if err := h.tx.SavePending(ctx, pending); err != nil {
			logrus.Errorf("failed to save pending transaction: %v", err)
			return c.Send(retryMessage)
		}

		p := message.NewPrinter(language.Indonesian)
		var caption bytes.Buffer
		caption.WriteString("💎 <b>Premium payment (QRIS)</b>\n\n")
		caption.WriteString(p.Sprintf("💲 Amount: Rp %d\n", plan.Amount))
		caption.WriteString(fmt.Sprintf("🔐 Plan: %d days\n", plan.Days))
		caption.WriteString(fmt.Sprintf("🧾 Transaction: %s\n\n", transactionID))
		if t, err := time.Parse(time.RFC3339Nano, result.Payment.ExpiredAt); err == nil {
			caption.WriteString(fmt.Sprintf("⏰ Pay before: %s", t.Format("02-01-2006 15:04:05")))
		}

		kb := &telebot.ReplyMarkup{}
		cancelBtn := kb.Data("❌ Cancel payment", "cancel_payment", transactionID)
		kb.Inline(kb.Row(cancelBtn))

		photo := &telebot.Photo{
			File:    telebot.FromReader(bytes.NewReader(png)),
			Caption: caption.String(),
		}
		sent, err := h.bot.Send(c.Chat(), photo, kb, telebot.ModeHTML)
		if err != nil {
			return c.Send(retryMessage)
		}

		h.mu.Lock()
		h.lastInvoice[user.ID] = sent
		h.mu.Unlock()
		return nil
	}
}

// HandleCancelPayment drops the pending transaction and the QR message.
func (h *Handler) HandleCancelPayment(c telebot.Context) error {
	ctx, cancel := requestContext()
	defer cancel()

	if transactionID := c.Data(); transactionID != "" {
		if err := h.tx.DeletePending(ctx, transactionID); err != nil {
			logrus.Errorf("failed to cancel transaction %s: %v", transactionID, err)
		}
	}

	h.mu.Lock()
	invoice := h.lastInvoice[c.Sender().ID]
	delete(h.lastInvoice, c.Sender().ID)
	h.mu.Unlock()

	if invoice != nil {
		_ = h.bot.Delete(invoice)
	}
	return c.Respond(&telebot.CallbackResponse{Text: "Payment cancelled."})
}

// HandlePaymentWebhook receives the provider's confirmation and activates
// premium with the purchased duration.
func (h *Handler) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		OrderID string  `json:"order_id"`
		Amount  float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	pending, err := h.tx.FindPending(ctx, payload.OrderID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			logrus.Warnf("webhook for unknown order %s", payload.OrderID)
			w.WriteHeader(http.StatusOK)
			return
		}
		logrus.Errorf("failed to look up order %s: %v", payload.OrderID, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if int(payload.Amount) != pending.Amount {
		logrus.Warnf("webhook amount mismatch for %s: got %.0f want %d", payload.OrderID, payload.Amount, pending.Amount)
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.premium.Activate(ctx, pending.TelegramID, pending.PlanDays, premium.ActivateOpts{}); err != nil {
		logrus.Errorf("failed to activate premium for %d: %v", pending.TelegramID, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if err := h.tx.MarkSuccess(ctx, pending, time.Now().UTC()); err != nil {
		logrus.Errorf("failed to finalize transaction %s: %v", pending.TransactionID, err)
	}

	msg := fmt.Sprintf(
		"✨ Your premium is active! ✨\n\n"+
			"🎁 <b>Plan:</b> %d days\n"+
			"🎙 You can now re-clone your voice and synthesize without free-tier limits.",
		pending.PlanDays,
	)
	if _, err := h.bot.Send(&telebot.User{ID: pending.TelegramID}, msg, telebot.ModeHTML); err != nil {
		logrus.Warnf("could not notify %d about activation: %v", pending.TelegramID, err)
	}

	logrus.Infof("premium purchased by %d: transaction %s, %d days", pending.TelegramID, pending.TransactionID, pending.PlanDays)
	w.WriteHeader(http.StatusOK)
}

// generateTransactionID builds an invoice id from the timestamp plus a
// random suffix. Falls back to nanoseconds if the random source fails.
func generateTransactionID() string {
	now := time.Now()
	b := make([]byte, 2)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("INV%s%04d", now.Format("20060102150405"), now.Nanosecond()%10000)
	}
	return fmt.Sprintf("INV%s%x", now.Format("20060102150405"), b)
}
