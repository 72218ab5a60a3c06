// Package handlers wires Telegram updates to the entitlement engine:
// gates decide, the store records, and everything user-facing lives here.
package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"voiceclone-bot/config"
	"voiceclone-bot/database"
	"voiceclone-bot/models"
	"voiceclone-bot/premium"
	"voiceclone-bot/speech"
)

const retryMessage = "⚠️ Something went wrong on our side. Nothing was charged — please try again in a moment."

// Handler carries the bot's collaborators. One instance serves all
// updates.
type Handler struct {
	bot     *telebot.Bot
	users   *database.Users
	tx      *database.Transactions
	premium *premium.Service
	speech  *speech.Client
	cfg     config.Config

	mu                sync.Mutex
	awaitingBroadcast map[int64]bool
	awaitingUpgrade   map[int64]bool
	lastInvoice       map[int64]*telebot.Message
}

func New(bot *telebot.Bot, users *database.Users, tx *database.Transactions, premiumSvc *premium.Service, speechClient *speech.Client, cfg config.Config) *Handler {
	return &Handler{
		bot:               bot,
		users:             users,
		tx:                tx,
		premium:           premiumSvc,
		speech:            speechClient,
		cfg:               cfg,
		awaitingBroadcast: make(map[int64]bool),
		awaitingUpgrade:   make(map[int64]bool),
		lastInvoice:       make(map[int64]*telebot.Message),
	}
}

// loadUser fetches (or creates) the caller's record. On storage failure
// the user is asked to retry; the outage is never mistaken for a fresh
// free account.
func (h *Handler) loadUser(ctx context.Context, c telebot.Context) (*models.User, error) {
	sender := c.Sender()
	fullName := sender.FirstName
	if sender.LastName != "" {
		fullName += " " + sender.LastName
	}

	user, err := h.users.GetOrCreate(ctx, sender.ID, sender.Username, fullName)
	if err != nil {
		logrus.Errorf("failed to load user %d: %v", sender.ID, err)
		return nil, c.Send(retryMessage)
	}
	return user, nil
}

func (h *Handler) isAdmin(id int64) bool {
	return h.cfg.IsAdmin(id)
}

// IsAdmin exposes the allow-list check for middleware wiring.
func (h *Handler) IsAdmin(id int64) bool {
	return h.isAdmin(id)
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
