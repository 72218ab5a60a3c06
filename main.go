package main

import (
	"context"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"voiceclone-bot/config"
	"voiceclone-bot/database"
	"voiceclone-bot/handlers"
	"voiceclone-bot/middleware"
	"voiceclone-bot/premium"
	"voiceclone-bot/speech"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}

	if err := database.Connect(cfg.MongoURI, cfg.MongoDB); err != nil {
		logrus.Fatalf("MongoDB connection failed: %v", err)
	}
	defer database.Disconnect()

	db := database.GetDatabase()
	users := database.NewUsers(db)
	transactions := database.NewTransactions(db)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
			logrus.Fatalf("Redis connection failed: %v", err)
		}
		logrus.Info("connected to Redis")
	}

	pref := telebot.Settings{
		Token: cfg.BotToken,
		Client: &http.Client{
			Timeout: 2 * time.Minute,
		},
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		logrus.Fatalf("bot: %v", err)
	}

	premiumSvc := premium.NewService(users, cfg.Limits)
	speechClient := speech.NewClient(cfg.SpeechifyURL, cfg.SpeechifyAPIKey)
	h := handlers.New(bot, users, transactions, premiumSvc, speechClient, cfg)

	// Private chats only; admins may use the bot anywhere.
	bot.Use(func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			if h.IsAdmin(c.Sender().ID) {
				return next(c)
			}
			if c.Chat().Type != telebot.ChatPrivate {
				return c.Send("❌ This bot only works in direct messages.")
			}
			return next(c)
		}
	})
	bot.Use(middleware.AntiSpam(h.IsAdmin))

	sub := middleware.NewSubscription(middleware.NewTelebotChecker(bot), cfg.RequiredChannels, redisClient)

	bot.Handle("/start", h.HandleStart)
	bot.Handle("/status", h.HandleStatus)
	bot.Handle("/premium", h.HandlePremium)

	bot.Handle(telebot.OnText, sub.Require(h.HandleText))
	bot.Handle(telebot.OnVoice, sub.Require(h.HandleAudio))
	bot.Handle(telebot.OnAudio, sub.Require(h.HandleAudio))

	bot.Handle(&telebot.Btn{Unique: "verify_subscription"}, sub.HandleVerify)

	bot.Handle(&telebot.Btn{Unique: "prem_7d"}, h.HandleBuyPlan("prem_7d"))
	bot.Handle(&telebot.Btn{Unique: "prem_30d"}, h.HandleBuyPlan("prem_30d"))
	bot.Handle(&telebot.Btn{Unique: "prem_90d"}, h.HandleBuyPlan("prem_90d"))
	bot.Handle(&telebot.Btn{Unique: "cancel_payment"}, h.HandleCancelPayment)

	bot.Handle("/admin", h.HandleAdminPanel)
	bot.Handle(&telebot.Btn{Unique: "admin_stats"}, h.HandleAdminStats)
	bot.Handle(&telebot.Btn{Unique: "admin_broadcast"}, h.HandleAdminBroadcastPrompt)
	bot.Handle(&telebot.Btn{Unique: "admin_upgrade"}, h.HandleAdminUpgradePrompt)
	bot.Handle("/upgrade", h.HandleUpgradeCommand)
	bot.Handle("/revoke", h.HandleRevokeCommand)
	bot.Handle("/deluser", h.HandleDeleteUserCommand)
	bot.Handle("/resetspam", h.HandleResetSpamCommand)

	bot.SetCommands([]telebot.Command{
		{Text: "start", Description: "Start the bot"},
		{Text: "status", Description: "Check your account"},
		{Text: "premium", Description: "Premium plans"},
	})

	logrus.Info("bot is running")
	go bot.Start()

	http.HandleFunc("/webhook/pakasir", h.HandlePaymentWebhook)
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := database.HealthCheck(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	logrus.Infof("payment webhook listening on %s", cfg.WebhookAddr)
	logrus.Fatal(http.ListenAndServe(cfg.WebhookAddr, nil))
}
