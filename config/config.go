package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Limits holds the entitlement numbers applied by the quota gates and the
// premium manager.
type Limits struct {
	MaxFreeTrials            int64
	MaxCharsPerRequest       int
	FreeCharLimitTotal       int64
	MaxVoiceClonesPremium    int
	MonthlyPremiumCharBudget int64
	TrialDays                int
	TrialCharBudget          int64
}

// Config keeps runtime settings for the bot.
type Config struct {
	BotToken        string
	MongoURI        string
	MongoDB         string
	RedisAddr       string
	SpeechifyAPIKey string
	SpeechifyURL    string
	PaymentAPIKey   string
	PaymentProject  string
	WebhookAddr     string

	AdminIDs         []int64
	RequiredChannels []string

	Limits Limits
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		BotToken:        strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		MongoURI:        strings.TrimSpace(os.Getenv("MONGO_URI")),
		MongoDB:         strings.TrimSpace(os.Getenv("MONGO_DB")),
		RedisAddr:       strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		SpeechifyAPIKey: strings.TrimSpace(os.Getenv("SPEECHIFY_API_KEY")),
		SpeechifyURL:    strings.TrimSpace(os.Getenv("SPEECHIFY_URL")),
		PaymentAPIKey:   strings.TrimSpace(os.Getenv("PAKASIR_API_KEY")),
		PaymentProject:  strings.TrimSpace(os.Getenv("PAKASIR_PROJECT")),
		WebhookAddr:     strings.TrimSpace(os.Getenv("WEBHOOK_ADDR")),

		AdminIDs:         parseIDList(os.Getenv("ADMIN_IDS")),
		RequiredChannels: parseChannelList(os.Getenv("REQUIRED_CHANNELS")),

		Limits: Limits{
			MaxFreeTrials:            parseInt64(os.Getenv("MAX_FREE_TRIALS"), 2),
			MaxCharsPerRequest:       int(parseInt64(os.Getenv("MAX_CHARS_PER_REQUEST"), 100)),
			FreeCharLimitTotal:       parseInt64(os.Getenv("FREE_CHAR_LIMIT_TOTAL"), 500),
			MaxVoiceClonesPremium:    int(parseInt64(os.Getenv("MAX_VOICE_CLONES_PREMIUM"), 3)),
			MonthlyPremiumCharBudget: parseInt64(os.Getenv("MONTHLY_PREMIUM_CHAR_BUDGET"), 100000),
			TrialDays:                int(parseInt64(os.Getenv("TRIAL_DAYS"), 3)),
			TrialCharBudget:          parseInt64(os.Getenv("TRIAL_CHAR_BUDGET"), 2000),
		},
	}

	if cfg.MongoDB == "" {
		cfg.MongoDB = "voiceclone"
	}
	if cfg.WebhookAddr == "" {
		cfg.WebhookAddr = ":8080"
	}
	if cfg.SpeechifyURL == "" {
		cfg.SpeechifyURL = "https://api.sws.speechify.com"
	}

	if cfg.BotToken == "" {
		return cfg, fmt.Errorf("BOT_TOKEN is required")
	}
	if cfg.MongoURI == "" {
		return cfg, fmt.Errorf("MONGO_URI is required")
	}
	if cfg.SpeechifyAPIKey == "" {
		return cfg, fmt.Errorf("SPEECHIFY_API_KEY is required")
	}

	return cfg, nil
}

// IsAdmin reports whether id is on the fixed admin allow-list.
func (c Config) IsAdmin(id int64) bool {
	for _, admin := range c.AdminIDs {
		if admin == id {
			return true
		}
	}
	return false
}

func parseInt64(raw string, def int64) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func parseIDList(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// parseChannelList normalizes entries to the @username form Telegram expects.
func parseChannelList(raw string) []string {
	var channels []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, "@") && !strings.HasPrefix(part, "-") {
			part = "@" + part
		}
		channels = append(channels, part)
	}
	return channels
}
