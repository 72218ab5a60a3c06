package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("SPEECHIFY_API_KEY", "sk-test")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "voiceclone", cfg.MongoDB)
	assert.Equal(t, ":8080", cfg.WebhookAddr)
	assert.Equal(t, "https://api.sws.speechify.com", cfg.SpeechifyURL)

	assert.Equal(t, int64(2), cfg.Limits.MaxFreeTrials)
	assert.Equal(t, 100, cfg.Limits.MaxCharsPerRequest)
	assert.Equal(t, int64(500), cfg.Limits.FreeCharLimitTotal)
	assert.Equal(t, 3, cfg.Limits.MaxVoiceClonesPremium)
	assert.Equal(t, int64(100000), cfg.Limits.MonthlyPremiumCharBudget)
	assert.Equal(t, 3, cfg.Limits.TrialDays)
	assert.Equal(t, int64(2000), cfg.Limits.TrialCharBudget)
}

func TestLoadRequiredVars(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{"missing bot token", "BOT_TOKEN"},
		{"missing mongo uri", "MONGO_URI"},
		{"missing speechify key", "SPEECHIFY_API_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.unset, "")

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.unset)
		})
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("MAX_FREE_TRIALS", "5")
	t.Setenv("FREE_CHAR_LIMIT_TOTAL", "1000")
	t.Setenv("MONGO_DB", "custom")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(5), cfg.Limits.MaxFreeTrials)
	assert.Equal(t, int64(1000), cfg.Limits.FreeCharLimitTotal)
	assert.Equal(t, "custom", cfg.MongoDB)
}

func TestLoadBadNumbersFallBack(t *testing.T) {
	setRequired(t)
	t.Setenv("MAX_FREE_TRIALS", "lots")
	t.Setenv("FREE_CHAR_LIMIT_TOTAL", "-10")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(2), cfg.Limits.MaxFreeTrials)
	assert.Equal(t, int64(500), cfg.Limits.FreeCharLimitTotal)
}

func TestChannelNormalization(t *testing.T) {
	setRequired(t)
	t.Setenv("REQUIRED_CHANNELS", "news, @updates ,-1001234567890,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"@news", "@updates", "-1001234567890"}, cfg.RequiredChannels)
}

func TestAdminIDs(t *testing.T) {
	setRequired(t)
	t.Setenv("ADMIN_IDS", "100, 200,junk,300")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 200, 300}, cfg.AdminIDs)

	assert.True(t, cfg.IsAdmin(200))
	assert.False(t, cfg.IsAdmin(999))
}
