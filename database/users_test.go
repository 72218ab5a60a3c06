package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewUserDocument(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	u := NewUserDocument(42, "alice", "Alice A", now)

	assert.Equal(t, int64(42), u.TelegramUserID)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "Alice A", u.FullName)
	assert.Equal(t, now, u.CreatedAt)
	assert.Equal(t, now, u.LastUpdated)

	// A fresh account starts with nothing spent and nothing granted.
	// GetOrCreate's $setOnInsert is built from this document.
	assert.Zero(t, u.Usage.TotalCharsUsed)
	assert.Zero(t, u.Usage.RequestCount)
	assert.False(t, u.VoiceCloned)
	assert.False(t, u.HasVoice())
	assert.False(t, u.Premium.IsPremium)
	assert.Zero(t, u.Premium.RemainingChars)
	assert.Nil(t, u.Premium.ExpiresOn)
}
