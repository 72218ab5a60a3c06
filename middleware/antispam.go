package middleware

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// commandThrottle prevents users from spamming commands.
type commandThrottle struct {
	mu           sync.RWMutex
	lastCommand  map[int64]time.Time
	commandDelay time.Duration
	warningCount map[int64]int
	banUntil     map[int64]time.Time
}

var throttle = newThrottle()

func newThrottle() *commandThrottle {
	t := &commandThrottle{
		lastCommand:  make(map[int64]time.Time),
		commandDelay: 2 * time.Second,
		warningCount: make(map[int64]int),
		banUntil:     make(map[int64]time.Time),
	}
	go t.cleanupLoop()
	return t
}

func (t *commandThrottle) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	for range ticker.C {
		t.cleanup()
	}
}

// cleanup removes inactive users from memory.
func (t *commandThrottle) cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	inactiveThreshold := 10 * time.Minute

	for userID, lastTime := range t.lastCommand {
		if now.Sub(lastTime) > inactiveThreshold {
			delete(t.lastCommand, userID)
			delete(t.warningCount, userID)
		}
	}
	for userID, banTime := range t.banUntil {
		if now.After(banTime) {
			delete(t.banUntil, userID)
			logrus.Infof("user %d unbanned", userID)
		}
	}
}

func isCommand(text string) bool {
	return strings.HasPrefix(text, "/")
}

// AntiSpam enforces a short delay between commands, with a temporary ban
// after repeated violations. Admins are exempt.
func AntiSpam(isAdmin func(int64) bool) telebot.MiddlewareFunc {
	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			userID := c.Sender().ID

			if isAdmin(userID) {
				return next(c)
			}

			if banned, until := throttle.isBanned(userID); banned {
				remaining := time.Until(until)
				return c.Send(fmt.Sprintf(
					"🚫 <b>You are temporarily banned for spamming.</b>\n\nTry again in %d seconds.",
					int(remaining.Seconds())+1,
				), telebot.ModeHTML)
			}

			if !isCommand(c.Text()) {
				return next(c)
			}

			allowed, waitTime := throttle.allow(userID)
			if !allowed {
				warnings := throttle.addWarning(userID)

				if warnings >= 5 {
					throttle.ban(userID, 5*time.Minute)
					logrus.Warnf("user %d banned for 5 minutes (command spam)", userID)
					return c.Send(
						"🚫 <b>Banned.</b>\n\nToo many commands in a row. Your account is blocked for 5 minutes.",
						telebot.ModeHTML,
					)
				}

				return c.Send(fmt.Sprintf(
					"⏰ <b>Slow down!</b>\n\nWait <b>%d seconds</b> between commands.\nWarning: %d/5",
					int(waitTime.Seconds())+1,
					warnings,
				), telebot.ModeHTML)
			}

			throttle.resetWarnings(userID)
			throttle.record(userID)
			return next(c)
		}
	}
}

func (t *commandThrottle) allow(userID int64) (bool, time.Duration) {
	t.mu.RLock()
	lastTime, exists := t.lastCommand[userID]
	t.mu.RUnlock()

	if !exists {
		return true, 0
	}
	elapsed := time.Since(lastTime)
	if elapsed < t.commandDelay {
		return false, t.commandDelay - elapsed
	}
	return true, 0
}

func (t *commandThrottle) record(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastCommand[userID] = time.Now()
}

func (t *commandThrottle) addWarning(userID int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.warningCount[userID]++
	return t.warningCount[userID]
}

func (t *commandThrottle) resetWarnings(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if count, exists := t.warningCount[userID]; exists && count > 0 {
		t.warningCount[userID] = 0
	}
}

func (t *commandThrottle) ban(userID int64, duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.banUntil[userID] = time.Now().Add(duration)
	t.warningCount[userID] = 0
}

func (t *commandThrottle) isBanned(userID int64) (bool, time.Time) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	banTime, exists := t.banUntil[userID]
	if !exists || time.Now().After(banTime) {
		return false, time.Time{}
	}
	return true, banTime
}

// ResetUserSpam clears throttle state for a user (admin command).
func ResetUserSpam(userID int64) {
	throttle.mu.Lock()
	defer throttle.mu.Unlock()

	delete(throttle.lastCommand, userID)
	delete(throttle.warningCount, userID)
	delete(throttle.banUntil, userID)
}
