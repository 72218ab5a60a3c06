package handlers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateTransactionID(t *testing.T) {
	id := generateTransactionID()

	assert.True(t, strings.HasPrefix(id, "INV"))
	// "INV" + 14-digit timestamp + 4-char suffix, on both paths.
	assert.Len(t, id, 21)
	assert.NotEqual(t, id, generateTransactionID())
}
