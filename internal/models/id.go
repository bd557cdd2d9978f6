package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewID creates a unique entity ID in <prefix>-xxxxx format (5-char hex).
// Prefixes in use: qu (quest), ms (milestone), cp (checkpoint), cm (commit),
// sb (schedule block), tk (task).
func NewID(prefix string) (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("models: generate ID: %w", err)
	}
	return prefix + "-" + hex.EncodeToString(b)[:5], nil
}
