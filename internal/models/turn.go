// ABOUTME: Turn is one message in a session's conversation history
// ABOUTME: Sessions hold an append-only chronological sequence of turns
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role identifies who authored a turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid checks that the role is one of the known roles
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn represents a single conversation message
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurn creates a new Turn with validation
func NewTurn(role Role, text string) (Turn, error) {
	if !role.IsValid() {
		return Turn{}, fmt.Errorf("invalid role %q", role)
	}
	if role == RoleUser && strings.TrimSpace(text) == "" {
		return Turn{}, errors.New("user message cannot be empty")
	}
	return Turn{
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}, nil
}
