package models

import (
	"strings"
	"time"
)

// BotUser is anyone who has started a conversation with the bot.
type BotUser struct {
	ID                    int64     `json:"id"`
	UserID                int64     `json:"user_id"`
	Username              string    `json:"username,omitempty"`
	FirstName             string    `json:"first_name,omitempty"`
	LastName              string    `json:"last_name,omitempty"`
	Active                bool      `json:"is_active"`
	SubscribedToReminders bool      `json:"subscribed_to_reminders"`
	CreatedAt             time.Time `json:"created_at"`
	LastInteraction       time.Time `json:"last_interaction"`
}

// DisplayName returns the best human-readable name for the user.
func (u *BotUser) DisplayName() string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name != "" {
		return name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return ""
}
