// Package models provides domain types for the concierge event bot.
package models

import "time"

// FAQItem is a single question/answer entry shown to guests.
type FAQItem struct {
	ID       int64  `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`

	// Order defines the presentation sequence. It is not required to be unique.
	Order int `json:"order"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MaxFAQQuestionLength is the longest question text the store accepts.
const MaxFAQQuestionLength = 500
