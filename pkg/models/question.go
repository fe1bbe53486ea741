package models

import "time"

// Question is a free-form question a guest sent to the hosts.
type Question struct {
	ID           int64  `json:"id"`
	FromUserID   int64  `json:"from_user_id"`
	FromUsername string `json:"from_username,omitempty"`
	Text         string `json:"question_text"`

	// Answer fields stay zero until the answerer replies.
	Answer     string     `json:"answer_text,omitempty"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
	AnsweredBy int64      `json:"answered_by_user_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Answered reports whether the question has been answered.
func (q *Question) Answered() bool {
	return q != nil && q.AnsweredAt != nil
}
