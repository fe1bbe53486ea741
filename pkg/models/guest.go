package models

import (
	"fmt"
	"strings"
	"time"
)

// ConfirmationStatus records whether a guest is attending.
type ConfirmationStatus string

const (
	StatusConfirmed ConfirmationStatus = "confirmed"
	StatusDeclined  ConfirmationStatus = "declined"
	StatusPending   ConfirmationStatus = "pending"
)

// ConfirmationStatuses lists every accepted status in display order.
var ConfirmationStatuses = []ConfirmationStatus{StatusConfirmed, StatusDeclined, StatusPending}

// Valid reports whether s is a known status.
func (s ConfirmationStatus) Valid() bool {
	switch s {
	case StatusConfirmed, StatusDeclined, StatusPending:
		return true
	default:
		return false
	}
}

// ParseConfirmationStatus normalizes and validates a status string.
func ParseConfirmationStatus(raw string) (ConfirmationStatus, error) {
	status := ConfirmationStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("confirmation_status must be one of confirmed, declined, pending; got %q", raw)
	}
	return status, nil
}

// Guest is a registration received from the website form.
type Guest struct {
	ID         int64              `json:"id"`
	Name       string             `json:"name"`
	GuestCount int                `json:"guest_count"`
	Status     ConfirmationStatus `json:"confirmation_status"`
	Comment    string             `json:"comment,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}
