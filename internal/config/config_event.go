package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// EventConfig describes the single event the bot serves.
type EventConfig struct {
	// Title is shown in greetings and reminders.
	Title string `yaml:"title"`

	// Date is the event day in YYYY-MM-DD form.
	Date string `yaml:"date"`

	// Time is the ceremony start in HH:MM form.
	Time string `yaml:"time"`

	// Timezone is an IANA zone name used for countdowns and timestamps.
	Timezone string `yaml:"timezone"`

	// InviteURL is the registration site encoded by `concierge invite qr`.
	InviteURL string `yaml:"invite_url"`
}

// Location resolves the configured timezone.
func (e EventConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(e.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("event.timezone %q: %w", name, err)
	}
	return loc, nil
}

// Start returns the event start in the event timezone.
func (e EventConfig) Start() (time.Time, error) {
	loc, err := e.Location()
	if err != nil {
		return time.Time{}, err
	}
	if strings.TrimSpace(e.Date) == "" {
		return time.Time{}, fmt.Errorf("event.date is required")
	}
	clock := e.Time
	if clock == "" {
		clock = "15:00"
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", e.Date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("event.date/event.time: %w", err)
	}
	return start, nil
}

// AccessConfig lists the chat identities with elevated roles.
type AccessConfig struct {
	// AdminIDs may list guests, view stats and manage the FAQ.
	AdminIDs []int64 `yaml:"admin_ids"`

	// AnswererID receives guest questions and replies to them.
	AnswererID int64 `yaml:"answerer_id"`

	// WebsiteSenderID is the account that relays registration forms as JSON messages.
	WebsiteSenderID int64 `yaml:"website_sender_id"`

	// OwnerIDs are notified about every new registration.
	OwnerIDs []int64 `yaml:"owner_ids"`
}

// IsAdmin reports whether userID may use admin commands.
func (a AccessConfig) IsAdmin(userID int64) bool {
	return slices.Contains(a.AdminIDs, userID)
}

// IsAnswerer reports whether userID answers guest questions.
func (a AccessConfig) IsAnswerer(userID int64) bool {
	return a.AnswererID != 0 && a.AnswererID == userID
}

// IsWebsiteSender reports whether userID relays registration forms.
func (a AccessConfig) IsWebsiteSender(userID int64) bool {
	return a.WebsiteSenderID != 0 && a.WebsiteSenderID == userID
}
