package channels

import (
	"context"
	"strings"
	"time"
)

// EventKind distinguishes the two kinds of inbound chat events.
type EventKind string

const (
	// EventMessage is a text message typed by the user.
	EventMessage EventKind = "message"

	// EventCallback is a press on an inline keyboard button.
	EventCallback EventKind = "callback"
)

// Sender identifies the user behind an inbound event.
type Sender struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// DisplayName returns "First Last", falling back to @username.
func (s Sender) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(s.FirstName) + " " + strings.TrimSpace(s.LastName))
	if name != "" {
		return name
	}
	if s.Username != "" {
		return "@" + s.Username
	}
	return ""
}

// MessageRef points at a message that was already delivered to a chat.
type MessageRef struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}

// IsZero reports whether the reference points nowhere.
func (r MessageRef) IsZero() bool {
	return r.ChatID == 0 || r.MessageID == 0
}

// Event is a transport-neutral inbound update.
type Event struct {
	Kind EventKind `json:"kind"`
	From Sender    `json:"from"`

	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id,omitempty"`

	// Text is set for EventMessage.
	Text string `json:"text,omitempty"`

	// CallbackID and Data are set for EventCallback. MessageID then refers
	// to the message that carried the pressed button.
	CallbackID string `json:"callback_id,omitempty"`
	Data       string `json:"data,omitempty"`

	ReceivedAt time.Time `json:"received_at"`
}

// Ref returns a reference to the message the event belongs to.
func (e *Event) Ref() MessageRef {
	return MessageRef{ChatID: e.ChatID, MessageID: e.MessageID}
}

// IsCommand reports whether the event is a slash command.
func (e *Event) IsCommand() bool {
	return e.Kind == EventMessage && strings.HasPrefix(e.Text, "/")
}

// Command returns the command name without the leading slash, the optional
// @botname suffix and any arguments. It returns "" for non-commands.
func (e *Event) Command() string {
	if !e.IsCommand() {
		return ""
	}
	name := strings.Fields(e.Text)[0][1:]
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name)
}

// CommandArgs returns the whitespace separated arguments after a command.
func (e *Event) CommandArgs() []string {
	if !e.IsCommand() {
		return nil
	}
	return strings.Fields(e.Text)[1:]
}

// Markup is reply markup attached to an outgoing message. It is implemented
// by Keyboard, ReplyKeyboard and RemoveKeyboard.
type Markup interface {
	isMarkup()
}

// Button is one inline keyboard button. Exactly one of Data or URL is set.
type Button struct {
	Text string `json:"text"`
	Data string `json:"data,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Keyboard is an inline keyboard shown under a message.
type Keyboard struct {
	Rows [][]Button `json:"rows"`
}

func (Keyboard) isMarkup() {}

// Row appends a row of buttons and returns the keyboard for chaining.
func (k Keyboard) Row(buttons ...Button) Keyboard {
	k.Rows = append(k.Rows, buttons)
	return k
}

// ReplyKeyboard replaces the user's text keyboard with fixed buttons.
type ReplyKeyboard struct {
	Rows   [][]string `json:"rows"`
	Resize bool       `json:"resize"`
}

func (ReplyKeyboard) isMarkup() {}

// RemoveKeyboard hides a previously sent ReplyKeyboard.
type RemoveKeyboard struct{}

func (RemoveKeyboard) isMarkup() {}

// Messenger delivers outgoing messages. Implementations render HTML text.
type Messenger interface {
	// Send posts a new message to chatID and returns its reference.
	Send(ctx context.Context, chatID int64, text string, markup Markup) (MessageRef, error)

	// Edit replaces the text and inline keyboard of an existing message.
	// Only a nil markup or a Keyboard is accepted.
	Edit(ctx context.Context, ref MessageRef, text string, markup Markup) error

	// AckCallback stops the client's progress indicator for a button press.
	// A non-empty text is shown as a toast.
	AckCallback(ctx context.Context, callbackID, text string) error
}

// Handler processes inbound events.
type Handler interface {
	HandleEvent(ctx context.Context, event *Event)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, event *Event)

// HandleEvent calls f(ctx, event).
func (f HandlerFunc) HandleEvent(ctx context.Context, event *Event) {
	f(ctx, event)
}

// Adapter is a running chat transport.
type Adapter interface {
	Messenger

	// Start connects to the platform and delivers events to the handler
	// until Stop is called or ctx is canceled.
	Start(ctx context.Context, handler Handler) error

	// Stop gracefully shuts down the adapter.
	Stop(ctx context.Context) error

	// Status returns the current connection status.
	Status() Status

	// HealthCheck performs a lightweight connectivity check.
	HealthCheck(ctx context.Context) HealthStatus

	// Metrics returns the current metrics snapshot for this adapter.
	Metrics() MetricsSnapshot
}

// Status represents the connection status of a channel.
type Status struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
	LastPing  int64  `json:"last_ping,omitempty"` // Unix timestamp
}

// HealthStatus represents the health check result for an adapter.
type HealthStatus struct {
	// Healthy indicates whether the adapter is functioning correctly
	Healthy bool `json:"healthy"`

	// Latency is the time taken to perform the health check
	Latency time.Duration `json:"latency"`

	// Message provides additional context about the health status
	Message string `json:"message,omitempty"`

	// LastCheck is the timestamp of this health check
	LastCheck time.Time `json:"last_check"`

	// Degraded indicates the service is operational but with reduced functionality
	Degraded bool `json:"degraded,omitempty"`
}
