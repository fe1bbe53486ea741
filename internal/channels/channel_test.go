package channels

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestEventCommand(t *testing.T) {
	tests := []struct {
		name     string
		event    Event
		wantCmd  string
		wantArgs []string
	}{
		{name: "plain", event: Event{Kind: EventMessage, Text: "/start"}, wantCmd: "start", wantArgs: []string{}},
		{name: "bot suffix", event: Event{Kind: EventMessage, Text: "/Guests@concierge_bot"}, wantCmd: "guests", wantArgs: []string{}},
		{name: "args", event: Event{Kind: EventMessage, Text: "/reminders off now"}, wantCmd: "reminders", wantArgs: []string{"off", "now"}},
		{name: "text", event: Event{Kind: EventMessage, Text: "hello"}, wantCmd: ""},
		{name: "callback", event: Event{Kind: EventCallback, Data: "/start", Text: "/start"}, wantCmd: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.Command(); got != tt.wantCmd {
				t.Errorf("Command() = %q, want %q", got, tt.wantCmd)
			}
			if got := tt.event.CommandArgs(); tt.wantCmd != "" && !reflect.DeepEqual(got, tt.wantArgs) {
				t.Errorf("CommandArgs() = %#v, want %#v", got, tt.wantArgs)
			}
		})
	}
}

func TestSenderDisplayName(t *testing.T) {
	tests := []struct {
		sender Sender
		want   string
	}{
		{Sender{FirstName: "Anna", LastName: "Petrova"}, "Anna Petrova"},
		{Sender{FirstName: " Anna "}, "Anna"},
		{Sender{Username: "anna"}, "@anna"},
		{Sender{}, ""},
	}
	for _, tt := range tests {
		if got := tt.sender.DisplayName(); got != tt.want {
			t.Errorf("DisplayName(%+v) = %q, want %q", tt.sender, got, tt.want)
		}
	}
}

func TestEventRef(t *testing.T) {
	event := &Event{ChatID: 10, MessageID: 42}
	if ref := event.Ref(); ref != (MessageRef{ChatID: 10, MessageID: 42}) || ref.IsZero() {
		t.Errorf("Ref() = %+v", ref)
	}
	if !(MessageRef{ChatID: 10}).IsZero() {
		t.Error("ref without message id should be zero")
	}
}

func TestKeyboardRow(t *testing.T) {
	kb := Keyboard{}.
		Row(Button{Text: "Add", Data: "faq_add"}).
		Row(Button{Text: "Back", Data: "faq_back"}, Button{Text: "Exit", Data: "faq_exit"})
	if len(kb.Rows) != 2 || len(kb.Rows[1]) != 2 {
		t.Fatalf("unexpected rows: %+v", kb.Rows)
	}
	var _ Markup = kb
	var _ Markup = ReplyKeyboard{}
	var _ Markup = RemoveKeyboard{}
}

func TestHandlerFunc(t *testing.T) {
	var got *Event
	h := HandlerFunc(func(ctx context.Context, event *Event) { got = event })
	event := &Event{Kind: EventMessage, Text: "hi"}
	h.HandleEvent(context.Background(), event)
	if got != event {
		t.Error("handler did not receive the event")
	}
}

func TestErrorClassification(t *testing.T) {
	base := errors.New("boom")
	tests := []struct {
		err       error
		code      ErrorCode
		retryable bool
	}{
		{ErrRateLimit("slow down", base), ErrCodeRateLimit, true},
		{ErrConnection("dial", base), ErrCodeConnection, true},
		{ErrTimeout("wait", base), ErrCodeTimeout, true},
		{ErrForbidden("blocked", base), ErrCodeForbidden, false},
		{ErrConfig("token", nil), ErrCodeConfig, false},
		{base, ErrCodeInternal, false},
	}
	for _, tt := range tests {
		if got := GetErrorCode(tt.err); got != tt.code {
			t.Errorf("GetErrorCode(%v) = %s, want %s", tt.err, got, tt.code)
		}
		if got := IsRetryable(tt.err); got != tt.retryable {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.retryable)
		}
	}

	wrapped := ErrInternal("send", base).WithContext("chat_id", int64(5))
	if !errors.Is(wrapped, base) {
		t.Error("expected wrapped error to unwrap to base")
	}
	if wrapped.Context["chat_id"] != int64(5) {
		t.Errorf("context = %v", wrapped.Context)
	}
	if got := ErrConfig("token is required", nil).Error(); got != "[CONFIG_ERROR] token is required" {
		t.Errorf("Error() = %q", got)
	}
}
