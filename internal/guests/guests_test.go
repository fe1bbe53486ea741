package guests

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/text/encoding/charmap"

	"github.com/haasonsaas/concierge/internal/channels"
	"github.com/haasonsaas/concierge/internal/storage"
	"github.com/haasonsaas/concierge/pkg/models"
)

type sentMessage struct {
	chatID int64
	text   string
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
	fail map[int64]bool
}

func (f *fakeMessenger) Send(_ context.Context, chatID int64, text string, _ channels.Markup) (channels.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[chatID] {
		return channels.MessageRef{}, channels.ErrForbidden("bot was blocked", nil)
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return channels.MessageRef{ChatID: chatID, MessageID: len(f.sent)}, nil
}

func (f *fakeMessenger) Edit(context.Context, channels.MessageRef, string, channels.Markup) error {
	return nil
}

func (f *fakeMessenger) AckCallback(context.Context, string, string) error {
	return nil
}

type countingRecorder struct {
	calls []string
}

func (c *countingRecorder) RecordRegistration(source, status string) {
	c.calls = append(c.calls, source+"/"+status)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		source    Source
		want      Registration
		wantValid bool
		wantBad   bool
	}{
		{
			name:   "api defaults",
			body:   `{"name":"  Anna  "}`,
			source: SourceAPI,
			want:   Registration{Name: "Anna", GuestCount: 1, Status: "pending"},
		},
		{
			name:   "full relay payload",
			body:   `{"name":"Ivan","guest_count":3,"confirmation_status":"Confirmed","comment":"vegetarian "}`,
			source: SourceRelay,
			want:   Registration{Name: "Ivan", GuestCount: 3, Status: "confirmed", Comment: "vegetarian"},
		},
		{
			name:   "null comment",
			body:   `{"name":"Ivan","guest_count":2,"confirmation_status":"declined","comment":null}`,
			source: SourceRelay,
			want:   Registration{Name: "Ivan", GuestCount: 2, Status: "declined"},
		},
		{
			name:      "relay missing status",
			body:      `{"name":"Ivan","guest_count":2}`,
			source:    SourceRelay,
			wantValid: true,
		},
		{
			name:      "count is not an integer",
			body:      `{"name":"Ivan","guest_count":"many"}`,
			source:    SourceAPI,
			wantValid: true,
		},
		{
			name:      "count too large",
			body:      `{"name":"Ivan","guest_count":21}`,
			source:    SourceAPI,
			wantValid: true,
		},
		{
			name:      "count zero",
			body:      `{"name":"Ivan","guest_count":0}`,
			source:    SourceAPI,
			wantValid: true,
		},
		{
			name:      "blank name",
			body:      `{"name":"   "}`,
			source:    SourceAPI,
			wantValid: true,
		},
		{
			name:      "unknown status",
			body:      `{"name":"Ivan","confirmation_status":"maybe"}`,
			source:    SourceAPI,
			wantValid: true,
		},
		{
			name:    "not json",
			body:    `name=Ivan`,
			source:  SourceAPI,
			wantBad: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.body), tt.source)
			var ve *ValidationError
			switch {
			case tt.wantValid:
				if !errors.As(err, &ve) {
					t.Fatalf("Decode() error = %v, want ValidationError", err)
				}
			case tt.wantBad:
				if !errors.Is(err, ErrMalformed) {
					t.Fatalf("Decode() error = %v, want ErrMalformed", err)
				}
			default:
				if err != nil {
					t.Fatalf("Decode() error = %v", err)
				}
				if *got != tt.want {
					t.Errorf("Decode() = %+v, want %+v", *got, tt.want)
				}
			}
		})
	}
}

func TestDecodeWindows1251(t *testing.T) {
	body, err := charmap.Windows1251.NewEncoder().String(`{"name":"Анна Петрова","comment":"Будем вдвоём"}`)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	reg, err := Decode([]byte(body), SourceAPI)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if reg.Name != "Анна Петрова" || reg.Comment != "Будем вдвоём" {
		t.Errorf("Decode() = %+v", reg)
	}
}

func newTestService(t *testing.T, messenger channels.Messenger, rec Recorder) (*Service, *storage.MemoryGuestStore) {
	t.Helper()
	store := storage.NewMemoryGuestStore()
	svc, err := NewService(Config{
		Store:     store,
		Messenger: messenger,
		Owners:    []int64{100, 200},
		Location:  time.FixedZone("MSK", 3*3600),
		Metrics:   rec,
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc, store
}

func TestNewServiceRequiresStore(t *testing.T) {
	if _, err := NewService(Config{}); err == nil {
		t.Fatal("NewService() without store succeeded")
	}
}

func TestRegisterNotifiesOwners(t *testing.T) {
	messenger := &fakeMessenger{fail: map[int64]bool{200: true}}
	rec := &countingRecorder{}
	svc, store := newTestService(t, messenger, rec)

	guest, err := svc.Register(context.Background(), &Registration{
		Name: "Anna <3", GuestCount: 2, Status: "confirmed", Comment: "with kids",
	}, SourceAPI)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if guest.ID == 0 {
		t.Fatal("Register() returned guest without id")
	}
	if _, err := store.Get(context.Background(), guest.ID); err != nil {
		t.Fatalf("stored guest: %v", err)
	}

	if len(messenger.sent) != 1 || messenger.sent[0].chatID != 100 {
		t.Fatalf("notifications = %+v, want one to owner 100", messenger.sent)
	}
	text := messenger.sent[0].text
	for _, want := range []string{"Anna &lt;3", "👥 <b>Guests:</b> 2", "with kids", "✅ Confirmed"} {
		if !strings.Contains(text, want) {
			t.Errorf("notification %q missing %q", text, want)
		}
	}
	if len(rec.calls) != 1 || rec.calls[0] != "api/confirmed" {
		t.Errorf("metrics = %v", rec.calls)
	}
}

func TestRegisterRejectsInvalid(t *testing.T) {
	messenger := &fakeMessenger{}
	svc, store := newTestService(t, messenger, nil)

	_, err := svc.Register(context.Background(), &Registration{Name: "", GuestCount: 1, Status: "pending"}, SourceRelay)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Register() error = %v, want ValidationError", err)
	}
	guests, _ := store.List(context.Background())
	if len(guests) != 0 || len(messenger.sent) != 0 {
		t.Errorf("invalid registration stored %d guests and sent %d messages", len(guests), len(messenger.sent))
	}
}

func TestSetOwners(t *testing.T) {
	messenger := &fakeMessenger{}
	svc, _ := newTestService(t, messenger, nil)
	svc.SetOwners([]int64{300})

	if _, err := svc.Register(context.Background(), &Registration{Name: "Ivan", GuestCount: 1, Status: "pending"}, SourceAPI); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if len(messenger.sent) != 1 || messenger.sent[0].chatID != 300 {
		t.Errorf("notifications = %+v, want one to 300", messenger.sent)
	}
}

func TestFormatGuestList(t *testing.T) {
	loc := time.FixedZone("MSK", 3*3600)
	created := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	guests := []*models.Guest{
		{Name: "Ivan", GuestCount: 3, Status: models.StatusPending, CreatedAt: created},
		{Name: "Anna & Co", GuestCount: 2, Status: models.StatusConfirmed, Comment: "late", CreatedAt: created},
	}

	got := FormatGuestList(guests, loc)
	for _, want := range []string{"Total guests: 5", "<b>Anna &amp; Co</b> (guests: 2)", "💬 late", "01.05.2026 12:30"} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatGuestList() missing %q in:\n%s", want, got)
		}
	}
	if got := FormatGuestList(nil, loc); !strings.Contains(got, "empty") {
		t.Errorf("FormatGuestList(nil) = %q", got)
	}
}

func TestFormatStats(t *testing.T) {
	got := FormatStats(storage.GuestStats{
		Registrations: 3,
		TotalGuests:   6,
		ByStatus: map[models.ConfirmationStatus]storage.StatusCount{
			models.StatusConfirmed: {Registrations: 2, Guests: 5},
			models.StatusDeclined:  {Registrations: 1, Guests: 1},
		},
	})
	want := "<b>📊 Statistics</b>\n\n👥 Total guests: 6\n📝 Registrations: 3\n✅ Confirmed: 2 (5 people)\n❌ Declined: 1 (1 people)"
	if got != want {
		t.Errorf("FormatStats() =\n%s\nwant\n%s", got, want)
	}
}
