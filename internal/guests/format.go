package guests

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/haasonsaas/concierge/internal/storage"
	"github.com/haasonsaas/concierge/pkg/models"
)

const timestampLayout = "02.01.2006 15:04"

var statusLabels = map[models.ConfirmationStatus]string{
	models.StatusConfirmed: "✅ Confirmed",
	models.StatusDeclined:  "❌ Declined",
	models.StatusPending:   "⏳ Pending",
}

// FormatNotification renders the message owners get for a new registration.
func FormatNotification(guest *models.Guest, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("<b>🎉 New guest!</b>\n\n")
	fmt.Fprintf(&b, "👤 <b>Name:</b> %s\n", html.EscapeString(guest.Name))
	fmt.Fprintf(&b, "👥 <b>Guests:</b> %d\n", guest.GuestCount)
	fmt.Fprintf(&b, "📌 <b>Status:</b> %s\n", statusLabel(guest.Status))
	if guest.Comment != "" {
		fmt.Fprintf(&b, "💬 <b>Comment:</b> %s\n", html.EscapeString(guest.Comment))
	}
	fmt.Fprintf(&b, "🕐 <b>Date:</b> %s", guest.CreatedAt.In(loc).Format(timestampLayout))
	return b.String()
}

// FormatGuestList renders the admin guest list. The result may exceed one
// chat message; the transport splits it.
func FormatGuestList(guests []*models.Guest, loc *time.Location) string {
	if len(guests) == 0 {
		return "📋 The guest list is empty."
	}
	total := 0
	for _, g := range guests {
		total += g.GuestCount
	}

	var b strings.Builder
	b.WriteString("<b>📊 Guests</b>\n\n")
	fmt.Fprintf(&b, "Total guests: %d\n\n", total)
	b.WriteString("<b>📋 Guest list:</b>\n\n")
	for _, g := range guests {
		fmt.Fprintf(&b, "• <b>%s</b> (guests: %d) %s\n", html.EscapeString(g.Name), g.GuestCount, statusLabel(g.Status))
		if g.Comment != "" {
			fmt.Fprintf(&b, "   💬 %s\n", html.EscapeString(g.Comment))
		}
		fmt.Fprintf(&b, "   🕐 %s\n\n", g.CreatedAt.In(loc).Format(timestampLayout))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatStats renders the admin statistics message.
func FormatStats(stats storage.GuestStats) string {
	var b strings.Builder
	b.WriteString("<b>📊 Statistics</b>\n\n")
	fmt.Fprintf(&b, "👥 Total guests: %d\n", stats.TotalGuests)
	fmt.Fprintf(&b, "📝 Registrations: %d", stats.Registrations)
	for _, status := range models.ConfirmationStatuses {
		count, ok := stats.ByStatus[status]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n%s: %d (%d people)", statusLabel(status), count.Registrations, count.Guests)
	}
	return b.String()
}

func statusLabel(status models.ConfirmationStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return html.EscapeString(string(status))
}
