package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/haasonsaas/concierge/internal/channels"
	"github.com/haasonsaas/concierge/internal/faqedit"
	"github.com/haasonsaas/concierge/internal/guests"
	"github.com/haasonsaas/concierge/pkg/models"
)

const (
	msgNoRights      = "⛔ You don't have permission to use this command."
	msgUseMenu       = "Please use the menu buttons to talk to the bot."
	msgLoadFailed    = "⚠️ Something went wrong. Please try again later."
	msgNoReminders   = "❌ The reminder service is not running."
	msgNothingToStop = "There is nothing to cancel."
	msgCanceled      = "❎ Canceled."
)

func (d *Dispatcher) handleMessage(ctx context.Context, ev *channels.Event) error {
	if ev.IsCommand() {
		handled, err := d.handleCommand(ctx, ev)
		if handled {
			return err
		}
		// Unknown commands, such as the FAQ skip directive, are plain text
		// for the workflows.
	}
	return d.handleText(ctx, ev)
}

func (d *Dispatcher) handleCommand(ctx context.Context, ev *channels.Event) (bool, error) {
	switch ev.Command() {
	case "start":
		return true, d.cmdStart(ctx, ev)
	case "help":
		d.cmdHelp(ctx, ev)
		return true, nil
	case "faq":
		return true, d.showFAQ(ctx, ev)
	case "guests":
		return true, d.cmdGuests(ctx, ev)
	case "stats":
		return true, d.cmdStats(ctx, ev)
	case "test_reminder":
		return true, d.cmdTestReminder(ctx, ev)
	case "cancel":
		d.cmdCancel(ctx, ev)
		return true, nil
	case "reminders":
		return true, d.cmdReminders(ctx, ev)
	default:
		return false, nil
	}
}

func (d *Dispatcher) handleText(ctx context.Context, ev *channels.Event) error {
	roles := d.roles()
	userID := ev.From.ID

	if roles.IsWebsiteSender(userID) {
		return d.handleWebsiteForm(ctx, ev)
	}

	switch ev.Text {
	case ButtonAsk:
		d.questions.BeginAsk(ctx, ev.From, ev.ChatID)
		return nil
	case ButtonFAQ:
		return d.showFAQ(ctx, ev)
	}

	if roles.IsAdmin(userID) {
		switch ev.Text {
		case ButtonGuests:
			return d.cmdGuests(ctx, ev)
		case ButtonStats:
			return d.cmdStats(ctx, ev)
		case ButtonEditFAQ:
			return d.editor.ShowMenu(ctx, faqedit.Responder{UserID: userID, ChatID: ev.ChatID})
		}
	}

	responder := faqedit.Responder{UserID: userID, ChatID: ev.ChatID}
	if handled, err := d.editor.HandleText(ctx, responder, ev.Text); handled || err != nil {
		return err
	}
	if handled, err := d.questions.ReceiveQuestion(ctx, ev.From, ev.ChatID, ev.Text); handled || err != nil {
		return err
	}
	if handled, err := d.questions.ReceiveAnswer(ctx, userID, ev.ChatID, ev.Text); handled || err != nil {
		return err
	}

	d.send(ctx, ev.ChatID, msgUseMenu, d.menuFor(userID))
	return nil
}

func (d *Dispatcher) cmdStart(ctx context.Context, ev *channels.Event) error {
	if _, err := d.users.Upsert(ctx, botUser(ev.From)); err != nil {
		// The greeting matters more than the reminder subscription.
		d.logger.Warn("failed to save bot user", "user_id", ev.From.ID, "error", err)
	}

	name := html.EscapeString(ev.From.DisplayName())
	if d.roles().IsAdmin(ev.From.ID) {
		d.send(ctx, ev.ChatID, fmt.Sprintf("👋 <b>Welcome, %s!</b>\n\n<b>Admin panel</b>\n\n"+
			"Here you can:\n• view the guest list\n• see statistics\n• edit the FAQ\n• browse the FAQ\n\n"+
			"Use the buttons below to navigate.", name), AdminMenu())
		return nil
	}
	d.send(ctx, ev.ChatID, fmt.Sprintf("👋 <b>Welcome, %s!</b>\n\nThis is the bot for %s!\n\n"+
		"Here you can:\n• ask us a question\n• read the frequently asked questions\n\n"+
		"Use the buttons below to navigate.", name, html.EscapeString(d.title)), MainMenu())
	return nil
}

func (d *Dispatcher) cmdHelp(ctx context.Context, ev *channels.Event) {
	if d.roles().IsAdmin(ev.From.ID) {
		d.send(ctx, ev.ChatID, "<b>📖 Help (admin)</b>\n\n<b>Buttons:</b>\n"+
			"• "+ButtonGuests+" shows every registration\n"+
			"• "+ButtonStats+" shows quick totals\n"+
			"• "+ButtonEditFAQ+" adds, edits and deletes FAQ entries\n"+
			"• "+ButtonFAQ+" shows the FAQ\n\n"+
			"<b>Commands:</b>\n/guests, /stats, /test_reminder, /cancel, /reminders on|off\n\n"+
			"While editing an FAQ entry send "+html.EscapeString(d.editor.SkipDirective())+" to keep the current value.",
			AdminMenu())
		return
	}
	d.send(ctx, ev.ChatID, "<b>📖 Help</b>\n\n"+
		"• Press \""+ButtonAsk+"\" to send us a question\n"+
		"• Press \""+ButtonFAQ+"\" to read the FAQ\n"+
		"• Send /reminders off to stop countdown reminders\n\n"+
		"Just tap a button below! 👇", MainMenu())
}

func (d *Dispatcher) showFAQ(ctx context.Context, ev *channels.Event) error {
	items, err := d.faq.ListOrdered(ctx)
	if err != nil {
		d.send(ctx, ev.ChatID, msgLoadFailed, nil)
		return fmt.Errorf("list faq: %w", err)
	}
	d.send(ctx, ev.ChatID, formatFAQ(items), d.menuFor(ev.From.ID))
	return nil
}

func formatFAQ(items []*models.FAQItem) string {
	if len(items) == 0 {
		return "📚 <b>Frequently asked questions</b>\n\nNo questions yet."
	}
	var b strings.Builder
	b.WriteString("📚 <b>Frequently asked questions</b>\n")
	for _, item := range items {
		fmt.Fprintf(&b, "\n❓ <b>%s</b>\n💬 %s\n", html.EscapeString(item.Question), html.EscapeString(item.Answer))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (d *Dispatcher) cmdGuests(ctx context.Context, ev *channels.Event) error {
	if !d.roles().IsAdmin(ev.From.ID) {
		d.send(ctx, ev.ChatID, msgNoRights, nil)
		return nil
	}
	list, err := d.guests.List(ctx)
	if err != nil {
		d.send(ctx, ev.ChatID, msgLoadFailed, nil)
		return err
	}
	d.send(ctx, ev.ChatID, guests.FormatGuestList(list, d.guests.Location()), nil)
	return nil
}

func (d *Dispatcher) cmdStats(ctx context.Context, ev *channels.Event) error {
	if !d.roles().IsAdmin(ev.From.ID) {
		d.send(ctx, ev.ChatID, msgNoRights, nil)
		return nil
	}
	stats, err := d.guests.Stats(ctx)
	if err != nil {
		d.send(ctx, ev.ChatID, msgLoadFailed, nil)
		return err
	}
	d.send(ctx, ev.ChatID, guests.FormatStats(stats), nil)
	return nil
}

func (d *Dispatcher) cmdTestReminder(ctx context.Context, ev *channels.Event) error {
	if !d.roles().IsAdmin(ev.From.ID) {
		d.send(ctx, ev.ChatID, "❌ This command is for admins only.", nil)
		return nil
	}
	if d.reminders == nil {
		d.send(ctx, ev.ChatID, msgNoReminders, nil)
		return nil
	}
	d.send(ctx, ev.ChatID, "📅 Sending test reminders to all subscribers...", nil)
	res, err := d.reminders.SendTest(ctx)
	if err != nil {
		d.send(ctx, ev.ChatID, msgLoadFailed, nil)
		return err
	}
	d.send(ctx, ev.ChatID, fmt.Sprintf("✅ Broadcast finished!\n\n📊 Sent: %d\n❌ Failed: %d\n👥 Total users: %d",
		res.Sent, res.Failed, res.Total), nil)
	return nil
}

func (d *Dispatcher) cmdCancel(ctx context.Context, ev *channels.Event) {
	faq := d.editor.CancelAll(ev.From.ID)
	q := d.questions.Cancel(ev.From.ID)
	text := msgNothingToStop
	if faq || q {
		text = msgCanceled
	}
	d.send(ctx, ev.ChatID, text, d.menuFor(ev.From.ID))
}

func (d *Dispatcher) cmdReminders(ctx context.Context, ev *channels.Event) error {
	var arg string
	if args := ev.CommandArgs(); len(args) > 0 {
		arg = strings.ToLower(args[0])
	}
	var subscribe bool
	switch arg {
	case "on":
		subscribe = true
	case "off":
		subscribe = false
	default:
		d.send(ctx, ev.ChatID, "Send /reminders on or /reminders off.", nil)
		return nil
	}

	if _, err := d.users.Upsert(ctx, botUser(ev.From)); err != nil {
		d.send(ctx, ev.ChatID, msgLoadFailed, nil)
		return fmt.Errorf("save bot user: %w", err)
	}
	if err := d.users.SetSubscribed(ctx, ev.From.ID, subscribe); err != nil {
		d.send(ctx, ev.ChatID, msgLoadFailed, nil)
		return fmt.Errorf("update reminder subscription: %w", err)
	}
	if subscribe {
		d.send(ctx, ev.ChatID, "🔔 Countdown reminders are on.", nil)
	} else {
		d.send(ctx, ev.ChatID, "🔕 Countdown reminders are off.", nil)
	}
	return nil
}

// handleWebsiteForm registers a guest from a JSON message relayed by the
// website sender account. Every outcome is answered in the chat.
func (d *Dispatcher) handleWebsiteForm(ctx context.Context, ev *channels.Event) error {
	reg, err := guests.Decode([]byte(ev.Text), guests.SourceRelay)
	if err == nil {
		var guest *models.Guest
		guest, err = d.guests.Register(ctx, reg, guests.SourceRelay)
		if err == nil {
			d.send(ctx, ev.ChatID, fmt.Sprintf("✅ Guest registered!\nID: %d\nName: %s\nGuests: %d\nStatus: %s",
				guest.ID, html.EscapeString(guest.Name), guest.GuestCount, guest.Status), nil)
			return nil
		}
	}

	var ve *guests.ValidationError
	switch {
	case errors.As(err, &ve):
		d.send(ctx, ev.ChatID, "❌ Error: "+html.EscapeString(ve.Message), nil)
		return nil
	case errors.Is(err, guests.ErrMalformed):
		d.send(ctx, ev.ChatID, "❌ Error: invalid JSON format", nil)
		return nil
	default:
		d.send(ctx, ev.ChatID, "❌ Error while processing the registration.", nil)
		return err
	}
}

func botUser(s channels.Sender) *models.BotUser {
	return &models.BotUser{
		UserID:    s.ID,
		Username:  s.Username,
		FirstName: s.FirstName,
		LastName:  s.LastName,
	}
}
