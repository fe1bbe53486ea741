package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/haasonsaas/concierge/internal/channels"
	"github.com/haasonsaas/concierge/internal/faqedit"
	"github.com/haasonsaas/concierge/internal/questions"
)

const faqCallbackPrefix = "faq_"

func (d *Dispatcher) handleCallback(ctx context.Context, ev *channels.Event) error {
	switch {
	case strings.HasPrefix(ev.Data, questions.CallbackAnswerPrefix):
		d.ack(ctx, ev, "")
		if err := d.questions.BeginAnswer(ctx, ev.From.ID, ev.Ref(), ev.Data); err != nil {
			d.send(ctx, ev.ChatID, "❌ This button is no longer valid.", nil)
			return err
		}
		return nil

	case strings.HasPrefix(ev.Data, faqCallbackPrefix):
		if !d.roles().IsAdmin(ev.From.ID) {
			d.ack(ctx, ev, "⛔ You don't have permission to do this.")
			return nil
		}
		d.ack(ctx, ev, "")
		return d.handleFAQCallback(ctx, ev)

	default:
		d.ack(ctx, ev, "Unknown action")
		d.logger.Warn("unknown callback", "data", ev.Data, "user_id", ev.From.ID)
		return nil
	}
}

func (d *Dispatcher) handleFAQCallback(ctx context.Context, ev *channels.Event) error {
	r := faqedit.Responder{UserID: ev.From.ID, ChatID: ev.ChatID, Origin: ev.Ref()}

	switch ev.Data {
	case faqedit.CallbackList:
		return d.editor.ShowList(ctx, r)
	case faqedit.CallbackAdd:
		d.editor.BeginAdd(ctx, r)
		return nil
	case faqedit.CallbackBack:
		return d.editor.Back(ctx, r)
	case faqedit.CallbackExit:
		d.editor.Exit(ctx, r)
		return nil
	}

	var (
		prefix string
		action func(context.Context, faqedit.Responder, int64) error
	)
	switch {
	case strings.HasPrefix(ev.Data, faqedit.CallbackEditPrefix):
		prefix, action = faqedit.CallbackEditPrefix, d.editor.BeginEdit
	case strings.HasPrefix(ev.Data, faqedit.CallbackDeletePrefix):
		prefix, action = faqedit.CallbackDeletePrefix, d.editor.DeleteItem
	default:
		d.logger.Warn("unknown faq callback", "data", ev.Data)
		return nil
	}

	id, err := faqedit.ParseItemCallback(ev.Data, prefix)
	if err != nil {
		d.send(ctx, ev.ChatID, "❌ Invalid FAQ id.", nil)
		return fmt.Errorf("faq callback: %w", err)
	}
	return action(ctx, r, id)
}

func (d *Dispatcher) ack(ctx context.Context, ev *channels.Event, text string) {
	if err := d.messenger.AckCallback(ctx, ev.CallbackID, text); err != nil {
		d.logger.Warn("failed to answer callback", "callback_id", ev.CallbackID, "error", err)
	}
}
