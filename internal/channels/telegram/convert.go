package telegram

import (
	"fmt"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/haasonsaas/concierge/internal/channels"
)

// convertUpdate turns a Telegram update into a channel event. Updates the
// bot does not act on (edited messages, channel posts, stickers) yield nil.
func convertUpdate(update *models.Update) *channels.Event {
	if update == nil {
		return nil
	}

	if cq := update.CallbackQuery; cq != nil {
		event := &channels.Event{
			Kind:       channels.EventCallback,
			From:       convertUser(&cq.From),
			CallbackID: cq.ID,
			Data:       cq.Data,
			ReceivedAt: time.Now(),
		}
		switch {
		case cq.Message.Message != nil:
			event.ChatID = cq.Message.Message.Chat.ID
			event.MessageID = cq.Message.Message.ID
		case cq.Message.InaccessibleMessage != nil:
			event.ChatID = cq.Message.InaccessibleMessage.Chat.ID
			event.MessageID = cq.Message.InaccessibleMessage.MessageID
		default:
			// Callbacks from inline-mode messages carry no chat; reply privately.
			event.ChatID = cq.From.ID
		}
		return event
	}

	msg := update.Message
	if msg == nil || msg.Text == "" || msg.From == nil {
		return nil
	}
	return &channels.Event{
		Kind:       channels.EventMessage,
		From:       convertUser(msg.From),
		ChatID:     msg.Chat.ID,
		MessageID:  msg.ID,
		Text:       msg.Text,
		ReceivedAt: time.Unix(int64(msg.Date), 0),
	}
}

func convertUser(u *models.User) channels.Sender {
	return channels.Sender{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// renderMarkup converts channel markup into a Bot API reply_markup value.
func renderMarkup(markup channels.Markup) (models.ReplyMarkup, error) {
	switch m := markup.(type) {
	case nil:
		return nil, nil
	case channels.Keyboard:
		return renderInlineKeyboard(m), nil
	case channels.ReplyKeyboard:
		rows := make([][]models.KeyboardButton, 0, len(m.Rows))
		for _, row := range m.Rows {
			buttons := make([]models.KeyboardButton, 0, len(row))
			for _, text := range row {
				buttons = append(buttons, models.KeyboardButton{Text: text})
			}
			rows = append(rows, buttons)
		}
		return &models.ReplyKeyboardMarkup{Keyboard: rows, ResizeKeyboard: m.Resize}, nil
	case channels.RemoveKeyboard:
		return &models.ReplyKeyboardRemove{RemoveKeyboard: true}, nil
	default:
		return nil, channels.ErrInvalidInput(fmt.Sprintf("unsupported markup %T", markup), nil)
	}
}

func renderInlineKeyboard(kb channels.Keyboard) *models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		buttons := make([]models.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, models.InlineKeyboardButton{
				Text:         b.Text,
				CallbackData: b.Data,
				URL:          b.URL,
			})
		}
		rows = append(rows, buttons)
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}
