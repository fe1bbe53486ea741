package bot

import "github.com/haasonsaas/concierge/internal/channels"

// Reply keyboard button texts. Presses arrive as ordinary text messages.
const (
	ButtonAsk     = "❓ Ask a question"
	ButtonFAQ     = "📚 FAQ"
	ButtonGuests  = "📋 Guests"
	ButtonStats   = "📊 Statistics"
	ButtonEditFAQ = "📝 Edit FAQ"
)

// MainMenu is the keyboard guests see.
func MainMenu() channels.ReplyKeyboard {
	return channels.ReplyKeyboard{
		Rows:   [][]string{{ButtonAsk}, {ButtonFAQ}},
		Resize: true,
	}
}

// AdminMenu is the keyboard admins see.
func AdminMenu() channels.ReplyKeyboard {
	return channels.ReplyKeyboard{
		Rows:   [][]string{{ButtonGuests, ButtonStats}, {ButtonEditFAQ, ButtonFAQ}},
		Resize: true,
	}
}
