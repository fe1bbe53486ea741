package faqedit

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/haasonsaas/concierge/internal/channels"
	"github.com/haasonsaas/concierge/pkg/models"
)

// Callback data understood by the FAQ management keyboards.
const (
	CallbackList         = "faq_list"
	CallbackAdd          = "faq_add"
	CallbackBack         = "faq_back"
	CallbackExit         = "faq_exit"
	CallbackEditPrefix   = "faq_edit_"
	CallbackDeletePrefix = "faq_delete_"
)

const (
	buttonQuestionLimit = 20
	listAnswerLimit     = 50
)

const (
	msgNotFound   = "❌ FAQ not found."
	msgLocked     = "⛔ Another admin is editing this FAQ right now. Try again later."
	msgSaveFailed = "⚠️ Could not save the FAQ. Please try again."
	msgLoadFailed = "⚠️ Could not load the FAQ. Please try again."
	msgExit       = "🔙 Back to the admin menu."
	emptyHint     = "Press \"➕ Add\" to create the first question."
)

// ParseItemCallback extracts the item id from faq_edit_<id> or
// faq_delete_<id> callback data.
func ParseItemCallback(data, prefix string) (int64, error) {
	raw, ok := strings.CutPrefix(data, prefix)
	if !ok {
		return 0, fmt.Errorf("callback %q does not start with %q", data, prefix)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("callback %q has no valid item id", data)
	}
	return id, nil
}

func managementKeyboard(empty bool) channels.Keyboard {
	kb := channels.Keyboard{}
	if !empty {
		kb = kb.Row(channels.Button{Text: "📋 List", Data: CallbackList})
	}
	return kb.
		Row(channels.Button{Text: "➕ Add", Data: CallbackAdd}).
		Row(channels.Button{Text: "◀️ Back", Data: CallbackExit})
}

func listKeyboard(items []*models.FAQItem) channels.Keyboard {
	kb := channels.Keyboard{}
	for _, item := range items {
		id := strconv.FormatInt(item.ID, 10)
		kb = kb.Row(
			channels.Button{Text: "✏️ " + shorten(item.Question, buttonQuestionLimit), Data: CallbackEditPrefix + id},
			channels.Button{Text: "🗑", Data: CallbackDeletePrefix + id},
		)
	}
	return kb.
		Row(channels.Button{Text: "➕ Add", Data: CallbackAdd}).
		Row(channels.Button{Text: "◀️ Back", Data: CallbackBack})
}

func menuText(count int) string {
	if count == 0 {
		return "📝 <b>Edit FAQ</b>\n\nThe list is empty. " + emptyHint
	}
	return fmt.Sprintf("📝 <b>Edit FAQ</b>\n\nTotal questions: %d\n\nChoose an action:", count)
}

func listText(items []*models.FAQItem) string {
	if len(items) == 0 {
		return "📋 The FAQ list is empty.\n\n" + emptyHint
	}
	var b strings.Builder
	b.WriteString("📋 <b>FAQ list:</b>\n")
	for _, item := range items {
		fmt.Fprintf(&b, "\n#%d <b>%s</b>", item.ID, html.EscapeString(item.Question))
		fmt.Fprintf(&b, "\n   %s", html.EscapeString(shorten(item.Answer, listAnswerLimit)))
	}
	return b.String()
}

func addPromptText() string {
	return "➕ <b>New FAQ</b>\n\nEnter the question:"
}

func addAnswerPromptText(question string) string {
	return fmt.Sprintf("❓ Question: <b>%s</b>\n\nEnter the answer:", html.EscapeString(question))
}

func addedText(item *models.FAQItem) string {
	return fmt.Sprintf("✅ FAQ added!\n\n❓ <b>%s</b>\n📍 %s",
		html.EscapeString(item.Question), html.EscapeString(item.Answer))
}

func editPromptText(item *models.FAQItem, skip string) string {
	return fmt.Sprintf("✏️ <b>Editing FAQ #%d</b>\n\n❓ <b>Current question:</b>\n%s\n\n📍 <b>Current answer:</b>\n%s\n\n"+
		"Enter the new question (or send %s to keep it):",
		item.ID, html.EscapeString(item.Question), html.EscapeString(item.Answer), html.EscapeString(skip))
}

func editAnswerPromptText(question, skip string) string {
	return fmt.Sprintf("❓ New question: <b>%s</b>\n\nEnter the new answer (or send %s to keep it):",
		html.EscapeString(question), html.EscapeString(skip))
}

func updatedText(item *models.FAQItem) string {
	return fmt.Sprintf("✅ FAQ updated!\n\n❓ <b>%s</b>\n📍 %s",
		html.EscapeString(item.Question), html.EscapeString(item.Answer))
}

// shorten cuts s to limit runes and appends "..." when it had to cut.
func shorten(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
