package channels

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxMessageLength is the chunk size used for Telegram text messages. The
// platform limit is 4096 characters; the margin leaves room for markup.
const MaxMessageLength = 4000

// MessageChunker splits long messages into transport sized pieces.
// It breaks on paragraph boundaries first, then lines, then sentences and
// words, and only cuts mid-word when nothing else fits.
type MessageChunker struct {
	// MaxSize is the maximum chunk size in bytes.
	MaxSize int
}

// NewMessageChunker creates a chunker with the given max size.
func NewMessageChunker(maxSize int) *MessageChunker {
	if maxSize <= 0 {
		maxSize = MaxMessageLength
	}
	return &MessageChunker{MaxSize: maxSize}
}

// Chunk splits text into pieces that fit within MaxSize.
// It tries to break at natural boundaries in this order:
// 1. Paragraph breaks (double newlines)
// 2. Single newlines
// 3. Sentence endings (. ! ?)
// 4. Word boundaries (spaces)
// 5. Hard break at MaxSize, never inside a UTF-8 sequence
func (c *MessageChunker) Chunk(text string) []string {
	if text == "" {
		return nil
	}
	if len(text) <= c.MaxSize {
		return []string{text}
	}

	var chunks []string
	remaining := text

	for len(remaining) > c.MaxSize {
		breakIdx := c.findBreakPoint(remaining)

		chunk := strings.TrimRightFunc(remaining[:breakIdx], unicode.IsSpace)
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		// Skip separator if we broke on whitespace
		remaining = strings.TrimLeftFunc(remaining[breakIdx:], unicode.IsSpace)
	}

	if remaining = strings.TrimSpace(remaining); remaining != "" {
		chunks = append(chunks, remaining)
	}

	return chunks
}

// findBreakPoint finds the best position to break the text.
func (c *MessageChunker) findBreakPoint(text string) int {
	if len(text) <= c.MaxSize {
		return len(text)
	}

	window := text[:c.MaxSize]

	if idx := strings.LastIndex(window, "\n\n"); idx > 0 {
		return idx + 1
	}

	if idx := strings.LastIndex(window, "\n"); idx > 0 {
		return idx + 1
	}

	for _, ending := range []string{". ", "! ", "? "} {
		if idx := strings.LastIndex(window, ending); idx > 0 {
			return idx + 1 // Include the punctuation
		}
	}

	if idx := strings.LastIndexFunc(window, unicode.IsSpace); idx > 0 {
		return idx
	}

	idx := c.MaxSize
	for idx > 0 && !utf8.RuneStart(text[idx]) {
		idx--
	}
	if idx == 0 {
		// A single rune wider than MaxSize; emit it whole.
		_, size := utf8.DecodeRuneInString(text)
		return size
	}
	return idx
}

// SplitMessage is a convenience function for simple message splitting.
func SplitMessage(text string, maxLength int) []string {
	return NewMessageChunker(maxLength).Chunk(text)
}
