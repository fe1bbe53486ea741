package channels

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestMessageChunker_ShortText(t *testing.T) {
	chunker := NewMessageChunker(100)
	text := "Hello, world!"

	chunks := chunker.Chunk(text)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != text {
		t.Errorf("expected %q, got %q", text, chunks[0])
	}
}

func TestMessageChunker_EmptyText(t *testing.T) {
	if chunks := NewMessageChunker(100).Chunk(""); chunks != nil {
		t.Errorf("expected nil for empty text, got %v", chunks)
	}
}

func TestMessageChunker_DefaultSize(t *testing.T) {
	if got := NewMessageChunker(0).MaxSize; got != MaxMessageLength {
		t.Errorf("MaxSize = %d, want %d", got, MaxMessageLength)
	}
}

func TestMessageChunker_Breaks(t *testing.T) {
	tests := []struct {
		name      string
		max       int
		text      string
		wantFirst string
		wantCount int
	}{
		{
			name:      "paragraph",
			max:       30,
			text:      "First paragraph here.\n\nSecond paragraph here.",
			wantFirst: "First paragraph here.",
			wantCount: 2,
		},
		{
			name:      "line",
			max:       20,
			text:      "1. Anna (2)\n2. Boris (1)\n3. Vera (3)",
			wantFirst: "1. Anna (2)",
			wantCount: 3,
		},
		{
			name:      "sentence",
			max:       40,
			text:      "First sentence here. Second sentence here.",
			wantFirst: "First sentence here.",
			wantCount: 2,
		},
		{
			name:      "word",
			max:       15,
			text:      "Hello world test",
			wantFirst: "Hello world",
			wantCount: 2,
		},
		{
			name:      "hard",
			max:       10,
			text:      "abcdefghijklmnop",
			wantFirst: "abcdefghij",
			wantCount: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := NewMessageChunker(tt.max).Chunk(tt.text)
			if len(chunks) != tt.wantCount {
				t.Fatalf("got %d chunks, want %d: %q", len(chunks), tt.wantCount, chunks)
			}
			if chunks[0] != tt.wantFirst {
				t.Errorf("first chunk = %q, want %q", chunks[0], tt.wantFirst)
			}
			for i, chunk := range chunks {
				if len(chunk) > tt.max {
					t.Errorf("chunk %d has %d bytes, max %d", i, len(chunk), tt.max)
				}
			}
		})
	}
}

func TestMessageChunker_HardBreakKeepsRunes(t *testing.T) {
	text := strings.Repeat("Ж", 11) // 22 bytes, no spaces
	chunks := NewMessageChunker(5).Chunk(text)

	var joined strings.Builder
	for i, chunk := range chunks {
		if !utf8.ValidString(chunk) {
			t.Fatalf("chunk %d is not valid UTF-8: %q", i, chunk)
		}
		joined.WriteString(chunk)
	}
	if joined.String() != text {
		t.Errorf("chunks do not reassemble the input: %q", chunks)
	}
}

func TestSplitMessage_PreservesContent(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 300; i++ {
		b.WriteString("Guest line with a few words\n")
	}
	text := strings.TrimSpace(b.String())

	chunks := SplitMessage(text, MaxMessageLength)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if got := strings.Join(chunks, "\n"); got != text {
		t.Error("rejoined chunks differ from input")
	}
}
