package gsm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/telaak/serial-gsm-rest/internal/constants"
)

func TestSplitMessage(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantChunks int
		wantLens   []int
	}{
		{
			name:       "empty text",
			text:       "",
			wantChunks: 0,
		},
		{
			name:       "short text",
			text:       "hello",
			wantChunks: 1,
			wantLens:   []int{5},
		},
		{
			name:       "exactly one chunk",
			text:       strings.Repeat("A", 140),
			wantChunks: 1,
			wantLens:   []int{140},
		},
		{
			name:       "one character over",
			text:       strings.Repeat("A", 141),
			wantChunks: 2,
			wantLens:   []int{140, 1},
		},
		{
			name:       "150 characters",
			text:       strings.Repeat("A", 150),
			wantChunks: 2,
			wantLens:   []int{140, 10},
		},
		{
			name:       "three full chunks",
			text:       strings.Repeat("x", 420),
			wantChunks: 3,
			wantLens:   []int{140, 140, 140},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := SplitMessage(tt.text)
			assert.Len(t, chunks, tt.wantChunks)
			assert.Equal(t, tt.text, strings.Join(chunks, ""), "concatenation must reproduce the input")
			for i, want := range tt.wantLens {
				assert.Len(t, []rune(chunks[i]), want)
			}
		})
	}
}

func TestSplitMessagePreservesOrder(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 300; i++ {
		b.WriteByte(byte('a' + i%26))
	}
	text := b.String()

	chunks := SplitMessage(text)
	assert.Equal(t, text, strings.Join(chunks, ""))
	for i, chunk := range chunks[:len(chunks)-1] {
		assert.Lenf(t, []rune(chunk), constants.MessageChunkSize, "chunk %d must be full size", i)
	}
}

func TestSplitMessageCountsCharactersNotBytes(t *testing.T) {
	// 150 two-byte characters must still split 140/10.
	text := strings.Repeat("ä", 150)
	chunks := SplitMessage(text)
	assert.Len(t, chunks, 2)
	assert.Len(t, []rune(chunks[0]), 140)
	assert.Len(t, []rune(chunks[1]), 10)
	assert.Equal(t, text, strings.Join(chunks, ""))
}
