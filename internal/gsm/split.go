package gsm

import (
	"github.com/telaak/serial-gsm-rest/internal/constants"
)

// SplitMessage partitions text into chunks of at most
// constants.MessageChunkSize characters each, preserving character order.
// The split counts characters, not bytes, and is not encoding aware;
// multi-byte alphabets shrink the effective payload per segment and are
// deliberately not special-cased.
func SplitMessage(text string) []string {
	runes := []rune(text)
	numChunks := (len(runes) + constants.MessageChunkSize - 1) / constants.MessageChunkSize

	chunks := make([]string, 0, numChunks)
	for offset := 0; offset < len(runes); offset += constants.MessageChunkSize {
		end := offset + constants.MessageChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[offset:end]))
	}
	return chunks
}
