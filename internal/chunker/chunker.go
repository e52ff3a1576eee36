package chunker

import (
	"errors"
	"fmt"
)

// ErrInvalidOverlap is returned when the overlap cannot produce a forward
// moving window over the text.
var ErrInvalidOverlap = errors.New("invalid chunk overlap")

// Split cuts text into fixed-size windows that overlap by overlap characters.
// Windows are measured in runes, so multi-byte text never splits mid-character.
// The final window may be shorter than size; empty text yields no chunks.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: must not be negative, got %d", ErrInvalidOverlap, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidOverlap, overlap, size)
	}

	runes := []rune(text)
	stride := size - overlap

	var chunks []string
	for i := 0; i < len(runes); i += stride {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if i+size >= len(runes) {
			break
		}
	}
	return chunks, nil
}
