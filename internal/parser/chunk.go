package parser

import (
	"errors"
	"fmt"

	"supplychain-rag/internal/models"
)

var ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

// SplitText cuts text into windows of chunkSize characters, each starting
// chunkSize-overlap characters after the previous one. The last window is
// clipped to the end of the text and no window is emitted once one has
// reached the end. Offsets count runes, so a window may split a word but
// never a UTF-8 sequence.
func SplitText(text string, chunkSize, overlap int) ([]string, error) {
	chunks, err := Chunks(text, chunkSize, overlap)
	if err != nil || len(chunks) == 0 {
		return nil, err
	}
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Content
	}
	return out, nil
}

// Chunks is SplitText keeping each window's index and rune offset.
func Chunks(text string, chunkSize, overlap int) ([]models.Chunk, error) {
	if err := ValidateChunkConfig(chunkSize, overlap); err != nil {
		return nil, err
	}

	runes := []rune(text)
	step := chunkSize - overlap

	var chunks []models.Chunk
	for start := 0; start < len(runes); start += step {
		end := min(start+chunkSize, len(runes))
		chunks = append(chunks, models.Chunk{
			Index:   len(chunks),
			Start:   start,
			Content: string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}

func ValidateChunkConfig(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidChunkConfig, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return fmt.Errorf("%w: overlap must be in [0, %d), got %d", ErrInvalidChunkConfig, chunkSize, overlap)
	}
	return nil
}

// JoinChunks rebuilds the source text from chunks produced by Chunks, dropping
// the overlapping prefix of each window.
func JoinChunks(chunks []models.Chunk) string {
	var out []rune
	for _, c := range chunks {
		runes := []rune(c.Content)
		if skip := len(out) - c.Start; skip > 0 {
			if skip >= len(runes) {
				continue
			}
			runes = runes[skip:]
		}
		out = append(out, runes...)
	}
	return string(out)
}
