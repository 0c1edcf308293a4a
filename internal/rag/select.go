package rag

import (
	"sort"
	"strings"

	"supplychain-rag/internal/models"
)

// KeywordScore counts the query words found as substrings of the lower-cased
// chunk. Repeated query words count every time.
func KeywordScore(words []string, chunk string) int {
	lower := strings.ToLower(chunk)
	score := 0
	for _, w := range words {
		if strings.Contains(lower, w) {
			score++
		}
	}
	return score
}

// SelectChunks ranks chunks by KeywordScore and returns the first topK. Equal
// scores keep document order and zero scores are not filtered out.
func SelectChunks(query string, chunks []models.Chunk, topK int) []models.ScoredChunk {
	if topK <= 0 || len(chunks) == 0 {
		return nil
	}
	words := strings.Fields(strings.ToLower(query))

	scored := make([]models.ScoredChunk, len(chunks))
	for i, c := range chunks {
		scored[i] = models.ScoredChunk{Chunk: c, Score: KeywordScore(words, c.Content)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	return scored[:min(topK, len(scored))]
}
