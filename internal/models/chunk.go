package models

// Chunk represents a window of document text
type Chunk struct {
	Index   int    `json:"index"`
	Start   int    `json:"start"` // rune offset into the document text
	Content string `json:"content"`
}

type ScoredChunk struct {
	Chunk
	Score int `json:"score"`
}

type PromptResponse struct {
	Query   string
	Source  []ScoredChunk
	Content string
}

// Contents returns the text of each chunk in order.
func Contents(chunks []ScoredChunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Content
	}
	return out
}
