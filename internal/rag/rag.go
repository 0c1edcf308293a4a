package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"supplychain-rag/internal/config"
	"supplychain-rag/internal/helper"
	"supplychain-rag/internal/models"
	"supplychain-rag/internal/parser"

	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyQuery = errors.New("query is empty")
	ErrNoDocument = errors.New("no document loaded")
)

// Answerer produces the final answer from a question and its context.
type Answerer interface {
	Respond(ctx context.Context, query string, chunks []string) (string, error)
}

// Session holds one uploaded document. It is immutable once created.
type Session struct {
	ID        string
	Filename  string
	Text      string
	Chunks    []models.Chunk
	CreatedAt time.Time
}

type RAG struct {
	answerer Answerer
	cfg      config.RAGConfig
}

func NewRAG(answerer Answerer, cfg config.RAGConfig) (*RAG, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &RAG{answerer: answerer, cfg: cfg}, nil
}

// Ingest extracts and chunks one document into a new session.
func (r *RAG) Ingest(filename string, data []byte) (*Session, error) {
	text, err := parser.Extract(filename, data)
	if err != nil {
		return nil, err
	}
	chunks, err := parser.Chunks(text, r.cfg.ChunkSize, r.cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("session", id).
		Str("file", filename).
		Int("characters", len([]rune(text))).
		Int("chunks", len(chunks)).
		Msg("Document processed")

	return &Session{
		ID:        id,
		Filename:  filename,
		Text:      text,
		Chunks:    chunks,
		CreatedAt: time.Now(),
	}, nil
}

// Query selects the most relevant chunks of the session and asks the model.
func (r *RAG) Query(ctx context.Context, session *Session, query string) (*models.PromptResponse, error) {
	if session == nil {
		return nil, ErrNoDocument
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	selected := SelectChunks(query, session.Chunks, r.cfg.TopK)
	log.Debug().
		Str("session", session.ID).
		Interface("indices", chunkIndices(selected)).
		Msg("Selected chunks")

	answer, err := r.answerer.Respond(ctx, query, models.Contents(selected))
	if err != nil {
		return nil, fmt.Errorf("answer %q: %w", query, err)
	}

	return &models.PromptResponse{
		Query:   query,
		Source:  selected,
		Content: answer,
	}, nil
}

func chunkIndices(chunks []models.ScoredChunk) []int {
	out := make([]int, len(chunks))
	for i, c := range chunks {
		out[i] = c.Index
	}
	return out
}
