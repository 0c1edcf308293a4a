package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"supplychain-rag/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
)

// ErrModelUnavailable wraps every failure of the hosted model call: auth,
// quota, network and empty or malformed responses.
var ErrModelUnavailable = errors.New("model call failed")

var supplyChainPrompt = prompts.NewPromptTemplate(models.SupplyChainPromptTemplate, []string{"context", "query"})

// Responder turns a question and its context chunks into a single model call.
type Responder struct {
	model     llms.Model
	modelName string
	timeout   time.Duration
}

// NewResponder wraps an already configured model. timeout <= 0 leaves the
// call bounded only by the caller's context.
func NewResponder(model llms.Model, modelName string, timeout time.Duration) *Responder {
	return &Responder{model: model, modelName: modelName, timeout: timeout}
}

// BuildPrompt renders the supply chain prompt with chunks joined by single
// spaces.
func BuildPrompt(query string, chunks []string) (string, error) {
	return supplyChainPrompt.Format(map[string]any{
		"context": strings.Join(chunks, models.ContextSeparator),
		"query":   query,
	})
}

// Respond sends one non-streaming request with provider default generation
// settings and returns the generated text unchanged.
func (r *Responder) Respond(ctx context.Context, query string, chunks []string) (string, error) {
	prompt, err := BuildPrompt(query, chunks)
	if err != nil {
		return "", fmt.Errorf("build prompt: %w", err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	answer, err := llms.GenerateFromSinglePrompt(ctx, r.model, prompt)
	logger := log.With().Str("model", r.modelName).Dur("elapsed", time.Since(start)).Int("prompt_chars", len(prompt)).Logger()
	if err != nil {
		logger.Error().Err(err).Msg("Model call failed")
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	logger.Debug().Int("answer_chars", len(answer)).Msg("Model answered")
	return answer, nil
}
