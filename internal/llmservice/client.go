package llmservice

import (
	"context"
	"fmt"
	"strings"

	"supplychain-rag/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// NewModel builds the hosted model client named by llmConfig.Provider.
func NewModel(ctx context.Context, llmConfig *config.LLMConfig) (llms.Model, error) {
	log.Debug().
		Str("provider", llmConfig.Provider).
		Str("model", llmConfig.Model).
		Str("base_url", llmConfig.BaseURL).
		Bool("has_key", llmConfig.Key != "").
		Msg("Creating model client")

	switch strings.ToLower(llmConfig.Provider) {
	case "googleai", "":
		if llmConfig.Key == "" {
			return nil, fmt.Errorf("missing API key in env %s", llmConfig.APIKeyEnv)
		}
		return googleai.New(ctx,
			googleai.WithAPIKey(llmConfig.Key),
			googleai.WithDefaultModel(llmConfig.Model),
		)
	case "openai":
		if llmConfig.Key == "" {
			return nil, fmt.Errorf("missing API key in env %s", llmConfig.APIKeyEnv)
		}
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
		}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		return openai.New(opts...)
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(llmConfig.Model)}
		if llmConfig.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(llmConfig.BaseURL))
		}
		return ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", llmConfig.Provider)
	}
}
