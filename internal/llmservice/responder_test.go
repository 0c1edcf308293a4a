package llmservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"supplychain-rag/internal/config"
)

type fakeModel struct {
	answer  string
	err     error
	wait    time.Duration
	prompts []string
	options int
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.options = len(options)
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				m.prompts = append(m.prompts, text.Text)
			}
		}
	}
	if m.wait > 0 {
		select {
		case <-time.After(m.wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.answer}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestBuildPrompt(t *testing.T) {
	prompt, err := BuildPrompt("Which suppliers face tariffs?", []string{"Acme: 25% duty.", "Globex: exempt."})
	require.NoError(t, err)

	want := `
You are a supply chain risk analysis assistant.
Use the following supplier/tariff information to answer the question.

Context:
Acme: 25% duty. Globex: exempt.

Question: Which suppliers face tariffs?
Answer:
`
	assert.Equal(t, want, prompt)
}

func TestBuildPrompt_QueryIsNotInterpreted(t *testing.T) {
	prompt, err := BuildPrompt("what about {{.context}} & <tags>?", nil)
	require.NoError(t, err)
	assert.Contains(t, prompt, "Question: what about {{.context}} & <tags>?\n")
	assert.Contains(t, prompt, "Context:\n\n")
}

func TestRespond_ReturnsAnswerVerbatim(t *testing.T) {
	model := &fakeModel{answer: "  **Acme** is exposed.\n"}
	r := NewResponder(model, "gemini-2.0-flash", 0)

	answer, err := r.Respond(context.Background(), "who is exposed?", []string{"Acme pays 25%"})
	require.NoError(t, err)

	assert.Equal(t, "  **Acme** is exposed.\n", answer)
	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "Context:\nAcme pays 25%\n")
	assert.Zero(t, model.options, "generation settings are left to the provider")
}

func TestRespond_WrapsModelErrors(t *testing.T) {
	r := NewResponder(&fakeModel{err: errors.New("401 API key not valid")}, "gemini-2.0-flash", 0)

	_, err := r.Respond(context.Background(), "q", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.Contains(t, err.Error(), "API key not valid")
}

func TestRespond_EmptyResponse(t *testing.T) {
	r := NewResponder(emptyModel{}, "gemini-2.0-flash", 0)

	_, err := r.Respond(context.Background(), "q", []string{"c"})
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestRespond_Timeout(t *testing.T) {
	r := NewResponder(&fakeModel{answer: "late", wait: time.Second}, "gemini-2.0-flash", 10*time.Millisecond)

	_, err := r.Respond(context.Background(), "q", []string{"c"})
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestNewModel_RequiresKeyForHostedProviders(t *testing.T) {
	for _, provider := range []string{"googleai", "openai"} {
		_, err := NewModel(context.Background(), &config.LLMConfig{
			Provider:  provider,
			Model:     "m",
			APIKeyEnv: "SOME_KEY",
		})
		require.Error(t, err, provider)
		assert.Contains(t, err.Error(), "SOME_KEY")
	}
}

func TestNewModel_UnknownProvider(t *testing.T) {
	_, err := NewModel(context.Background(), &config.LLMConfig{Provider: "nope", Model: "m"})
	assert.Error(t, err)
}

type emptyModel struct{}

func (emptyModel) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{}, nil
}

func (emptyModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", nil
}
