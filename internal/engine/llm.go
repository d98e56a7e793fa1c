package engine

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// LLM generates a completion for a prompt.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder turns text into vectors.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIOptions configures the OpenAI-backed LLM and embedder.
type OpenAIOptions struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
}

// LangChainLLM adapts a langchaingo model to the LLM interface.
type LangChainLLM struct {
	model llms.Model
}

// NewLangChainLLM wraps an existing langchaingo model.
func NewLangChainLLM(model llms.Model) *LangChainLLM {
	return &LangChainLLM{model: model}
}

// Generate completes a single prompt.
func (l *LangChainLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, l.model, prompt)
}

// NewOpenAI builds the LLM and embedder pair from OpenAI settings.
func NewOpenAI(opts OpenAIOptions) (LLM, Embedder, error) {
	clientOpts := []openai.Option{}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, openai.WithToken(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(opts.BaseURL))
	}
	if opts.Model != "" {
		clientOpts = append(clientOpts, openai.WithModel(opts.Model))
	}
	if opts.EmbeddingModel != "" {
		clientOpts = append(clientOpts, openai.WithEmbeddingModel(opts.EmbeddingModel))
	}

	llm, err := openai.New(clientOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OpenAI client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return NewLangChainLLM(llm), embedder, nil
}
