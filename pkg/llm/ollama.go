package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/pricelens/pricelens/internal/types"
)

// OllamaConfig represents the configuration for the local embedding adapter.
type OllamaConfig struct {
	Model     string
	BaseURL   string // Ollama server URL
	VectorDim int
}

// OllamaEmbedder embeds text through a local Ollama server. The nomic models
// express the document/query role as a task prefix on the input text.
type OllamaEmbedder struct {
	config OllamaConfig
	llm    *ollama.LLM
}

func NewOllamaEmbedder(config OllamaConfig) (*OllamaEmbedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}

	emb, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Ollama embedder: %w", err)
	}

	return &OllamaEmbedder{
		config: config,
		llm:    emb,
	}, nil
}

func (e *OllamaEmbedder) Dimensions() int {
	return e.config.VectorDim
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string, role types.EmbedRole) ([]float32, error) {
	prefix := "search_document: "
	if role == types.RoleQuery {
		prefix = "search_query: "
	}

	embeddings, err := e.llm.CreateEmbedding(ctx, []string{prefix + text})
	if err != nil {
		return nil, &types.ProviderError{Provider: "ollama", Err: err}
	}

	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, &types.ProviderError{Provider: "ollama", Err: fmt.Errorf("empty embedding in response")}
	}

	embedding := embeddings[0]
	if len(embedding) != e.config.VectorDim {
		return nil, &types.ProviderError{
			Provider: "ollama",
			Err:      fmt.Errorf("expected %d dimensions, got %d", e.config.VectorDim, len(embedding)),
		}
	}

	return embedding, nil
}
