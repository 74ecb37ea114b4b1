package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pricelens/pricelens/internal/types"
)

// CohereConfig represents the configuration for the Cohere embedding adapter.
type CohereConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	VectorDim int
	Timeout   time.Duration
}

// CohereEmbedder embeds text through the Cohere embed API. The role maps to
// Cohere's input_type: "search_document" for corpus rows, "search_query" for
// retrieval queries.
type CohereEmbedder struct {
	config CohereConfig
	client *resty.Client
}

type cohereEmbedRequest struct {
	Model     string   `json:"model"`
	Texts     []string `json:"texts"`
	InputType string   `json:"input_type"`
}

type cohereEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func NewCohereEmbedder(config CohereConfig) (*CohereEmbedder, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("missing CO_API_KEY")
	}
	if config.Model == "" {
		config.Model = "embed-english-v3.0"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.cohere.com"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 1024
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(config.BaseURL).
		SetAuthToken(config.APIKey).
		SetTimeout(config.Timeout)

	return &CohereEmbedder{
		config: config,
		client: client,
	}, nil
}

func (e *CohereEmbedder) Dimensions() int {
	return e.config.VectorDim
}

func (e *CohereEmbedder) Embed(ctx context.Context, text string, role types.EmbedRole) ([]float32, error) {
	inputType := "search_document"
	if role == types.RoleQuery {
		inputType = "search_query"
	}

	var out cohereEmbedResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(cohereEmbedRequest{
			Model:     e.config.Model,
			Texts:     []string{text},
			InputType: inputType,
		}).
		SetResult(&out).
		Post("/v1/embed")
	if err != nil {
		return nil, &types.ProviderError{Provider: "cohere", Err: err}
	}
	if resp.IsError() {
		return nil, &types.ProviderError{
			Provider: "cohere",
			Err:      fmt.Errorf("embed failed with status %s: %s", resp.Status(), resp.String()),
		}
	}

	if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
		return nil, &types.ProviderError{Provider: "cohere", Err: fmt.Errorf("empty embedding in response")}
	}

	embedding := out.Embeddings[0]
	if len(embedding) != e.config.VectorDim {
		return nil, &types.ProviderError{
			Provider: "cohere",
			Err:      fmt.Errorf("expected %d dimensions, got %d", e.config.VectorDim, len(embedding)),
		}
	}

	return embedding, nil
}
