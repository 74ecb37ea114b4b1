package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/pricelens/pricelens/internal/types"
)

// NewGeminiClient creates the process-scoped Gemini handle. A missing API key
// is a configuration error and fails construction, not individual calls.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// GenerateText runs a single-prompt text generation call.
func GenerateText(ctx context.Context, client *genai.Client, model string, temperature float64, prompt string) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	return generateParts(ctx, client, model, temperature, parts)
}

func generateParts(ctx context.Context, client *genai.Client, model string, temperature float64, parts []*genai.Part) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	var cfg *genai.GenerateContentConfig
	if temperature > 0 {
		cfg = &genai.GenerateContentConfig{Temperature: genai.Ptr(float32(temperature))}
	}

	result, err := client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", &types.ProviderError{Provider: "gemini", Err: err}
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", &types.ProviderError{Provider: "gemini", Err: fmt.Errorf("empty response from %s", model)}
	}

	return result.Text(), nil
}
