package rag

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lithammer/dedent"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/pricelens/pricelens/internal/models"
	"github.com/pricelens/pricelens/internal/types"
	"github.com/pricelens/pricelens/pkg/llm"
)

// NoMatchesSentinel is returned when retrieval produced nothing. It stands in
// for narrative context so the estimation prompt never sees an empty string.
const NoMatchesSentinel = "No similar products found in the database."

var insightPrompt = dedent.Dedent(`
	You are an AI assistant that summarizes similar products to help a price
	estimation system.

	Based on the following product data:
	%s

	Summarize 3-4 main insights about average prices, material quality, or brand
	value trends that could help estimate a fair price for a new product:
	"%s" (MRP %s INR).
`)

// Generator is the generative text capability behind the synthesizer.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// GeminiGenerator backs the synthesizer with a Gemini model.
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	temperature float64
}

func NewGeminiGenerator(client *genai.Client, model string, temperature float64) *GeminiGenerator {
	if model == "" {
		model = "gemini-2.5-flash-lite"
	}
	return &GeminiGenerator{client: client, model: model, temperature: temperature}
}

func (g *GeminiGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	return llm.GenerateText(ctx, g.client, g.model, g.temperature, prompt)
}

// Synthesizer compresses similarity matches into a short narrative summary.
type Synthesizer struct {
	generator Generator
}

func NewSynthesizer(generator Generator) *Synthesizer {
	return &Synthesizer{generator: generator}
}

// Synthesize returns the sentinel without a model call when there are no
// matches. A generation failure is a ContextSynthesisError; unlike retrieval,
// the narrative path failing outright is something the orchestrator should see.
func (s *Synthesizer) Synthesize(ctx context.Context, productName string, mrp float64, matches []models.SimilarityMatch) (string, error) {
	if len(matches) == 0 {
		return NoMatchesSentinel, nil
	}

	prompt := fmt.Sprintf(insightPrompt, FormatMatches(matches), productName, strconv.FormatFloat(mrp, 'f', -1, 64))

	text, err := s.generator.GenerateText(ctx, prompt)
	if err != nil {
		return "", &types.ContextSynthesisError{Err: err}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", &types.ContextSynthesisError{Err: fmt.Errorf("empty summary from generator")}
	}

	log.Debug().
		Str("product", productName).
		Int("matches", len(matches)).
		Msg("synthesized retrieval context")

	return text, nil
}

// FormatMatches renders one line per match for the insight prompt.
func FormatMatches(matches []models.SimilarityMatch) string {
	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		lines = append(lines, fmt.Sprintf("Product: %s, MRP: ₹%s, Description: %s, Similarity: %.2f",
			m.ProductName, strconv.FormatFloat(m.MRP, 'f', -1, 64), m.Description, m.Similarity))
	}
	return strings.Join(lines, "\n")
}
