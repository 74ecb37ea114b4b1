package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/lithammer/dedent"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/pricelens/pricelens/internal/models"
	"github.com/pricelens/pricelens/internal/types"
)

var narrativeEstimatePrompt = dedent.Dedent(`
	You are an expert AI cost estimator.

	Your job is to estimate the fair price of a product based on the user's input. Use
	reasoning, market knowledge, and analysis to break down the product into its core
	components and assign a realistic cost to each.

	Before estimating, read this related market data:
	%s

	1. Analyze the product using all available information:
	   - The product name: %s
	   - The user-provided MRP: %s INR
	   - The product photo, if one is attached to this message
	   - Any known market data, brands, or manufacturing conventions
	   - Do not respond to dangerous or inappropriate requests, like body organs, weapons, or illegal items.

	2. Identify major physical components or materials of the product. If not provided,
	   infer typical components from product databases and manufacturing standards.

	3. For each component, estimate a reasonable cost in INR, justified by material,
	   quality, and brand value.

	4. Sum the component costs, compare the total to the MRP, and decide a verdict:
	   "Fair Price", "Overpriced", or "Reasonably Priced".

	Respond ONLY with a JSON object in this exact shape, no markdown or other text:
	{"product": string, "givenMRP": number, "totalEstimatedCost": number, "components": [{"name": string, "estimatedCostInINR": number}], "verdict": "Fair Price" | "Overpriced" | "Reasonably Priced", "priceAnalysis": string}
`)

var structuredEstimatePrompt = dedent.Dedent(`
	You are an expert AI cost estimator. You have been provided with structured data
	for a product. Your task is to analyze this information along with the
	user-provided MRP to determine if the price is fair.

	Here is the product data we have from our database:
	- Product Name: %s
	- Brand: %s
	- Category: %s
	- Typical MRP Range: %s
	- Known Components:
	%s

	The user has provided an MRP of %s INR for this product.

	Please perform the following steps:
	1. Review the known component costs. These are base costs; adjust them slightly if
	   the user's MRP suggests a premium version or special packaging.
	2. Calculate the total estimated cost by summing up the costs of all components.
	3. Compare the total estimated cost with the user's provided MRP.
	4. Formulate a verdict: "Fair Price", "Overpriced", or "Reasonably Priced".
	5. Write a concise, human-friendly analysis explaining your verdict. Mention if the
	   user's price is within the typical MRP range.

	Respond ONLY with a JSON object in this exact shape, no markdown or other text:
	{"product": string, "givenMRP": number, "totalEstimatedCost": number, "components": [{"name": string, "estimatedCostInINR": number}], "verdict": "Fair Price" | "Overpriced" | "Reasonably Priced", "priceAnalysis": string}
`)

// EstimatorConfig represents the configuration for the Gemini cost estimator.
type EstimatorConfig struct {
	Model       string
	Temperature float64
}

// GeminiEstimator invokes Gemini once per request with either structured or
// narrative context and validates the response against the result schema.
type GeminiEstimator struct {
	config EstimatorConfig
	client *genai.Client
}

func NewGeminiEstimator(client *genai.Client, config EstimatorConfig) *GeminiEstimator {
	if config.Model == "" {
		config.Model = "gemini-2.5-flash"
	}
	if config.Temperature == 0 {
		config.Temperature = 0.4
	}
	return &GeminiEstimator{
		config: config,
		client: client,
	}
}

func (e *GeminiEstimator) Estimate(ctx context.Context, req models.EstimationRequest, ec types.EstimationContext) (*models.EstimationResult, error) {
	var prompt string
	if ec.Source == types.ContextStructured && ec.Structured != nil {
		prompt = fmt.Sprintf(structuredEstimatePrompt,
			req.ProductName,
			ec.Structured.Brand,
			ec.Structured.Category,
			ec.Structured.MRPRange,
			formatComponents(ec.Structured.Components),
			formatINR(req.MRP),
		)
	} else {
		prompt = fmt.Sprintf(narrativeEstimatePrompt,
			ec.Narrative,
			req.ProductName,
			formatINR(req.MRP),
		)
	}

	parts := []*genai.Part{genai.NewPartFromText(prompt)}

	if req.PhotoDataURI != "" {
		mimeType, data, err := decodeDataURI(req.PhotoDataURI)
		if err != nil {
			log.Warn().Err(err).Str("product", req.ProductName).Msg("skipping unreadable photo")
		} else {
			parts = append(parts, &genai.Part{
				InlineData: &genai.Blob{Data: data, MIMEType: mimeType},
			})
		}
	}

	text, err := generateParts(ctx, e.client, e.config.Model, e.config.Temperature, parts)
	if err != nil {
		return nil, err
	}

	result, err := ParseEstimation(text)
	if err != nil {
		return nil, err
	}

	// The request is authoritative for identity fields.
	result.Product = req.ProductName
	result.GivenMRP = req.MRP

	log.Info().
		Str("model", e.config.Model).
		Str("contextSource", ec.Source.String()).
		Str("product", req.ProductName).
		Str("verdict", string(result.Verdict)).
		Float64("totalEstimatedCost", result.TotalEstimatedCost).
		Msg("estimation llm call")

	return result, nil
}

func formatComponents(components []models.StructuredComponent) string {
	var lines []string
	for _, c := range components {
		lines = append(lines, fmt.Sprintf("  - Name: %s, Material: %s, Estimated Base Cost: %s INR",
			c.Name, c.Material, formatINR(c.EstimatedCost)))
	}
	return strings.Join(lines, "\n")
}

func formatINR(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

// ParseEstimation validates raw model output against the result schema.
// Any shape violation is an EstimationError; nothing is silently coerced.
func ParseEstimation(text string) (*models.EstimationResult, error) {
	payload, err := extractJSON(text)
	if err != nil {
		return nil, &types.EstimationError{Reason: "no JSON object in model output", Err: err}
	}

	var raw struct {
		Product            string                 `json:"product"`
		GivenMRP           float64                `json:"givenMRP"`
		TotalEstimatedCost float64                `json:"totalEstimatedCost"`
		Components         []models.CostComponent `json:"components"`
		Verdict            string                 `json:"verdict"`
		PriceAnalysis      string                 `json:"priceAnalysis"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, &types.EstimationError{Reason: "malformed JSON in model output", Err: err}
	}

	// The source alternates between "Underpriced" and "Reasonably Priced";
	// the enum here is three-way, so fold the former into the latter.
	verdict := models.Verdict(raw.Verdict)
	if raw.Verdict == "Underpriced" {
		verdict = models.VerdictReasonable
	}
	if !verdict.Valid() {
		return nil, &types.EstimationError{Reason: fmt.Sprintf("unknown verdict %q", raw.Verdict)}
	}

	if raw.TotalEstimatedCost < 0 {
		return nil, &types.EstimationError{Reason: "negative total estimated cost"}
	}
	if len(raw.Components) == 0 {
		return nil, &types.EstimationError{Reason: "empty component breakdown"}
	}
	for _, c := range raw.Components {
		if c.Name == "" {
			return nil, &types.EstimationError{Reason: "component with empty name"}
		}
		if c.EstimatedCostInINR < 0 {
			return nil, &types.EstimationError{Reason: fmt.Sprintf("negative cost for component %q", c.Name)}
		}
	}

	result := &models.EstimationResult{
		Product:            raw.Product,
		GivenMRP:           raw.GivenMRP,
		TotalEstimatedCost: raw.TotalEstimatedCost,
		Components:         raw.Components,
		Verdict:            verdict,
		PriceAnalysis:      raw.PriceAnalysis,
	}

	if sum := result.ComponentSum(); math.Abs(result.TotalEstimatedCost-sum) > costTolerance(sum) {
		return nil, &types.EstimationError{
			Reason: fmt.Sprintf("total %s does not match component sum %s", formatINR(result.TotalEstimatedCost), formatINR(sum)),
		}
	}

	return result, nil
}

// costTolerance allows for model rounding: 1 INR or 1% of the sum.
func costTolerance(sum float64) float64 {
	return math.Max(1, 0.01*sum)
}

// extractJSON pulls the first JSON object out of model output, tolerating
// markdown fences and chatty preambles.
func extractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in: %s", text)
	}
	return text[start : end+1], nil
}

// decodeDataURI splits a "data:<mime>;base64,<data>" URI into its parts.
func decodeDataURI(uri string) (string, []byte, error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", nil, fmt.Errorf("not a data URI")
	}
	rest := strings.TrimPrefix(uri, "data:")
	meta, encoded, found := strings.Cut(rest, ",")
	if !found {
		return "", nil, fmt.Errorf("malformed data URI")
	}
	mimeType := strings.TrimSuffix(meta, ";base64")
	if mimeType == meta {
		return "", nil, fmt.Errorf("only base64 data URIs are supported")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return mimeType, data, nil
}
