package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lithammer/dedent"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/pricelens/pricelens/internal/models"
)

var justifyClaimPrompt = dedent.Dedent(`
	You are a ROBOT BUYER in a negotiation.

	You must evaluate a SELLER'S justification using only the following evidence:

	FairPrice Estimate (c_est):
	%s

	Component Breakdown:
	%s

	Similar Product RAG Evidence:
	%s

	Seller's Claim:
	"%s"

	Your tasks:
	1. Check if the seller's claim is reasonable based on component costs, brand
	   quality signals, manufacturing difficulty, and the similar-product evidence.
	2. Give a justification score between 0 and 1:
	   0.0 = completely false or unreasonable, 0.5 = partially correct, 1.0 = fully supported.
	3. Write a short, polite, evidence-based buyer explanation that refers strictly
	   to the estimate, the breakdown, and the evidence.
	4. Decide isValid: true when the argument may justify a higher price, false when
	   there is not enough evidence.

	Respond ONLY with a JSON object, no markdown or other text:
	{"justificationScore": number, "robotExplanation": string, "isValid": boolean}
`)

var suggestComponentsPrompt = dedent.Dedent(`
	You are an AI assistant designed to suggest potential components of a product
	based on its name and image.

	Given the following product name and the attached image, suggest a list of
	components that the product might be made of.

	Product Name: %s

	Respond ONLY with a JSON object, no markdown or other text:
	{"suggestedComponents": [string, ...]}
`)

// Flows bundles the auxiliary generative flows that ride on the lite model:
// seller-claim justification and component suggestion.
type Flows struct {
	client *genai.Client
	model  string
}

func NewFlows(client *genai.Client, model string) *Flows {
	if model == "" {
		model = "gemini-2.5-flash-lite"
	}
	return &Flows{client: client, model: model}
}

// JustifyClaim scores a seller's free-text price claim against the estimate.
func (f *Flows) JustifyClaim(ctx context.Context, req models.JustifyRequest) (*models.Justification, error) {
	breakdown, _ := json.Marshal(req.Breakdown)
	evidence, _ := json.Marshal(req.Evidence)

	prompt := fmt.Sprintf(justifyClaimPrompt,
		formatINR(req.EstimatedCost),
		string(breakdown),
		string(evidence),
		req.SellerClaim,
	)

	text, err := GenerateText(ctx, f.client, f.model, 0, prompt)
	if err != nil {
		return nil, err
	}

	result, err := ParseJustification(text)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("model", f.model).
		Float64("justificationScore", result.JustificationScore).
		Bool("isValid", result.IsValid).
		Msg("justification llm call")

	return result, nil
}

// ParseJustification validates raw model output for the justification flow.
func ParseJustification(text string) (*models.Justification, error) {
	payload, err := extractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("no JSON object in justification output: %w", err)
	}

	var result models.Justification
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("malformed justification JSON: %w", err)
	}

	if result.JustificationScore < 0 || result.JustificationScore > 1 {
		return nil, fmt.Errorf("justification score %v out of [0,1]", result.JustificationScore)
	}
	if result.RobotExplanation == "" {
		return nil, fmt.Errorf("empty robot explanation")
	}

	return &result, nil
}

// SuggestComponents asks the vision model which components a product is
// likely made of, based on its name and photo.
func (f *Flows) SuggestComponents(ctx context.Context, productName, photoDataURI string) ([]string, error) {
	mimeType, data, err := decodeDataURI(photoDataURI)
	if err != nil {
		return nil, fmt.Errorf("unreadable product photo: %w", err)
	}

	parts := []*genai.Part{
		genai.NewPartFromText(fmt.Sprintf(suggestComponentsPrompt, productName)),
		{InlineData: &genai.Blob{Data: data, MIMEType: mimeType}},
	}

	text, err := generateParts(ctx, f.client, f.model, 0, parts)
	if err != nil {
		return nil, err
	}

	payload, err := extractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("no JSON object in suggestion output: %w", err)
	}

	var out struct {
		SuggestedComponents []string `json:"suggestedComponents"`
	}
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return nil, fmt.Errorf("malformed suggestion JSON: %w", err)
	}
	if len(out.SuggestedComponents) == 0 {
		return nil, fmt.Errorf("model suggested no components")
	}

	return out.SuggestedComponents, nil
}
