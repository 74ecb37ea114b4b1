package llm

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricelens/pricelens/internal/models"
	"github.com/pricelens/pricelens/internal/types"
)

const validResultJSON = `{
	"product": "Hauser XO Pen",
	"givenMRP": 15,
	"totalEstimatedCost": 9,
	"components": [
		{"name": "Plastic body", "estimatedCostInINR": 4},
		{"name": "Ink refill", "estimatedCostInINR": 3},
		{"name": "Packaging", "estimatedCostInINR": 2}
	],
	"verdict": "Fair Price",
	"priceAnalysis": "Component costs support the MRP."
}`

func TestParseEstimation(t *testing.T) {
	result, err := ParseEstimation(validResultJSON)
	require.NoError(t, err)

	assert.Equal(t, "Hauser XO Pen", result.Product)
	assert.Equal(t, 15.0, result.GivenMRP)
	assert.Equal(t, 9.0, result.TotalEstimatedCost)
	assert.Len(t, result.Components, 3)
	assert.Equal(t, models.VerdictFair, result.Verdict)
}

func TestParseEstimationMarkdownFences(t *testing.T) {
	fenced := "```json\n" + validResultJSON + "\n```"

	result, err := ParseEstimation(fenced)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictFair, result.Verdict)
}

func TestParseEstimationChattyPreamble(t *testing.T) {
	chatty := "Here is my analysis:\n" + validResultJSON

	result, err := ParseEstimation(chatty)
	require.NoError(t, err)
	assert.Equal(t, 9.0, result.TotalEstimatedCost)
}

func TestParseEstimationUnderpricedFolds(t *testing.T) {
	text := `{"product": "p", "givenMRP": 5, "totalEstimatedCost": 10,
		"components": [{"name": "body", "estimatedCostInINR": 10}],
		"verdict": "Underpriced", "priceAnalysis": "cheap"}`

	result, err := ParseEstimation(text)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictReasonable, result.Verdict)
}

func TestParseEstimationErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no JSON", "I could not estimate this product."},
		{"malformed JSON", `{"product": "p", "components": [}`},
		{"unknown verdict", `{"totalEstimatedCost": 10, "components": [{"name": "a", "estimatedCostInINR": 10}], "verdict": "Maybe"}`},
		{"negative total", `{"totalEstimatedCost": -5, "components": [{"name": "a", "estimatedCostInINR": 5}], "verdict": "Fair Price"}`},
		{"no components", `{"totalEstimatedCost": 10, "components": [], "verdict": "Fair Price"}`},
		{"unnamed component", `{"totalEstimatedCost": 10, "components": [{"name": "", "estimatedCostInINR": 10}], "verdict": "Fair Price"}`},
		{"negative component", `{"totalEstimatedCost": 10, "components": [{"name": "a", "estimatedCostInINR": -10}], "verdict": "Fair Price"}`},
		{"sum mismatch", `{"totalEstimatedCost": 100, "components": [{"name": "a", "estimatedCostInINR": 10}], "verdict": "Fair Price"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEstimation(tt.text)
			require.Error(t, err)

			var estErr *types.EstimationError
			assert.ErrorAs(t, err, &estErr)
		})
	}
}

func TestParseEstimationSumTolerance(t *testing.T) {
	// 1% of 200 is 2 INR, so a 1.5 INR drift is accepted.
	text := `{"totalEstimatedCost": 201.5, "components": [
		{"name": "a", "estimatedCostInINR": 120},
		{"name": "b", "estimatedCostInINR": 80}],
		"verdict": "Overpriced", "priceAnalysis": "x"}`

	result, err := ParseEstimation(text)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictOverpriced, result.Verdict)
}

func TestDecodeDataURI(t *testing.T) {
	payload := []byte{0x89, 0x50, 0x4e, 0x47}
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)

	mimeType, data, err := decodeDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, payload, data)
}

func TestDecodeDataURIErrors(t *testing.T) {
	tests := []struct {
		name string
		uri  string
	}{
		{"not a data URI", "https://example.com/photo.png"},
		{"no comma", "data:image/png;base64"},
		{"not base64 encoded", "data:image/png,rawbytes"},
		{"invalid base64", "data:image/png;base64,???"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := decodeDataURI(tt.uri)
			assert.Error(t, err)
		})
	}
}

func TestFormatINR(t *testing.T) {
	assert.Equal(t, "15", formatINR(15))
	assert.Equal(t, "15.50", formatINR(15.5))
	assert.Equal(t, "0", formatINR(0))
}

func TestParseJustification(t *testing.T) {
	text := `{"justificationScore": 0.7, "robotExplanation": "The claim is mostly supported.", "isValid": true}`

	result, err := ParseJustification(text)
	require.NoError(t, err)
	assert.Equal(t, 0.7, result.JustificationScore)
	assert.True(t, result.IsValid)
}

func TestParseJustificationErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no JSON", "not an object"},
		{"score above one", `{"justificationScore": 1.2, "robotExplanation": "x", "isValid": true}`},
		{"score below zero", `{"justificationScore": -0.1, "robotExplanation": "x", "isValid": false}`},
		{"empty explanation", `{"justificationScore": 0.5, "robotExplanation": "", "isValid": false}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJustification(tt.text)
			assert.Error(t, err)
		})
	}
}
