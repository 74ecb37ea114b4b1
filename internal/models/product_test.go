package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmbeddingInput(t *testing.T) {
	rec := ProductRecord{
		ProductName: "Hauser XO Pen",
		Description: "Ballpoint pen with smooth grip",
		MRP:         15,
	}
	assert.Equal(t, "Hauser XO Pen. Ballpoint pen with smooth grip. MRP: 15 INR.", rec.EmbeddingInput())

	rec.MRP = 15.5
	assert.Equal(t, "Hauser XO Pen. Ballpoint pen with smooth grip. MRP: 15.5 INR.", rec.EmbeddingInput())
}

func TestVerdictValid(t *testing.T) {
	assert.True(t, VerdictFair.Valid())
	assert.True(t, VerdictOverpriced.Valid())
	assert.True(t, VerdictReasonable.Valid())
	assert.False(t, Verdict("Underpriced").Valid())
	assert.False(t, Verdict("").Valid())
}

func TestComponentSum(t *testing.T) {
	result := EstimationResult{
		Components: []CostComponent{
			{Name: "Plastic body", EstimatedCostInINR: 4},
			{Name: "Ink refill", EstimatedCostInINR: 3},
			{Name: "Packaging", EstimatedCostInINR: 2},
		},
	}
	assert.Equal(t, 9.0, result.ComponentSum())

	assert.Zero(t, EstimationResult{}.ComponentSum())
}
