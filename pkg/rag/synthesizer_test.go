package rag_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricelens/pricelens/internal/models"
	"github.com/pricelens/pricelens/internal/types"
	"github.com/pricelens/pricelens/pkg/rag"
)

type fakeGenerator struct {
	text string
	err  error

	calls      int
	lastPrompt string
}

func (f *fakeGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.lastPrompt = prompt
	return f.text, f.err
}

func TestSynthesize(t *testing.T) {
	gen := &fakeGenerator{text: "Similar pens cluster around 10-20 INR with plastic bodies."}
	s := rag.NewSynthesizer(gen)

	matches := []models.SimilarityMatch{
		{ProductName: "Hauser XO Pen", MRP: 15, Description: "Ballpoint pen", Similarity: 0.91},
		{ProductName: "Cello Gripper", MRP: 10, Description: "Ballpoint pen", Similarity: 0.82},
	}

	text, err := s.Synthesize(context.Background(), "Flair Writo Meter", 12, matches)
	require.NoError(t, err)

	assert.Equal(t, "Similar pens cluster around 10-20 INR with plastic bodies.", text)
	assert.Equal(t, 1, gen.calls)
	assert.Contains(t, gen.lastPrompt, "Hauser XO Pen")
	assert.Contains(t, gen.lastPrompt, "Flair Writo Meter")
	assert.Contains(t, gen.lastPrompt, "MRP 12 INR")
}

func TestSynthesizeNoMatches(t *testing.T) {
	gen := &fakeGenerator{text: "should not be called"}
	s := rag.NewSynthesizer(gen)

	text, err := s.Synthesize(context.Background(), "Flair Writo Meter", 12, nil)
	require.NoError(t, err)

	assert.Equal(t, rag.NoMatchesSentinel, text)
	assert.Equal(t, 0, gen.calls)
}

func TestSynthesizeGenerationFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model overloaded")}
	s := rag.NewSynthesizer(gen)

	matches := []models.SimilarityMatch{{ProductName: "Hauser XO Pen", MRP: 15, Similarity: 0.9}}

	_, err := s.Synthesize(context.Background(), "Flair Writo Meter", 12, matches)
	require.Error(t, err)

	var synthErr *types.ContextSynthesisError
	assert.ErrorAs(t, err, &synthErr)
}

func TestSynthesizeEmptyText(t *testing.T) {
	gen := &fakeGenerator{text: "   \n  "}
	s := rag.NewSynthesizer(gen)

	matches := []models.SimilarityMatch{{ProductName: "Hauser XO Pen", MRP: 15, Similarity: 0.9}}

	_, err := s.Synthesize(context.Background(), "Flair Writo Meter", 12, matches)

	var synthErr *types.ContextSynthesisError
	assert.ErrorAs(t, err, &synthErr)
}

func TestFormatMatches(t *testing.T) {
	matches := []models.SimilarityMatch{
		{ProductName: "Hauser XO Pen", MRP: 15, Description: "Ballpoint pen", Similarity: 0.912},
		{ProductName: "Cello Gripper", MRP: 10.5, Description: "Smooth grip", Similarity: 0.8},
	}

	formatted := rag.FormatMatches(matches)

	assert.Equal(t,
		"Product: Hauser XO Pen, MRP: ₹15, Description: Ballpoint pen, Similarity: 0.91\n"+
			"Product: Cello Gripper, MRP: ₹10.5, Description: Smooth grip, Similarity: 0.80",
		formatted)
}
