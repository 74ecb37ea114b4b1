package retrieval

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/pricelens/pricelens/internal/models"
	"github.com/pricelens/pricelens/internal/types"
)

// RetrieverConfig represents the similarity search parameters.
type RetrieverConfig struct {
	Threshold float64
	TopK      int
}

// Retriever embeds a query and runs a thresholded nearest-neighbor search
// over the corpus. It never returns an error: retrieval only enriches the
// estimate, so any failure degrades to an empty result with a logged warning.
type Retriever struct {
	config   RetrieverConfig
	embedder types.Embedder
	corpus   types.CorpusStore
}

func NewRetriever(embedder types.Embedder, corpus types.CorpusStore, config RetrieverConfig) *Retriever {
	if config.Threshold == 0 {
		config.Threshold = 0.75
	}
	if config.TopK == 0 {
		config.TopK = 5
	}
	return &Retriever{
		config:   config,
		embedder: embedder,
		corpus:   corpus,
	}
}

func (r *Retriever) FindSimilar(ctx context.Context, query string) []models.SimilarityMatch {
	// Queries under 2 characters cannot mean anything; skip the provider
	// call entirely rather than treating this as a validation failure.
	if len(strings.TrimSpace(query)) < 2 {
		log.Warn().Str("query", query).Msg("query too short for similarity search")
		return nil
	}

	embedding, err := r.embedder.Embed(ctx, query, types.RoleQuery)
	if err != nil {
		log.Warn().Err(err).Str("query", query).Msg("query embedding failed, continuing without retrieval")
		return nil
	}

	matches, err := r.corpus.SearchSimilar(ctx, embedding, r.config.Threshold, r.config.TopK)
	if err != nil {
		log.Warn().Err(err).Str("query", query).Msg("similarity search failed, continuing without retrieval")
		return nil
	}

	log.Debug().Str("query", query).Int("matches", len(matches)).Msg("similarity search complete")
	return matches
}
