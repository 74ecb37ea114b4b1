package backfill

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/pricelens/pricelens/internal/models"
	"github.com/pricelens/pricelens/internal/types"
)

// Config represents one backfill run.
type Config struct {
	BatchSize  int
	RateLimit  float64 // embedding calls per second
	OnProgress func(rec models.ProductRecord)
}

// Job populates embeddings for corpus records that lack one. Re-running is
// idempotent: embedded records are excluded by the fetch filter.
type Job struct {
	config   Config
	embedder types.Embedder
	corpus   types.CorpusStore
	limiter  *rate.Limiter
}

func NewJob(embedder types.Embedder, corpus types.CorpusStore, config Config) *Job {
	if config.BatchSize <= 0 {
		config.BatchSize = 20
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 2.0
	}
	return &Job{
		config:   config,
		embedder: embedder,
		corpus:   corpus,
		limiter:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

// Run embeds up to BatchSize records and returns the number successfully
// updated. A failure on one record is logged and the run moves on; only a
// failure to fetch the batch itself, or context cancellation, aborts.
func (j *Job) Run(ctx context.Context) (int, error) {
	recs, err := j.corpus.MissingEmbeddings(ctx, j.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch records missing embeddings: %w", err)
	}
	if len(recs) == 0 {
		log.Info().Msg("no missing embeddings to backfill")
		return 0, nil
	}

	updated := 0
	for _, rec := range recs {
		if err := j.limiter.Wait(ctx); err != nil {
			return updated, err
		}

		embedding, err := j.embedder.Embed(ctx, rec.EmbeddingInput(), types.RoleDocument)
		if err != nil {
			log.Warn().Err(err).Int64("id", rec.ID).Str("product", rec.ProductName).Msg("embedding failed, skipping record")
			continue
		}

		if err := j.corpus.UpdateEmbedding(ctx, rec.ID, embedding); err != nil {
			log.Warn().Err(err).Int64("id", rec.ID).Str("product", rec.ProductName).Msg("embedding write-back failed, skipping record")
			continue
		}

		updated++
		if j.config.OnProgress != nil {
			j.config.OnProgress(rec)
		}
	}

	log.Info().Int("fetched", len(recs)).Int("updated", updated).Msg("backfill pass complete")
	return updated, nil
}
