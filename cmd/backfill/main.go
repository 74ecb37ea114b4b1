package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"github.com/pricelens/pricelens/internal/models"
	"github.com/pricelens/pricelens/internal/types"
	"github.com/pricelens/pricelens/pkg/backfill"
	"github.com/pricelens/pricelens/pkg/config"
	"github.com/pricelens/pricelens/pkg/llm"
	"github.com/pricelens/pricelens/pkg/store"
)

func main() {
	godotenv.Load()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		configPath string
		batchSize  int
		rateLimit  float64
		all        bool
	)
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.IntVar(&batchSize, "batch-size", 0, "Records per backfill pass (defaults to config)")
	flag.Float64Var(&rateLimit, "rate-limit", 0, "Embedding calls per second (defaults to config)")
	flag.BoolVar(&all, "all", false, "Keep running passes until no records are missing embeddings")
	flag.Parse()

	if err := run(configPath, batchSize, rateLimit, all); err != nil {
		log.Fatal().Err(err).Msg("backfill failed")
	}
}

func run(configPath string, batchSize int, rateLimit float64, all bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if batchSize > 0 {
		cfg.Backfill.BatchSize = batchSize
	}
	if rateLimit > 0 {
		cfg.Backfill.RateLimit = rateLimit
	}

	ctx := context.Background()

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}

	db, err := store.NewWithConfig(ctx, store.Config{
		ConnString:    cfg.Database.URL,
		CorpusTable:   cfg.Database.CorpusTable,
		ProductsTable: cfg.Database.ProductsTable,
		VectorDim:     cfg.Embedding.VectorDim,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer db.Close()

	total := 0
	for {
		bar := getProgressBar(cfg.Backfill.BatchSize, "Embedding products...")

		job := backfill.NewJob(embedder, db, backfill.Config{
			BatchSize: cfg.Backfill.BatchSize,
			RateLimit: cfg.Backfill.RateLimit,
			OnProgress: func(rec models.ProductRecord) {
				bar.Add(1)
			},
		})

		updated, err := job.Run(ctx)
		bar.Finish()
		fmt.Println()
		if err != nil {
			return err
		}

		total += updated
		if updated == 0 {
			break
		}
		color.Green("✓ Embedded %d records this pass", updated)

		if !all {
			break
		}
	}

	if total == 0 {
		color.Cyan("No missing embeddings to backfill.")
	} else {
		color.Green("✓ Backfill complete: %d records embedded", total)
	}
	return nil
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("records"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func buildEmbedder(cfg *config.Config) (types.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "ollama":
		return llm.NewOllamaEmbedder(llm.OllamaConfig{
			Model:     cfg.Embedding.Model,
			BaseURL:   cfg.Embedding.BaseURL,
			VectorDim: cfg.Embedding.VectorDim,
		})
	default:
		return llm.NewCohereEmbedder(llm.CohereConfig{
			APIKey:    cfg.Embedding.APIKey,
			Model:     cfg.Embedding.Model,
			VectorDim: cfg.Embedding.VectorDim,
		})
	}
}
