package main

import (
	"context"
	"encoding/json"
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
	"github.com/pricelens/pricelens/pkg/config"
	"github.com/pricelens/pricelens/pkg/llm"
	"github.com/pricelens/pricelens/pkg/resolver"
	"github.com/pricelens/pricelens/pkg/store"
)

// seedFile is the JSON shape the loader consumes.
type seedFile struct {
	Corpus []struct {
		ProductName string  `json:"productName"`
		Description string  `json:"description"`
		MRP         float64 `json:"mrp"`
	} `json:"corpus"`

	Products []struct {
		ProductName string                       `json:"productName"`
		Brand       string                       `json:"brand"`
		Category    string                       `json:"category"`
		MRPRange    string                       `json:"mrpRange"`
		Components  []models.StructuredComponent `json:"components"`
	} `json:"products"`
}

func main() {
	godotenv.Load()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		configPath string
		seedPath   string
		embedNow   bool
	)
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&seedPath, "file", "", "Path to seed JSON file")
	flag.BoolVar(&embedNow, "embed", false, "Embed corpus rows at insert time instead of leaving them for the backfill job")
	flag.Parse()

	if seedPath == "" {
		log.Fatal().Msg("-file is required")
	}

	if err := run(configPath, seedPath, embedNow); err != nil {
		log.Fatal().Err(err).Msg("ingest failed")
	}
}

func run(configPath, seedPath string, embedNow bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}

	ctx := context.Background()

	var embedder types.Embedder
	if embedNow {
		embedder, err = buildEmbedder(cfg)
		if err != nil {
			return err
		}
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

	if len(seed.Corpus) > 0 {
		bar := progressbar.NewOptions(len(seed.Corpus),
			progressbar.OptionSetDescription(color.BlueString("Loading corpus records...")),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionEnableColorCodes(true),
		)

		inserted := 0
		for _, row := range seed.Corpus {
			rec := models.ProductRecord{
				ProductName: row.ProductName,
				Description: row.Description,
				MRP:         row.MRP,
			}

			if embedNow {
				embedding, err := embedder.Embed(ctx, rec.EmbeddingInput(), types.RoleDocument)
				if err != nil {
					log.Warn().Err(err).Str("product", rec.ProductName).Msg("embedding failed, inserting without one")
				} else {
					rec.Embedding = embedding
				}
			}

			if _, err := db.Insert(ctx, rec); err != nil {
				log.Warn().Err(err).Str("product", rec.ProductName).Msg("insert failed, skipping record")
				continue
			}
			inserted++
			bar.Add(1)
		}
		bar.Finish()
		fmt.Println()
		color.Green("✓ Loaded %d of %d corpus records", inserted, len(seed.Corpus))
	}

	if len(seed.Products) > 0 {
		upserted := 0
		for _, p := range seed.Products {
			key := resolver.NormalizeKey(p.ProductName)
			err := db.UpsertStructured(ctx, key, models.StructuredProductData{
				Brand:      p.Brand,
				Category:   p.Category,
				MRPRange:   p.MRPRange,
				Components: p.Components,
			})
			if err != nil {
				log.Warn().Err(err).Str("key", key).Msg("upsert failed, skipping product")
				continue
			}
			upserted++
		}
		color.Green("✓ Loaded %d of %d structured products", upserted, len(seed.Products))
	}

	return nil
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
