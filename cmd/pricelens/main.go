package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pricelens/pricelens/internal/types"
	"github.com/pricelens/pricelens/pkg/config"
	"github.com/pricelens/pricelens/pkg/llm"
	"github.com/pricelens/pricelens/pkg/pipeline"
	"github.com/pricelens/pricelens/pkg/rag"
	"github.com/pricelens/pricelens/pkg/resolver"
	"github.com/pricelens/pricelens/pkg/retrieval"
	"github.com/pricelens/pricelens/pkg/store"
	"github.com/pricelens/pricelens/server"
)

func main() {
	godotenv.Load()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.Parse()

	if err := run(configPath); err != nil {
		log.Fatal().Err(err).Msg("pricelens exited")
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		return fmt.Errorf("invalid configuration (%d problems)", len(errs))
	}

	ctx := context.Background()

	gemini, err := llm.NewGeminiClient(ctx, cfg.LLM.APIKey)
	if err != nil {
		return err
	}

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

	history, err := store.NewHistoryStore(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize history store: %w", err)
	}
	defer history.Close()

	pipe := pipeline.New(
		resolver.NewResolver(db),
		retrieval.NewRetriever(embedder, db, retrieval.RetrieverConfig{
			Threshold: cfg.Retrieval.Threshold,
			TopK:      cfg.Retrieval.TopK,
		}),
		rag.NewSynthesizer(rag.NewGeminiGenerator(gemini, cfg.LLM.LiteModel, cfg.LLM.Temperature)),
		llm.NewGeminiEstimator(gemini, llm.EstimatorConfig{
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
		}),
		history,
	)

	srv := server.New(pipe, llm.NewFlows(gemini, cfg.LLM.LiteModel), history)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(cfg.Server.Port)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown failed")
		}
		// Let in-flight history appends drain before the stores close.
		pipe.Wait()
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
