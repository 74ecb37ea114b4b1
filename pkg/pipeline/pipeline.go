package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pricelens/pricelens/internal/models"
	"github.com/pricelens/pricelens/internal/types"
	"github.com/pricelens/pricelens/pkg/rag"
)

const persistTimeout = 10 * time.Second

// Pipeline is the estimation orchestrator: it validates the request, picks
// the context path, runs the single estimation call, and schedules the
// history append without blocking the response.
type Pipeline struct {
	resolver    types.Resolver
	retriever   types.Retriever
	synthesizer types.Synthesizer
	estimator   types.Estimator
	history     types.HistoryStore

	persisting sync.WaitGroup
}

func New(resolver types.Resolver, retriever types.Retriever, synthesizer types.Synthesizer, estimator types.Estimator, history types.HistoryStore) *Pipeline {
	return &Pipeline{
		resolver:    resolver,
		retriever:   retriever,
		synthesizer: synthesizer,
		estimator:   estimator,
		history:     history,
	}
}

// ValidateRequest checks the request fields before any external call.
// Problems are aggregated into one human-readable ValidationError.
func ValidateRequest(req models.EstimationRequest) error {
	var messages []string

	if len(strings.TrimSpace(req.ProductName)) < 2 {
		messages = append(messages, "Product name must be at least 2 characters.")
	}
	if req.MRP <= 0 {
		messages = append(messages, "MRP must be a positive number.")
	}
	if req.PhotoDataURI != "" && !strings.HasPrefix(req.PhotoDataURI, "data:image/") {
		messages = append(messages, "Invalid image format.")
	}

	if len(messages) > 0 {
		return &types.ValidationError{Messages: messages}
	}
	return nil
}

// Estimate runs the full pipeline for one request. The structured and
// narrative paths are mutually exclusive; exactly one estimation call is
// made per request.
func (p *Pipeline) Estimate(ctx context.Context, req models.EstimationRequest) (*models.EstimationResult, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	ec := types.EstimationContext{Source: types.ContextNone}

	if data := p.resolver.Resolve(ctx, req.ProductName); data != nil {
		log.Info().Str("product", req.ProductName).Msg("structured record found, using structured context")
		ec = types.EstimationContext{Source: types.ContextStructured, Structured: data}
	} else {
		matches := p.retriever.FindSimilar(ctx, req.ProductName)

		narrative, err := p.synthesizer.Synthesize(ctx, req.ProductName, req.MRP, matches)
		if err != nil {
			var synthErr *types.ContextSynthesisError
			if !errors.As(err, &synthErr) {
				return nil, err
			}
			// An estimate with degraded context beats no estimate.
			log.Warn().Err(err).Str("product", req.ProductName).Msg("context synthesis failed, continuing with sentinel context")
			narrative = rag.NoMatchesSentinel
		}

		ec = types.EstimationContext{Source: types.ContextNarrative, Narrative: narrative}
	}

	result, err := p.estimator.Estimate(ctx, req, ec)
	if err != nil {
		return nil, err
	}

	p.persistAsync(req, *result)

	return result, nil
}

// persistAsync appends the analysis to the history log without blocking the
// caller. Failures are logged and never surface: the result has already been
// produced and persistence is best-effort telemetry.
func (p *Pipeline) persistAsync(req models.EstimationRequest, result models.EstimationResult) {
	p.persisting.Add(1)
	go func() {
		defer p.persisting.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("history persistence panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		userID := req.UserID
		if userID == "" {
			userID = "guest"
		}

		entry := models.HistoryEntry{
			UserID:      userID,
			ProductName: req.ProductName,
			MRP:         req.MRP,
			ImageURL:    req.PhotoDataURI,
			Result:      result,
			CreatedAt:   time.Now().UTC(),
		}

		if err := p.history.Append(ctx, entry); err != nil {
			perr := &types.PersistenceError{Err: err}
			log.Error().Err(perr).Str("product", req.ProductName).Str("userId", userID).Msg("failed to save analysis history")
		}
	}()
}

// Wait blocks until in-flight history appends have finished. Used on
// shutdown and by tests; request handling never calls it.
func (p *Pipeline) Wait() {
	p.persisting.Wait()
}
