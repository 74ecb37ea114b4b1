package types

import (
	"context"

	"github.com/pricelens/pricelens/internal/models"
)

// EmbedRole selects the provider-side task type for an embedding call.
type EmbedRole string

const (
	RoleDocument EmbedRole = "document"
	RoleQuery    EmbedRole = "query"
)

// Embedder produces a fixed-length vector for a text string.
type Embedder interface {
	Embed(ctx context.Context, text string, role EmbedRole) ([]float32, error)
	Dimensions() int
}

// CorpusStore is the persisted product corpus used for similarity search.
type CorpusStore interface {
	Insert(ctx context.Context, rec models.ProductRecord) (int64, error)
	MissingEmbeddings(ctx context.Context, limit int) ([]models.ProductRecord, error)
	UpdateEmbedding(ctx context.Context, id int64, embedding []float32) error
	SearchSimilar(ctx context.Context, embedding []float32, threshold float64, topK int) ([]models.SimilarityMatch, error)
	Close()
}

// StructuredStore is the authoritative curated product store.
// Fetch returns (nil, nil) when the key is unknown.
type StructuredStore interface {
	Fetch(ctx context.Context, key string) (*models.StructuredProductData, error)
}

// HistoryStore is the append-only analysis history log.
type HistoryStore interface {
	Append(ctx context.Context, entry models.HistoryEntry) error
	Recent(ctx context.Context, userID string, limit int) ([]models.HistoryEntry, error)
	Close() error
}

// Retriever finds corpus records similar to a query string. It never fails:
// provider or store trouble degrades to an empty result.
type Retriever interface {
	FindSimilar(ctx context.Context, query string) []models.SimilarityMatch
}

// Synthesizer compresses similarity matches into a narrative context string.
type Synthesizer interface {
	Synthesize(ctx context.Context, productName string, mrp float64, matches []models.SimilarityMatch) (string, error)
}

// Resolver looks a product up in the structured store, returning nil when the
// product is unknown or the store is unreachable.
type Resolver interface {
	Resolve(ctx context.Context, productName string) *models.StructuredProductData
}

// ContextSource tags which context path a request took.
type ContextSource int

const (
	ContextNone ContextSource = iota
	ContextStructured
	ContextNarrative
)

func (s ContextSource) String() string {
	switch s {
	case ContextStructured:
		return "structured"
	case ContextNarrative:
		return "narrative"
	default:
		return "none"
	}
}

// EstimationContext is the single tagged variant consumed by the estimation
// call. Exactly one of Structured / Narrative is meaningful per request.
type EstimationContext struct {
	Source     ContextSource
	Narrative  string
	Structured *models.StructuredProductData
}

// Estimator is the generative cost-estimation capability.
type Estimator interface {
	Estimate(ctx context.Context, req models.EstimationRequest, ec EstimationContext) (*models.EstimationResult, error)
}
