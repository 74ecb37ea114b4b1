package resolver

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/pricelens/pricelens/internal/models"
	"github.com/pricelens/pricelens/internal/types"
)

// Resolver decides whether a request can take the structured context path.
// Absence of structured data is a normal branch of the pipeline, so store
// errors and not-found look identical to callers: nil.
type Resolver struct {
	store types.StructuredStore
}

func NewResolver(store types.StructuredStore) *Resolver {
	return &Resolver{store: store}
}

// NormalizeKey converts a product name into its lookup key.
// e.g. "Hauser XO Pen" -> "hauser_xo_pen"
func NormalizeKey(productName string) string {
	return strings.Join(strings.Fields(strings.ToLower(productName)), "_")
}

func (r *Resolver) Resolve(ctx context.Context, productName string) *models.StructuredProductData {
	key := NormalizeKey(productName)

	data, err := r.store.Fetch(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("structured lookup failed, falling back to narrative path")
		return nil
	}
	if data == nil {
		log.Debug().Str("key", key).Msg("no structured record for product")
		return nil
	}

	return data
}
