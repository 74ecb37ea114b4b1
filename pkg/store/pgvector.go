package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/pricelens/pricelens/internal/models"
)

type Config struct {
	ConnString    string
	CorpusTable   string
	ProductsTable string
	VectorDim     int
}

// Store holds the product corpus (pgvector similarity search) and the curated
// structured-product table on one connection pool.
type Store struct {
	config Config
	pool   *pgxpool.Pool
}

func NewWithConfig(ctx context.Context, config Config) (*Store, error) {
	if config.CorpusTable == "" {
		config.CorpusTable = "product_embeddings"
	}
	if config.ProductsTable == "" {
		config.ProductsTable = "products"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 1024 // Cohere embed-english-v3.0
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	s := &Store{
		config: config,
		pool:   pool,
	}

	if err := s.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	// Enable pgvector extension
	_, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	createCorpus := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			product_name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			mrp DOUBLE PRECISION NOT NULL,
			embedding vector(%d)
		)`, s.config.CorpusTable, s.config.VectorDim)

	_, err = s.pool.Exec(ctx, createCorpus)
	if err != nil {
		return fmt.Errorf("failed to create corpus table: %v", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		s.config.CorpusTable, s.config.CorpusTable)

	_, err = s.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %v", err)
	}

	createProducts := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			product_key TEXT PRIMARY KEY,
			brand TEXT NOT NULL,
			category TEXT NOT NULL,
			mrp_range TEXT NOT NULL,
			components JSONB NOT NULL DEFAULT '[]'
		)`, s.config.ProductsTable)

	_, err = s.pool.Exec(ctx, createProducts)
	if err != nil {
		return fmt.Errorf("failed to create products table: %v", err)
	}

	return nil
}

// Insert adds a corpus record. A nil embedding is stored as NULL and picked
// up later by the backfill job.
func (s *Store) Insert(ctx context.Context, rec models.ProductRecord) (int64, error) {
	stmt := fmt.Sprintf(`
		INSERT INTO %s (product_name, description, mrp, embedding)
		VALUES ($1, $2, $3, $4)
		RETURNING id`, s.config.CorpusTable)

	var embedding any
	if rec.Embedding != nil {
		embedding = pgvector.NewVector(rec.Embedding)
	}

	var id int64
	err := s.pool.QueryRow(ctx, stmt, rec.ProductName, rec.Description, rec.MRP, embedding).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert product record: %v", err)
	}
	return id, nil
}

// MissingEmbeddings fetches up to limit records whose embedding is NULL.
// No ordering is guaranteed.
func (s *Store) MissingEmbeddings(ctx context.Context, limit int) ([]models.ProductRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, product_name, description, mrp
		FROM %s
		WHERE embedding IS NULL
		LIMIT $1`, s.config.CorpusTable)

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query missing embeddings: %v", err)
	}
	defer rows.Close()

	var recs []models.ProductRecord
	for rows.Next() {
		var rec models.ProductRecord
		if err := rows.Scan(&rec.ID, &rec.ProductName, &rec.Description, &rec.MRP); err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

// UpdateEmbedding writes a vector back to one record.
func (s *Store) UpdateEmbedding(ctx context.Context, id int64, embedding []float32) error {
	stmt := fmt.Sprintf(`UPDATE %s SET embedding = $2 WHERE id = $1`, s.config.CorpusTable)

	tag, err := s.pool.Exec(ctx, stmt, id, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("failed to update embedding for id %d: %v", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no record with id %d", id)
	}
	return nil
}

// SearchSimilar runs a cosine nearest-neighbor search restricted to
// similarity >= threshold, best matches first.
func (s *Store) SearchSimilar(ctx context.Context, embedding []float32, threshold float64, topK int) ([]models.SimilarityMatch, error) {
	query := fmt.Sprintf(`
		SELECT product_name, mrp, description, 1 - (embedding <=> $1) AS similarity
		FROM %s
		WHERE embedding IS NOT NULL
		  AND 1 - (embedding <=> $1) >= $2
		ORDER BY embedding <=> $1
		LIMIT $3`, s.config.CorpusTable)

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(embedding), threshold, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query similar products: %v", err)
	}
	defer rows.Close()

	var matches []models.SimilarityMatch
	for rows.Next() {
		var m models.SimilarityMatch
		if err := rows.Scan(&m.ProductName, &m.MRP, &m.Description, &m.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		matches = append(matches, m)
	}

	return matches, rows.Err()
}

// Fetch looks up a curated product record by its normalized key.
// Returns (nil, nil) when the key is unknown.
func (s *Store) Fetch(ctx context.Context, key string) (*models.StructuredProductData, error) {
	query := fmt.Sprintf(`
		SELECT brand, category, mrp_range, components
		FROM %s
		WHERE product_key = $1`, s.config.ProductsTable)

	var data models.StructuredProductData
	var components []byte
	err := s.pool.QueryRow(ctx, query, key).Scan(&data.Brand, &data.Category, &data.MRPRange, &components)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product %q: %v", key, err)
	}

	if err := json.Unmarshal(components, &data.Components); err != nil {
		return nil, fmt.Errorf("malformed components for product %q: %v", key, err)
	}

	return &data, nil
}

// UpsertStructured writes a curated product record, used by the seed loader.
func (s *Store) UpsertStructured(ctx context.Context, key string, data models.StructuredProductData) error {
	components, err := json.Marshal(data.Components)
	if err != nil {
		return fmt.Errorf("failed to marshal components: %v", err)
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (product_key, brand, category, mrp_range, components)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (product_key) DO UPDATE SET
			brand = EXCLUDED.brand,
			category = EXCLUDED.category,
			mrp_range = EXCLUDED.mrp_range,
			components = EXCLUDED.components`, s.config.ProductsTable)

	_, err = s.pool.Exec(ctx, stmt, key, data.Brand, data.Category, data.MRPRange, components)
	if err != nil {
		return fmt.Errorf("failed to upsert product %q: %v", key, err)
	}
	return nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
