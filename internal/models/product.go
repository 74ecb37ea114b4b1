package models

import (
	"strconv"
	"time"
)

// ProductRecord is a row in the product corpus. Embedding is nil until the
// backfill job (or an ingest with --embed) has populated it.
type ProductRecord struct {
	ID          int64
	ProductName string
	Description string
	MRP         float64
	Embedding   []float32
}

// EmbeddingInput is the canonical text a record is embedded from.
func (p ProductRecord) EmbeddingInput() string {
	return p.ProductName + ". " + p.Description + ". MRP: " + formatMRP(p.MRP) + " INR."
}

// SimilarityMatch is a corpus record scored against a query. Ephemeral,
// produced per request and never persisted.
type SimilarityMatch struct {
	ProductName string  `json:"product_name"`
	MRP         float64 `json:"mrp"`
	Description string  `json:"description"`
	Similarity  float64 `json:"similarity"`
}

// StructuredComponent is a known component of a curated product record.
type StructuredComponent struct {
	Name          string  `json:"name"`
	Material      string  `json:"material"`
	EstimatedCost float64 `json:"estimatedCost"`
}

// StructuredProductData is the authoritative record for a product, owned by
// the structured store. Read-only to this service.
type StructuredProductData struct {
	Brand      string                `json:"brand"`
	Category   string                `json:"category"`
	MRPRange   string                `json:"mrpRange"`
	Components []StructuredComponent `json:"components"`
}

// EstimationRequest is the caller's input to the pipeline.
type EstimationRequest struct {
	ProductName  string  `json:"productName"`
	MRP          float64 `json:"mrp"`
	PhotoDataURI string  `json:"photoDataUri,omitempty"`
	UserID       string  `json:"userId,omitempty"`
}

// Verdict is the three-way price verdict. The model occasionally answers
// "Underpriced"; validation folds that into VerdictReasonable.
type Verdict string

const (
	VerdictFair       Verdict = "Fair Price"
	VerdictOverpriced Verdict = "Overpriced"
	VerdictReasonable Verdict = "Reasonably Priced"
)

// Valid reports whether v is one of the accepted verdicts.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictFair, VerdictOverpriced, VerdictReasonable:
		return true
	}
	return false
}

// CostComponent is one line of the estimated cost breakdown.
type CostComponent struct {
	Name               string  `json:"name"`
	EstimatedCostInINR float64 `json:"estimatedCostInINR"`
}

// EstimationResult is the validated output of the estimation model.
type EstimationResult struct {
	Product            string          `json:"product"`
	GivenMRP           float64         `json:"givenMRP"`
	TotalEstimatedCost float64         `json:"totalEstimatedCost"`
	Components         []CostComponent `json:"components"`
	Verdict            Verdict         `json:"verdict"`
	PriceAnalysis      string          `json:"priceAnalysis"`
}

// ComponentSum adds up the component costs.
func (r EstimationResult) ComponentSum() float64 {
	var sum float64
	for _, c := range r.Components {
		sum += c.EstimatedCostInINR
	}
	return sum
}

// HistoryEntry is one row of the analysis history log.
type HistoryEntry struct {
	ID          int64            `json:"id,omitempty"`
	UserID      string           `json:"userId"`
	ProductName string           `json:"productName"`
	MRP         float64          `json:"mrp"`
	ImageURL    string           `json:"imageUrl"`
	Result      EstimationResult `json:"result"`
	CreatedAt   time.Time        `json:"createdAt"`
}

func formatMRP(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// JustifyRequest asks the robot buyer to evaluate a seller's price claim
// against an earlier estimate and its retrieval evidence.
type JustifyRequest struct {
	SellerClaim   string            `json:"seller_claim"`
	EstimatedCost float64           `json:"c_est"`
	Breakdown     []CostComponent   `json:"breakdown"`
	Evidence      []SimilarityMatch `json:"rag"`
}

// Justification is the robot-buyer evaluation of a seller's price claim.
type Justification struct {
	JustificationScore float64 `json:"justificationScore"`
	RobotExplanation   string  `json:"robotExplanation"`
	IsValid            bool    `json:"isValid"`
}
