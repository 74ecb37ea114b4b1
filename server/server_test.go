package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricelens/pricelens/internal/models"
	"github.com/pricelens/pricelens/internal/types"
	"github.com/pricelens/pricelens/server"
)

type fakeAnalyzer struct {
	result *models.EstimationResult
	err    error

	lastReq models.EstimationRequest
}

func (f *fakeAnalyzer) Estimate(ctx context.Context, req models.EstimationRequest) (*models.EstimationResult, error) {
	f.lastReq = req
	return f.result, f.err
}

type fakeFlows struct {
	justification *models.Justification
	components    []string
	err           error
}

func (f *fakeFlows) JustifyClaim(ctx context.Context, req models.JustifyRequest) (*models.Justification, error) {
	return f.justification, f.err
}

func (f *fakeFlows) SuggestComponents(ctx context.Context, productName, photoDataURI string) ([]string, error) {
	return f.components, f.err
}

type fakeHistory struct {
	entries []models.HistoryEntry
	err     error

	lastUserID string
}

func (f *fakeHistory) Append(ctx context.Context, entry models.HistoryEntry) error { return nil }

func (f *fakeHistory) Recent(ctx context.Context, userID string, limit int) ([]models.HistoryEntry, error) {
	f.lastUserID = userID
	return f.entries, f.err
}

func (f *fakeHistory) Close() error { return nil }

func validResult() *models.EstimationResult {
	return &models.EstimationResult{
		Product:            "Hauser XO Pen",
		GivenMRP:           15,
		TotalEstimatedCost: 9,
		Components:         []models.CostComponent{{Name: "Plastic body", EstimatedCostInINR: 9}},
		Verdict:            models.VerdictFair,
		PriceAnalysis:      "Component costs support the MRP.",
	}
}

func postJSON(t *testing.T, mux *http.ServeMux, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestEstimateEndpoint(t *testing.T) {
	analyzer := &fakeAnalyzer{result: validResult()}
	srv := server.New(analyzer, &fakeFlows{}, &fakeHistory{})

	rec := postJSON(t, srv.Routes(), "/api/estimate", models.EstimationRequest{
		ProductName: "Hauser XO Pen",
		MRP:         15,
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp struct {
		Message  string                   `json:"message"`
		Analysis *models.EstimationResult `json:"analysis"`
		Error    bool                     `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Analysis complete.", resp.Message)
	require.NotNil(t, resp.Analysis)
	assert.Equal(t, models.VerdictFair, resp.Analysis.Verdict)
	assert.False(t, resp.Error)

	assert.Equal(t, "Hauser XO Pen", analyzer.lastReq.ProductName)
}

func TestEstimateEndpointValidationError(t *testing.T) {
	analyzer := &fakeAnalyzer{err: &types.ValidationError{Messages: []string{
		"Product name must be at least 2 characters.",
		"MRP must be a positive number.",
	}}}
	srv := server.New(analyzer, &fakeFlows{}, &fakeHistory{})

	rec := postJSON(t, srv.Routes(), "/api/estimate", models.EstimationRequest{ProductName: "x"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Message string `json:"message"`
		Error   bool   `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Invalid form data: Product name must be at least 2 characters. MRP must be a positive number.", resp.Message)
	assert.True(t, resp.Error)
}

func TestEstimateEndpointUpstreamErrorIsGeneric(t *testing.T) {
	analyzer := &fakeAnalyzer{err: &types.ProviderError{Provider: "gemini", Err: errors.New("quota exceeded")}}
	srv := server.New(analyzer, &fakeFlows{}, &fakeHistory{})

	rec := postJSON(t, srv.Routes(), "/api/estimate", models.EstimationRequest{ProductName: "Pen", MRP: 15})

	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var resp struct {
		Message string `json:"message"`
		Error   bool   `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// Internal detail stays out of the response body.
	assert.NotContains(t, resp.Message, "quota")
	assert.True(t, resp.Error)
}

func TestEstimateEndpointBadBody(t *testing.T) {
	srv := server.New(&fakeAnalyzer{}, &fakeFlows{}, &fakeHistory{})

	req := httptest.NewRequest(http.MethodPost, "/api/estimate", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEstimateEndpointMethodNotAllowed(t *testing.T) {
	srv := server.New(&fakeAnalyzer{}, &fakeFlows{}, &fakeHistory{})

	req := httptest.NewRequest(http.MethodGet, "/api/estimate", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestJustifyEndpoint(t *testing.T) {
	flows := &fakeFlows{justification: &models.Justification{
		JustificationScore: 0.7,
		RobotExplanation:   "The claim is mostly supported.",
		IsValid:            true,
	}}
	srv := server.New(&fakeAnalyzer{}, flows, &fakeHistory{})

	rec := postJSON(t, srv.Routes(), "/api/justify", models.JustifyRequest{
		SellerClaim:   "Premium German ink justifies the price.",
		EstimatedCost: 9,
		Breakdown:     []models.CostComponent{{Name: "Ink refill", EstimatedCostInINR: 3}},
	})

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Justification *models.Justification `json:"justification"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Justification)
	assert.Equal(t, 0.7, resp.Justification.JustificationScore)
	assert.True(t, resp.Justification.IsValid)
}

func TestJustifyEndpointMissingFields(t *testing.T) {
	srv := server.New(&fakeAnalyzer{}, &fakeFlows{}, &fakeHistory{})

	rec := postJSON(t, srv.Routes(), "/api/justify", models.JustifyRequest{SellerClaim: "claim only"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Missing fields in request.", resp["error"])
}

func TestComponentsEndpoint(t *testing.T) {
	flows := &fakeFlows{components: []string{"Plastic body", "Ink refill", "Metal tip"}}
	srv := server.New(&fakeAnalyzer{}, flows, &fakeHistory{})

	rec := postJSON(t, srv.Routes(), "/api/components", map[string]string{
		"productName":  "Hauser XO Pen",
		"photoDataUri": "data:image/png;base64,iVBORw0KGgo=",
	})

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		SuggestedComponents []string `json:"suggestedComponents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"Plastic body", "Ink refill", "Metal tip"}, resp.SuggestedComponents)
}

func TestComponentsEndpointMissingFields(t *testing.T) {
	srv := server.New(&fakeAnalyzer{}, &fakeFlows{}, &fakeHistory{})

	rec := postJSON(t, srv.Routes(), "/api/components", map[string]string{"productName": "Pen"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryEndpoint(t *testing.T) {
	history := &fakeHistory{entries: []models.HistoryEntry{
		{UserID: "u1", ProductName: "Hauser XO Pen", MRP: 15, Result: *validResult()},
	}}
	srv := server.New(&fakeAnalyzer{}, &fakeFlows{}, history)

	req := httptest.NewRequest(http.MethodGet, "/api/history?userId=u1&limit=5", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", history.lastUserID)

	var resp struct {
		Entries []models.HistoryEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "Hauser XO Pen", resp.Entries[0].ProductName)
}

func TestHistoryEndpointGuestDefault(t *testing.T) {
	history := &fakeHistory{}
	srv := server.New(&fakeAnalyzer{}, &fakeFlows{}, history)

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "guest", history.lastUserID)

	// Empty history serializes as an empty list, not null.
	assert.Contains(t, rec.Body.String(), `"entries":[]`)
}

func TestHealthEndpoint(t *testing.T) {
	srv := server.New(&fakeAnalyzer{}, &fakeFlows{}, &fakeHistory{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
