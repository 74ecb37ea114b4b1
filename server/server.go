package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/pricelens/pricelens/internal/models"
	"github.com/pricelens/pricelens/internal/types"
)

const genericFailureMessage = "An unexpected error occurred while analyzing the product. Please try again later."

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// Analyzer is the estimation pipeline as the API sees it.
type Analyzer interface {
	Estimate(ctx context.Context, req models.EstimationRequest) (*models.EstimationResult, error)
}

// FlowRunner covers the auxiliary generative flows.
type FlowRunner interface {
	JustifyClaim(ctx context.Context, req models.JustifyRequest) (*models.Justification, error)
	SuggestComponents(ctx context.Context, productName, photoDataURI string) ([]string, error)
}

// Message is one frame on the estimate WebSocket.
type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type Server struct {
	analyzer Analyzer
	flows    FlowRunner
	history  types.HistoryStore
	httpSrv  *http.Server
}

func New(analyzer Analyzer, flows FlowRunner, history types.HistoryStore) *Server {
	return &Server{
		analyzer: analyzer,
		flows:    flows,
		history:  history,
	}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/estimate", s.handleEstimate)
	mux.HandleFunc("/api/justify", s.handleJustify)
	mux.HandleFunc("/api/components", s.handleComponents)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

func (s *Server) ListenAndServe(port string) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + port,
		Handler:      s.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}
	log.Info().Str("port", port).Msg("starting API server")
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

type estimateResponse struct {
	Message  string                   `json:"message"`
	Analysis *models.EstimationResult `json:"analysis,omitempty"`
	Error    bool                     `json:"error,omitempty"`
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, estimateResponse{Message: "method not allowed", Error: true})
		return
	}

	var req models.EstimationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, estimateResponse{Message: "Invalid request body.", Error: true})
		return
	}

	result, err := s.analyzer.Estimate(r.Context(), req)
	if err != nil {
		status, msg := mapEstimateError(err)
		log.Error().Err(err).Str("product", req.ProductName).Msg("estimate request failed")
		writeJSON(w, status, estimateResponse{Message: msg, Error: true})
		return
	}

	writeJSON(w, http.StatusOK, estimateResponse{Message: "Analysis complete.", Analysis: result})
}

// mapEstimateError keeps internal detail out of responses: validation gets
// its aggregated message, everything else gets the generic failure text.
func mapEstimateError(err error) (int, string) {
	var validationErr *types.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, "Invalid form data: " + joinMessages(validationErr.Messages)
	}
	return http.StatusBadGateway, genericFailureMessage
}

func joinMessages(messages []string) string {
	out := ""
	for i, m := range messages {
		if i > 0 {
			out += " "
		}
		out += m
	}
	return out
}

func (s *Server) handleJustify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}

	var req models.JustifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}
	if req.SellerClaim == "" || req.EstimatedCost <= 0 || len(req.Breakdown) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Missing fields in request."})
		return
	}

	justification, err := s.flows.JustifyClaim(r.Context(), req)
	if err != nil {
		log.Error().Err(err).Msg("justify request failed")
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": "Server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"justification": justification})
}

func (s *Server) handleComponents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}

	var req struct {
		ProductName  string `json:"productName"`
		PhotoDataURI string `json:"photoDataUri"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}
	if req.ProductName == "" || req.PhotoDataURI == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Missing fields in request."})
		return
	}

	components, err := s.flows.SuggestComponents(r.Context(), req.ProductName, req.PhotoDataURI)
	if err != nil {
		log.Error().Err(err).Str("product", req.ProductName).Msg("component suggestion failed")
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": "Server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"suggestedComponents": components})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = "guest"
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := s.history.Recent(r.Context(), userID, limit)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("history query failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Server error"})
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleWebSocket streams estimate progress: a status frame when the
// analysis starts, then a result or error frame.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var req models.EstimationRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			s.sendMessage(conn, Message{Type: "error", Content: "invalid request"})
			continue
		}

		s.sendMessage(conn, Message{Type: "status", Content: "Analyzing " + req.ProductName})

		result, err := s.analyzer.Estimate(r.Context(), req)
		if err != nil {
			_, msg := mapEstimateError(err)
			s.sendMessage(conn, Message{Type: "error", Content: msg})
			continue
		}

		s.sendMessage(conn, Message{Type: "result", Data: result})
	}
}

func (s *Server) sendMessage(conn *websocket.Conn, msg Message) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Error().Err(err).Msg("error sending WebSocket message")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("error encoding response")
	}
}
