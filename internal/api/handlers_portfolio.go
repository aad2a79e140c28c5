package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	apperrors "github.com/portfolio-risk/internal/errors"
)

// handleGetPortfolio handles GET /api/portfolios/{chain}/{address}
func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	portfolio, err := s.portfolioService.CalculatePortfolio(r.Context(), vars["address"], vars["chain"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, portfolio)
}

// handleGetRisk handles GET /api/portfolios/{chain}/{address}/risk
func (s *Server) handleGetRisk(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	// 0 lets the service apply its default
	confidence := 0.0
	if raw := r.URL.Query().Get("confidence"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			respondServiceError(w, r, apperrors.NewInvalidParameterError("confidence", "must be a number"))
			return
		}
		confidence = parsed
	}

	report, err := s.portfolioService.AnalyzePortfolioRisk(r.Context(), vars["address"], vars["chain"], confidence)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// handleGetRiskHistory handles GET /api/portfolios/{chain}/{address}/risk/history
func (s *Server) handleGetRiskHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondServiceError(w, r, apperrors.NewInvalidParameterError("limit", "must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	entries, err := s.portfolioService.RiskHistory(r.Context(), vars["address"], vars["chain"], limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}
