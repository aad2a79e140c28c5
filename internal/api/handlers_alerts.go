package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	apperrors "github.com/portfolio-risk/internal/errors"
	"github.com/portfolio-risk/internal/models"
)

// handleCreateAlert handles POST /api/alerts
func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var req models.AlertInput
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	id, err := s.alertService.SetupPriceAlert(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// handleListAlerts handles GET /api/alerts
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := s.alertService.ListPriceAlerts(r.Context())
	if alerts == nil {
		alerts = []models.AlertSummary{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// handleRemoveAlert handles DELETE /api/alerts/{id}
func (s *Server) handleRemoveAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if !s.alertService.RemovePriceAlert(r.Context(), id) {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Alert not found", map[string]interface{}{
			"id": id,
		})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleAlertStatus handles GET /api/alerts/status and /api/alerts/{id}/status
func (s *Server) handleAlertStatus(w http.ResponseWriter, r *http.Request) {
	report, err := s.alertService.CheckAlertStatus(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// handleListNotifications handles GET /api/notifications
func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	unackOnly := false
	if raw := r.URL.Query().Get("unacknowledged"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			respondServiceError(w, r, apperrors.NewInvalidParameterError("unacknowledged", "must be a boolean"))
			return
		}
		unackOnly = parsed
	}

	notes := s.alertService.GetAlertNotifications(r.Context(), unackOnly)
	if notes == nil {
		notes = []models.Notification{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notes,
		"count":         len(notes),
	})
}

// handleAcknowledge handles POST /api/notifications/{id}/ack
func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if !s.alertService.AcknowledgeAlert(r.Context(), id) {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Notification not found", map[string]interface{}{
			"id": id,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":           id,
		"acknowledged": true,
	})
}
