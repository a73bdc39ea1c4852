// internal/handler/vitals_handler.go

package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"vitalwatch/internal/apperrors"
	"vitalwatch/internal/middleware"
	"vitalwatch/internal/models"
	"vitalwatch/internal/service"
)

type VitalsHandler struct {
	vitals service.IVitalsService
	log    *zap.Logger
}

func NewVitalsHandler(vitals service.IVitalsService, log *zap.Logger) *VitalsHandler {
	return &VitalsHandler{vitals: vitals, log: log}
}

// RecordReading handles POST /api/v1/vitals.
func (h *VitalsHandler) RecordReading(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		respondError(w, h.log, apperrors.Unauthorized("no verified caller"))
		return
	}

	var req models.RecordReadingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.log, apperrors.Validation("invalid request body: %v", err))
		return
	}

	reading, err := h.vitals.Record(r.Context(), &req, identity)
	if err != nil {
		respondError(w, h.log, err)
		return
	}

	respondJSON(w, http.StatusCreated, reading)
}

// PatientHistory handles GET /api/v1/patients/{id}/vitals.
func (h *VitalsHandler) PatientHistory(w http.ResponseWriter, r *http.Request) {
	patientID := mux.Vars(r)["id"]

	q := &models.ReadingQueryRequest{
		PatientID: patientID,
		Page:      queryInt(r, "page", 1),
		Limit:     queryInt(r, "limit", 20),
	}
	var err error
	if q.StartTime, err = queryTime(r, "start"); err != nil {
		respondError(w, h.log, err)
		return
	}
	if q.EndTime, err = queryTime(r, "end"); err != nil {
		respondError(w, h.log, err)
		return
	}

	resp, err := h.vitals.History(r.Context(), q)
	if err != nil {
		respondError(w, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// LatestReading handles GET /api/v1/patients/{id}/vitals/latest.
func (h *VitalsHandler) LatestReading(w http.ResponseWriter, r *http.Request) {
	reading, err := h.vitals.Latest(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, reading)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func queryTime(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperrors.Validation("%s must be RFC3339: %v", key, err)
	}
	return &t, nil
}
