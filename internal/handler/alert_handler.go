// internal/handler/alert_handler.go

package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"vitalwatch/internal/apperrors"
	"vitalwatch/internal/middleware"
	"vitalwatch/internal/models"
	"vitalwatch/internal/service"
)

type AlertHandler struct {
	alerts service.IAlertService
	log    *zap.Logger
}

func NewAlertHandler(alerts service.IAlertService, log *zap.Logger) *AlertHandler {
	return &AlertHandler{alerts: alerts, log: log}
}

// Create handles POST /api/v1/alerts, the staff-raised alert path.
func (h *AlertHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		respondError(w, h.log, apperrors.Unauthorized("no verified caller"))
		return
	}

	var req models.CreateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.log, apperrors.Validation("invalid request body: %v", err))
		return
	}

	alert, err := h.alerts.CreateManual(r.Context(), &req, identity)
	if err != nil {
		respondError(w, h.log, err)
		return
	}

	respondJSON(w, http.StatusCreated, alert)
}

// List handles GET /api/v1/alerts with filter and pagination parameters.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	q := &models.AlertQuery{
		PatientID: r.URL.Query().Get("patient_id"),
		Severity:  r.URL.Query().Get("severity"),
		AlertType: r.URL.Query().Get("alert_type"),
		Page:      queryInt(r, "page", 1),
		Limit:     queryInt(r, "limit", 20),
	}

	if raw := r.URL.Query().Get("resolved"); raw != "" {
		resolved, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, h.log, apperrors.Validation("resolved must be a boolean"))
			return
		}
		q.Resolved = &resolved
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

	resp, err := h.alerts.Query(r.Context(), q)
	if err != nil {
		respondError(w, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/alerts/{id}.
func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	alert, err := h.alerts.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, alert)
}

// Stats handles GET /api/v1/alerts/stats.
func (h *AlertHandler) Stats(w http.ResponseWriter, r *http.Request) {
	start, err := queryTime(r, "start")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	end, err := queryTime(r, "end")
	if err != nil {
		respondError(w, h.log, err)
		return
	}

	stats, err := h.alerts.Summarize(r.Context(), start, end)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// Resolve handles PUT /api/v1/alerts/{id}/resolve.
func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		respondError(w, h.log, apperrors.Unauthorized("no verified caller"))
		return
	}

	var req models.ResolveAlertRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, h.log, apperrors.Validation("invalid request body: %v", err))
			return
		}
	}

	alert, err := h.alerts.Resolve(r.Context(), mux.Vars(r)["id"], identity, req.ResolutionNotes)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, alert)
}

// Acknowledge handles PUT /api/v1/alerts/{id}/acknowledge.
func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		respondError(w, h.log, apperrors.Unauthorized("no verified caller"))
		return
	}

	alert, err := h.alerts.Acknowledge(r.Context(), mux.Vars(r)["id"], identity)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, alert)
}

// Escalate handles PUT /api/v1/alerts/{id}/escalate.
func (h *AlertHandler) Escalate(w http.ResponseWriter, r *http.Request) {
	var req models.EscalateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.log, apperrors.Validation("invalid request body: %v", err))
		return
	}

	alert, err := h.alerts.Escalate(r.Context(), mux.Vars(r)["id"], req.Level)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, alert)
}
