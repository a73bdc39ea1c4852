// internal/handler/utils.go

package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"vitalwatch/internal/apperrors"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// respondError maps the error taxonomy onto HTTP statuses. Persistence
// detail stays in the logs, never in the response body.
func respondError(w http.ResponseWriter, log *zap.Logger, err error) {
	kind := apperrors.KindOf(err)

	var status int
	switch kind {
	case apperrors.KindValidation:
		status = http.StatusBadRequest
	case apperrors.KindNotFound:
		status = http.StatusNotFound
	case apperrors.KindUnauthorized:
		status = http.StatusForbidden
	default:
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
		respondJSON(w, status, errorBody{Error: "internal server error", Kind: string(apperrors.KindPersistence)})
		return
	}

	var appErr *apperrors.Error
	msg := err.Error()
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	respondJSON(w, status, errorBody{Error: msg, Kind: string(kind)})
}
