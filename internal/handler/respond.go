package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/connexus-ai/tailor-backend/internal/service"
	"github.com/connexus-ai/tailor-backend/internal/websearch"
)

// apiError is the error half of the response envelope.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type dataEnvelope struct {
	Data interface{} `json:"data"`
}

func respondData(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dataEnvelope{Data: payload})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorEnvelope{Error: apiError{Code: code, Message: message}})
}

// respondServiceError maps service-layer errors onto the stable API error
// codes. Messages never include stack traces or internal identifiers.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	case errors.Is(err, service.ErrForbidden):
		respondError(w, http.StatusForbidden, "FORBIDDEN", "you do not have access to this resource")
	case errors.Is(err, service.ErrEmptyInput):
		respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "input must not be empty")
	case errors.Is(err, service.ErrEmbedderUnavailable):
		respondError(w, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "embedding backend is unavailable")
	case errors.Is(err, websearch.ErrNoProviderAvailable):
		respondError(w, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "no web search provider is configured")
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid request body")
		return false
	}
	return true
}
