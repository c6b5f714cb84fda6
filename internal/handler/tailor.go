package handler

import (
	"net/http"
	"time"

	"github.com/connexus-ai/tailor-backend/internal/middleware"
	"github.com/connexus-ai/tailor-backend/internal/service"
)

// TailorDeps bundles dependencies for the tailor handlers.
type TailorDeps struct {
	Tailor  *service.TailorService
	Metrics *middleware.Metrics // nil in tests
}

// TailorContext handles POST /api/tailor.
func TailorContext(deps TailorDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		var req service.TailorRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.ProjectID == "" || req.TaskInput == "" || req.TargetPlatform == "" {
			respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "projectId, taskInput, and targetPlatform are required")
			return
		}

		start := time.Now()
		resp, err := deps.Tailor.Tailor(r.Context(), userID, req)
		if err != nil {
			if deps.Metrics != nil {
				deps.Metrics.TailorRequests.WithLabelValues("error").Inc()
			}
			respondServiceError(w, err)
			return
		}

		if deps.Metrics != nil {
			outcome := "ok"
			if resp.Metadata.Degraded {
				outcome = "degraded"
				deps.Metrics.DegradedRuns.Inc()
			}
			if resp.Metadata.WebSearchUsed {
				deps.Metrics.WebSearches.Inc()
			}
			deps.Metrics.TailorRequests.WithLabelValues(outcome).Inc()
			deps.Metrics.TailorDuration.Observe(time.Since(start).Seconds())
		}

		respondData(w, http.StatusOK, resp)
	}
}

// TailorPreview handles POST /api/tailor/preview.
func TailorPreview(deps TailorDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		var req service.TailorRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.ProjectID == "" || req.TaskInput == "" || req.TargetPlatform == "" {
			respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "projectId, taskInput, and targetPlatform are required")
			return
		}

		resp, err := deps.Tailor.Preview(r.Context(), userID, req)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondData(w, http.StatusOK, resp)
	}
}
