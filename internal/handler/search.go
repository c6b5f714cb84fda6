package handler

import (
	"net/http"

	"github.com/connexus-ai/tailor-backend/internal/middleware"
	"github.com/connexus-ai/tailor-backend/internal/service"
)

// SearchDeps bundles dependencies for the document search handler.
type SearchDeps struct {
	Projects service.ProjectRepository
	Scorer   *service.ScorerService
}

type searchRequest struct {
	Query     string  `json:"query"`
	ProjectID string  `json:"projectId"`
	TopK      int     `json:"topK"`
	MinScore  float64 `json:"minScore"`
}

type searchResponse struct {
	Results []service.ScoredChunk `json:"results"`
}

// SearchDocs handles POST /api/search/docs: hybrid-scored retrieval over a
// project's chunks.
func SearchDocs(deps SearchDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		var req searchRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Query == "" || req.ProjectID == "" {
			respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "query and projectId are required")
			return
		}
		if req.TopK <= 0 || req.TopK > 50 {
			req.TopK = 10
		}

		if _, err := ownedProject(r, deps.Projects, userID, req.ProjectID); err != nil {
			respondServiceError(w, err)
			return
		}

		result, err := deps.Scorer.Score(r.Context(), req.ProjectID, req.Query, nil)
		if err != nil {
			respondServiceError(w, err)
			return
		}

		out := make([]service.ScoredChunk, 0, req.TopK)
		for _, sc := range result.Chunks {
			if sc.FinalScore < req.MinScore {
				continue
			}
			out = append(out, sc)
			if len(out) == req.TopK {
				break
			}
		}
		respondData(w, http.StatusOK, searchResponse{Results: out})
	}
}
