package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/connexus-ai/tailor-backend/internal/middleware"
	"github.com/connexus-ai/tailor-backend/internal/model"
	"github.com/connexus-ai/tailor-backend/internal/service"
)

// SessionReader lists and fetches persisted tailor sessions.
type SessionReader interface {
	GetByID(ctx context.Context, id string) (*model.TailorSession, error)
	ListByProject(ctx context.Context, projectID string, limit int) ([]model.TailorSession, error)
}

// SessionDeps bundles dependencies for session handlers.
type SessionDeps struct {
	Sessions SessionReader
	Projects service.ProjectRepository
}

// ListSessions handles GET /api/tailor/sessions?projectId=&limit=.
func ListSessions(deps SessionDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		projectID := r.URL.Query().Get("projectId")
		if projectID == "" {
			respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "projectId is required")
			return
		}

		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		if _, err := ownedProject(r, deps.Projects, userID, projectID); err != nil {
			respondServiceError(w, err)
			return
		}

		sessions, err := deps.Sessions.ListByProject(r.Context(), projectID, limit)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		if sessions == nil {
			sessions = []model.TailorSession{}
		}
		respondData(w, http.StatusOK, sessions)
	}
}

// GetSession handles GET /api/tailor/sessions/{id}.
func GetSession(deps SessionDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		id := chi.URLParam(r, "id")

		session, err := deps.Sessions.GetByID(r.Context(), id)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		if session.UserID != userID {
			respondServiceError(w, service.ErrForbidden)
			return
		}
		respondData(w, http.StatusOK, session)
	}
}
