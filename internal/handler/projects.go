package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/connexus-ai/tailor-backend/internal/middleware"
	"github.com/connexus-ai/tailor-backend/internal/model"
	"github.com/connexus-ai/tailor-backend/internal/service"
)

type projectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateProject handles POST /api/projects.
func CreateProject(projects service.ProjectRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		var req projectRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Name == "" {
			respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "name is required")
			return
		}

		project := &model.Project{
			UserID:      userID,
			Name:        req.Name,
			Description: req.Description,
		}
		if err := projects.Create(r.Context(), project); err != nil {
			respondServiceError(w, err)
			return
		}
		respondData(w, http.StatusCreated, project)
	}
}

// ListProjects handles GET /api/projects.
func ListProjects(projects service.ProjectRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		out, err := projects.ListByUser(r.Context(), userID)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		if out == nil {
			out = []model.Project{}
		}
		respondData(w, http.StatusOK, out)
	}
}

// GetProject handles GET /api/projects/{id}.
func GetProject(projects service.ProjectRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		id := chi.URLParam(r, "id")

		project, err := ownedProject(r, projects, userID, id)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondData(w, http.StatusOK, project)
	}
}

// UpdateProject handles PUT /api/projects/{id}.
func UpdateProject(projects service.ProjectRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		id := chi.URLParam(r, "id")

		project, err := ownedProject(r, projects, userID, id)
		if err != nil {
			respondServiceError(w, err)
			return
		}

		var req projectRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Name != "" {
			project.Name = req.Name
		}
		project.Description = req.Description

		if err := projects.Update(r.Context(), project); err != nil {
			respondServiceError(w, err)
			return
		}
		respondData(w, http.StatusOK, project)
	}
}

// DeleteProject handles DELETE /api/projects/{id}. Documents, chunks,
// vector entries, and sessions cascade.
func DeleteProject(projects service.ProjectRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		id := chi.URLParam(r, "id")

		if _, err := ownedProject(r, projects, userID, id); err != nil {
			respondServiceError(w, err)
			return
		}
		if err := projects.Delete(r.Context(), id); err != nil {
			respondServiceError(w, err)
			return
		}
		respondData(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
	}
}

func ownedProject(r *http.Request, projects service.ProjectRepository, userID, id string) (*model.Project, error) {
	project, err := projects.GetByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if project.UserID != userID {
		return nil, service.ErrForbidden
	}
	return project, nil
}
