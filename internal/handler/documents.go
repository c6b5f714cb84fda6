package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/connexus-ai/tailor-backend/internal/middleware"
	"github.com/connexus-ai/tailor-backend/internal/model"
	"github.com/connexus-ai/tailor-backend/internal/service"
)

const maxFilenameLength = 255

// ingestTimeout bounds background ingestion of one document.
const ingestTimeout = 10 * time.Minute

// DocumentDeps bundles dependencies for document handlers.
type DocumentDeps struct {
	Documents *service.DocumentService
	Pipeline  *service.PipelineService
}

// UploadDocument handles POST /api/projects/{id}/documents. The multipart
// field "file" carries the bytes; the Document is created in PROCESSING
// state and ingestion runs in the background.
func UploadDocument(deps DocumentDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		projectID := chi.URLParam(r, "id")

		if err := r.ParseMultipartForm(model.MaxFileSizeBytes); err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid multipart body")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "multipart field 'file' is required")
			return
		}
		defer file.Close()

		filename := header.Filename
		if filename == "" || len(filename) > maxFilenameLength {
			respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid filename")
			return
		}
		if strings.Contains(filename, "..") || strings.ContainsAny(filename, "/\\") {
			respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "filename contains invalid path characters")
			return
		}

		data, err := io.ReadAll(io.LimitReader(file, model.MaxFileSizeBytes+1))
		if err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "failed to read upload")
			return
		}
		if len(data) > model.MaxFileSizeBytes {
			respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "file exceeds 50MB limit")
			return
		}

		doc, err := deps.Documents.Upload(r.Context(), userID, projectID, filename, header.Header.Get("Content-Type"), data)
		if err != nil {
			if service.IsNotFound(err) || errors.Is(err, service.ErrForbidden) {
				respondServiceError(w, err)
			} else {
				respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
			}
			return
		}

		// Ingestion is one logical task per document, detached from the
		// request lifetime.
		go func(docID string) {
			ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
			defer cancel()
			if err := deps.Pipeline.ProcessDocument(ctx, docID); err != nil {
				slog.Error("background ingestion failed", "document_id", docID, "error", err)
			}
		}(doc.ID)

		respondData(w, http.StatusAccepted, doc)
	}
}

// ListDocuments handles GET /api/projects/{id}/documents.
func ListDocuments(deps DocumentDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		projectID := chi.URLParam(r, "id")

		docs, err := deps.Documents.List(r.Context(), userID, projectID)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		if docs == nil {
			docs = []model.Document{}
		}
		respondData(w, http.StatusOK, docs)
	}
}

// DeleteDocument handles DELETE /api/projects/{id}/documents/{docId}.
func DeleteDocument(deps DocumentDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		projectID := chi.URLParam(r, "id")
		docID := chi.URLParam(r, "docId")

		if err := deps.Documents.Delete(r.Context(), userID, projectID, docID); err != nil {
			respondServiceError(w, err)
			return
		}
		respondData(w, http.StatusOK, map[string]string{"id": docID, "status": "deleted"})
	}
}
