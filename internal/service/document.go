package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/connexus-ai/tailor-backend/internal/model"
)

// ObjectStore abstracts blob storage for uploaded document bytes.
type ObjectStore interface {
	Upload(ctx context.Context, object string, data []byte, contentType string) error
	Download(ctx context.Context, object string) ([]byte, error)
	Delete(ctx context.Context, object string) error
}

// ProjectRepository defines project persistence consumed by services.
type ProjectRepository interface {
	GetByID(ctx context.Context, id string) (*model.Project, error)
	Create(ctx context.Context, p *model.Project) error
	Update(ctx context.Context, p *model.Project) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]model.Project, error)
}

// DocumentStore extends DocumentRepository with CRUD used by handlers.
type DocumentStore interface {
	DocumentRepository
	Create(ctx context.Context, d *model.Document) error
	Delete(ctx context.Context, id string) error
	ListByProject(ctx context.Context, projectID string) ([]model.Document, error)
}

// VectorDeleter removes vector entries when documents go away.
type VectorDeleter interface {
	DeleteByDocumentID(ctx context.Context, projectID, documentID string) error
}

// DocumentService handles document upload, listing, and deletion. Ingestion
// itself runs in PipelineService.
type DocumentService struct {
	projects ProjectRepository
	docs     DocumentStore
	chunks   ChunkRepository
	vectors  VectorDeleter
	store    ObjectStore
}

// NewDocumentService creates a DocumentService.
func NewDocumentService(projects ProjectRepository, docs DocumentStore, chunks ChunkRepository, vectors VectorDeleter, store ObjectStore) *DocumentService {
	return &DocumentService{
		projects: projects,
		docs:     docs,
		chunks:   chunks,
		vectors:  vectors,
		store:    store,
	}
}

// VerifyProjectOwner loads a project and checks ownership.
func (s *DocumentService) VerifyProjectOwner(ctx context.Context, userID, projectID string) (*model.Project, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.UserID != userID {
		return nil, ErrForbidden
	}
	return project, nil
}

// Upload stores the raw bytes and creates a Document row in PROCESSING
// state. The caller is expected to start the ingestion pipeline.
func (s *DocumentService) Upload(ctx context.Context, userID, projectID, filename, mimeType string, data []byte) (*model.Document, error) {
	if _, err := s.VerifyProjectOwner(ctx, userID, projectID); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("service.Upload: empty file")
	}
	if len(data) > model.MaxFileSizeBytes {
		return nil, fmt.Errorf("service.Upload: file exceeds %d bytes", model.MaxFileSizeBytes)
	}
	if mimeType == "" {
		mimeType = detectMimeType(filename)
	}
	if !model.AllowedMimeTypes[mimeType] && codeExtensions[strings.ToLower(filepath.Ext(filename))] == "" {
		return nil, fmt.Errorf("service.Upload: unsupported content type %q", mimeType)
	}

	docID := uuid.New().String()
	storagePath := fmt.Sprintf("projects/%s/documents/%s/%s", projectID, docID, sanitizeFilename(filename))

	if err := s.store.Upload(ctx, storagePath, data, mimeType); err != nil {
		return nil, fmt.Errorf("service.Upload: store bytes: %w", err)
	}

	doc := &model.Document{
		ID:          docID,
		ProjectID:   projectID,
		UserID:      userID,
		Filename:    filename,
		MimeType:    mimeType,
		SizeBytes:   int64(len(data)),
		StoragePath: storagePath,
		Status:      model.DocProcessing,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("service.Upload: create document: %w", err)
	}

	slog.Info("document uploaded", "document_id", docID, "project_id", projectID, "size_bytes", len(data))
	return doc, nil
}

// List returns a project's documents after an ownership check.
func (s *DocumentService) List(ctx context.Context, userID, projectID string) ([]model.Document, error) {
	if _, err := s.VerifyProjectOwner(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.docs.ListByProject(ctx, projectID)
}

// Get returns one document after ownership checks.
func (s *DocumentService) Get(ctx context.Context, userID, projectID, docID string) (*model.Document, error) {
	if _, err := s.VerifyProjectOwner(ctx, userID, projectID); err != nil {
		return nil, err
	}
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.ProjectID != projectID {
		return nil, ErrNotFound
	}
	return doc, nil
}

// Delete removes a document, its chunks, its vector entries, and its stored
// bytes.
func (s *DocumentService) Delete(ctx context.Context, userID, projectID, docID string) error {
	doc, err := s.Get(ctx, userID, projectID, docID)
	if err != nil {
		return err
	}

	if err := s.vectors.DeleteByDocumentID(ctx, projectID, docID); err != nil {
		return fmt.Errorf("service.Delete: vectors: %w", err)
	}
	if err := s.chunks.DeleteByDocumentID(ctx, docID); err != nil {
		return fmt.Errorf("service.Delete: chunks: %w", err)
	}
	if err := s.docs.Delete(ctx, docID); err != nil {
		return fmt.Errorf("service.Delete: document: %w", err)
	}
	if err := s.store.Delete(ctx, doc.StoragePath); err != nil {
		// Stored bytes are reconstructable garbage at this point; log only.
		slog.Warn("failed to delete stored bytes", "document_id", docID, "error", err)
	}
	return nil
}

// IsNotFound reports whether an error is the repository not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// detectMimeType infers the MIME type from a filename extension.
func detectMimeType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".md", ".markdown":
		return "text/markdown"
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".txt", ".log":
		return "text/plain"
	case ".go":
		return "text/x-go"
	case ".py":
		return "text/x-python"
	case ".js", ".ts":
		return "application/javascript"
	default:
		return "text/plain"
	}
}

// sanitizeFilename strips path separators from an uploaded filename.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	if name == "" || name == "." {
		name = "upload"
	}
	return name
}
