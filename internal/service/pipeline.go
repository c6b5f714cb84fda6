package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/connexus-ai/tailor-backend/internal/model"
)

var (
	processingMu sync.Mutex
	processing   = make(map[string]bool)
)

// Chunk represents a chunked piece of text flowing through ingestion.
type Chunk struct {
	Content      string
	ContentHash  string
	TokenCount   int
	Position     int
	DocumentID   string
	SectionTitle string
	Strategy     string
}

// Extractor abstracts document text extraction.
type Extractor interface {
	Extract(ctx context.Context, storagePath, filename, mimeType string) (*ExtractResult, error)
}

// Chunker abstracts document chunking.
type Chunker interface {
	Chunk(ctx context.Context, text, docID string, hints ExtractMetadata) ([]Chunk, error)
}

// ChunkEmbedder abstracts vector embedding and storage for chunks.
type ChunkEmbedder interface {
	EmbedAndStore(ctx context.Context, projectID string, chunkIDs, contents []string) error
}

// DocumentRepository defines the document persistence operations consumed
// by the pipeline.
type DocumentRepository interface {
	GetByID(ctx context.Context, id string) (*model.Document, error)
	UpdateStatus(ctx context.Context, id string, status model.DocumentStatus, statusError *string) error
	UpdateChecksum(ctx context.Context, id, checksum string) error
	UpdateMetadata(ctx context.Context, id string, metadata json.RawMessage) error
	UpdateChunkCount(ctx context.Context, id string, count int) error
}

// ChunkRepository defines chunk persistence consumed by the pipeline.
type ChunkRepository interface {
	BulkInsert(ctx context.Context, projectID string, chunks []Chunk) ([]string, error)
	DeleteByDocumentID(ctx context.Context, documentID string) error
}

// PipelineService orchestrates document ingestion:
// extract → chunk → persist chunks → embed → mark READY.
type PipelineService struct {
	docRepo   DocumentRepository
	chunkRepo ChunkRepository
	extractor Extractor
	chunker   Chunker
	embedder  ChunkEmbedder
}

// NewPipelineService creates a PipelineService with all required
// dependencies.
func NewPipelineService(docRepo DocumentRepository, chunkRepo ChunkRepository, extractor Extractor, chunker Chunker, embedder ChunkEmbedder) *PipelineService {
	return &PipelineService{
		docRepo:   docRepo,
		chunkRepo: chunkRepo,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
	}
}

// ProcessDocument runs the full ingestion pipeline for a document.
// It is designed to be called asynchronously (via goroutine) and is the
// single writer for the document's chunks and vector entries.
func (s *PipelineService) ProcessDocument(ctx context.Context, docID string) error {
	// Concurrency guard: prevent duplicate processing of the same document
	processingMu.Lock()
	if processing[docID] {
		processingMu.Unlock()
		return fmt.Errorf("document %s is already being processed", docID)
	}
	processing[docID] = true
	processingMu.Unlock()

	defer func() {
		processingMu.Lock()
		delete(processing, docID)
		processingMu.Unlock()
	}()

	slog.Info("pipeline starting", "document_id", docID)

	doc, err := s.docRepo.GetByID(ctx, docID)
	if err != nil {
		slog.Error("pipeline failed to get document", "document_id", docID, "error", err)
		return fmt.Errorf("pipeline.ProcessDocument: get document: %w", err)
	}

	if err := s.docRepo.UpdateStatus(ctx, docID, model.DocProcessing, nil); err != nil {
		return fmt.Errorf("pipeline.ProcessDocument: set processing: %w", err)
	}

	// Step 1: extract text
	slog.Info("pipeline step 1: extracting text", "document_id", docID, "filename", doc.Filename, "mime_type", doc.MimeType)
	extracted, err := s.extractor.Extract(ctx, doc.StoragePath, doc.Filename, doc.MimeType)
	if err != nil {
		s.failDocument(ctx, docID, "extract_failed", err)
		return fmt.Errorf("pipeline.ProcessDocument: extract: %w", err)
	}
	slog.Info("pipeline text extracted", "document_id", docID, "chars", len(extracted.Content), "pages", extracted.Metadata.PageCount)

	// Step 2: record checksum and structural hints
	if err := s.docRepo.UpdateChecksum(ctx, docID, contentHash(extracted.Content)); err != nil {
		slog.Warn("pipeline failed to store checksum", "document_id", docID, "error", err)
	}
	if hints, err := json.Marshal(extracted.Metadata); err == nil {
		if err := s.docRepo.UpdateMetadata(ctx, docID, hints); err != nil {
			slog.Warn("pipeline failed to store hints", "document_id", docID, "error", err)
		}
	}

	// Step 3: chunk
	chunks, err := s.chunker.Chunk(ctx, extracted.Content, docID, extracted.Metadata)
	if err != nil {
		s.failDocument(ctx, docID, "chunk_failed", err)
		if errors.Is(err, ErrChunkLimitExceeded) || errors.Is(err, ErrEmptyInput) {
			return err
		}
		return fmt.Errorf("pipeline.ProcessDocument: chunk: %w", err)
	}
	slog.Info("pipeline chunks created", "document_id", docID, "chunk_count", len(chunks))

	// Step 4: persist chunks, replacing any prior rows (re-ingestion)
	if err := s.chunkRepo.DeleteByDocumentID(ctx, docID); err != nil {
		s.failDocument(ctx, docID, "store_chunks_failed", err)
		return fmt.Errorf("pipeline.ProcessDocument: clear old chunks: %w", err)
	}
	chunkIDs, err := s.chunkRepo.BulkInsert(ctx, doc.ProjectID, chunks)
	if err != nil {
		s.failDocument(ctx, docID, "store_chunks_failed", err)
		return fmt.Errorf("pipeline.ProcessDocument: store chunks: %w", err)
	}

	// Step 5: embed and upsert vectors
	contents := make([]string, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
	}
	if err := s.embedder.EmbedAndStore(ctx, doc.ProjectID, chunkIDs, contents); err != nil {
		s.failDocument(ctx, docID, "embed_failed", err)
		return fmt.Errorf("pipeline.ProcessDocument: embed: %w", err)
	}

	// Step 6: mark READY with final chunk count
	if err := s.docRepo.UpdateChunkCount(ctx, docID, len(chunks)); err != nil {
		return fmt.Errorf("pipeline.ProcessDocument: update chunk count: %w", err)
	}
	if err := s.docRepo.UpdateStatus(ctx, docID, model.DocReady, nil); err != nil {
		return fmt.Errorf("pipeline.ProcessDocument: set ready: %w", err)
	}

	slog.Info("pipeline completed", "document_id", docID, "chunk_count", len(chunks))
	return nil
}

// failDocument sets the document status to ERROR with the failing stage.
func (s *PipelineService) failDocument(ctx context.Context, docID, stage string, origErr error) {
	msg := fmt.Sprintf("%s: %s", stage, origErr.Error())
	if err := s.docRepo.UpdateStatus(ctx, docID, model.DocError, &msg); err != nil {
		slog.Error("pipeline failed to mark document errored", "document_id", docID, "error", err)
	}
	slog.Error("pipeline stage failed", "document_id", docID, "stage", stage, "error", origErr)
}
