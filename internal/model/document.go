package model

import (
	"encoding/json"
	"time"
)

type DocumentStatus string

const (
	DocProcessing DocumentStatus = "PROCESSING"
	DocReady      DocumentStatus = "READY"
	DocError      DocumentStatus = "ERROR"
)

// Document represents an uploaded file within a project.
// Mutated only by the ingestion pipeline after creation.
type Document struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"projectId"`
	UserID      string          `json:"userId"`
	Filename    string          `json:"filename"`
	MimeType    string          `json:"mimeType"`
	SizeBytes   int64           `json:"sizeBytes"`
	StoragePath string          `json:"-"`
	Checksum    *string         `json:"checksum,omitempty"`
	Status      DocumentStatus  `json:"status"`
	StatusError *string         `json:"statusError,omitempty"`
	ChunkCount  int             `json:"chunkCount"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// DocumentChunk is a positioned slice of a document's extracted text.
// Immutable once the parent document reaches READY.
type DocumentChunk struct {
	ID         string          `json:"id"`
	DocumentID string          `json:"documentId"`
	ProjectID  string          `json:"projectId"`
	Position   int             `json:"position"`
	Content    string          `json:"content"`
	TokenCount int             `json:"tokenCount"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	Embedding  []float32       `json:"-"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// AllowedMimeTypes lists the mime types accepted for upload.
var AllowedMimeTypes = map[string]bool{
	"application/pdf": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"text/plain":              true,
	"text/markdown":           true,
	"text/csv":                true,
	"text/x-go":               true,
	"text/x-python":           true,
	"application/javascript":  true,
	"application/json":        true,
}

// MaxFileSizeBytes is the maximum allowed upload size (50 MB).
const MaxFileSizeBytes = 50 * 1024 * 1024
