package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ExtractMetadata carries structural hints for downstream chunking.
type ExtractMetadata struct {
	HasHeadings  bool   `json:"hasHeadings,omitempty"`
	CodeLanguage string `json:"codeLanguage,omitempty"`
	PageCount    int    `json:"pageCount,omitempty"`
}

// ExtractResult holds extracted plain text plus structural hints.
type ExtractResult struct {
	Content  string          `json:"content"`
	Metadata ExtractMetadata `json:"metadata"`
}

// DocumentAIClient abstracts PDF extraction for testability.
type DocumentAIClient interface {
	ProcessDocument(ctx context.Context, storagePath string, mimeType string) (text string, pages int, err error)
}

// ObjectDownloader abstracts reading stored document bytes.
type ObjectDownloader interface {
	Download(ctx context.Context, object string) ([]byte, error)
}

// codeExtensions maps source-file extensions to a language hint.
var codeExtensions = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".java": "java",
	".rb":   "ruby",
	".rs":   "rust",
	".c":    "c",
	".cpp":  "cpp",
	".sh":   "shell",
	".sql":  "sql",
}

// ExtractorService pulls plain text from uploaded files, dispatching on
// filename extension (falling back to the stored mime type). PDF goes
// through Document AI, DOCX through native ZIP+XML parsing, and text-based
// formats are read directly from storage.
type ExtractorService struct {
	docai      DocumentAIClient
	downloader ObjectDownloader
}

// NewExtractorService creates an ExtractorService. docai may be nil, in
// which case PDF extraction is unavailable.
func NewExtractorService(docai DocumentAIClient, downloader ObjectDownloader) *ExtractorService {
	return &ExtractorService{docai: docai, downloader: downloader}
}

// Extract returns the plain text of a stored document plus structural hints.
// Failures are non-retryable; the pipeline sets Document.status = ERROR.
func (s *ExtractorService) Extract(ctx context.Context, storagePath, filename, mimeType string) (*ExtractResult, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch {
	case ext == ".pdf" || mimeType == "application/pdf":
		return s.extractPDF(ctx, storagePath)
	case ext == ".docx" || strings.HasSuffix(mimeType, "wordprocessingml.document"):
		return s.extractDocx(ctx, storagePath)
	default:
		return s.extractPlain(ctx, storagePath, ext)
	}
}

func (s *ExtractorService) extractPDF(ctx context.Context, storagePath string) (*ExtractResult, error) {
	if s.docai == nil {
		return nil, fmt.Errorf("service.Extract: PDF extraction requires a Document AI processor (not configured)")
	}
	text, pages, err := s.docai.ProcessDocument(ctx, storagePath, "application/pdf")
	if err != nil {
		return nil, fmt.Errorf("service.Extract: document ai: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyExtract
	}
	return &ExtractResult{
		Content: text,
		Metadata: ExtractMetadata{
			HasHeadings: hasMarkdownHeadings(text),
			PageCount:   pages,
		},
	}, nil
}

func (s *ExtractorService) extractDocx(ctx context.Context, storagePath string) (*ExtractResult, error) {
	data, err := s.downloader.Download(ctx, storagePath)
	if err != nil {
		return nil, fmt.Errorf("service.Extract: download docx: %w", err)
	}
	text, err := extractDocxText(data)
	if err != nil {
		return nil, fmt.Errorf("service.Extract: parse docx: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyExtract
	}
	return &ExtractResult{
		Content:  text,
		Metadata: ExtractMetadata{HasHeadings: hasMarkdownHeadings(text)},
	}, nil
}

func (s *ExtractorService) extractPlain(ctx context.Context, storagePath, ext string) (*ExtractResult, error) {
	data, err := s.downloader.Download(ctx, storagePath)
	if err != nil {
		return nil, fmt.Errorf("service.Extract: download: %w", err)
	}

	text := string(data)
	if !isLikelyText(text) {
		return nil, fmt.Errorf("service.Extract: binary content in %q file", ext)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyExtract
	}

	meta := ExtractMetadata{}
	if lang, ok := codeExtensions[ext]; ok {
		meta.CodeLanguage = lang
	} else if ext == ".md" || ext == ".markdown" {
		meta.HasHeadings = hasMarkdownHeadings(text)
	}

	return &ExtractResult{Content: text, Metadata: meta}, nil
}

// hasMarkdownHeadings reports whether text contains at least one markdown
// heading line.
func hasMarkdownHeadings(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if headingTitle(line) != "" {
			return true
		}
	}
	return false
}

// isLikelyText checks whether content is readable text rather than binary data.
func isLikelyText(s string) bool {
	if len(s) == 0 {
		return false
	}
	sample := s
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	if !utf8.ValidString(sample) {
		return false
	}
	nonPrintable := 0
	total := 0
	for _, r := range sample {
		total++
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			nonPrintable++
		}
	}
	if total == 0 {
		return false
	}
	return float64(nonPrintable)/float64(total) < 0.05
}
