package gcpclient

import (
	"context"
	"fmt"
	"log/slog"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// DocumentAIAdapter implements service.DocumentAIClient using the Document
// AI API for PDF extraction.
type DocumentAIAdapter struct {
	client    *documentai.DocumentProcessorClient
	processor string // projects/{p}/locations/{l}/processors/{id}
	project   string
	location  string
	bucket    string
}

// NewDocumentAIAdapter creates a new Document AI client.
// location is typically "us" or "eu" (multi-region).
func NewDocumentAIAdapter(ctx context.Context, project, location, processorID, bucket string) (*DocumentAIAdapter, error) {
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", location)
	client, err := documentai.NewDocumentProcessorClient(ctx, option.WithEndpoint(endpoint))
	if err != nil {
		return nil, fmt.Errorf("gcpclient.NewDocumentAIAdapter: %w", err)
	}

	return &DocumentAIAdapter{
		client:    client,
		processor: fmt.Sprintf("projects/%s/locations/%s/processors/%s", project, location, processorID),
		project:   project,
		location:  location,
		bucket:    bucket,
	}, nil
}

// ProcessDocument sends a stored document to Document AI for text
// extraction. storagePath is the object path inside the configured bucket.
func (a *DocumentAIAdapter) ProcessDocument(ctx context.Context, storagePath, mimeType string) (string, int, error) {
	req := &documentaipb.ProcessRequest{
		Name: a.processor,
		Source: &documentaipb.ProcessRequest_GcsDocument{
			GcsDocument: &documentaipb.GcsDocument{
				GcsUri:   fmt.Sprintf("gs://%s/%s", a.bucket, storagePath),
				MimeType: mimeType,
			},
		},
	}

	resp, err := a.client.ProcessDocument(ctx, req)
	if err != nil {
		return "", 0, fmt.Errorf("gcpclient.ProcessDocument: %w", err)
	}
	if resp.Document == nil {
		return "", 0, fmt.Errorf("gcpclient.ProcessDocument: nil document in response")
	}

	pageCount := len(resp.Document.Pages)
	slog.Info("document ai extraction complete", "pages", pageCount, "chars", len(resp.Document.Text))

	return resp.Document.Text, pageCount, nil
}

// HealthCheck verifies the Document AI connection by listing processors.
func (a *DocumentAIAdapter) HealthCheck(ctx context.Context) error {
	parent := fmt.Sprintf("projects/%s/locations/%s", a.project, a.location)
	iter := a.client.ListProcessors(ctx, &documentaipb.ListProcessorsRequest{Parent: parent})
	_, err := iter.Next()
	if err != nil && err != iterator.Done {
		return fmt.Errorf("gcpclient.DocumentAI.HealthCheck: %w", err)
	}
	return nil
}

// Close releases the underlying gRPC connection.
func (a *DocumentAIAdapter) Close() {
	a.client.Close()
}
