package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"
)

type fakeDownloader struct {
	data map[string][]byte
}

func (f *fakeDownloader) Download(ctx context.Context, object string) ([]byte, error) {
	if d, ok := f.data[object]; ok {
		return d, nil
	}
	return nil, errors.New("object not found")
}

type fakeDocAI struct {
	text  string
	pages int
	err   error
}

func (f *fakeDocAI) ProcessDocument(ctx context.Context, storagePath, mimeType string) (string, int, error) {
	return f.text, f.pages, f.err
}

func TestExtractor_PlainText(t *testing.T) {
	dl := &fakeDownloader{data: map[string][]byte{
		"p/doc/readme.txt": []byte("plain text content here"),
	}}
	svc := NewExtractorService(nil, dl)

	result, err := svc.Extract(context.Background(), "p/doc/readme.txt", "readme.txt", "text/plain")
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if result.Content != "plain text content here" {
		t.Errorf("content = %q", result.Content)
	}
	if result.Metadata.HasHeadings || result.Metadata.CodeLanguage != "" {
		t.Errorf("plain text should carry no hints: %+v", result.Metadata)
	}
}

func TestExtractor_MarkdownHeadingsHint(t *testing.T) {
	dl := &fakeDownloader{data: map[string][]byte{
		"p/doc/guide.md": []byte("# Guide\n\nSome body text under the heading."),
	}}
	svc := NewExtractorService(nil, dl)

	result, err := svc.Extract(context.Background(), "p/doc/guide.md", "guide.md", "text/markdown")
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if !result.Metadata.HasHeadings {
		t.Error("expected HasHeadings hint for markdown with headings")
	}
}

func TestExtractor_CodeLanguageHint(t *testing.T) {
	dl := &fakeDownloader{data: map[string][]byte{
		"p/doc/main.go": []byte("package main\n\nfunc main() {}\n"),
	}}
	svc := NewExtractorService(nil, dl)

	result, err := svc.Extract(context.Background(), "p/doc/main.go", "main.go", "")
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if result.Metadata.CodeLanguage != "go" {
		t.Errorf("CodeLanguage = %q, want go", result.Metadata.CodeLanguage)
	}
}

func TestExtractor_EmptyExtract(t *testing.T) {
	dl := &fakeDownloader{data: map[string][]byte{
		"p/doc/blank.txt": []byte("   \n\t  "),
	}}
	svc := NewExtractorService(nil, dl)

	_, err := svc.Extract(context.Background(), "p/doc/blank.txt", "blank.txt", "text/plain")
	if !errors.Is(err, ErrEmptyExtract) {
		t.Errorf("error = %v, want ErrEmptyExtract", err)
	}
}

func TestExtractor_BinaryRejected(t *testing.T) {
	dl := &fakeDownloader{data: map[string][]byte{
		"p/doc/blob.txt": {0x00, 0x01, 0x02, 0xff, 0xfe, 0x00, 0x01, 0x02},
	}}
	svc := NewExtractorService(nil, dl)

	if _, err := svc.Extract(context.Background(), "p/doc/blob.txt", "blob.txt", "text/plain"); err == nil {
		t.Error("expected error for binary content")
	}
}

func TestExtractor_PDFViaDocAI(t *testing.T) {
	svc := NewExtractorService(&fakeDocAI{text: "extracted pdf text", pages: 3}, &fakeDownloader{})

	result, err := svc.Extract(context.Background(), "p/doc/file.pdf", "file.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if result.Content != "extracted pdf text" || result.Metadata.PageCount != 3 {
		t.Errorf("result = %+v", result)
	}
}

func TestExtractor_PDFWithoutProcessor(t *testing.T) {
	svc := NewExtractorService(nil, &fakeDownloader{})
	if _, err := svc.Extract(context.Background(), "p/doc/file.pdf", "file.pdf", "application/pdf"); err == nil {
		t.Error("expected error when Document AI is not configured")
	}
}

func buildDocx(t *testing.T, paragraphs []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	doc := `<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	for _, p := range paragraphs {
		doc += "<w:p><w:r><w:t>" + p + "</w:t></w:r></w:p>"
	}
	doc += `</w:body></w:document>`
	if _, err := w.Write([]byte(doc)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractor_Docx(t *testing.T) {
	data := buildDocx(t, []string{"First paragraph.", "Second paragraph."})
	dl := &fakeDownloader{data: map[string][]byte{"p/doc/file.docx": data}}
	svc := NewExtractorService(nil, dl)

	result, err := svc.Extract(context.Background(), "p/doc/file.docx", "file.docx",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if !bytes.Contains([]byte(result.Content), []byte("First paragraph.")) ||
		!bytes.Contains([]byte(result.Content), []byte("Second paragraph.")) {
		t.Errorf("content = %q", result.Content)
	}
}

func TestExtractDocxText_NotAZip(t *testing.T) {
	if _, err := extractDocxText([]byte("not a zip archive")); err == nil {
		t.Error("expected error for invalid docx bytes")
	}
}
