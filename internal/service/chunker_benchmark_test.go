package service

import (
	"context"
	"strings"
	"testing"
)

func BenchmarkChunker_Default(b *testing.B) {
	svc := NewChunkerService(650, 1200, 0.10)

	var parts []string
	for i := 0; i < 200; i++ {
		parts = append(parts, "A paragraph of document prose with enough words to resemble production input. It spans a couple of sentences and mentions configuration, endpoints, and validation.")
	}
	text := strings.Join(parts, "\n\n")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.Chunk(context.Background(), text, "bench", ExtractMetadata{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSynthesizer_Dedup(b *testing.B) {
	var chunks []CompressedChunk
	for i := 0; i < 40; i++ {
		chunks = append(chunks, compressed("c", "d", longContent(120), 0.5))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		dedupChunks(chunks)
	}
}
