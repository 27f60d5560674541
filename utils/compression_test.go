package utils

import (
	"strings"
	"testing"
)

func TestCompressTextRoundTrip(t *testing.T) {
	original := strings.Repeat("The archive holds the platform's knowledge. ", 100)

	compressed, algo, err := CompressText(original)
	if err != nil {
		t.Fatalf("CompressText: %v", err)
	}
	if algo == CompressionNone {
		t.Fatal("large text should compress")
	}
	if len(compressed) >= len(original) {
		t.Fatalf("compressed %d bytes >= original %d", len(compressed), len(original))
	}

	restored, err := DecompressText(compressed, algo)
	if err != nil {
		t.Fatalf("DecompressText: %v", err)
	}
	if restored != original {
		t.Fatal("round trip altered the content")
	}
}

func TestSmallBodiesSkipCompression(t *testing.T) {
	small := "tiny note"
	compressed, algo, err := CompressText(small)
	if err != nil {
		t.Fatalf("CompressText: %v", err)
	}
	if algo != CompressionNone {
		t.Fatalf("small body should not compress, got %q", algo)
	}
	restored, err := DecompressText(compressed, algo)
	if err != nil || restored != small {
		t.Fatalf("passthrough broken: %q, %v", restored, err)
	}
}

func TestDecompressDataRejectsGarbage(t *testing.T) {
	if _, err := DecompressData([]byte("not a gzip stream"), CompressionGzip); err == nil {
		t.Fatal("garbage input must fail")
	}
}
