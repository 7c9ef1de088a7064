package chunking

import (
	"strings"
	"testing"
)

func TestSplitProducesOverlappingWindows(t *testing.T) {
	s := NewSplitter(100, 20, nil)
	text := strings.Repeat("O autor comprou produto defeituoso na loja ré. ", 20)
	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > 100 {
			t.Fatalf("chunk %d exceeds size: %d", i, len([]rune(c)))
		}
	}
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	chunks := NewSplitter(1000, 200, nil).Split("O autor comprou produto defeituoso.")
	if len(chunks) != 1 || chunks[0] != "O autor comprou produto defeituoso." {
		t.Fatalf("unexpected chunks: %#v", chunks)
	}
}

func TestSplitBlankText(t *testing.T) {
	if chunks := NewSplitter(1000, 200, nil).Split("  \n\n "); len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %#v", chunks)
	}
}

func TestNewSplitterClampsOverlap(t *testing.T) {
	s := NewSplitter(100, 150, nil)
	if s.Overlap >= s.ChunkSize {
		t.Fatalf("expected overlap below chunk size, got %d/%d", s.Overlap, s.ChunkSize)
	}
}
