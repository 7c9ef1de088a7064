package chunking

import (
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// Separators walk down from paragraph to line, sentence, word and character.
var Separators = []string{"\n\n", "\n", ". ", " ", ""}

type Splitter struct {
	ChunkSize int
	Overlap   int

	splitter textsplitter.RecursiveCharacter
	logger   *slog.Logger
}

func NewSplitter(chunkSize, overlap int, logger *slog.Logger) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators(Separators),
		),
		logger: logger.With("component", "chunker"),
	}
}

func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	segments, err := s.splitter.SplitText(text)
	if err != nil {
		s.logger.Warn("split_failed", "error", err)
		return nil
	}

	out := make([]string, 0, len(segments))
	for _, segment := range segments {
		if segment = strings.TrimSpace(segment); segment != "" {
			out = append(out, segment)
		}
	}
	if len(out) == 0 {
		s.logger.Warn("zero_chunks", "text_len", len(text))
	}
	return out
}
