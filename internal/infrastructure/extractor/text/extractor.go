package text

import (
	"context"
	"strings"

	"github.com/probe365/advocacia-ia-sub000/internal/infrastructure/extractor/textfix"
)

// Extractor decodes plain text uploads and repairs known encoding damage.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, data []byte, _ string) string {
	if len(data) == 0 {
		return ""
	}
	return strings.TrimSpace(textfix.Fix(textfix.DecodeBytes(data)))
}
