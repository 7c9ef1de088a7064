package image

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"strings"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/probe365/advocacia-ia-sub000/internal/core/ports"
)

// MaxSide is the longest edge sent to OCR.
const MaxSide = 2500

var pdfSignature = []byte("%PDF-")

type Extractor struct {
	ocr    ports.OCR
	pdf    ports.TextExtractor
	logger *slog.Logger
}

// NewExtractor builds an image extractor. pdf handles buffers that are PDFs
// uploaded under an image name.
func NewExtractor(ocr ports.OCR, pdf ports.TextExtractor, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		ocr:    ocr,
		pdf:    pdf,
		logger: logger.With("component", "extractor", "media", "image"),
	}
}

func (e *Extractor) Extract(ctx context.Context, data []byte, suffix string) string {
	if len(data) == 0 {
		return ""
	}
	if bytes.HasPrefix(data, pdfSignature) {
		if e.pdf == nil {
			return ""
		}
		return e.pdf.Extract(ctx, data, ".pdf")
	}
	if e.ocr == nil {
		e.logger.Warn("extract_failed", "error", "ocr provider not configured")
		return ""
	}

	prepared, err := Prepare(data)
	if err != nil {
		e.logger.Warn("extract_failed", "stage", "decode", "suffix", suffix, "error", err)
		return ""
	}
	text, err := e.ocr.Recognize(ctx, prepared)
	if err != nil {
		e.logger.Warn("extract_failed", "stage", "ocr", "error", err)
		return ""
	}
	return strings.TrimSpace(text)
}

// Prepare decodes an image, converts it to grayscale, bounds its longest
// side to MaxSide and re-encodes it as PNG.
func Prepare(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := src.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), src, b.Min, draw.Src)

	out := image.Image(gray)
	if w, h := b.Dx(), b.Dy(); max(w, h) > MaxSide {
		nw, nh := scaled(w, h)
		dst := image.NewGray(image.Rect(0, 0, nw, nh))
		draw.CatmullRom.Scale(dst, dst.Bounds(), gray, gray.Bounds(), draw.Src, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func scaled(w, h int) (int, int) {
	if w >= h {
		return MaxSide, max(1, h*MaxSide/w)
	}
	return max(1, w*MaxSide/h), MaxSide
}
