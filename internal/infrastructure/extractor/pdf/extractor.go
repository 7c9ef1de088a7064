package pdf

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"github.com/probe365/advocacia-ia-sub000/internal/core/ports"
	"github.com/probe365/advocacia-ia-sub000/internal/infrastructure/mediatools"
)

const (
	DefaultDPI = 300
	// minUsableRunes is the letter/digit count below which a page is treated
	// as scanned and sent to OCR.
	minUsableRunes = 10
	maxOCRPages    = 500
)

type Extractor struct {
	renderer ports.PageRenderer
	ocr      ports.OCR
	workDir  string
	dpi      int
	logger   *slog.Logger

	readPages func(data []byte) ([]string, error)
}

func NewExtractor(renderer ports.PageRenderer, ocr ports.OCR, workDir string, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		renderer:  renderer,
		ocr:       ocr,
		workDir:   workDir,
		dpi:       DefaultDPI,
		logger:    logger.With("component", "extractor", "media", "pdf"),
		readPages: readPageTexts,
	}
}

// Extract returns the text of every page joined by newlines. Pages without
// usable text are rasterized and OCRed.
func (e *Extractor) Extract(ctx context.Context, data []byte, _ string) string {
	if len(data) == 0 {
		return ""
	}
	pages, err := e.readPages(data)
	if err != nil {
		e.logger.Warn("extract_failed", "stage", "text_layer", "error", err)
		pages = nil
	}
	if len(pages) == 0 {
		// No text layer at all; try OCR over every page the renderer yields.
		return e.ocrAll(ctx, data)
	}

	var tmpPath string
	cleanup := func() {}
	defer func() { cleanup() }()

	out := make([]string, 0, len(pages))
	for i, text := range pages {
		if usable(text) {
			out = append(out, strings.TrimSpace(text))
			continue
		}
		if e.renderer == nil || e.ocr == nil {
			continue
		}
		if tmpPath == "" {
			tmpPath, cleanup, err = mediatools.WriteTempFile(e.workDir, ".pdf", data)
			if err != nil {
				e.logger.Warn("extract_failed", "stage", "temp_file", "error", err)
				break
			}
		}
		recognized, err := e.ocrPage(ctx, tmpPath, i+1)
		if err != nil {
			e.logger.Warn("ocr_page_failed", "page", i+1, "error", err)
			continue
		}
		if recognized != "" {
			out = append(out, recognized)
		}
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func (e *Extractor) ocrAll(ctx context.Context, data []byte) string {
	if e.renderer == nil || e.ocr == nil {
		return ""
	}
	tmpPath, cleanup, err := mediatools.WriteTempFile(e.workDir, ".pdf", data)
	if err != nil {
		e.logger.Warn("extract_failed", "stage", "temp_file", "error", err)
		return ""
	}
	defer cleanup()

	var out []string
	for page := 1; page <= maxOCRPages; page++ {
		if ctx.Err() != nil {
			break
		}
		text, err := e.ocrPage(ctx, tmpPath, page)
		if err != nil {
			if page == 1 {
				e.logger.Warn("ocr_page_failed", "page", page, "error", err)
			}
			break
		}
		if text != "" {
			out = append(out, text)
		}
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func (e *Extractor) ocrPage(ctx context.Context, pdfPath string, page int) (string, error) {
	img, err := e.renderer.RenderPage(ctx, pdfPath, page, e.dpi)
	if err != nil {
		return "", fmt.Errorf("render page %d: %w", page, err)
	}
	text, err := e.ocr.Recognize(ctx, img)
	if err != nil {
		return "", fmt.Errorf("ocr page %d: %w", page, err)
	}
	return strings.TrimSpace(text), nil
}

func usable(text string) bool {
	n := 0
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
			if n >= minUsableRunes {
				return true
			}
		}
	}
	return false
}

// readPageTexts returns the text layer of each page; an empty entry marks a
// page without one.
func readPageTexts(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	total := r.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}
