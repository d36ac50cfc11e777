package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// extractPDF reads the text layer page by page. When the text layer is too
// thin (scanned documents) or OCR is forced, pages are rendered and OCRed and
// the longer of the two texts wins.
func (e *Extractor) extractPDF(ctx context.Context, data []byte) (*Result, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	parts := make([]string, 0, pages)
	for i := 0; i < pages; i++ {
		text, err := doc.Text(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", i+1, err)
		}
		parts = append(parts, text)
	}
	direct := strings.Join(parts, "\n")
	res := &Result{Text: direct, Format: FormatPDF, Pages: pages}

	if !e.cfg.ForceOCR && len(strings.TrimSpace(direct)) >= e.cfg.MinTextLength {
		return res, nil
	}
	if e.ocr == nil {
		e.logger.Warn("pdf has little text and no OCR engine is configured", "pages", pages)
		return res, nil
	}

	ocrText, err := e.ocrPages(ctx, doc, pages)
	if err != nil {
		e.logger.Warn("pdf OCR failed, keeping direct text", "error", err)
		return res, nil
	}
	if len(strings.TrimSpace(ocrText)) > len(strings.TrimSpace(direct)) {
		res.Text = ocrText
		res.OCRUsed = true
	}
	return res, nil
}

func (e *Extractor) ocrPages(ctx context.Context, doc *fitz.Document, pages int) (string, error) {
	parts := make([]string, 0, pages)
	for i := 0; i < pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		img, err := doc.ImagePNG(i, float64(e.cfg.OCRDPI))
		if err != nil {
			return "", fmt.Errorf("render page %d: %w", i+1, err)
		}
		text, err := e.ocr.Recognize(ctx, img)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i+1, err)
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n"), nil
}
