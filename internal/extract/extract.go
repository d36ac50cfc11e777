// Package extract turns uploaded files into plain text. PDFs, office files,
// spreadsheets, markdown and plain text are read directly; images and
// text-poor PDFs go through OCR.
package extract

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// Config holds extraction tuning.
type Config struct {
	// MinTextLength is the trimmed length below which a PDF is OCRed.
	MinTextLength int    `koanf:"min_text_length" validate:"gte=0"`
	OCRDPI        int    `koanf:"ocr_dpi"         validate:"gte=72,lte=1200"`
	ForceOCR      bool   `koanf:"force_ocr"`
	TesseractPath string `koanf:"tesseract_path"`
	OCRLanguage   string `koanf:"ocr_language"`
}

// DefaultConfig returns the extraction defaults.
func DefaultConfig() Config {
	return Config{
		MinTextLength: 50,
		OCRDPI:        300,
		TesseractPath: "tesseract",
		OCRLanguage:   "eng",
	}
}

// Result is the text pulled out of one file.
type Result struct {
	Text    string
	Format  Format
	OCRUsed bool
	Pages   int
}

// Extractor dispatches files to the reader for their format.
type Extractor struct {
	cfg    Config
	ocr    OCR
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithOCR sets the OCR engine. Without one, images fail to extract and PDFs
// keep their direct text.
func WithOCR(ocr OCR) Option {
	return func(e *Extractor) { e.ocr = ocr }
}

// WithForceOCR makes every PDF go through OCR.
func WithForceOCR(force bool) Option {
	return func(e *Extractor) { e.cfg.ForceOCR = force }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) { e.logger = logger }
}

// New creates an Extractor. Zero config values take their defaults.
func New(cfg Config, opts ...Option) *Extractor {
	def := DefaultConfig()
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = def.MinTextLength
	}
	if cfg.OCRDPI <= 0 {
		cfg.OCRDPI = def.OCRDPI
	}
	e := &Extractor{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads data according to the format detected from filename and
// content. Failures are *ExtractionError; blank output is ErrEmptyContent.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (*Result, error) {
	format := DetectFormat(filename, data)

	if err := precheck(format, data); err != nil {
		return nil, wrap(format, err)
	}

	var (
		res *Result
		err error
	)
	switch format {
	case FormatPDF:
		res, err = e.extractPDF(ctx, data)
	case FormatImage:
		res, err = e.extractImage(ctx, data)
	case FormatPPTX:
		res, err = extractPPTX(data)
	case FormatDOCX:
		res, err = extractDOCX(data)
	case FormatExcel:
		res, err = extractSheet(data)
	case FormatMarkdown:
		res, err = extractMarkdown(data)
	default:
		res = &Result{Text: string(data), Format: FormatText, Pages: 1}
	}
	if err != nil {
		return nil, wrap(format, err)
	}

	res.Text = strings.TrimSpace(res.Text)
	if res.Text == "" {
		return nil, &ExtractionError{Format: format, Err: ErrEmptyContent}
	}
	e.logger.Debug("text extracted",
		"filename", filename,
		"format", format,
		"chars", len(res.Text),
		"ocr", res.OCRUsed)
	return res, nil
}

// precheck rejects inputs the format readers would misreport.
func precheck(format Format, data []byte) error {
	switch format {
	case FormatPPTX, FormatDOCX, FormatExcel:
		if isLegacyOffice(data) {
			return ErrLegacyOffice
		}
	case FormatText, FormatMarkdown:
		if !utf8.Valid(data) {
			return ErrInvalidUTF8
		}
	}
	return nil
}

func (e *Extractor) extractImage(ctx context.Context, data []byte) (*Result, error) {
	if e.ocr == nil {
		return nil, ErrNoOCR
	}
	text, err := e.ocr.Recognize(ctx, data)
	if err != nil {
		return nil, err
	}
	return &Result{Text: text, Format: FormatImage, OCRUsed: true, Pages: 1}, nil
}
