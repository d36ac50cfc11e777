package extract

import (
	"bytes"
	"image"
	// Register decoders for image.DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Format identifies how a file's text is extracted.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatImage    Format = "image"
	FormatPPTX     Format = "pptx"
	FormatDOCX     Format = "docx"
	FormatExcel    Format = "excel"
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
)

var extensionFormats = map[string]Format{
	".pdf":      FormatPDF,
	".jpg":      FormatImage,
	".jpeg":     FormatImage,
	".png":      FormatImage,
	".gif":      FormatImage,
	".bmp":      FormatImage,
	".tiff":     FormatImage,
	".tif":      FormatImage,
	".webp":     FormatImage,
	".pptx":     FormatPPTX,
	".ppt":      FormatPPTX,
	".docx":     FormatDOCX,
	".doc":      FormatDOCX,
	".xlsx":     FormatExcel,
	".xls":      FormatExcel,
	".txt":      FormatText,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
}

// DetectFormat classifies a file by extension. Unknown extensions fall back to
// content sniffing for images and finally to PDF.
func DetectFormat(filename string, data []byte) Format {
	if format, ok := extensionFormats[strings.ToLower(filepath.Ext(filename))]; ok {
		return format
	}
	if isImage(data) {
		return FormatImage
	}
	return FormatPDF
}

func isImage(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	if !strings.HasPrefix(mimetype.Detect(data).String(), "image/") {
		return false
	}
	_, _, err := image.DecodeConfig(bytes.NewReader(data))
	return err == nil
}

// oleSignature starts every legacy binary .doc, .ppt and .xls file.
var oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

func isLegacyOffice(data []byte) bool {
	return bytes.HasPrefix(data, oleSignature)
}

// Supported reports whether filename has an extension the extractor maps
// directly. Batch sources use it to skip unrelated files.
func Supported(filename string) bool {
	_, ok := extensionFormats[strings.ToLower(filepath.Ext(filename))]
	return ok
}
