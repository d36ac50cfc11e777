package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyContent is returned when a file yields no text after trimming.
	ErrEmptyContent = errors.New("no text content could be extracted")
	ErrNoOCR        = errors.New("no OCR engine configured")
	// ErrLegacyOffice rejects pre-2007 binary .doc, .ppt and .xls files.
	ErrLegacyOffice = errors.New("legacy binary office format is not supported; save as .docx, .pptx or .xlsx")
	ErrInvalidUTF8  = errors.New("text is not valid UTF-8")
)

// ExtractionError reports a failure to read a file of a given format.
type ExtractionError struct {
	Format Format
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func wrap(format Format, err error) error {
	if err == nil {
		return nil
	}
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return err
	}
	return &ExtractionError{Format: format, Err: err}
}
