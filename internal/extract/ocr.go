package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// OCR turns an encoded image into text.
type OCR interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// CommandRunner runs an external program with stdin and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// TesseractOCR shells out to the tesseract binary.
type TesseractOCR struct {
	Path     string
	Language string
	Runner   CommandRunner
}

// NewTesseractOCR returns an OCR engine using the tesseract binary at path
// ("tesseract" from PATH when empty).
func NewTesseractOCR(path, language string) *TesseractOCR {
	if path == "" {
		path = "tesseract"
	}
	return &TesseractOCR{Path: path, Language: language, Runner: execRunner{}}
}

func (t *TesseractOCR) Recognize(ctx context.Context, image []byte) (string, error) {
	args := []string{"stdin", "stdout"}
	if t.Language != "" {
		args = append(args, "-l", t.Language)
	}
	out, err := t.Runner.Run(ctx, image, t.Path, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
