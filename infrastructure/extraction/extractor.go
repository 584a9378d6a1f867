// Package extraction pulls plain text out of certificate documents.
package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tsawler/tabula"
)

// TextFunc extracts the text of one file.
type TextFunc func(path string) (string, error)

// Extractor implements document.Extractor. PDFs and office documents go
// through tabula; .txt and .md files are read as-is. Any parse failure is
// logged and yields "".
type Extractor struct {
	logger *slog.Logger
	pdf    TextFunc
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger for extraction warnings.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithDocumentReader replaces the tabula reader, for tests.
func WithDocumentReader(fn TextFunc) Option {
	return func(e *Extractor) { e.pdf = fn }
}

// NewExtractor creates an Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		logger: slog.Default(),
		pdf:    tabulaText,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the trimmed text of path. The only error it returns is
// a cancelled context.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text, err := e.read(path)
	if err != nil {
		e.logger.WarnContext(ctx, "could not extract document text",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return "", nil
	}
	return strings.TrimSpace(text), nil
}

func (e *Extractor) read(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parser panic: %v", r)
		}
	}()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return "", readErr
		}
		return string(data), nil
	default:
		return e.pdf(path)
	}
}

func tabulaText(path string) (string, error) {
	text, _, err := tabula.Open(path).Text()
	if err != nil {
		return "", fmt.Errorf("tabula: %w", err)
	}
	return text, nil
}
