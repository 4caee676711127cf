// Package extract turns uploaded files into clean plain text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"

	"anonlab/internal/domain"
	"anonlab/internal/textutil"
	"anonlab/pkg/logger"
)

const (
	DefaultMaxFileSizeMB = 50
	DefaultMaxWords      = 50000

	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Format is a supported input format.
type Format string

const (
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
)

var (
	ErrUnsupported = errors.New("unsupported file format")
	ErrEmpty       = errors.New("no text could be extracted from the document")
)

// Limits bound what a single upload may contain.
type Limits struct {
	MaxFileSizeMB int
	MaxWords      int
}

// Extractor reads txt, md, pdf and docx files.
type Extractor struct {
	maxBytes int64
	maxWords int
}

func NewExtractor(l Limits) *Extractor {
	if l.MaxFileSizeMB <= 0 {
		l.MaxFileSizeMB = DefaultMaxFileSizeMB
	}
	if l.MaxWords <= 0 {
		l.MaxWords = DefaultMaxWords
	}
	return &Extractor{maxBytes: int64(l.MaxFileSizeMB) * 1024 * 1024, maxWords: l.MaxWords}
}

// Extract reads path and returns its cleaned text. Every failure is an
// *domain.IngestionError; recoverable problems such as an unreadable PDF
// page are listed in Extraction.Errors instead.
func (e *Extractor) Extract(ctx context.Context, path string) (domain.Extraction, error) {
	fail := func(err error) (domain.Extraction, error) {
		return domain.Extraction{}, &domain.IngestionError{Source: path, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fail(fmt.Errorf("stat file: %w", err))
	}
	if info.IsDir() {
		return fail(errors.New("path is a directory"))
	}
	if info.Size() > e.maxBytes {
		return fail(fmt.Errorf("file size %d exceeds limit %d bytes", info.Size(), e.maxBytes))
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fail(fmt.Errorf("reading file: %w", err))
	}
	format, err := detectFormat(path, content)
	if err != nil {
		return fail(err)
	}

	var (
		raw  string
		errs []string
	)
	switch format {
	case FormatText, FormatMarkdown:
		raw = string(content)
		if !utf8.ValidString(raw) {
			errs = append(errs, "invalid UTF-8 sequences were dropped")
			raw = strings.ToValidUTF8(raw, "")
		}
	case FormatPDF:
		raw, errs, err = extractPDF(content)
	case FormatDOCX:
		raw, err = extractDOCX(content)
	}
	if err != nil {
		return fail(fmt.Errorf("%s extraction: %w", format, err))
	}
	text := textutil.Clean(raw)
	if text == "" {
		return fail(ErrEmpty)
	}
	words := len(strings.Fields(text))
	if words > e.maxWords {
		return fail(fmt.Errorf("document too long: %d words, limit %d", words, e.maxWords))
	}
	logger.FromContext(ctx).Debug("document extracted", "path", path, "format", format, "words", words, "warnings", len(errs))
	return domain.Extraction{Text: text, WordCount: words, Errors: errs}, nil
}

// detectFormat trusts a known extension and sniffs the content otherwise.
func detectFormat(path string, content []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".text":
		return FormatText, nil
	case ".md", ".markdown":
		return FormatMarkdown, nil
	case ".pdf":
		return FormatPDF, nil
	case ".docx":
		return FormatDOCX, nil
	}
	mime := detectMIME(content)
	switch {
	case mime == mimePDF:
		return FormatPDF, nil
	case mime == mimeDOCX:
		return FormatDOCX, nil
	case strings.HasPrefix(mime, "text/plain"), strings.HasPrefix(mime, "text/markdown"):
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: %s (%s)", ErrUnsupported, filepath.Ext(path), mime)
}

// detectMIME uses stdlib detection first and falls back to the mimetype
// library when the result is generic. Office documents sniff as zip.
func detectMIME(content []byte) string {
	if len(content) == 0 {
		return "application/octet-stream"
	}
	head := content[:min(len(content), 3072)]
	mt := http.DetectContentType(head)
	if mt != "application/octet-stream" && mt != "application/zip" {
		return mt
	}
	return mimetype.Detect(content).String()
}
