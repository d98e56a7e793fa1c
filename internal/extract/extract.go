// Package extract converts uploaded file bytes into cleaned plain text.
// One handler per supported extension, selected by a lookup on the
// normalized filename extension.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Extraction failure classes. Handlers wrap these so callers can classify
// with errors.Is.
var (
	// ErrUnsupportedFormat is returned for extensions with no handler.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrExtractionFailed is returned when a parser recovers no usable text.
	ErrExtractionFailed = errors.New("text extraction failed")
	// ErrDecodeFailed is returned when no supported encoding decodes the file.
	ErrDecodeFailed = errors.New("text decoding failed")
	// ErrTooShort is returned when the cleaned text is below MinTextLength.
	ErrTooShort = errors.New("extracted text is too short")
)

// MinTextLength is the minimum cleaned text length, in characters.
const MinTextLength = 10

// handler converts raw file bytes into raw (uncleaned) text.
type handler func(data []byte) (string, error)

var handlers = map[string]handler{
	".pdf":  extractPDF,
	".docx": extractDOCX,
	".txt":  extractPlainText,
	".md":   extractPlainText,
}

// SupportedExtensions returns the extensions Extract accepts.
func SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".txt", ".md"}
}

// Supported reports whether the filename's extension has a handler.
func Supported(filename string) bool {
	_, ok := handlers[normalizeExt(filename)]
	return ok
}

// Extract converts raw uploaded bytes into cleaned plain text. The format is
// chosen by the filename extension, case-insensitive. The result is trimmed,
// blank-line and space runs are collapsed, and control characters other than
// newline and tab are removed.
func Extract(data []byte, filename string) (string, error) {
	ext := normalizeExt(filename)

	h, ok := handlers[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	raw, err := h(data)
	if err != nil {
		return "", err
	}

	cleaned := Clean(raw)
	if utf8.RuneCountInString(strings.TrimSpace(cleaned)) < MinTextLength {
		return "", fmt.Errorf("%w: minimum %d characters required", ErrTooShort, MinTextLength)
	}

	return cleaned, nil
}

var (
	blankLineRuns = regexp.MustCompile(`\n\s*\n`)
	spaceRuns     = regexp.MustCompile(` +`)
	controlChars  = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]")
)

// Clean normalizes extracted text: trims surrounding whitespace, collapses
// runs of blank lines to a single blank line, collapses space runs, and
// strips non-printable control characters (newline and tab are kept).
func Clean(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = blankLineRuns.ReplaceAllString(cleaned, "\n\n")
	cleaned = spaceRuns.ReplaceAllString(cleaned, " ")
	cleaned = controlChars.ReplaceAllString(cleaned, "")
	return cleaned
}

func normalizeExt(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
