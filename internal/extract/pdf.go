package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/tmc/langchaingo/documentloaders"
)

// extractPDF tries the page-aware langchaingo loader first and falls back to
// a plain-text sweep of the whole document when it yields nothing usable.
func extractPDF(data []byte) (string, error) {
	if text, err := pdfByPage(data); err == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}

	text, err := pdfPlainText(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no text recoverable from PDF", ErrExtractionFailed)
	}
	return text, nil
}

func pdfByPage(data []byte) (string, error) {
	loader := documentloaders.NewPDF(bytes.NewReader(data), int64(len(data)))
	docs, err := loader.Load(context.Background())
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, doc := range docs {
		if strings.TrimSpace(doc.PageContent) == "" {
			continue
		}
		sb.WriteString(doc.PageContent)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func pdfPlainText(data []byte) (text string, err error) {
	// The fallback reader panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}

	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
