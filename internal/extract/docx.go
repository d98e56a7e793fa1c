package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// DOCX is a zip archive; the document text lives in word/document.xml.
// Paragraph text comes first, one paragraph per line, followed by table
// text with cells space-joined and rows newline-terminated.
func extractDOCX(data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: not a valid docx archive: %v", ErrExtractionFailed, err)
	}

	var docXML []byte
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
			}
			docXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
			}
			break
		}
	}
	if docXML == nil {
		return "", fmt.Errorf("%w: word/document.xml missing", ErrExtractionFailed)
	}

	var doc docxDocument
	if err := xml.Unmarshal(docXML, &doc); err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	var sb strings.Builder
	for _, p := range doc.Body.Paragraphs {
		sb.WriteString(p.text())
		sb.WriteString("\n")
	}
	for _, tbl := range doc.Body.Tables {
		for _, row := range tbl.Rows {
			for _, cell := range row.Cells {
				sb.WriteString(cell.text())
				sb.WriteString(" ")
			}
			sb.WriteString("\n")
		}
	}

	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no text recoverable from docx", ErrExtractionFailed)
	}
	return text, nil
}

// Minimal mapping of the WordprocessingML structure. Matching is by local
// element name, so the w: namespace prefix is irrelevant. Body-level "p"
// captures only top-level paragraphs; table-cell paragraphs are reached
// through tbl/tr/tc.
type docxDocument struct {
	Body docxBody `xml:"body"`
}

type docxBody struct {
	Paragraphs []docxParagraph `xml:"p"`
	Tables     []docxTable     `xml:"tbl"`
}

type docxParagraph struct {
	Runs []docxRun `xml:"r"`
}

type docxRun struct {
	Texts []string `xml:"t"`
}

type docxTable struct {
	Rows []docxTableRow `xml:"tr"`
}

type docxTableRow struct {
	Cells []docxTableCell `xml:"tc"`
}

type docxTableCell struct {
	Paragraphs []docxParagraph `xml:"p"`
}

func (p docxParagraph) text() string {
	var sb strings.Builder
	for _, r := range p.Runs {
		for _, t := range r.Texts {
			sb.WriteString(t)
		}
	}
	return sb.String()
}

func (c docxTableCell) text() string {
	parts := make([]string, 0, len(c.Paragraphs))
	for _, p := range c.Paragraphs {
		parts = append(parts, p.text())
	}
	return strings.Join(parts, " ")
}
