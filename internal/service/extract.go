package service

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/medra-health/medirag/internal/domain"
)

// TextExtractor turns raw document bytes into plain text. Extraction is a
// black box to the pipeline; a failure only fails the document it belongs to.
type TextExtractor interface {
	ExtractText(data []byte) (string, error)
}

// PDFExtractor extracts per-page plain text from PDF bytes. Pages that fail
// to parse are skipped; a document whose structure cannot be read at all
// yields an extraction error.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

func (e *PDFExtractor) ExtractText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeExtraction, "failed to parse PDF", err)
	}

	var content strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that cannot be decoded.
			continue
		}

		if content.Len() > 0 {
			content.WriteString("\n\n")
		}
		content.WriteString(strings.TrimSpace(text))
	}

	return content.String(), nil
}

// PlainTextExtractor treats the uploaded bytes as UTF-8 text. Useful for
// .txt uploads and in tests.
type PlainTextExtractor struct{}

func NewPlainTextExtractor() *PlainTextExtractor {
	return &PlainTextExtractor{}
}

func (e *PlainTextExtractor) ExtractText(data []byte) (string, error) {
	return string(data), nil
}

// ExtractorForFilename picks an extractor by file extension.
func ExtractorForFilename(filename string) TextExtractor {
	if strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return NewPDFExtractor()
	}
	return NewPlainTextExtractor()
}
