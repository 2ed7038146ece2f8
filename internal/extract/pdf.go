package extract

import (
	"bytes"
	"strings"

	"github.com/doctalk-ai/doctalk/internal/domain"
	"github.com/ledongthuc/pdf"
)

// FromPDF extracts text from a PDF, page by page, concatenated with
// blank-line separators. Pages without extractable text are skipped. A
// corrupt file yields an extraction error, never a panic.
func FromPDF(data []byte, filename string) (*Extracted, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeExtraction, "failed to open PDF", err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the whole document.
			continue
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeExtraction, "PDF contains no extractable text")
	}

	return &Extracted{
		Title:   filename,
		Content: strings.Join(pages, "\n\n"),
	}, nil
}
