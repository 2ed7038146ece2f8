package extract

import (
	"unicode/utf8"

	"github.com/doctalk-ai/doctalk/internal/domain"
)

// FromText reads a plain-text or markdown upload as-is.
func FromText(data []byte, filename string) (*Extracted, error) {
	if !utf8.Valid(data) {
		return nil, domain.NewDomainError(domain.ErrCodeExtraction, "file is not valid UTF-8 text")
	}

	return &Extracted{
		Title:   filename,
		Content: string(data),
	}, nil
}
