package domain

import (
	"strings"
	"time"
)

// SourceKind identifies where a document's content came from.
type SourceKind string

const (
	SourceKindURL  SourceKind = "url"
	SourceKindFile SourceKind = "file"
	SourceKindText SourceKind = "text"
)

// Document represents one ingested unit of content owned by a single user.
type Document struct {
	ID        string
	UserID    string
	Title     string
	Source    SourceKind
	// SourceRef is the URL or original filename, depending on Source.
	SourceRef string
	Content   string
	// VectorIDs is the ordered list of chunk ids currently present in the
	// vector index for this document. Empty until indexing completes.
	VectorIDs []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasVectors reports whether the document has been indexed.
func (d *Document) HasVectors() bool {
	return len(d.VectorIDs) > 0
}

// ValidateDocument validates a Document instance.
func ValidateDocument(d *Document) error {
	if d == nil {
		return ErrMissingRequiredField
	}
	if d.ID == "" || d.UserID == "" || d.Title == "" {
		return ErrMissingRequiredField
	}
	if !isValidSourceKind(d.Source) {
		return ErrInvalidSourceKind
	}
	return nil
}

func isValidSourceKind(k SourceKind) bool {
	switch k {
	case SourceKindURL, SourceKindFile, SourceKindText:
		return true
	}
	return false
}

// JoinVectorIDs serializes an ordered chunk-id list for storage.
func JoinVectorIDs(ids []string) string {
	return strings.Join(ids, ",")
}

// SplitVectorIDs parses a stored chunk-id list. Empty input yields nil.
func SplitVectorIDs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
