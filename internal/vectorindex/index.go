package vectorindex

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyFilter is returned when a delete is attempted without any filter,
// which would otherwise wipe every user's chunks.
var ErrEmptyFilter = errors.New("filter must set at least one field")

// Record is one (text, vector, metadata) unit stored in the index.
type Record struct {
	// ID is derived as "{document_id}_chunk_{index}" so a document's chunks
	// can be enumerated and deleted without a secondary index.
	ID         string
	UserID     string
	DocumentID string
	Title      string
	ChunkIndex int
	ChunkCount int
	Content    string
	Embedding  []float32
	// Metadata carries caller-supplied extras such as source URL or filename.
	Metadata map[string]string
}

// ChunkID derives the deterministic record id for a document chunk.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, index)
}

// Filter is a conjunction of exact-match fields. Zero-value fields are not
// applied. Every query carries a UserID so one user's chunks never surface
// in another's results.
type Filter struct {
	UserID     string
	DocumentID string
}

// IsEmpty reports whether no filter fields are set.
func (f Filter) IsEmpty() bool {
	return f.UserID == "" && f.DocumentID == ""
}

// Matches reports whether a record satisfies the filter.
func (f Filter) Matches(r *Record) bool {
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if f.DocumentID != "" && r.DocumentID != f.DocumentID {
		return false
	}
	return true
}

// Result is one ranked query hit. Distance is cosine distance, so lower is
// more similar.
type Result struct {
	Record
	Distance float32
}

// Index stores chunk records and answers filtered nearest-neighbor queries
// under cosine distance. Completed mutations are durable before the call
// returns; backends handle their own checkpointing.
type Index interface {
	// Upsert inserts or replaces records by id. Idempotent on id.
	Upsert(ctx context.Context, records []Record) error
	// Query returns up to topK nearest records matching the filter, ordered
	// by ascending distance. No matches is an empty slice, not an error.
	Query(ctx context.Context, embedding []float32, filter Filter, topK int) ([]Result, error)
	// Delete removes all records matching the filter and returns the count
	// removed. Zero is success.
	Delete(ctx context.Context, filter Filter) (int, error)
	Close(ctx context.Context) error
}
