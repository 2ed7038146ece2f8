package service

import (
	"context"
	"strings"

	"github.com/doctalk-ai/doctalk/internal/domain"
	"github.com/doctalk-ai/doctalk/internal/telemetry"
	"github.com/doctalk-ai/doctalk/internal/vectorindex"
)

// DefaultTopK is how many chunks a query returns when the caller does not
// say otherwise.
const DefaultTopK = 5

// RetrievalService answers similarity queries over a user's indexed chunks.
type RetrievalService struct {
	embedder Embedder
	index    vectorindex.Index
}

func NewRetrievalService(embedder Embedder, index vectorindex.Index) *RetrievalService {
	return &RetrievalService{embedder: embedder, index: index}
}

// RetrieveOptions narrows a query. DocumentID restricts results to a single
// document; TopK overrides the default result count.
type RetrieveOptions struct {
	DocumentID string
	TopK       int
}

// Retrieve embeds the query and returns the nearest chunks owned by userID,
// best match first. Zero results is a normal outcome, not an error.
func (s *RetrievalService) Retrieve(ctx context.Context, userID, query string, opts RetrieveOptions) ([]vectorindex.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuery
	}
	if userID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeUnauthorized, "user id is required")
	}

	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Retrieve", telemetry.SpanAttributes{
		UserID:     userID,
		DocumentID: opts.DocumentID,
		Operation:  "retrieve",
	})
	defer span.End()

	embeddings, err := s.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeRetrieval, "failed to embed query", err)
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	filter := vectorindex.Filter{UserID: userID, DocumentID: opts.DocumentID}
	results, err := s.index.Query(ctx, embeddings[0], filter, topK)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeRetrieval, "vector query failed", err)
	}
	return results, nil
}
