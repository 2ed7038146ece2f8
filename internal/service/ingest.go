package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doctalk-ai/doctalk/internal/domain"
	"github.com/doctalk-ai/doctalk/internal/telemetry"
	"github.com/doctalk-ai/doctalk/internal/vectorindex"
)

// upsertBatchSize caps how many records go into one index write.
const upsertBatchSize = 100

// Embedder turns a batch of texts into one vector per text.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// documentStore is the slice of the repository the ingestion pipeline needs.
type documentStore interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, userID, id string) (*domain.Document, error)
	UpdateVectorIDs(ctx context.Context, userID, id string, vectorIDs []string) error
	Delete(ctx context.Context, userID, id string) error
}

// IngestService runs the chunk -> embed -> index pipeline and keeps the
// document store's chunk-id linkage consistent with the vector index.
type IngestService struct {
	store    documentStore
	embedder Embedder
	index    vectorindex.Index
	chunkCfg ChunkConfig

	mu    sync.Mutex
	locks map[string]*docLock
}

// docLock is a per-document mutex with a waiter count so the entry can be
// evicted from the map once nobody holds or wants it.
type docLock struct {
	mu   sync.Mutex
	refs int
}

func NewIngestService(store documentStore, embedder Embedder, index vectorindex.Index) *IngestService {
	return &IngestService{
		store:    store,
		embedder: embedder,
		index:    index,
		chunkCfg: DefaultChunkConfig(),
		locks:    make(map[string]*docLock),
	}
}

// lockDocument serializes ingestion per document id. Concurrent re-ingestions
// of the same document would otherwise interleave their delete and insert
// phases and leave a mix of old and new chunks behind.
func (s *IngestService) lockDocument(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &docLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

// IngestRequest describes a new document to ingest.
type IngestRequest struct {
	UserID    string
	Title     string
	Source    domain.SourceKind
	SourceRef string
	Content   string
}

// Ingest creates a document record and indexes its content. The record is
// written first with an empty chunk-id list; the list is attached only after
// every chunk is in the index, so a crash mid-ingest leaves a document the
// repair worker can find and finish rather than a half-linked one.
func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.Ingest", telemetry.SpanAttributes{
		UserID:    req.UserID,
		Operation: "ingest",
	})
	defer span.End()

	doc := &domain.Document{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Title:     req.Title,
		Source:    req.Source,
		SourceRef: req.SourceRef,
		Content:   req.Content,
		CreatedAt: time.Now().UTC(),
	}
	doc.UpdatedAt = doc.CreatedAt

	if err := s.store.Create(ctx, doc); err != nil {
		return nil, err
	}

	vectorIDs, err := s.indexDocument(ctx, doc)
	if errors.Is(err, domain.ErrNoContent) {
		// Content that chunks to nothing is a validation failure, not a
		// repairable interruption; keeping the record would park it in the
		// repair queue forever.
		if delErr := s.store.Delete(ctx, doc.UserID, doc.ID); delErr != nil {
			return doc, delErr
		}
		return nil, err
	}
	if err != nil {
		// The record stays behind with an empty chunk-id list; the repair
		// worker retries it.
		return doc, err
	}
	doc.VectorIDs = vectorIDs

	return doc, nil
}

// Reingest re-runs chunking and indexing for an existing document. Stale
// chunks are deleted before the new ones are inserted, so a shrinking
// document cannot leave orphaned chunks in the index.
func (s *IngestService) Reingest(ctx context.Context, doc *domain.Document) ([]string, error) {
	return s.indexDocument(ctx, doc)
}

func (s *IngestService) indexDocument(ctx context.Context, doc *domain.Document) ([]string, error) {
	unlock := s.lockDocument(doc.ID)
	defer unlock()

	chunks := ChunkText(doc.Content, s.chunkCfg)

	filter := vectorindex.Filter{UserID: doc.UserID, DocumentID: doc.ID}
	if _, err := s.index.Delete(ctx, filter); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeIngestion, "failed to clear stale chunks", err)
	}

	if len(chunks) == 0 {
		if err := s.store.UpdateVectorIDs(ctx, doc.UserID, doc.ID, nil); err != nil {
			return nil, err
		}
		return nil, domain.ErrNoContent
	}

	embeddings, err := s.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeIngestion, "failed to embed chunks", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, domain.NewDomainError(domain.ErrCodeIngestion,
			fmt.Sprintf("embedder returned %d vectors for %d chunks", len(embeddings), len(chunks)))
	}

	records := make([]vectorindex.Record, len(chunks))
	vectorIDs := make([]string, len(chunks))
	for i, chunk := range chunks {
		id := vectorindex.ChunkID(doc.ID, i)
		vectorIDs[i] = id
		records[i] = vectorindex.Record{
			ID:         id,
			UserID:     doc.UserID,
			DocumentID: doc.ID,
			Title:      doc.Title,
			ChunkIndex: i,
			ChunkCount: len(chunks),
			Content:    chunk,
			Embedding:  embeddings[i],
			Metadata: map[string]string{
				"source_kind": string(doc.Source),
				"source_ref":  doc.SourceRef,
			},
		}
	}

	var stored []string
	for start := 0; start < len(records); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(records) {
			end = len(records)
		}
		if err := s.index.Upsert(ctx, records[start:end]); err != nil {
			// Linkage is not recorded for partial writes: the document keeps
			// its empty chunk-id list and gets re-ingested by the repair
			// worker, which clears whatever this attempt left behind.
			return stored, domain.NewDomainErrorWithCause(domain.ErrCodeIngestion,
				fmt.Sprintf("indexed %d of %d chunks", len(stored), len(records)), err)
		}
		stored = append(stored, vectorIDs[start:end]...)
	}

	if err := s.store.UpdateVectorIDs(ctx, doc.UserID, doc.ID, vectorIDs); err != nil {
		return stored, err
	}
	return vectorIDs, nil
}

// Delete removes a document's chunks from the index, then its record. Chunks
// go first so a crash in between cannot leave searchable chunks pointing at a
// deleted document.
func (s *IngestService) Delete(ctx context.Context, userID, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.Delete", telemetry.SpanAttributes{
		UserID:     userID,
		DocumentID: id,
		Operation:  "delete",
	})
	defer span.End()

	unlock := s.lockDocument(id)
	defer unlock()

	if _, err := s.store.GetByID(ctx, userID, id); err != nil {
		return err
	}

	filter := vectorindex.Filter{UserID: userID, DocumentID: id}
	if _, err := s.index.Delete(ctx, filter); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeIngestion, "failed to delete chunks", err)
	}

	return s.store.Delete(ctx, userID, id)
}
