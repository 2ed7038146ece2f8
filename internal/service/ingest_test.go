package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doctalk-ai/doctalk/internal/domain"
	"github.com/doctalk-ai/doctalk/internal/vectorindex"
)

// hashEmbedder produces small deterministic vectors so similarity tests are
// repeatable without a network call.
type hashEmbedder struct {
	err error
}

func (e *hashEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, 16)
		for _, word := range strings.Fields(strings.ToLower(t)) {
			h := fnv.New32a()
			h.Write([]byte(word))
			vec[h.Sum32()%16]++
		}
		out[i] = vec
	}
	return out, nil
}

// memStore is an in-memory documentStore for pipeline tests.
type memStore struct {
	docs map[string]*domain.Document
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string]*domain.Document)}
}

func (s *memStore) Create(_ context.Context, d *domain.Document) error {
	cp := *d
	s.docs[d.ID] = &cp
	return nil
}

func (s *memStore) GetByID(_ context.Context, userID, id string) (*domain.Document, error) {
	d, ok := s.docs[id]
	if !ok || d.UserID != userID {
		return nil, domain.ErrDocumentNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *memStore) UpdateVectorIDs(_ context.Context, userID, id string, vectorIDs []string) error {
	d, ok := s.docs[id]
	if !ok || d.UserID != userID {
		return domain.ErrDocumentNotFound
	}
	d.VectorIDs = append([]string(nil), vectorIDs...)
	return nil
}

func (s *memStore) Delete(_ context.Context, userID, id string) error {
	d, ok := s.docs[id]
	if !ok || d.UserID != userID {
		return domain.ErrDocumentNotFound
	}
	delete(s.docs, id)
	return nil
}

func newTestIngest(t *testing.T) (*IngestService, *memStore, vectorindex.Index) {
	t.Helper()
	idx, err := vectorindex.NewMemoryIndex(t.TempDir())
	require.NoError(t, err)
	store := newMemStore()
	return NewIngestService(store, &hashEmbedder{}, idx), store, idx
}

func countChunks(t *testing.T, idx vectorindex.Index, userID, docID string) int {
	t.Helper()
	probe := make([]float32, 16)
	probe[0] = 1
	results, err := idx.Query(context.Background(), probe,
		vectorindex.Filter{UserID: userID, DocumentID: docID}, 1000)
	require.NoError(t, err)
	return len(results)
}

func TestIngestIndexesDocument(t *testing.T) {
	svc, store, idx := newTestIngest(t)

	doc, err := svc.Ingest(context.Background(), IngestRequest{
		UserID:  "user-1",
		Title:   "Long Doc",
		Source:  domain.SourceKindFile,
		Content: fillerText(1200),
	})
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.Greater(t, len(doc.VectorIDs), 1)
	for i, id := range doc.VectorIDs {
		assert.Equal(t, fmt.Sprintf("%s_chunk_%d", doc.ID, i), id)
	}

	stored, err := store.GetByID(context.Background(), "user-1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.VectorIDs, stored.VectorIDs)
	assert.True(t, stored.HasVectors())

	assert.Equal(t, len(doc.VectorIDs), countChunks(t, idx, "user-1", doc.ID))
}

func TestIngestChunkMetadata(t *testing.T) {
	svc, _, idx := newTestIngest(t)

	doc, err := svc.Ingest(context.Background(), IngestRequest{
		UserID:    "user-1",
		Title:     "Sourced",
		Source:    domain.SourceKindURL,
		SourceRef: "https://example.com/page",
		Content:   fillerText(300),
	})
	require.NoError(t, err)

	probe := make([]float32, 16)
	probe[0] = 1
	results, err := idx.Query(context.Background(), probe,
		vectorindex.Filter{UserID: "user-1", DocumentID: doc.ID}, 100)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for _, r := range results {
		assert.Equal(t, "Sourced", r.Title)
		assert.Equal(t, len(doc.VectorIDs), r.ChunkCount)
		assert.Equal(t, "https://example.com/page", r.Metadata["source_ref"])
	}
}

func TestIngestEmptyContent(t *testing.T) {
	svc, store, _ := newTestIngest(t)

	doc, err := svc.Ingest(context.Background(), IngestRequest{
		UserID:  "user-1",
		Title:   "Blank",
		Source:  domain.SourceKindFile,
		Content: "   \n\t  ",
	})
	require.ErrorIs(t, err, domain.ErrNoContent)
	assert.Nil(t, doc)

	// No record is left behind for content that chunks to nothing.
	assert.Empty(t, store.docs)
}

func TestReingestReplacesStaleChunks(t *testing.T) {
	svc, store, idx := newTestIngest(t)

	doc, err := svc.Ingest(context.Background(), IngestRequest{
		UserID:  "user-1",
		Title:   "Shrinking",
		Source:  domain.SourceKindFile,
		Content: fillerText(1200),
	})
	require.NoError(t, err)
	before := len(doc.VectorIDs)
	require.Greater(t, before, 2)

	doc.Content = fillerText(100)
	ids, err := svc.Reingest(context.Background(), doc)
	require.NoError(t, err)
	require.NotEmpty(t, ids)
	assert.Less(t, len(ids), before)

	// No orphans: the index holds exactly the new chunk set.
	assert.Equal(t, len(ids), countChunks(t, idx, "user-1", doc.ID))

	stored, err := store.GetByID(context.Background(), "user-1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, ids, stored.VectorIDs)
}

func TestIngestEmbedderFailureLeavesRecordUnlinked(t *testing.T) {
	idx, err := vectorindex.NewMemoryIndex(t.TempDir())
	require.NoError(t, err)
	store := newMemStore()
	svc := NewIngestService(store, &hashEmbedder{err: errors.New("quota exceeded")}, idx)

	doc, err := svc.Ingest(context.Background(), IngestRequest{
		UserID:  "user-1",
		Title:   "Doomed",
		Source:  domain.SourceKindFile,
		Content: fillerText(300),
	})
	require.Error(t, err)
	require.NotNil(t, doc)

	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeIngestion, derr.Code)

	// Linkage stays empty so the repair worker picks the document up.
	stored, getErr := store.GetByID(context.Background(), "user-1", doc.ID)
	require.NoError(t, getErr)
	assert.False(t, stored.HasVectors())
}

func TestDeleteRemovesChunksAndRecord(t *testing.T) {
	svc, store, idx := newTestIngest(t)

	doc, err := svc.Ingest(context.Background(), IngestRequest{
		UserID:  "user-1",
		Title:   "Ephemeral",
		Source:  domain.SourceKindFile,
		Content: fillerText(300),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), "user-1", doc.ID))

	assert.Zero(t, countChunks(t, idx, "user-1", doc.ID))
	_, err = store.GetByID(context.Background(), "user-1", doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDeleteScopedToOwner(t *testing.T) {
	svc, _, idx := newTestIngest(t)

	doc, err := svc.Ingest(context.Background(), IngestRequest{
		UserID:  "user-1",
		Title:   "Mine",
		Source:  domain.SourceKindFile,
		Content: fillerText(300),
	})
	require.NoError(t, err)

	err = svc.Delete(context.Background(), "user-2", doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	assert.NotZero(t, countChunks(t, idx, "user-1", doc.ID))
}

func TestDocumentLockEvictedWhenIdle(t *testing.T) {
	svc, _, _ := newTestIngest(t)

	unlock := svc.lockDocument("doc-1")
	svc.mu.Lock()
	assert.Len(t, svc.locks, 1)
	svc.mu.Unlock()
	unlock()

	svc.mu.Lock()
	assert.Empty(t, svc.locks)
	svc.mu.Unlock()

	// A contended lock stays in the map until the last waiter releases it.
	unlockFirst := svc.lockDocument("doc-2")
	released := make(chan struct{})
	go func() {
		unlockSecond := svc.lockDocument("doc-2")
		unlockSecond()
		close(released)
	}()

	require.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		l, ok := svc.locks["doc-2"]
		return ok && l.refs == 2
	}, time.Second, 5*time.Millisecond)

	unlockFirst()
	<-released

	svc.mu.Lock()
	assert.Empty(t, svc.locks)
	svc.mu.Unlock()
}

// flakyIndex passes writes through until the configured call number, then
// refuses them.
type flakyIndex struct {
	vectorindex.Index
	calls  int
	failAt int
}

func (f *flakyIndex) Upsert(ctx context.Context, records []vectorindex.Record) error {
	f.calls++
	if f.calls >= f.failAt {
		return errors.New("index write refused")
	}
	return f.Index.Upsert(ctx, records)
}

func TestIngestPartialUpsertReportsStoredChunks(t *testing.T) {
	inner, err := vectorindex.NewMemoryIndex(t.TempDir())
	require.NoError(t, err)
	idx := &flakyIndex{Index: inner, failAt: 2}
	store := newMemStore()
	svc := NewIngestService(store, &hashEmbedder{}, idx)
	// Small chunks so the document spans more than one upsert batch.
	svc.chunkCfg = ChunkConfig{ChunkSize: 20, Overlap: 0}

	doc := &domain.Document{
		ID:      "doc-partial",
		UserID:  "user-1",
		Title:   "Big",
		Source:  domain.SourceKindFile,
		Content: fillerText(450),
	}
	require.NoError(t, store.Create(context.Background(), doc))

	stored, err := svc.Reingest(context.Background(), doc)
	require.Error(t, err)

	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeIngestion, derr.Code)
	assert.Contains(t, err.Error(), fmt.Sprintf("indexed %d of", upsertBatchSize))

	// The ids that made it in are reported, and only those chunks are indexed.
	assert.Len(t, stored, upsertBatchSize)
	assert.Equal(t, upsertBatchSize, countChunks(t, inner, "user-1", "doc-partial"))

	// Linkage is never recorded for a partial write.
	got, getErr := store.GetByID(context.Background(), "user-1", "doc-partial")
	require.NoError(t, getErr)
	assert.False(t, got.HasVectors())
}
