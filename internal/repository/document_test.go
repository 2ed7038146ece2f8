//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/doctalk-ai/doctalk/internal/domain"
	"github.com/doctalk-ai/doctalk/internal/pagination"
	"github.com/doctalk-ai/doctalk/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDocument(userID string) *domain.Document {
	return &domain.Document{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     "Test Document",
		Source:    domain.SourceKindURL,
		SourceRef: "https://example.com/page",
		Content:   "extracted and normalized content",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		UpdatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestDocumentRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	doc := newTestDocument("user-1")
	require.NoError(t, repo.Create(ctx, doc))

	got, err := repo.GetByID(ctx, "user-1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, doc.Title, got.Title)
	assert.Equal(t, domain.SourceKindURL, got.Source)
	assert.Empty(t, got.VectorIDs)
	assert.False(t, got.HasVectors())
}

func TestDocumentRepository_GetScopedToOwner(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	doc := newTestDocument("user-1")
	require.NoError(t, repo.Create(ctx, doc))

	_, err := repo.GetByID(ctx, "user-2", doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDocumentRepository_UpdateVectorIDs(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	doc := newTestDocument("user-1")
	require.NoError(t, repo.Create(ctx, doc))

	ids := []string{doc.ID + "_chunk_0", doc.ID + "_chunk_1"}
	require.NoError(t, repo.UpdateVectorIDs(ctx, "user-1", doc.ID, ids))

	got, err := repo.GetByID(ctx, "user-1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, ids, got.VectorIDs)
	assert.True(t, got.HasVectors())
}

func TestDocumentRepository_ListByUserPagination(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 5; i++ {
		doc := newTestDocument("user-1")
		doc.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		doc.UpdatedAt = doc.CreatedAt
		require.NoError(t, repo.Create(ctx, doc))
	}
	other := newTestDocument("user-2")
	require.NoError(t, repo.Create(ctx, other))

	page, err := repo.ListByUser(ctx, "user-1", nil, 3)
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.True(t, page.HasMore)
	require.NotEmpty(t, page.NextCursor)
	// newest first
	assert.True(t, page.Items[0].CreatedAt.After(page.Items[2].CreatedAt))

	cursor, err := pagination.DecodeCursor(page.NextCursor)
	require.NoError(t, err)

	rest, err := repo.ListByUser(ctx, "user-1", cursor, 3)
	require.NoError(t, err)
	require.Len(t, rest.Items, 2)
	assert.False(t, rest.HasMore)
	assert.Empty(t, rest.NextCursor)

	for _, d := range append(page.Items, rest.Items...) {
		assert.Equal(t, "user-1", d.UserID)
	}
}

func TestDocumentRepository_ListUnindexed(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	indexed := newTestDocument("user-1")
	require.NoError(t, repo.Create(ctx, indexed))
	require.NoError(t, repo.UpdateVectorIDs(ctx, "user-1", indexed.ID, []string{indexed.ID + "_chunk_0"}))

	pending := newTestDocument("user-1")
	require.NoError(t, repo.Create(ctx, pending))

	docs, err := repo.ListUnindexed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, pending.ID, docs[0].ID)
}

func TestDocumentRepository_Delete(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	doc := newTestDocument("user-1")
	require.NoError(t, repo.Create(ctx, doc))

	require.NoError(t, repo.Delete(ctx, "user-1", doc.ID))

	_, err := repo.GetByID(ctx, "user-1", doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	err = repo.Delete(ctx, "user-1", doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}
