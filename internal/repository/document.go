package repository

import (
	"context"
	"errors"
	"time"

	"github.com/doctalk-ai/doctalk/internal/domain"
	"github.com/doctalk-ai/doctalk/internal/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbtx is the subset of pgx operations the repository needs, satisfied by
// both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// DocumentRepository handles persistence of document records.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

// Create inserts a new document record. VectorIDs is stored as a
// comma-joined ordered list and is normally empty at creation; chunk ids are
// attached only after indexing succeeds.
func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	if err := domain.ValidateDocument(d); err != nil {
		return err
	}

	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := d.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO documents
			(id, user_id, title, source_kind, source_ref, content, vector_ids, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID,
		d.UserID,
		d.Title,
		string(d.Source),
		d.SourceRef,
		d.Content,
		domain.JoinVectorIDs(d.VectorIDs),
		createdAt,
		updatedAt,
	)
	return err
}

// GetByID retrieves a document scoped to its owner. Another user's document
// id behaves as not found.
func (r *DocumentRepository) GetByID(ctx context.Context, userID, id string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, user_id, title, source_kind, source_ref, content, vector_ids, created_at, updated_at
		 FROM documents WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	return scanDocument(row)
}

// DocumentPage is one page of a user's documents, newest first.
type DocumentPage struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

// ListByUser returns one page of documents owned by a user, newest first.
// Pass the cursor from a previous page to continue; nil starts from the top.
func (r *DocumentRepository) ListByUser(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) (*DocumentPage, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, user_id, title, source_kind, source_ref, content, vector_ids, created_at, updated_at
			 FROM documents
			 WHERE user_id = $1 AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			userID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, user_id, title, source_kind, source_ref, content, vector_ids, created_at, updated_at
			 FROM documents
			 WHERE user_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			userID, limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(docs) > limit
	if hasMore {
		docs = docs[:limit]
	}

	var nextCursor string
	if hasMore && len(docs) > 0 {
		last := docs[len(docs)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}

	return &DocumentPage{
		Items:      docs,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// ListUnindexed returns documents whose chunk-id list is empty, oldest first.
// These are ingestions interrupted between the index and store writes; the
// repair worker re-ingests them.
func (r *DocumentRepository) ListUnindexed(ctx context.Context, limit int) ([]*domain.Document, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, title, source_kind, source_ref, content, vector_ids, created_at, updated_at
		 FROM documents WHERE vector_ids = '' ORDER BY created_at ASC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// UpdateVectorIDs replaces the document's chunk-id linkage after indexing.
func (r *DocumentRepository) UpdateVectorIDs(ctx context.Context, userID, id string, vectorIDs []string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents SET vector_ids = $1, updated_at = $2 WHERE id = $3 AND user_id = $4`,
		domain.JoinVectorIDs(vectorIDs), time.Now().UTC(), id, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// Delete removes a document record. The caller is responsible for cleaning
// up the document's vector-index entries; deletion here does not cascade.
func (r *DocumentRepository) Delete(ctx context.Context, userID, id string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM documents WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	var source, vectorIDs string
	err := row.Scan(&d.ID, &d.UserID, &d.Title, &source, &d.SourceRef,
		&d.Content, &vectorIDs, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	d.Source = domain.SourceKind(source)
	d.VectorIDs = domain.SplitVectorIDs(vectorIDs)
	return &d, nil
}
