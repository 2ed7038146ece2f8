package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PostgresIndex stores chunk records in a pgvector-backed table. Cosine
// distance is fixed at table creation by the <=> operator class and must not
// change afterwards; changing the metric invalidates all stored vectors'
// comparability.
type PostgresIndex struct {
	pool *pgxpool.Pool
}

func NewPostgresIndex(pool *pgxpool.Pool) *PostgresIndex {
	return &PostgresIndex{pool: pool}
}

// Upsert inserts or replaces records by id. Each statement commits before
// return, so a successful upsert is durable.
func (idx *PostgresIndex) Upsert(ctx context.Context, records []Record) error {
	for _, r := range records {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal chunk metadata: %w", err)
		}
		_, err = idx.pool.Exec(ctx,
			`INSERT INTO document_chunks
				(id, user_id, document_id, title, chunk_index, chunk_count, content, embedding, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (id) DO UPDATE SET
				user_id = EXCLUDED.user_id,
				document_id = EXCLUDED.document_id,
				title = EXCLUDED.title,
				chunk_index = EXCLUDED.chunk_index,
				chunk_count = EXCLUDED.chunk_count,
				content = EXCLUDED.content,
				embedding = EXCLUDED.embedding,
				metadata = EXCLUDED.metadata`,
			r.ID,
			r.UserID,
			r.DocumentID,
			r.Title,
			r.ChunkIndex,
			r.ChunkCount,
			r.Content,
			pgvector.NewVector(r.Embedding),
			meta,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", r.ID, err)
		}
	}
	return nil
}

// Query returns the topK nearest records matching the filter, ordered by
// ascending cosine distance.
func (idx *PostgresIndex) Query(ctx context.Context, embedding []float32, filter Filter, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = 5
	}

	query := `SELECT id, user_id, document_id, title, chunk_index, chunk_count, content, metadata,
			embedding <=> $1 AS distance
		FROM document_chunks`
	args := []interface{}{pgvector.NewVector(embedding)}

	where, args := filterClause(filter, args)
	query += where
	query += fmt.Sprintf(" ORDER BY distance LIMIT $%d", len(args)+1)
	args = append(args, topK)

	rows, err := idx.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0, topK)
	for rows.Next() {
		var r Result
		var meta []byte
		if err := rows.Scan(&r.ID, &r.UserID, &r.DocumentID, &r.Title,
			&r.ChunkIndex, &r.ChunkCount, &r.Content, &meta, &r.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &r.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal chunk metadata: %w", err)
			}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chunk rows: %w", err)
	}

	return results, nil
}

// Delete removes all records matching the filter and returns the count removed.
func (idx *PostgresIndex) Delete(ctx context.Context, filter Filter) (int, error) {
	if filter.IsEmpty() {
		return 0, ErrEmptyFilter
	}

	query := `DELETE FROM document_chunks`
	where, args := filterClause(filter, nil)
	query += where

	tag, err := idx.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (idx *PostgresIndex) Close(ctx context.Context) error {
	return nil
}

func filterClause(filter Filter, args []interface{}) (string, []interface{}) {
	clause := ""
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		clause = fmt.Sprintf(" WHERE user_id = $%d", len(args))
	}
	if filter.DocumentID != "" {
		args = append(args, filter.DocumentID)
		if clause == "" {
			clause = fmt.Sprintf(" WHERE document_id = $%d", len(args))
		} else {
			clause += fmt.Sprintf(" AND document_id = $%d", len(args))
		}
	}
	return clause, args
}
