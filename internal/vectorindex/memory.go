package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const snapshotFile = "chunks.json"

// MemoryIndex is a small-scale fallback backend: a linear-scan cosine search
// over an in-memory record map, snapshotted to a JSON file under dataDir after
// every mutation so completed writes survive a restart.
type MemoryIndex struct {
	mu      sync.RWMutex
	records map[string]Record
	path    string
}

// NewMemoryIndex loads any existing snapshot from dataDir. An unwritable
// data directory is a startup failure; no request can make progress without
// a durable index.
func NewMemoryIndex(dataDir string) (*MemoryIndex, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	idx := &MemoryIndex{
		records: make(map[string]Record),
		path:    filepath.Join(dataDir, snapshotFile),
	}

	data, err := os.ReadFile(idx.path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, fmt.Errorf("failed to read index snapshot: %w", err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse index snapshot: %w", err)
	}
	for _, r := range records {
		idx.records[r.ID] = r
	}

	return idx, nil
}

// Upsert inserts or replaces records by id and snapshots before returning.
func (idx *MemoryIndex) Upsert(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, r := range records {
		idx.records[r.ID] = r
	}
	return idx.snapshotLocked()
}

// Query linearly scans all records matching the filter and returns the topK
// nearest by cosine distance.
func (idx *MemoryIndex) Query(ctx context.Context, embedding []float32, filter Filter, topK int) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 5
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	results := make([]Result, 0, len(idx.records))
	for _, r := range idx.records {
		if !filter.Matches(&r) {
			continue
		}
		results = append(results, Result{
			Record:   r,
			Distance: cosineDistance(embedding, r.Embedding),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Delete removes all records matching the filter, snapshots, and returns the
// count removed.
func (idx *MemoryIndex) Delete(ctx context.Context, filter Filter) (int, error) {
	if filter.IsEmpty() {
		return 0, ErrEmptyFilter
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	removed := 0
	for id, r := range idx.records {
		if filter.Matches(&r) {
			delete(idx.records, id)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	if err := idx.snapshotLocked(); err != nil {
		return removed, err
	}
	return removed, nil
}

func (idx *MemoryIndex) Close(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.snapshotLocked()
}

// snapshotLocked writes all records to a temp file and renames it into place
// so a crash mid-write never corrupts the snapshot. Callers hold idx.mu.
func (idx *MemoryIndex) snapshotLocked() error {
	records := make([]Record, 0, len(idx.records))
	for _, r := range idx.records {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal index snapshot: %w", err)
	}

	tmp := idx.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write index snapshot: %w", err)
	}
	if err := os.Rename(tmp, idx.path); err != nil {
		return fmt.Errorf("failed to replace index snapshot: %w", err)
	}
	return nil
}

// cosineDistance returns 1 - cosine similarity, matching the pgvector <=>
// operator so both backends rank identically.
func cosineDistance(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)))
}
