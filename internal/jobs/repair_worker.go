package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/doctalk-ai/doctalk/internal/domain"
)

// repairBatchSize caps how many documents one pass re-ingests.
const repairBatchSize = 10

// RepairStore finds documents whose chunk linkage is missing and removes the
// ones that can never be indexed.
type RepairStore interface {
	ListUnindexed(ctx context.Context, limit int) ([]*domain.Document, error)
	Delete(ctx context.Context, userID, id string) error
}

// Reingester re-runs the chunk/embed/index pipeline for one document.
type Reingester interface {
	Reingest(ctx context.Context, doc *domain.Document) ([]string, error)
}

// RepairWorker finishes ingestions that were interrupted between the index
// write and the linkage update. Any document with an empty chunk-id list is
// re-ingested from its stored content; re-ingestion clears whatever the
// failed attempt left in the index, so repeated repairs converge.
type RepairWorker struct {
	docs   RepairStore
	ingest Reingester
}

func NewRepairWorker(docs RepairStore, ingest Reingester) *RepairWorker {
	return &RepairWorker{docs: docs, ingest: ingest}
}

// ProcessJobs implements the JobProcessor interface.
func (w *RepairWorker) ProcessJobs(ctx context.Context) error {
	docs, err := w.docs.ListUnindexed(ctx, repairBatchSize)
	if err != nil {
		return fmt.Errorf("failed to list unindexed documents: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}

	log.Printf("repairing %d unindexed documents", len(docs))

	for _, doc := range docs {
		ids, err := w.ingest.Reingest(ctx, doc)
		switch {
		case errors.Is(err, domain.ErrNoContent):
			// Empty content cannot be repaired. The record is removed, same
			// as on the ingest path; left in place it would occupy the
			// oldest-first batch forever and starve newer repairs.
			if delErr := w.docs.Delete(ctx, doc.UserID, doc.ID); delErr != nil {
				log.Printf("failed to remove empty document %s: %v", doc.ID, delErr)
			} else {
				log.Printf("document %s has no indexable content, removed", doc.ID)
			}
		case err != nil:
			log.Printf("failed to repair document %s: %v", doc.ID, err)
		default:
			log.Printf("repaired document %s with %d chunks", doc.ID, len(ids))
		}
	}

	return nil
}
