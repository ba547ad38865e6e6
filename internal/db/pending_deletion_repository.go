package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shelfcloud/core/pkg/types"
)

// PendingDeletionRepository is an in-memory
// types.FilePendingDeletionRepository: the durable queue FileCore.DeleteBatch
// writes to and the worker's process_file_pending_deletion job drains.
type PendingDeletionRepository struct {
	mu   sync.Mutex
	byID map[string]types.FilePendingDeletion
}

// NewPendingDeletionRepository returns an empty repository.
func NewPendingDeletionRepository() *PendingDeletionRepository {
	return &PendingDeletionRepository{byID: make(map[string]types.FilePendingDeletion)}
}

var _ types.FilePendingDeletionRepository = (*PendingDeletionRepository)(nil)

func (r *PendingDeletionRepository) Save(ctx context.Context, fpd types.FilePendingDeletion) error {
	return r.SaveBatch(ctx, []types.FilePendingDeletion{fpd})
}

// SaveBatch persists each record, assigning an ID in place (via index, not
// a loop-copy) so the caller's slice carries the generated IDs back out —
// ProcessFilePendingDeletion needs them to clear consumed records.
func (r *PendingDeletionRepository) SaveBatch(ctx context.Context, fpds []types.FilePendingDeletion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range fpds {
		if fpds[i].ID == "" {
			fpds[i].ID = newID()
		}
		if fpds[i].CreatedAt.IsZero() {
			fpds[i].CreatedAt = time.Now()
		}
		r.byID[fpds[i].ID] = fpds[i]
	}
	return nil
}

// ListPending returns up to limit records, oldest first.
func (r *PendingDeletionRepository) ListPending(ctx context.Context, limit int) ([]types.FilePendingDeletion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]types.FilePendingDeletion, 0, len(r.byID))
	for _, fpd := range r.byID {
		out = append(out, fpd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *PendingDeletionRepository) DeleteBatch(ctx context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.byID, id)
	}
	return nil
}
