package filecore

import (
	"context"
	"io"
	"sync"

	"github.com/shelfcloud/core/pkg/chash"
	"github.com/shelfcloud/core/pkg/types"
)

// CHashBatch is a scoped tracker: callers Add (file_id, content) pairs,
// the content hash is computed off the hot path, and Commit flushes every
// accumulated hash in one SetCHashBatch call, a "builder opened by
// Begin(), closed by Commit()" shape.
type CHashBatch struct {
	files types.FileRepository
	mu    sync.Mutex
	ready []types.CHashUpdate
}

// BeginCHashBatch opens a new tracker scope.
func (c *Core) BeginCHashBatch() *CHashBatch {
	return &CHashBatch{files: c.files}
}

// Add computes r's content hash and stages it for the next Commit. Safe to
// call concurrently from a bounded task group.
func (b *CHashBatch) Add(ctx context.Context, fileID string, r io.Reader) error {
	h, err := chash.Compute(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.ready = append(b.ready, types.CHashUpdate{FileID: fileID, CHash: h})
	b.mu.Unlock()
	return nil
}

// Commit flushes every staged hash via SetCHashBatch. Calling Commit with
// nothing staged is a no-op.
func (b *CHashBatch) Commit(ctx context.Context) error {
	b.mu.Lock()
	updates := b.ready
	b.ready = nil
	b.mu.Unlock()

	if len(updates) == 0 {
		return nil
	}
	return b.files.SetCHashBatch(ctx, updates)
}
