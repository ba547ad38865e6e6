package filecore

import (
	"context"

	"github.com/shelfcloud/core/internal/db"
	"github.com/shelfcloud/core/internal/worker"
	shelferrors "github.com/shelfcloud/core/pkg/errors"
	"github.com/shelfcloud/core/pkg/mediatype"
	"github.com/shelfcloud/core/pkg/path"
	"github.com/shelfcloud/core/pkg/types"
)

// DeleteBatch deletes every row in paths (and, for each folder among
// them, their descendants cascade-deleted) inside one atomic block,
// while the underlying blobs are purged later by the worker off a
// durable FilePendingDeletion queue so the caller returns fast.
func (c *Core) DeleteBatch(ctx context.Context, nsPath string, paths []string) ([]types.File, error) {
	var roots []types.File
	var allRemoved []types.File

	err := c.retryer.Do(ctx, func(ctx context.Context) error {
		roots = nil
		allRemoved = nil
		return db.Atomic(ctx, func(ctx context.Context) error {
			deletedRoots, err := c.files.DeleteBatch(ctx, nsPath, paths)
			if err != nil {
				return err
			}
			roots = deletedRoots
			allRemoved = append(allRemoved, deletedRoots...)

			deltas := make(map[string]int64)
			for _, f := range deletedRoots {
				if f.IsFolder() {
					descendants, err := c.files.DeleteAllWithPrefix(ctx, nsPath, f.Path+"/")
					if err != nil {
						return err
					}
					allRemoved = append(allRemoved, descendants...)
				}
				for _, anc := range path.New(f.Path).Parents() {
					deltas[anc.String()] -= f.Size
				}
			}
			for p, delta := range deltas {
				if delta == 0 {
					continue
				}
				if err := c.files.IncrSizeBatch(ctx, nsPath, []string{p}, delta); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if len(allRemoved) > 0 {
		fpds := make([]types.FilePendingDeletion, len(allRemoved))
		for i, f := range allRemoved {
			fpds[i] = types.FilePendingDeletion{NSPath: nsPath, Path: f.Path, CHash: f.CHash, MediaType: f.MediaType}
		}
		if err := c.pendingDeletions.SaveBatch(ctx, fpds); err != nil {
			return nil, err
		}
		if c.worker != nil {
			if _, err := c.worker.Enqueue(ctx, worker.JobProcessFilePendingDeletion, fpds); err != nil {
				c.logger.Error("failed to enqueue pending deletion sweep", "error", err, "ns_path", nsPath)
			}
		}
	}
	return roots, nil
}

// ProcessFilePendingDeletion consumes a batch of durable deletion records:
// it purges each one's blob (recursively for folders) and returns the
// subset that were actually removed, for the caller to drive orphan
// thumbnail cleanup keyed on chash. One record's failure is logged and
// does not stop the rest.
func (c *Core) ProcessFilePendingDeletion(ctx context.Context, records []types.FilePendingDeletion) ([]types.FilePendingDeletion, error) {
	var purged []types.FilePendingDeletion
	var consumedIDs []string

	for _, r := range records {
		var err error
		if r.MediaType == mediatype.Folder {
			err = c.objects.DeleteDir(ctx, r.NSPath, r.Path)
		} else {
			err = c.objects.Delete(ctx, r.NSPath, r.Path)
		}
		if err != nil && !shelferrors.As(err, shelferrors.CodeNotFound) {
			c.logger.Error("failed to purge pending deletion", "error", err, "ns_path", r.NSPath, "path", r.Path)
			continue
		}
		purged = append(purged, r)
		if r.ID != "" {
			consumedIDs = append(consumedIDs, r.ID)
		}
	}

	if len(consumedIDs) > 0 {
		if err := c.pendingDeletions.DeleteBatch(ctx, consumedIDs); err != nil {
			return purged, err
		}
	}
	return purged, nil
}
