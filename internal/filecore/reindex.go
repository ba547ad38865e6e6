package filecore

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	shelferrors "github.com/shelfcloud/core/pkg/errors"
	"github.com/shelfcloud/core/pkg/mediatype"
	"github.com/shelfcloud/core/pkg/path"
	"github.com/shelfcloud/core/pkg/types"
)

// reindexChunkSize bounds how many rows one SaveBatch call covers.
const reindexChunkSize = 500

type folderAgg struct {
	p    path.Path
	size int64
}

// Reindex rebuilds metadata from storage ground truth at nsPath/p: it walks
// the object store under the anchor, discarding whatever rows previously
// existed there and replacing them from what it finds on disk. It does not
// re-extract content fingerprints or metadata — a caller who needs those
// refreshed too must also run the content pipeline's reindex.
func (c *Core) Reindex(ctx context.Context, nsPath, p string) error {
	target := path.New(p)

	anchor, aerr := c.files.GetByPath(ctx, nsPath, target.String())
	anchorExists := aerr == nil
	if aerr != nil && !shelferrors.As(aerr, shelferrors.CodeNotFound) {
		return aerr
	}
	if anchorExists && !anchor.IsFolder() {
		return shelferrors.New(shelferrors.CodeNotADirectory, "reindex anchor is not a folder: "+p)
	}

	sweepPrefix := target.String() + "/"
	if target.IsRoot() {
		// "." never appears as a literal path prefix; everything in the
		// namespace is root's descendant, so sweep unconditionally and
		// recreate the root row itself below rather than updating it in
		// place.
		sweepPrefix = ""
		anchorExists = false
	}
	if _, err := c.files.DeleteAllWithPrefix(ctx, nsPath, sweepPrefix); err != nil {
		return err
	}

	aggs := map[string]*folderAgg{target.Key(): {p: target}}
	var newFiles []types.File

	queue := []path.Path{target}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		it, err := c.objects.IterDir(ctx, nsPath, cur.String())
		if err != nil {
			if shelferrors.As(err, shelferrors.CodeNotFound) {
				continue
			}
			return err
		}

		for it.Next() {
			e := it.Entry()
			childPath := cur.Join(e.Name)

			if e.IsDir {
				if _, ok := aggs[childPath.Key()]; !ok {
					aggs[childPath.Key()] = &folderAgg{p: childPath}
				}
				queue = append(queue, childPath)
				continue
			}

			mt := mediatype.GuessUnsafe(e.Name)
			newFiles = append(newFiles, types.File{
				NSPath:     nsPath,
				Name:       e.Name,
				Path:       childPath.String(),
				Size:       e.Size,
				MediaType:  mt,
				ModifiedAt: e.ModTime,
			})

			for anc := cur; ; anc = anc.Parent() {
				if agg, ok := aggs[anc.Key()]; ok {
					agg.size += e.Size
				}
				if anc.Equal(target) {
					break
				}
			}
		}
		if err := it.Err(); err != nil {
			it.Close()
			return err
		}
		it.Close()
	}

	for key, agg := range aggs {
		if key == target.Key() {
			continue
		}
		newFiles = append(newFiles, types.File{
			NSPath:    nsPath,
			Name:      agg.p.Name(),
			Path:      agg.p.String(),
			Size:      agg.size,
			MediaType: mediatype.Folder,
		})
	}

	if err := saveInChunks(ctx, c.files, newFiles, reindexChunkSize); err != nil {
		return err
	}

	anchorTotal := aggs[target.Key()].size
	if anchorExists {
		_, err := c.files.Update(ctx, anchor.ID, types.FileUpdate{Size: &anchorTotal})
		return err
	}
	_, err := c.files.Save(ctx, types.File{
		NSPath:    nsPath,
		Name:      target.Name(),
		Path:      target.String(),
		Size:      anchorTotal,
		MediaType: mediatype.Folder,
	})
	return err
}

// saveInChunks SaveBatches rows in groups of at most chunkSize, run
// concurrently through a bounded pool.
func saveInChunks(ctx context.Context, files types.FileRepository, rows []types.File, chunkSize int) error {
	if len(rows) == 0 {
		return nil
	}

	p := pool.New().WithContext(ctx).WithCancelOnError()
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]
		p.Go(func(ctx context.Context) error {
			_, err := files.SaveBatch(ctx, chunk)
			return err
		})
	}
	return p.Wait()
}
