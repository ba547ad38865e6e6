// Package filecore implements the transactional heart of the system:
// reconciling the metadata database with the object store under
// concurrent mutations, inside retryable atomic blocks.
package filecore

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/shelfcloud/core/internal/db"
	"github.com/shelfcloud/core/internal/mount"
	"github.com/shelfcloud/core/pkg/chash"
	shelferrors "github.com/shelfcloud/core/pkg/errors"
	"github.com/shelfcloud/core/pkg/mediatype"
	"github.com/shelfcloud/core/pkg/path"
	"github.com/shelfcloud/core/pkg/retry"
	"github.com/shelfcloud/core/pkg/types"
)

// Core owns the reconciliation between FileRepository rows and
// ObjectStore blobs; the object store move happens before the metadata
// commit, so a crash between the two is recovered by Reindex, not
// silently inconsistent.
type Core struct {
	files            types.FileRepository
	objects          types.ObjectStore
	pendingDeletions types.FilePendingDeletionRepository
	worker           types.Worker
	logger           *slog.Logger

	retryer       *retry.Retryer
	createRetryer *retry.Retryer
}

// New builds a Core. worker may be nil (pending deletions are then only
// persisted, never drained) for tests that don't care about the
// background sweep.
func New(files types.FileRepository, objects types.ObjectStore, pendingDeletions types.FilePendingDeletionRepository, w types.Worker, logger *slog.Logger) *Core {
	if logger == nil {
		logger = slog.Default()
	}
	base := retry.New(retry.DefaultConfig())
	return &Core{
		files:            files,
		objects:          objects,
		pendingDeletions: pendingDeletions,
		worker:           w,
		logger:           logger,
		retryer:          base,
		createRetryer:    base.WithMaxAttempts(10),
	}
}

// Bootstrap creates a namespace's implicit root "." folder and its
// top-level "Trash" folder, tolerating either already existing.
func (c *Core) Bootstrap(ctx context.Context, nsPath string) error {
	if _, err := c.files.GetByPath(ctx, nsPath, "."); err != nil {
		if !shelferrors.As(err, shelferrors.CodeNotFound) {
			return err
		}
		if _, err := c.files.Save(ctx, types.File{NSPath: nsPath, Name: "", Path: ".", MediaType: mediatype.Folder, ModifiedAt: time.Now()}); err != nil {
			return err
		}
	}
	if _, err := c.CreateFolder(ctx, nsPath, "Trash"); err != nil && !shelferrors.As(err, shelferrors.CodeAlreadyExists) {
		return err
	}
	return nil
}

// GetByPath returns the row at nsPath/p.
func (c *Core) GetByPath(ctx context.Context, nsPath, p string) (types.File, error) {
	return c.files.GetByPath(ctx, nsPath, p)
}

// GetByID returns the row with the given ID.
func (c *Core) GetByID(ctx context.Context, id string) (types.File, error) {
	return c.files.GetByID(ctx, id)
}

// ListFolder returns the direct children of nsPath/p as stored in the file
// repository; mount points anchored there are not included
// (fileservice.Service.ListFolder adds them).
func (c *Core) ListFolder(ctx context.Context, nsPath, p string) ([]types.File, error) {
	pp := path.New(p)
	prefix := ""
	if !pp.IsRoot() {
		prefix = pp.String() + "/"
	}
	return c.files.ListWithPrefix(ctx, nsPath, prefix)
}

// Download opens the blob backing nsPath/p.
func (c *Core) Download(ctx context.Context, nsPath, p string) (io.ReadCloser, error) {
	return c.objects.Download(ctx, nsPath, p)
}

// DownloadDir streams a zip of everything under nsPath/p.
func (c *Core) DownloadDir(ctx context.Context, nsPath, p string) (io.ReadCloser, error) {
	return c.objects.DownloadDir(ctx, nsPath, p)
}

// freeFilePath resolves a free path within nsPath using the same
// available-path law mount points use for free display names.
func (c *Core) freeFilePath(ctx context.Context, nsPath string, p path.Path) (path.Path, error) {
	return mount.GetAvailablePath(ctx, p,
		func(ctx context.Context, cand path.Path) (bool, error) {
			return c.files.ExistsAtPath(ctx, nsPath, cand.String())
		},
		func(ctx context.Context, pattern *regexp.Regexp) (int, error) {
			return c.files.CountByPathPattern(ctx, nsPath, pattern)
		},
	)
}

// CreateFile saves content at a free path under nsPath/p's name, creating
// any missing parent folders first.
func (c *Core) CreateFile(ctx context.Context, nsPath, p string, content io.Reader) (types.File, error) {
	buf, err := io.ReadAll(content)
	if err != nil {
		return types.File{}, shelferrors.New(shelferrors.CodeInternalError, "failed to read upload content").WithCause(err)
	}

	target := path.New(p)
	var result types.File

	err = c.createRetryer.Do(ctx, func(ctx context.Context) error {
		parentFile, err := c.ensureFolder(ctx, nsPath, target.Parent())
		if err != nil {
			return err
		}
		if !parentFile.IsFolder() {
			return shelferrors.New(shelferrors.CodeNotADirectory, "parent is not a folder: "+parentFile.Path)
		}

		restored := target.WithRestoredCasing(parentFile.PathValue())
		resolved, err := c.freeFilePath(ctx, nsPath, restored)
		if err != nil {
			return err
		}

		mt := mediatype.Guess(buf, resolved.Name())
		saveResult, err := c.objects.Save(ctx, nsPath, resolved.String(), bytes.NewReader(buf))
		if err != nil {
			return err
		}
		chashVal := chash.ComputeBytes(buf)

		return db.Atomic(ctx, func(ctx context.Context) error {
			saved, err := c.files.Save(ctx, types.File{
				NSPath:     nsPath,
				Name:       resolved.Name(),
				Path:       resolved.String(),
				Size:       saveResult.Size,
				CHash:      chashVal,
				MediaType:  mt,
				ModifiedAt: time.Now(),
			})
			if err != nil {
				return err
			}
			result = saved
			return applyDelta(ctx, c.files, nsPath, resolved.Parents(), saveResult.Size)
		})
	})
	if err != nil {
		return types.File{}, err
	}
	return result, nil
}

// ensureFolder returns the folder row at p, recursively creating missing
// ancestors and tolerating a concurrent AlreadyExists.
func (c *Core) ensureFolder(ctx context.Context, nsPath string, p path.Path) (types.File, error) {
	f, err := c.files.GetByPath(ctx, nsPath, p.String())
	if err == nil {
		return f, nil
	}
	if !shelferrors.As(err, shelferrors.CodeNotFound) {
		return types.File{}, err
	}

	created, cerr := c.CreateFolder(ctx, nsPath, p.String())
	if cerr == nil {
		return created, nil
	}
	if shelferrors.As(cerr, shelferrors.CodeAlreadyExists) {
		return c.files.GetByPath(ctx, nsPath, p.String())
	}
	return types.File{}, cerr
}

// ancestorChain returns every path from the shallowest segment down to and
// including p itself (excluding the root, which always exists).
func ancestorChain(p path.Path) []path.Path {
	if p.IsRoot() {
		return nil
	}
	segs := strings.Split(p.String(), "/")
	chain := make([]path.Path, len(segs))
	cur := ""
	for i, seg := range segs {
		if cur == "" {
			cur = seg
		} else {
			cur = cur + "/" + seg
		}
		chain[i] = path.New(cur)
	}
	return chain
}

// CreateFolder creates p and any missing ancestor folders, restoring
// casing from whichever ancestor already existed.
func (c *Core) CreateFolder(ctx context.Context, nsPath, p string) (types.File, error) {
	target := path.New(p)
	if target.IsRoot() {
		return types.File{}, shelferrors.New(shelferrors.CodeAlreadyExists, "root folder always exists")
	}

	var result types.File
	err := c.retryer.Do(ctx, func(ctx context.Context) error {
		chain := ancestorChain(target)
		var lastExisting types.File
		idx := 0
		for ; idx < len(chain); idx++ {
			f, err := c.files.GetByPath(ctx, nsPath, chain[idx].String())
			if err != nil {
				if !shelferrors.As(err, shelferrors.CodeNotFound) {
					return err
				}
				break
			}
			if !f.IsFolder() {
				return shelferrors.New(shelferrors.CodeNotADirectory, "not a folder: "+f.Path)
			}
			lastExisting = f
		}
		if idx == len(chain) {
			return shelferrors.New(shelferrors.CodeAlreadyExists, "folder already exists: "+p)
		}

		toCreate := make([]path.Path, 0, len(chain)-idx)
		for _, anc := range chain[idx:] {
			restored := anc
			if idx > 0 {
				restored = anc.WithRestoredCasing(lastExisting.PathValue())
			}
			toCreate = append(toCreate, restored)
		}

		deepest := toCreate[len(toCreate)-1]
		if err := c.objects.MakeDirs(ctx, nsPath, deepest.String()); err != nil {
			return err
		}

		rows := make([]types.File, len(toCreate))
		for i, p := range toCreate {
			rows[i] = types.File{NSPath: nsPath, Name: p.Name(), Path: p.String(), MediaType: mediatype.Folder, ModifiedAt: time.Now()}
		}

		return db.Atomic(ctx, func(ctx context.Context) error {
			saved, err := c.files.SaveBatch(ctx, rows)
			if err != nil {
				return err
			}
			result = saved[len(saved)-1]
			return nil
		})
	})
	if err != nil {
		return types.File{}, err
	}
	return result, nil
}

// Delete removes nsPath/p, cascading to every descendant when it's a
// folder, and frees its blob(s) only after the metadata commit succeeds.
func (c *Core) Delete(ctx context.Context, nsPath, p string) (types.File, error) {
	var deleted types.File
	err := c.retryer.Do(ctx, func(ctx context.Context) error {
		return db.Atomic(ctx, func(ctx context.Context) error {
			f, err := c.files.Delete(ctx, nsPath, p)
			if err != nil {
				return err
			}
			deleted = f
			if f.IsFolder() {
				if _, err := c.files.DeleteAllWithPrefix(ctx, nsPath, p+"/"); err != nil {
					return err
				}
			}
			return applyDelta(ctx, c.files, nsPath, path.New(p).Parents(), -f.Size)
		})
	})
	if err != nil {
		return types.File{}, err
	}

	if deleted.IsFolder() {
		if err := c.objects.DeleteDir(ctx, nsPath, p); err != nil {
			return types.File{}, err
		}
	} else if err := c.objects.Delete(ctx, nsPath, p); err != nil {
		return types.File{}, err
	}
	return deleted, nil
}

// EmptyFolder is a no-op when the folder is already empty, else clears
// its descendants and its own size.
func (c *Core) EmptyFolder(ctx context.Context, nsPath, p string) error {
	return c.retryer.Do(ctx, func(ctx context.Context) error {
		f, err := c.files.GetByPath(ctx, nsPath, p)
		if err != nil {
			return err
		}
		if !f.IsFolder() {
			return shelferrors.New(shelferrors.CodeNotADirectory, "not a folder: "+p)
		}
		if f.Size == 0 {
			return nil
		}

		err = db.Atomic(ctx, func(ctx context.Context) error {
			if _, err := c.files.DeleteAllWithPrefix(ctx, nsPath, p+"/"); err != nil {
				return err
			}
			if err := applyDelta(ctx, c.files, nsPath, path.New(p).Parents(), -f.Size); err != nil {
				return err
			}
			zero := int64(0)
			_, err := c.files.Update(ctx, f.ID, types.FileUpdate{Size: &zero})
			return err
		})
		if err != nil {
			return err
		}
		return c.objects.EmptyDir(ctx, nsPath, p)
	})
}
