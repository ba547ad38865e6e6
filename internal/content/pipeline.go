// Package content implements the post-upload pipeline: thumbnail
// generation, perceptual-hash fingerprinting, structural metadata
// extraction, and near-duplicate grouping.
package content

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/sourcegraph/conc/pool"

	"github.com/shelfcloud/core/internal/filecore"
	"github.com/shelfcloud/core/internal/worker"
	"github.com/shelfcloud/core/pkg/dhash"
	"github.com/shelfcloud/core/pkg/mediatype"
	"github.com/shelfcloud/core/pkg/types"
)

// reindexChunkSize mirrors FileCore.Reindex's chunking.
const reindexChunkSize = 500

// pathIndexer is implemented by FingerprintRepository backends that need a
// file's (nsPath, path) recorded alongside its hash so
// IntersectAllWithPrefix can scope adjacency queries to one folder. Not
// part of types.FingerprintRepository itself since a database-backed
// implementation could derive this by joining against the file table
// instead.
type pathIndexer interface {
	Index(fileID, nsPath, path string)
}

func indexPathScope(repo types.FingerprintRepository, fileID, nsPath, path string) {
	if idx, ok := repo.(pathIndexer); ok {
		idx.Index(fileID, nsPath, path)
	}
}

// Indexer is the external search indexer collaborator content.Process
// optionally hands the pre-generated large thumbnail's storage path to.
// Its actual backend is out of this module's scope, same treatment as
// AuditTrailRecorder.
type Indexer interface {
	IndexThumbnail(ctx context.Context, fileID, thumbnailStoragePath string) error
}

// Pipeline orchestrates Process/ProcessAsync/ReindexContents.
type Pipeline struct {
	core         *filecore.Core
	files        types.FileRepository
	objects      types.ObjectStore
	fingerprints types.FingerprintRepository
	contentMeta  types.ContentMetadataRepository
	thumbnails   *Thumbnailer
	worker       types.Worker
	indexer      Indexer
	logger       *slog.Logger
	sizes        []int
	concurrency  int
}

// New builds a Pipeline. indexer may be nil; search indexing is optional.
func New(
	core *filecore.Core,
	files types.FileRepository,
	objects types.ObjectStore,
	fingerprints types.FingerprintRepository,
	contentMeta types.ContentMetadataRepository,
	thumbnails *Thumbnailer,
	w types.Worker,
	indexer Indexer,
	logger *slog.Logger,
	sizes []int,
	concurrency int,
) *Pipeline {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Pipeline{
		core: core, files: files, objects: objects,
		fingerprints: fingerprints, contentMeta: contentMeta,
		thumbnails: thumbnails, worker: w, indexer: indexer,
		logger: logger, sizes: sizes, concurrency: concurrency,
	}
}

// Process pre-generates thumbnails, computes a perceptual fingerprint and
// extracts content metadata for file_id.
func (p *Pipeline) Process(ctx context.Context, fileID string) error {
	f, err := p.core.GetByID(ctx, fileID)
	if err != nil {
		return err
	}
	if f.IsFolder() {
		return nil
	}

	rc, err := p.core.Download(ctx, f.NSPath, f.Path)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return err
	}

	if p.thumbnails != nil {
		if err := p.thumbnails.GenerateThumbnails(ctx, fileID, p.sizes); err != nil {
			p.logger.Error("thumbnail generation failed", "error", err, "file_id", fileID)
		}
		if p.indexer != nil && f.CHash != "" && len(p.sizes) > 0 {
			largest := p.sizes[0]
			for _, s := range p.sizes {
				if s > largest {
					largest = s
				}
			}
			go func() {
				path := storagePath(f.CHash, largest, "jpg")
				if err := p.indexer.IndexThumbnail(context.Background(), f.ID, path); err != nil {
					p.logger.Error("indexer hand-off failed", "error", err, "file_id", fileID)
				}
			}()
		}
	}

	if mediatype.IsImage(f.MediaType) {
		if img, err := imaging.Decode(bytes.NewReader(data)); err == nil {
			indexPathScope(p.fingerprints, f.ID, f.NSPath, f.Path)
			if err := p.fingerprints.Save(ctx, types.Fingerprint{FileID: f.ID, Value: dhash.Compute(img)}); err != nil {
				p.logger.Error("fingerprint save failed", "error", err, "file_id", fileID)
			}
		}
	}

	if cm, ok := extractMetadata(f.MediaType, data); ok {
		cm.FileID = f.ID
		if err := p.contentMeta.Save(ctx, cm); err != nil {
			p.logger.Error("metadata save failed", "error", err, "file_id", fileID)
		}
	}
	return nil
}

// ProcessAsync enqueues Process on the worker.
func (p *Pipeline) ProcessAsync(ctx context.Context, fileID string) error {
	_, err := p.worker.Enqueue(ctx, worker.JobProcessFileContent, fileID)
	return err
}

// GenerateThumbnails (re)generates every configured thumbnail size for
// file_id, without recomputing its fingerprint or metadata. Used by the
// generate_file_thumbnails job, which exists independently of
// process_file_content so a thumbnail-size change can be rolled out
// without a full content reindex.
func (p *Pipeline) GenerateThumbnails(ctx context.Context, fileID string) error {
	if p.thumbnails == nil {
		return nil
	}
	return p.thumbnails.GenerateThumbnails(ctx, fileID, p.sizes)
}

// ReindexContents rebuilds fingerprints and content metadata for every
// non-folder file under nsPath from blob ground truth.
func (p *Pipeline) ReindexContents(ctx context.Context, nsPath string) error {
	all, err := p.files.ListFiles(ctx, nsPath, nil, nil, 0, 0)
	if err != nil {
		return err
	}

	var files []types.File
	for _, f := range all {
		if !f.IsFolder() {
			files = append(files, f)
		}
	}

	for start := 0; start < len(files); start += reindexChunkSize {
		end := start + reindexChunkSize
		if end > len(files) {
			end = len(files)
		}
		if err := p.reindexBatch(ctx, files[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// reindexBatch opens a chash tracker scope for one chunk and fans per-file
// work out across a bounded task group. The chunk's fingerprints are
// collected and stored with one SaveBatch call; content metadata is saved
// per file as it is extracted.
func (p *Pipeline) reindexBatch(ctx context.Context, batch []types.File) error {
	chashBatch := p.core.BeginCHashBatch()

	var mu sync.Mutex
	var fps []types.Fingerprint

	grp := pool.New().WithMaxGoroutines(p.concurrency)
	for _, f := range batch {
		f := f
		grp.Go(func() {
			if err := p.reindexOne(ctx, f, chashBatch, &mu, &fps); err != nil {
				p.logger.Error("reindex content failed", "error", err, "file_id", f.ID, "path", f.Path)
			}
		})
	}
	grp.Wait()

	if err := chashBatch.Commit(ctx); err != nil {
		return err
	}
	if len(fps) > 0 {
		return p.fingerprints.SaveBatch(ctx, fps)
	}
	return nil
}

func (p *Pipeline) reindexOne(ctx context.Context, f types.File, chashBatch *filecore.CHashBatch, mu *sync.Mutex, fps *[]types.Fingerprint) error {
	rc, err := p.objects.Download(ctx, f.NSPath, f.Path)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return err
	}

	if err := chashBatch.Add(ctx, f.ID, bytes.NewReader(data)); err != nil {
		return err
	}

	if mediatype.IsImage(f.MediaType) {
		if img, err := imaging.Decode(bytes.NewReader(data)); err == nil {
			indexPathScope(p.fingerprints, f.ID, f.NSPath, f.Path)
			mu.Lock()
			*fps = append(*fps, types.Fingerprint{FileID: f.ID, Value: dhash.Compute(img)})
			mu.Unlock()
		}
	}

	if cm, ok := extractMetadata(f.MediaType, data); ok {
		cm.FileID = f.ID
		if err := p.contentMeta.Save(ctx, cm); err != nil {
			return err
		}
	}
	return nil
}
