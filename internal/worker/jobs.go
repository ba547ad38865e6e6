package worker

import (
	"context"
	"fmt"

	"github.com/shelfcloud/core/pkg/types"
)

// ContentProcessor is the subset of content.Pipeline the job catalogue
// dispatches into.
type ContentProcessor interface {
	Process(ctx context.Context, fileID string) error
	GenerateThumbnails(ctx context.Context, fileID string) error
}

// PendingDeletionProcessor is the subset of filecore.Core the pending-
// deletion sweep job dispatches into.
type PendingDeletionProcessor interface {
	ProcessFilePendingDeletion(ctx context.Context, records []types.FilePendingDeletion) ([]types.FilePendingDeletion, error)
	DeleteBatch(ctx context.Context, nsPath string, paths []string) ([]types.File, error)
}

// ItemMover is the subset of namespace.UseCase the move/trash batch jobs
// dispatch into. Each item in a batch is processed independently so one
// bad path doesn't fail the rest: jobs must be idempotent under retry,
// and a batch records a per-item error code rather than aborting.
type ItemMover interface {
	MoveItem(ctx context.Context, ns, atPath, toPath string) (types.File, error)
	MoveItemToTrash(ctx context.Context, ns, path string) (types.File, error)
	EmptyTrash(ctx context.Context, ns string) error
}

// MoveBatchArgs is JobMoveBatch's argument shape: every (at, to) pair
// moves within the same namespace.
type MoveBatchArgs struct {
	NSPath string
	Moves  []MoveArgs
}

// MoveArgs is a single move within a MoveBatchArgs request.
type MoveArgs struct {
	At string
	To string
}

// MoveToTrashBatchArgs is JobMoveToTrashBatch's argument shape.
type MoveToTrashBatchArgs struct {
	NSPath string
	Paths  []string
}

// DeleteImmediatelyBatchArgs is JobDeleteImmediatelyBatch's argument shape.
type DeleteImmediatelyBatchArgs struct {
	NSPath string
	Paths  []string
}

// RegisterJobs binds every job name in the catalogue to its handler.
// content and pendingDeletions may be the same underlying
// *content.Pipeline / *filecore.Core the rest of the application uses;
// mover is typically *namespace.UseCase. The empty_trash job's args are
// the ns path EmptyTrash acts on.
func RegisterJobs(p *Pool, content ContentProcessor, pendingDeletions PendingDeletionProcessor, mover ItemMover) {
	p.Register(JobProcessFileContent, func(ctx context.Context, args any) (any, error) {
		fileID, ok := args.(string)
		if !ok {
			return nil, fmt.Errorf("process_file_content: unexpected args type %T", args)
		}
		return nil, content.Process(ctx, fileID)
	})

	p.Register(JobGenerateFileThumbnails, func(ctx context.Context, args any) (any, error) {
		fileID, ok := args.(string)
		if !ok {
			return nil, fmt.Errorf("generate_file_thumbnails: unexpected args type %T", args)
		}
		return nil, content.GenerateThumbnails(ctx, fileID)
	})

	p.Register(JobProcessFilePendingDeletion, func(ctx context.Context, args any) (any, error) {
		records, ok := args.([]types.FilePendingDeletion)
		if !ok {
			return nil, fmt.Errorf("process_file_pending_deletion: unexpected args type %T", args)
		}
		return pendingDeletions.ProcessFilePendingDeletion(ctx, records)
	})

	p.Register(JobDeleteImmediatelyBatch, func(ctx context.Context, args any) (any, error) {
		a, ok := args.(DeleteImmediatelyBatchArgs)
		if !ok {
			return nil, fmt.Errorf("delete_immediately_batch: unexpected args type %T", args)
		}
		return pendingDeletions.DeleteBatch(ctx, a.NSPath, a.Paths)
	})

	p.Register(JobEmptyTrash, func(ctx context.Context, args any) (any, error) {
		ns, ok := args.(string)
		if !ok {
			return nil, fmt.Errorf("empty_trash: unexpected args type %T", args)
		}
		return nil, mover.EmptyTrash(ctx, ns)
	})

	p.Register(JobMoveBatch, func(ctx context.Context, args any) (any, error) {
		a, ok := args.(MoveBatchArgs)
		if !ok {
			return nil, fmt.Errorf("move_batch: unexpected args type %T", args)
		}
		results := make([]ItemResult, len(a.Moves))
		for i, m := range a.Moves {
			f, err := mover.MoveItem(ctx, a.NSPath, m.At, m.To)
			if err != nil {
				results[i] = ItemResult{ErrCode: ExcToErrCode(err)}
				continue
			}
			results[i] = ItemResult{Value: f}
		}
		return results, nil
	})

	p.Register(JobMoveToTrashBatch, func(ctx context.Context, args any) (any, error) {
		a, ok := args.(MoveToTrashBatchArgs)
		if !ok {
			return nil, fmt.Errorf("move_to_trash_batch: unexpected args type %T", args)
		}
		results := make([]ItemResult, len(a.Paths))
		for i, p := range a.Paths {
			f, err := mover.MoveItemToTrash(ctx, a.NSPath, p)
			if err != nil {
				results[i] = ItemResult{ErrCode: ExcToErrCode(err)}
				continue
			}
			results[i] = ItemResult{Value: f}
		}
		return results, nil
	})
}
