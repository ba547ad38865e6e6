package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shelferrors "github.com/shelfcloud/core/pkg/errors"
	"github.com/shelfcloud/core/pkg/types"
)

type fakeContent struct {
	processed   []string
	thumbnailed []string
	failID      string
}

func (f *fakeContent) Process(ctx context.Context, fileID string) error {
	if fileID == f.failID {
		return shelferrors.New(shelferrors.CodeInternalError, "boom")
	}
	f.processed = append(f.processed, fileID)
	return nil
}

func (f *fakeContent) GenerateThumbnails(ctx context.Context, fileID string) error {
	f.thumbnailed = append(f.thumbnailed, fileID)
	return nil
}

type fakePendingDeletions struct {
	swept   []types.FilePendingDeletion
	deleted []string
}

func (f *fakePendingDeletions) ProcessFilePendingDeletion(ctx context.Context, records []types.FilePendingDeletion) ([]types.FilePendingDeletion, error) {
	f.swept = append(f.swept, records...)
	return records, nil
}

func (f *fakePendingDeletions) DeleteBatch(ctx context.Context, nsPath string, paths []string) ([]types.File, error) {
	f.deleted = append(f.deleted, paths...)
	files := make([]types.File, len(paths))
	for i, p := range paths {
		files[i] = types.File{NSPath: nsPath, Path: p}
	}
	return files, nil
}

type fakeMover struct {
	emptiedNS string
	failPath  string
}

func (f *fakeMover) MoveItem(ctx context.Context, ns, atPath, toPath string) (types.File, error) {
	if atPath == f.failPath {
		return types.File{}, shelferrors.New(shelferrors.CodeNotFound, "missing")
	}
	return types.File{NSPath: ns, Path: toPath}, nil
}

func (f *fakeMover) MoveItemToTrash(ctx context.Context, ns, p string) (types.File, error) {
	if p == f.failPath {
		return types.File{}, shelferrors.New(shelferrors.CodeNotFound, "missing")
	}
	return types.File{NSPath: ns, Path: "Trash/" + p}, nil
}

func (f *fakeMover) EmptyTrash(ctx context.Context, ns string) error {
	f.emptiedNS = ns
	return nil
}

func newTestPool(t *testing.T) (*Pool, *fakeContent, *fakePendingDeletions, *fakeMover) {
	t.Helper()
	p := New(2, nil)
	content := &fakeContent{}
	pending := &fakePendingDeletions{}
	mover := &fakeMover{}
	RegisterJobs(p, content, pending, mover)
	return p, content, pending, mover
}

func TestRegisterJobsCoversEveryCatalogueName(t *testing.T) {
	p, _, _, _ := newTestPool(t)
	for _, name := range []string{
		JobProcessFileContent,
		JobGenerateFileThumbnails,
		JobProcessFilePendingDeletion,
		JobDeleteImmediatelyBatch,
		JobEmptyTrash,
		JobMoveBatch,
		JobMoveToTrashBatch,
	} {
		_, ok := p.handlers[name]
		assert.True(t, ok, "no handler registered for %s", name)
	}
}

func TestJobProcessFileContentDispatches(t *testing.T) {
	p, content, _, _ := newTestPool(t)
	h := p.handlers[JobProcessFileContent]
	_, err := h(context.Background(), "file-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"file-1"}, content.processed)
}

func TestJobProcessFileContentRejectsWrongArgType(t *testing.T) {
	p, _, _, _ := newTestPool(t)
	h := p.handlers[JobProcessFileContent]
	_, err := h(context.Background(), 42)
	assert.Error(t, err)
}

func TestJobGenerateFileThumbnailsDispatches(t *testing.T) {
	p, content, _, _ := newTestPool(t)
	h := p.handlers[JobGenerateFileThumbnails]
	_, err := h(context.Background(), "file-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"file-2"}, content.thumbnailed)
}

func TestJobProcessFilePendingDeletionDispatches(t *testing.T) {
	p, _, pending, _ := newTestPool(t)
	h := p.handlers[JobProcessFilePendingDeletion]
	records := []types.FilePendingDeletion{{ID: "f1"}}
	_, err := h(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, records, pending.swept)
}

func TestJobDeleteImmediatelyBatchDispatches(t *testing.T) {
	p, _, pending, _ := newTestPool(t)
	h := p.handlers[JobDeleteImmediatelyBatch]
	_, err := h(context.Background(), DeleteImmediatelyBatchArgs{NSPath: "admin", Paths: []string{"a.txt", "b.txt"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, pending.deleted)
}

func TestJobEmptyTrashDispatches(t *testing.T) {
	p, _, _, mover := newTestPool(t)
	h := p.handlers[JobEmptyTrash]
	_, err := h(context.Background(), "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", mover.emptiedNS)
}

func TestJobMoveBatchIsolatesPerItemFailures(t *testing.T) {
	p := New(2, nil)
	mover := &fakeMover{failPath: "bad.txt"}
	RegisterJobs(p, &fakeContent{}, &fakePendingDeletions{}, mover)

	h := p.handlers[JobMoveBatch]
	out, err := h(context.Background(), MoveBatchArgs{
		NSPath: "admin",
		Moves: []MoveArgs{
			{At: "good.txt", To: "moved.txt"},
			{At: "bad.txt", To: "elsewhere.txt"},
		},
	})
	require.NoError(t, err, "a bad item must not fail the whole batch")

	results, ok := out.([]ItemResult)
	require.True(t, ok)
	require.Len(t, results, 2)
	assert.Equal(t, shelferrors.Code(""), results[0].ErrCode)
	assert.NotEqual(t, shelferrors.Code(""), results[1].ErrCode)
}

func TestJobMoveToTrashBatchIsolatesPerItemFailures(t *testing.T) {
	p := New(2, nil)
	mover := &fakeMover{failPath: "bad.txt"}
	RegisterJobs(p, &fakeContent{}, &fakePendingDeletions{}, mover)

	h := p.handlers[JobMoveToTrashBatch]
	out, err := h(context.Background(), MoveToTrashBatchArgs{
		NSPath: "admin",
		Paths:  []string{"good.txt", "bad.txt"},
	})
	require.NoError(t, err)

	results, ok := out.([]ItemResult)
	require.True(t, ok)
	require.Len(t, results, 2)
	assert.Equal(t, shelferrors.Code(""), results[0].ErrCode)
	assert.NotEqual(t, shelferrors.Code(""), results[1].ErrCode)
}
