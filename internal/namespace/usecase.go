// Package namespace implements the policy layer wrapping FileService and
// the content pipeline: upload limits, storage quotas, trash placement,
// and audit trail recording.
package namespace

import (
	"context"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shelfcloud/core/internal/content"
	"github.com/shelfcloud/core/internal/fileservice"
	shelferrors "github.com/shelfcloud/core/pkg/errors"
	"github.com/shelfcloud/core/pkg/path"
	"github.com/shelfcloud/core/pkg/types"
)

const trashFolder = "Trash"

// UseCase wraps FileService, the content pipeline and account lookups
// with the namespace-level policy rules: quotas, trash, audit trail.
type UseCase struct {
	files       *fileservice.Service
	pipeline    *content.Pipeline
	dedup       *content.Dedup
	accounts    types.AccountRepository
	namespaces  types.NamespaceRepository
	audit       types.AuditTrailRecorder
	maxUpload   int64
	maxDistance int
}

// New builds a UseCase. maxUploadSize is in bytes; maxDistance bounds
// near-duplicate grouping (typically 5).
func New(
	files *fileservice.Service,
	pipeline *content.Pipeline,
	dedup *content.Dedup,
	accounts types.AccountRepository,
	namespaces types.NamespaceRepository,
	audit types.AuditTrailRecorder,
	maxUploadSize int64,
	maxDistance int,
) *UseCase {
	return &UseCase{
		files: files, pipeline: pipeline, dedup: dedup,
		accounts: accounts, namespaces: namespaces, audit: audit,
		maxUpload: maxUploadSize, maxDistance: maxDistance,
	}
}

func isTrashPath(p string) bool {
	head := p
	if idx := strings.IndexByte(p, '/'); idx >= 0 {
		head = p[:idx]
	}
	return strings.EqualFold(head, trashFolder)
}

// AddFile creates a file at ns/path from content, enforcing the
// upload-size limit and the owner's storage quota before accepting it,
// then kicks off content processing and records an audit trail entry.
func (u *UseCase) AddFile(ctx context.Context, ns, p string, r io.Reader, size int64) (types.File, error) {
	if isTrashPath(p) {
		return types.File{}, shelferrors.New(shelferrors.CodeMalformedPath, "cannot upload into Trash")
	}
	if u.maxUpload > 0 && size > u.maxUpload {
		return types.File{}, shelferrors.New(shelferrors.CodeTooLarge, "file exceeds the maximum upload size")
	}

	nsRow, err := u.namespaces.GetByPath(ctx, ns)
	if err != nil {
		return types.File{}, err
	}
	account, err := u.accounts.GetByUserID(ctx, nsRow.OwnerID)
	if err != nil {
		return types.File{}, err
	}
	if account.Quota != nil {
		spaceUsed, err := u.accounts.GetSpaceUsedByOwnerID(ctx, nsRow.OwnerID)
		if err != nil {
			return types.File{}, err
		}
		if spaceUsed+size > *account.Quota {
			return types.File{}, shelferrors.New(shelferrors.CodeStorageQuotaExceeded, "storage quota exceeded")
		}
	}

	f, err := u.files.CreateFile(ctx, ns, p, r)
	if err != nil {
		return types.File{}, err
	}

	if err := u.pipeline.ProcessAsync(ctx, f.ID); err != nil {
		return types.File{}, err
	}

	if u.audit != nil {
		_ = u.audit.Record(ctx, types.AuditTrail{NSPath: ns, Path: f.Path, UserID: nsRow.OwnerID, Action: types.AuditFileAdded, At: now()})
	}
	return f, nil
}

// CreateFolder creates a folder at ns/path.
func (u *UseCase) CreateFolder(ctx context.Context, ns, p string) (types.File, error) {
	return u.files.CreateFolder(ctx, ns, p)
}

// DeleteItem deletes ns/path, refusing to delete the namespace root or
// the Trash folder itself.
func (u *UseCase) DeleteItem(ctx context.Context, ns, p string) (types.File, error) {
	pp := path.New(p)
	if pp.IsRoot() || strings.EqualFold(pp.String(), trashFolder) {
		panic("can't delete Home or Trash folder")
	}
	f, err := u.files.Delete(ctx, ns, p)
	if err != nil {
		return types.File{}, err
	}
	if u.audit != nil {
		_ = u.audit.Record(ctx, types.AuditTrail{NSPath: ns, Path: f.Path, Action: types.AuditFileDeleted, At: now()})
	}
	return f, nil
}

// Download streams ns/path's content.
func (u *UseCase) Download(ctx context.Context, ns, p string) (io.ReadCloser, error) {
	return u.files.Download(ctx, ns, p)
}

// DownloadDir streams ns/path as an archive.
func (u *UseCase) DownloadDir(ctx context.Context, ns, p string) (io.ReadCloser, error) {
	return u.files.DownloadDir(ctx, ns, p)
}

// EmptyTrash deletes every item under the Trash folder.
func (u *UseCase) EmptyTrash(ctx context.Context, ns string) error {
	return u.files.EmptyFolder(ctx, ns, trashFolder)
}

// FindDuplicates groups near-duplicate images under ns/path and hydrates
// each group's File rows, sorted by ID for deterministic output.
func (u *UseCase) FindDuplicates(ctx context.Context, ns, p string) ([][]types.File, error) {
	groups, err := u.dedup.FindInFolder(ctx, ns, p, u.maxDistance)
	if err != nil {
		return nil, err
	}

	var result [][]types.File
	for _, group := range groups {
		ids := make([]string, len(group))
		for i, fp := range group {
			ids[i] = fp.FileID
		}
		sort.Strings(ids)

		files := make([]types.File, 0, len(ids))
		for _, id := range ids {
			f, err := u.files.GetByID(ctx, id)
			if err != nil {
				continue
			}
			files = append(files, f)
		}
		if len(files) > 0 {
			result = append(result, files)
		}
	}
	return result, nil
}

// GetItemAtPath resolves ns/path to its file view.
func (u *UseCase) GetItemAtPath(ctx context.Context, ns, p string) (types.FileView, error) {
	return u.files.GetAtPath(ctx, ns, p)
}

// ListFolder lists ns/path's children.
func (u *UseCase) ListFolder(ctx context.Context, ns, p string) ([]types.FileView, error) {
	return u.files.ListFolder(ctx, ns, p)
}

// MoveItem moves a file or folder, forbidding moves of the namespace root
// or Trash.
func (u *UseCase) MoveItem(ctx context.Context, ns, atPath, toPath string) (types.File, error) {
	pp := path.New(atPath)
	if pp.IsRoot() || strings.EqualFold(pp.String(), trashFolder) {
		panic("can't move Home or Trash folder")
	}
	f, err := u.files.Move(ctx, ns, atPath, ns, toPath)
	if err != nil {
		return types.File{}, err
	}
	if u.audit != nil {
		_ = u.audit.Record(ctx, types.AuditTrail{NSPath: ns, Path: f.Path, Action: types.AuditFileMoved, At: now()})
	}
	return f, nil
}

// MoveItemToTrash moves ns/path into Trash, appending a microsecond-
// precision suffix to the name if an item with the same name is already
// there.
func (u *UseCase) MoveItemToTrash(ctx context.Context, ns, p string) (types.File, error) {
	src := path.New(p)
	target := path.New(trashFolder).Join(src.Name())

	exists, err := u.existsAtPath(ctx, ns, target.String())
	if err != nil {
		return types.File{}, err
	}
	if exists {
		suffix := strings.Replace(now().Format("150405.000000"), ".", "", 1)
		target = path.New(trashFolder).Join(withSuffix(src.Name(), suffix))
	}

	f, err := u.files.Move(ctx, ns, p, ns, target.String())
	if err != nil {
		return types.File{}, err
	}
	if u.audit != nil {
		_ = u.audit.Record(ctx, types.AuditTrail{NSPath: ns, Path: f.Path, Action: types.AuditFileMoved, At: now()})
	}
	return f, nil
}

func withSuffix(name, suffix string) string {
	stem := name
	ext := ""
	if idx := strings.LastIndexByte(name, '.'); idx > 0 {
		stem, ext = name[:idx], name[idx:]
	}
	return stem + " " + suffix + ext
}

func (u *UseCase) existsAtPath(ctx context.Context, ns, p string) (bool, error) {
	_, err := u.files.GetAtPath(ctx, ns, p)
	if err != nil {
		if shelferrors.As(err, shelferrors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Reindex rebuilds ns's file tree from blob ground truth, tolerating the
// Trash folder already existing.
func (u *UseCase) Reindex(ctx context.Context, ns string) error {
	if _, err := u.namespaces.GetByPath(ctx, ns); err != nil {
		return err
	}
	if err := u.files.Reindex(ctx, ns, "."); err != nil {
		return err
	}
	if _, err := u.files.CreateFolder(ctx, ns, trashFolder); err != nil && !shelferrors.As(err, shelferrors.CodeAlreadyExists) {
		return err
	}
	return nil
}

// ReindexContents re-extracts content fingerprints and metadata for every
// file under ns, without touching the file tree itself.
func (u *UseCase) ReindexContents(ctx context.Context, ns string) error {
	return u.pipeline.ReindexContents(ctx, ns)
}

func now() time.Time { return time.Now() }
