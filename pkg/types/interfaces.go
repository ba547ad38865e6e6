package types

import (
	"context"
	"io"
	"regexp"
	"time"
)

// ObjectStore is the blob I/O contract. Two implementations exist: a
// local filesystem store and an S3-style store.
type ObjectStore interface {
	Save(ctx context.Context, nsPath, filePath string, content io.Reader) (SaveResult, error)
	Download(ctx context.Context, nsPath, filePath string) (io.ReadCloser, error)
	DownloadDir(ctx context.Context, nsPath, dirPath string) (io.ReadCloser, error)
	Move(ctx context.Context, fromNS, fromPath, toNS, toPath string) error
	MoveDir(ctx context.Context, fromNS, fromPath, toNS, toPath string) error
	Delete(ctx context.Context, nsPath, filePath string) error
	DeleteDir(ctx context.Context, nsPath, dirPath string) error
	EmptyDir(ctx context.Context, nsPath, dirPath string) error
	MakeDirs(ctx context.Context, nsPath, dirPath string) error
	Exists(ctx context.Context, nsPath, filePath string) (bool, error)
	IterDir(ctx context.Context, nsPath, dirPath string) (DirIterator, error)
}

// SaveResult carries the size the object store recorded for a blob.
type SaveResult struct {
	Size int64
}

// DirEntry is one entry yielded by IterDir.
type DirEntry struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// DirIterator streams directory entries one at a time so a caller can stop
// early without paying for the whole listing.
type DirIterator interface {
	Next() bool
	Entry() DirEntry
	Err() error
	Close() error
}

// PathDelta is one (path, signed size delta) pair for IncrSize.
type PathDelta struct {
	Path  string
	Delta int64
}

// NSPathRef addresses a path within a specific namespace, used by
// cross-namespace bulk operations (ReplacePathPrefix,
// DeleteAllWithPrefixBatch).
type NSPathRef struct {
	NSPath string
	Path   string
}

// FileUpdate is a partial update for FileRepository.Update; nil fields are
// left unchanged.
type FileUpdate struct {
	NSPath *string
	Name   *string
	Path   *string
	CHash  *string
	Size   *int64
}

// CHashUpdate is one (file, chash) pair for SetCHashBatch.
type CHashUpdate struct {
	FileID string
	CHash  string
}

// FileRepository is the metadata-only contract. Every path comparison is
// case-insensitive.
type FileRepository interface {
	Save(ctx context.Context, f File) (File, error)
	SaveBatch(ctx context.Context, files []File) ([]File, error)

	GetByPath(ctx context.Context, nsPath, filePath string) (File, error)
	GetByPathBatch(ctx context.Context, nsPath string, paths []string) ([]File, error)
	GetByID(ctx context.Context, id string) (File, error)
	GetByIDBatch(ctx context.Context, ids []string) ([]File, error)
	GetByCHashBatch(ctx context.Context, chashes []string) ([]File, error)

	ExistsAtPath(ctx context.Context, nsPath, filePath string) (bool, error)
	ExistsWithID(ctx context.Context, id string) (bool, error)

	IncrSize(ctx context.Context, nsPath string, deltas []PathDelta) error
	IncrSizeBatch(ctx context.Context, nsPath string, paths []string, delta int64) error

	CountByPathPattern(ctx context.Context, nsPath string, pattern *regexp.Regexp) (int, error)

	Delete(ctx context.Context, nsPath, filePath string) (File, error)
	DeleteBatch(ctx context.Context, nsPath string, paths []string) ([]File, error)
	DeleteAllWithPrefix(ctx context.Context, nsPath, prefix string) ([]File, error)
	DeleteAllWithPrefixBatch(ctx context.Context, targets []NSPathRef) ([]File, error)

	ReplacePathPrefix(ctx context.Context, from NSPathRef, to NSPathRef) error
	Update(ctx context.Context, id string, patch FileUpdate) (File, error)

	ListFiles(ctx context.Context, nsPath string, included, excluded []string, offset, limit int) ([]File, error)
	ListWithPrefix(ctx context.Context, nsPath, prefix string) ([]File, error)

	SetCHashBatch(ctx context.Context, updates []CHashUpdate) error
}

// MountRepository persists mount rows.
type MountRepository interface {
	GetClosest(ctx context.Context, nsPath, displayPath string) (*MountPoint, error)
	GetClosestBySource(ctx context.Context, sourceNS, sourcePath, targetNS string) (*MountPoint, error)
	ListAll(ctx context.Context, nsPath string) ([]MountPoint, error)
	Save(ctx context.Context, mp MountPoint) (MountPoint, error)
	Update(ctx context.Context, id string, folder PathRef, displayName string) (MountPoint, error)
	CountByNamePattern(ctx context.Context, nsPath, folderPath string, pattern *regexp.Regexp) (int, error)
}

// FingerprintRepository stores perceptual hashes and answers adjacency
// queries for near-duplicate grouping.
type FingerprintRepository interface {
	Save(ctx context.Context, fp Fingerprint) error
	SaveBatch(ctx context.Context, fps []Fingerprint) error
	GetByFileID(ctx context.Context, fileID string) (Fingerprint, error)
	// IntersectAllWithPrefix returns, for every file under prefix that has a
	// fingerprint, the set of other file IDs under the same prefix sharing
	// at least one 16-bit part.
	IntersectAllWithPrefix(ctx context.Context, nsPath, prefix string) (map[string][]string, error)
}

// ContentMetadataRepository stores EXIF-style structured content data.
type ContentMetadataRepository interface {
	Save(ctx context.Context, cm ContentMetadata) error
	GetByFileID(ctx context.Context, fileID string) (ContentMetadata, error)
	Delete(ctx context.Context, fileID string) error
}

// FilePendingDeletionRepository is the durable queue FileCore.DeleteBatch
// writes to and the worker drains.
type FilePendingDeletionRepository interface {
	Save(ctx context.Context, fpd FilePendingDeletion) error
	SaveBatch(ctx context.Context, fpds []FilePendingDeletion) error
	ListPending(ctx context.Context, limit int) ([]FilePendingDeletion, error)
	DeleteBatch(ctx context.Context, ids []string) error
}

// AccountRepository answers quota and usage questions for NamespaceUseCase.
type AccountRepository interface {
	GetByUserID(ctx context.Context, userID string) (Account, error)
	GetSpaceUsedByOwnerID(ctx context.Context, ownerID string) (int64, error)
}

// NamespaceRepository persists namespaces.
type NamespaceRepository interface {
	Save(ctx context.Context, ns Namespace) (Namespace, error)
	GetByPath(ctx context.Context, nsPath string) (Namespace, error)
	GetByOwnerID(ctx context.Context, ownerID string) (Namespace, error)
}

// FileMemberRepository persists per-file sharing grants.
type FileMemberRepository interface {
	Save(ctx context.Context, fm FileMember) (FileMember, error)
	GetByFileID(ctx context.Context, fileID string) ([]FileMember, error)
	Get(ctx context.Context, fileID, userID string) (*FileMember, error)
	Delete(ctx context.Context, fileID, userID string) error
}

// SharedLinkRepository persists anonymous share tokens.
type SharedLinkRepository interface {
	Save(ctx context.Context, sl SharedLink) (SharedLink, error)
	GetByFileID(ctx context.Context, fileID string) (*SharedLink, error)
	GetByToken(ctx context.Context, token string) (*SharedLink, error)
	Delete(ctx context.Context, token string) error
}

// AuditTrailRecorder is the external collaborator NamespaceUseCase reports
// lifecycle events to; its actual storage/reporting surface lives outside
// this module, so only the call contract is modeled here.
type AuditTrailRecorder interface {
	Record(ctx context.Context, entry AuditTrail) error
}

// JobStatus is the lifecycle state of an enqueued Worker job.
type JobStatus string

const (
	JobPending  JobStatus = "pending"
	JobRunning  JobStatus = "running"
	JobComplete JobStatus = "complete"
	JobFailed   JobStatus = "failed"
)

// Job is the handle returned by Worker.Enqueue.
type Job struct {
	ID   string
	Name string
}

// Worker is the background job contract. Jobs must be idempotent under
// retry.
type Worker interface {
	Enqueue(ctx context.Context, name string, args any) (Job, error)
	GetStatus(ctx context.Context, jobID string) (JobStatus, error)
	GetResult(ctx context.Context, jobID string) (any, error)
}

// Cache is the shared key-value store: rate limits, OTP gating, thumbnail
// generation locks and ephemeral sessions all go through this one
// contract.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX sets the key only if absent (SET NX), returning false if it was
	// already present.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Lock acquires a named lock that auto-expires after expire. If wait is
	// true and the lock is held, Lock blocks (bounded by ctx) until it is
	// free; otherwise it returns ok=false immediately. The returned release
	// func is safe to call multiple times.
	Lock(ctx context.Context, key string, expire time.Duration, wait bool) (release func(), ok bool, err error)
	// RateLimit reports whether one more event is allowed under limit
	// events per period for key, bumping the counter if so.
	RateLimit(ctx context.Context, key string, limit int, period time.Duration) (allowed bool, err error)
}
