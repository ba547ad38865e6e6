package types

import (
	"time"

	"github.com/shelfcloud/core/pkg/mediatype"
	"github.com/shelfcloud/core/pkg/path"
)

// Namespace is a rooted per-user tree of files, addressed from outside by
// a stable string path.
type Namespace struct {
	ID      string
	Path    string
	OwnerID string
}

// Account holds a user's storage quota. A nil Quota means unlimited.
type Account struct {
	UserID string
	Quota  *int64
}

// File is the metadata row for one path in one namespace.
type File struct {
	ID         string
	NSPath     string
	Name       string
	Path       string
	Size       int64
	CHash      string
	MediaType  string
	ModifiedAt time.Time
}

// IsFolder reports whether the row represents a directory.
func (f File) IsFolder() bool { return f.MediaType == mediatype.Folder }

// PathValue parses f.Path into the case-insensitive Path value type.
func (f File) PathValue() path.Path { return path.New(f.Path) }

// Permission is a single bit in a FileMember/MountPoint permission set.
type Permission uint8

const (
	PermView Permission = 1 << iota
	PermDownload
	PermUpload
	PermMove
	PermDelete
	PermReshare
)

// Has reports whether p grants the given permission.
func (p Permission) Has(x Permission) bool { return p&x != 0 }

// Named permission sets, mirroring the source system's owner/editor/viewer
// access levels.
const (
	ViewerPermissions = PermView | PermDownload
	EditorPermissions = PermView | PermDownload | PermUpload | PermMove | PermDelete
	OwnerPermissions  = PermView | PermDownload | PermUpload | PermMove | PermDelete | PermReshare
)

// FileMember grants a user permissions on a specific file. Owners are
// implicit members with OwnerPermissions and are not necessarily stored as
// a row (AddMember materializes one lazily).
type FileMember struct {
	FileID      string
	UserID      string
	Permissions Permission
}

// PathRef addresses a path inside one namespace.
type PathRef struct {
	NSPath string
	Path   string
}

// MountPoint exposes the subtree at Source inside Folder's namespace, as a
// child of Folder named DisplayName.
type MountPoint struct {
	ID          string
	Source      PathRef
	Folder      PathRef
	DisplayName string
	Permissions Permission
}

// DisplayPath is the path at which the mount appears inside Folder.NSPath.
func (m MountPoint) DisplayPath() path.Path {
	return path.New(m.Folder.Path).Join(m.DisplayName)
}

func (m MountPoint) CanView() bool     { return m.Permissions.Has(PermView) }
func (m MountPoint) CanDownload() bool { return m.Permissions.Has(PermDownload) }
func (m MountPoint) CanReshare() bool  { return m.Permissions.Has(PermReshare) }

// SharedLink is a durable, high-entropy token granting anonymous access to
// one file. At most one live link exists per file.
type SharedLink struct {
	ID        string
	FileID    string
	Token     string
	CreatedAt time.Time
}

// Fingerprint is a file's 64-bit perceptual hash.
type Fingerprint struct {
	FileID string
	Value  uint64
}

// ContentMetadata holds EXIF-style structured fields extracted from a
// file's content (make, model, focal length, ISO, dimensions, ...).
type ContentMetadata struct {
	FileID string
	Data   map[string]any
}

// FilePendingDeletion is a durable record handed to the worker so a
// metadata delete can return before the underlying blobs are purged.
type FilePendingDeletion struct {
	ID        string
	NSPath    string
	Path      string
	CHash     string
	MediaType string
	CreatedAt time.Time
}

// AuditTrailAction names the event NamespaceUseCase records.
type AuditTrailAction string

const (
	AuditFileAdded   AuditTrailAction = "file_added"
	AuditFileDeleted AuditTrailAction = "file_deleted"
	AuditFileMoved   AuditTrailAction = "file_moved"
)

// AuditTrail is one recorded lifecycle event for a file.
type AuditTrail struct {
	ID     string
	NSPath string
	Path   string
	UserID string
	Action AuditTrailAction
	At     time.Time
}

// ResolvedPath is the outcome of MountResolver.ResolvePath: the real
// location a display path maps to, and the mount that did the mapping, if
// any.
type ResolvedPath struct {
	NSPath     string
	Path       string
	MountPoint *MountPoint
}

// IsMountPoint reports whether resolution crossed a mount boundary.
func (r ResolvedPath) IsMountPoint() bool { return r.MountPoint != nil }

// FileView is the read contract shared by plain files and files seen
// through a mount: a tagged variant rather than an inheritance hierarchy.
type FileView struct {
	File
	MountPoint *MountPoint
}

// IsMounted reports whether this view is of a mounted (shared) file.
func (v FileView) IsMounted() bool { return v.MountPoint != nil }
