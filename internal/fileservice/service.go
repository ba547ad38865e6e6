// Package fileservice implements the mount-aware facade over FileCore: it
// resolves a display path to its real location, delegates to FileCore,
// and rewrites the result back into the caller's display namespace.
package fileservice

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/shelfcloud/core/internal/filecore"
	"github.com/shelfcloud/core/internal/mount"
	"github.com/shelfcloud/core/pkg/mediatype"
	"github.com/shelfcloud/core/pkg/path"
	"github.com/shelfcloud/core/pkg/types"
)

// ThumbnailProvider is the content package's Thumbnail operation,
// injected rather than imported directly to avoid a fileservice <->
// content import cycle (content depends on filecore for downloads).
type ThumbnailProvider interface {
	Thumbnail(ctx context.Context, fileID, chash string, size int) (io.ReadCloser, error)
}

// Service is the mount-aware facade wrapping FileCore.
type Service struct {
	core      *filecore.Core
	mounts    types.MountRepository
	resolver  *mount.Resolver
	mountSvc  *mount.Service
	thumbnail ThumbnailProvider
}

// New builds a Service. thumbnail may be nil if the caller never invokes
// Thumbnail (e.g. a test that only exercises file CRUD).
func New(core *filecore.Core, mounts types.MountRepository, thumbnail ThumbnailProvider) *Service {
	return &Service{
		core:      core,
		mounts:    mounts,
		resolver:  mount.NewResolver(mounts),
		mountSvc:  mount.NewService(mounts),
		thumbnail: thumbnail,
	}
}

// rewriteView converts a real File row fetched at resolved's location into
// the display-path view a caller addressing ns/reqPath should see.
func rewriteView(f types.File, ns string, reqPath path.Path, resolved types.ResolvedPath) types.FileView {
	if !resolved.IsMountPoint() {
		return types.FileView{File: f}
	}
	suffix := f.Path[len(resolved.Path):]
	cp := f
	cp.NSPath = ns
	cp.Path = path.New(reqPath.String() + suffix).String()
	return types.FileView{File: cp, MountPoint: resolved.MountPoint}
}

// ListFolder lists ns/p's direct children, rewriting any real files
// reached through a mount boundary into their display-path view, and
// synthesizing an entry for every mount point anchored directly at this
// folder (implemented here rather than in FileRepository so the
// repository stays mount-agnostic).
func (s *Service) ListFolder(ctx context.Context, ns, p string) ([]types.FileView, error) {
	resolved, err := s.resolver.ResolvePath(ctx, ns, p)
	if err != nil {
		return nil, err
	}
	reqPath := path.New(p)

	files, err := s.core.ListFolder(ctx, resolved.NSPath, resolved.Path)
	if err != nil {
		return nil, err
	}

	views := make([]types.FileView, 0, len(files))
	for _, f := range files {
		views = append(views, rewriteView(f, ns, reqPath, resolved))
	}

	anchored, err := s.mounts.ListAll(ctx, resolved.NSPath)
	if err != nil {
		return nil, err
	}
	for _, mp := range anchored {
		if !strings.EqualFold(mp.Folder.Path, resolved.Path) {
			continue
		}
		srcFile, err := s.core.GetByPath(ctx, mp.Source.NSPath, mp.Source.Path)
		if err != nil {
			continue // source vanished; present nothing rather than error the whole listing
		}
		mpCopy := mp
		views = append(views, types.FileView{
			File: types.File{
				ID:         srcFile.ID,
				NSPath:     ns,
				Name:       mp.DisplayName,
				Path:       reqPath.Join(mp.DisplayName).String(),
				Size:       srcFile.Size,
				MediaType:  mediatype.Folder,
				ModifiedAt: srcFile.ModifiedAt,
			},
			MountPoint: &mpCopy,
		})
	}

	sort.Slice(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if a.IsFolder() != b.IsFolder() {
			return a.IsFolder()
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
	return views, nil
}

// GetAtPath returns the display-view of ns/p, resolving mount boundaries.
func (s *Service) GetAtPath(ctx context.Context, ns, p string) (types.FileView, error) {
	resolved, err := s.resolver.ResolvePath(ctx, ns, p)
	if err != nil {
		return types.FileView{}, err
	}
	f, err := s.core.GetByPath(ctx, resolved.NSPath, resolved.Path)
	if err != nil {
		return types.FileView{}, err
	}
	return rewriteView(f, ns, path.New(p), resolved), nil
}

// GetByID returns the plain row for id; IDs are already real (mount
// rewriting only concerns paths, not the identity of the underlying row).
func (s *Service) GetByID(ctx context.Context, id string) (types.File, error) {
	return s.core.GetByID(ctx, id)
}

// Move resolves both endpoints and delegates to FileCore.Move.
func (s *Service) Move(ctx context.Context, atNS, atPath, toNS, toPath string) (types.File, error) {
	from, err := s.resolver.ResolvePath(ctx, atNS, atPath)
	if err != nil {
		return types.File{}, err
	}
	to, err := s.resolver.ResolvePath(ctx, toNS, toPath)
	if err != nil {
		return types.File{}, err
	}
	return s.core.Move(ctx, from.NSPath, from.Path, to.NSPath, to.Path)
}

// Delete resolves ns/p and delegates to FileCore.Delete.
func (s *Service) Delete(ctx context.Context, ns, p string) (types.File, error) {
	resolved, err := s.resolver.ResolvePath(ctx, ns, p)
	if err != nil {
		return types.File{}, err
	}
	return s.core.Delete(ctx, resolved.NSPath, resolved.Path)
}

// Download resolves ns/p and streams its blob.
func (s *Service) Download(ctx context.Context, ns, p string) (io.ReadCloser, error) {
	resolved, err := s.resolver.ResolvePath(ctx, ns, p)
	if err != nil {
		return nil, err
	}
	return s.core.Download(ctx, resolved.NSPath, resolved.Path)
}

// DownloadDir resolves ns/p and streams a zip of its subtree.
func (s *Service) DownloadDir(ctx context.Context, ns, p string) (io.ReadCloser, error) {
	resolved, err := s.resolver.ResolvePath(ctx, ns, p)
	if err != nil {
		return nil, err
	}
	return s.core.DownloadDir(ctx, resolved.NSPath, resolved.Path)
}

// Thumbnail resolves ns/p to a file ID/chash and delegates to the content
// package's thumbnail generator.
func (s *Service) Thumbnail(ctx context.Context, ns, p string, size int) (io.ReadCloser, error) {
	view, err := s.GetAtPath(ctx, ns, p)
	if err != nil {
		return nil, err
	}
	return s.thumbnail.Thumbnail(ctx, view.ID, view.CHash, size)
}

// Mount places a new mount point exposing source under folder as
// displayName, delegating to mount.Service's cycle-safe placement.
func (s *Service) Mount(ctx context.Context, source, folder types.PathRef, displayName string, perms types.Permission) (types.MountPoint, error) {
	return s.mountSvc.Create(ctx, source, folder, displayName, perms)
}

// CreateFile resolves ns/p through the mount table and delegates to
// FileCore.CreateFile, which creates any missing parent folders.
func (s *Service) CreateFile(ctx context.Context, ns, p string, content io.Reader) (types.File, error) {
	resolved, err := s.resolver.ResolvePath(ctx, ns, p)
	if err != nil {
		return types.File{}, err
	}
	return s.core.CreateFile(ctx, resolved.NSPath, resolved.Path, content)
}

// CreateFolder resolves ns/p and delegates to FileCore.CreateFolder.
func (s *Service) CreateFolder(ctx context.Context, ns, p string) (types.File, error) {
	resolved, err := s.resolver.ResolvePath(ctx, ns, p)
	if err != nil {
		return types.File{}, err
	}
	return s.core.CreateFolder(ctx, resolved.NSPath, resolved.Path)
}

// EmptyFolder resolves ns/p and delegates to FileCore.EmptyFolder.
func (s *Service) EmptyFolder(ctx context.Context, ns, p string) error {
	resolved, err := s.resolver.ResolvePath(ctx, ns, p)
	if err != nil {
		return err
	}
	return s.core.EmptyFolder(ctx, resolved.NSPath, resolved.Path)
}

// Reindex resolves ns/p and delegates to FileCore.Reindex.
func (s *Service) Reindex(ctx context.Context, ns, p string) error {
	resolved, err := s.resolver.ResolvePath(ctx, ns, p)
	if err != nil {
		return err
	}
	return s.core.Reindex(ctx, resolved.NSPath, resolved.Path)
}
