package mount

import (
	"context"
	"regexp"
	"strings"

	"github.com/shelfcloud/core/pkg/errors"
	"github.com/shelfcloud/core/pkg/path"
	"github.com/shelfcloud/core/pkg/types"
)

// Service places new mount points, the "MountService.Create" collaborator
// sharing.Service.AddMember calls after granting a FileMember.
type Service struct {
	mounts   types.MountRepository
	resolver *Resolver
}

// NewService builds a Service over the given mount repository.
func NewService(mounts types.MountRepository) *Service {
	return &Service{mounts: mounts, resolver: NewResolver(mounts)}
}

// Create places a mount exposing source under folder as displayName,
// resolving a free display name if the requested one is taken and
// rejecting placements that would create a mount cycle (e.g. mount A -> B,
// then B -> A at a different subtree).
func (s *Service) Create(ctx context.Context, source, folder types.PathRef, displayName string, perms types.Permission) (types.MountPoint, error) {
	if strings.EqualFold(source.NSPath, folder.NSPath) {
		return types.MountPoint{}, errors.New(errors.CodeActionNotAllowed, "a mount point cannot target its own source namespace")
	}

	if err := s.checkNoCycle(ctx, source, folder); err != nil {
		return types.MountPoint{}, err
	}

	free, err := GetAvailablePath(ctx, path.New(displayName),
		func(ctx context.Context, p path.Path) (bool, error) {
			existing, err := s.mounts.ListAll(ctx, folder.NSPath)
			if err != nil {
				return false, err
			}
			for _, mp := range existing {
				if strings.EqualFold(mp.Folder.Path, folder.Path) && strings.EqualFold(mp.DisplayName, p.String()) {
					return true, nil
				}
			}
			return false, nil
		},
		func(ctx context.Context, pattern *regexp.Regexp) (int, error) {
			return s.mounts.CountByNamePattern(ctx, folder.NSPath, folder.Path, pattern)
		},
	)
	if err != nil {
		return types.MountPoint{}, err
	}

	return s.mounts.Save(ctx, types.MountPoint{
		Source:      source,
		Folder:      folder,
		DisplayName: free.String(),
		Permissions: perms,
	})
}

// checkNoCycle rejects a mount whose source resolves (through existing
// mounts) into the target folder: if folder's namespace, followed
// transitively through mounts back toward source.NSPath, ever reaches a
// path that contains source's subtree, the new mount would let a
// namespace mount itself.
func (s *Service) checkNoCycle(ctx context.Context, source, folder types.PathRef) error {
	visited := map[string]bool{}
	ns, p := folder.NSPath, folder.Path

	for i := 0; i < 64; i++ { // bounded: mount chains can't be arbitrarily deep
		visitKey := strings.ToLower(ns) + "\x00" + strings.ToLower(p)
		if visited[visitKey] {
			return nil
		}
		visited[visitKey] = true

		if strings.EqualFold(ns, source.NSPath) && path.New(p).IsRelativeTo(path.New(source.Path)) {
			return errors.New(errors.CodeActionNotAllowed, "mount would create a cycle back into its own source")
		}

		resolved, err := s.resolver.ResolvePath(ctx, ns, p)
		if err != nil {
			return err
		}
		if resolved.NSPath == ns && resolved.Path == p {
			return nil // no further mount hop, chain terminates cleanly
		}
		ns, p = resolved.NSPath, resolved.Path
	}
	return errors.New(errors.CodeActionNotAllowed, "mount chain too deep")
}
