// Package sharing implements mount-backed file sharing: shared links,
// per-file member grants, and the mount placement that makes a shared
// subtree appear under the recipient's own root.
package sharing

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"

	"github.com/shelfcloud/core/internal/mount"
	shelferrors "github.com/shelfcloud/core/pkg/errors"
	"github.com/shelfcloud/core/pkg/types"
)

// UserResolver looks up the account a username names. Authentication and
// user management live outside this module; only this lookup contract is
// modeled here, same treatment as AuditTrailRecorder.
type UserResolver interface {
	GetByUsername(ctx context.Context, username string) (UserRef, error)
}

// UserRef is the minimum a sharing operation needs about a user: their ID
// (for the FileMember row) and username, which doubles as their
// namespace's path (conventionally the owner's username).
type UserRef struct {
	ID       string
	Username string
}

// Service implements CreateLink/GetLinkByFileID/GetLinkByToken/RevokeLink
// and AddMember/RemoveMember.
type Service struct {
	files      types.FileRepository
	mounts     types.MountRepository
	members    types.FileMemberRepository
	links      types.SharedLinkRepository
	namespaces types.NamespaceRepository
	users      UserResolver
	mountSvc   *mount.Service
}

// New builds a Service.
func New(
	files types.FileRepository,
	mounts types.MountRepository,
	members types.FileMemberRepository,
	links types.SharedLinkRepository,
	namespaces types.NamespaceRepository,
	users UserResolver,
) *Service {
	return &Service{
		files: files, mounts: mounts, members: members,
		links: links, namespaces: namespaces, users: users,
		mountSvc: mount.NewService(mounts),
	}
}

// CreateLink returns file_id's existing shared link, or mints and persists
// a new one if none exists yet. At most one live link exists per file.
func (s *Service) CreateLink(ctx context.Context, fileID string) (types.SharedLink, error) {
	existing, err := s.links.GetByFileID(ctx, fileID)
	if err != nil {
		return types.SharedLink{}, err
	}
	if existing != nil {
		return *existing, nil
	}
	token, err := newToken()
	if err != nil {
		return types.SharedLink{}, err
	}
	return s.links.Save(ctx, types.SharedLink{FileID: fileID, Token: token})
}

// GetLinkByFileID returns the live link for fileID, if any.
func (s *Service) GetLinkByFileID(ctx context.Context, fileID string) (*types.SharedLink, error) {
	return s.links.GetByFileID(ctx, fileID)
}

// GetLinkByToken resolves an anonymous share token back to its link.
func (s *Service) GetLinkByToken(ctx context.Context, token string) (*types.SharedLink, error) {
	return s.links.GetByToken(ctx, token)
}

// RevokeLink deletes a share token.
func (s *Service) RevokeLink(ctx context.Context, token string) error {
	return s.links.Delete(ctx, token)
}

// canReshare reports whether callerNS has reshare permission on f: either
// callerNS owns f outright, or a mount grants callerNS access to f (or an
// ancestor of f) with PermReshare.
func (s *Service) canReshare(ctx context.Context, callerNS string, f types.File) (bool, error) {
	if strings.EqualFold(f.NSPath, callerNS) {
		return true, nil
	}
	mp, err := s.mounts.GetClosestBySource(ctx, f.NSPath, f.Path, callerNS)
	if err != nil {
		return false, err
	}
	return mp != nil && mp.CanReshare(), nil
}

// AddMember grants username editor access to file_id and mounts the
// shared subtree under their root.
func (s *Service) AddMember(ctx context.Context, callerNS, fileID, username string) (types.FileMember, error) {
	f, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return types.FileMember{}, err
	}
	ok, err := s.canReshare(ctx, callerNS, f)
	if err != nil {
		return types.FileMember{}, err
	}
	if !ok {
		return types.FileMember{}, shelferrors.New(shelferrors.CodeActionNotAllowed, "reshare permission required")
	}

	if strings.EqualFold(callerNS, f.NSPath) {
		ns, err := s.namespaces.GetByPath(ctx, callerNS)
		if err != nil {
			return types.FileMember{}, err
		}
		if _, err := s.members.Save(ctx, types.FileMember{FileID: f.ID, UserID: ns.OwnerID, Permissions: types.OwnerPermissions}); err != nil {
			return types.FileMember{}, err
		}
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return types.FileMember{}, err
	}
	member, err := s.members.Save(ctx, types.FileMember{FileID: f.ID, UserID: user.ID, Permissions: types.EditorPermissions})
	if err != nil {
		return types.FileMember{}, err
	}

	if _, err := s.mountSvc.Create(ctx,
		types.PathRef{NSPath: f.NSPath, Path: f.Path},
		types.PathRef{NSPath: user.Username, Path: "."},
		f.Name,
		types.EditorPermissions,
	); err != nil {
		return types.FileMember{}, err
	}
	return member, nil
}

// RemoveMember revokes userID's membership of fileID. Callers with reshare
// permission (the owner always has it) may remove anyone; other callers
// may only remove themselves.
func (s *Service) RemoveMember(ctx context.Context, callerNS, fileID, userID string) error {
	f, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return err
	}

	ns, err := s.namespaces.GetByPath(ctx, callerNS)
	if err != nil {
		return err
	}

	ok, err := s.canReshare(ctx, callerNS, f)
	if err != nil {
		return err
	}
	if !ok && ns.OwnerID != userID {
		return shelferrors.New(shelferrors.CodeActionNotAllowed, "reshare permission required")
	}
	return s.members.Delete(ctx, f.ID, userID)
}

func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
