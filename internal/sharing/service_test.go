package sharing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfcloud/core/internal/db"
	shelferrors "github.com/shelfcloud/core/pkg/errors"
	"github.com/shelfcloud/core/pkg/types"
)

type fakeUsers struct {
	byUsername map[string]UserRef
}

func (u *fakeUsers) GetByUsername(ctx context.Context, username string) (UserRef, error) {
	ref, ok := u.byUsername[username]
	if !ok {
		return UserRef{}, shelferrors.New(shelferrors.CodeNotFound, "no such user")
	}
	return ref, nil
}

func newTestService(t *testing.T) (*Service, types.FileRepository, types.NamespaceRepository) {
	t.Helper()
	files := db.NewFileRepository()
	mounts := db.NewMountRepository()
	members := db.NewFileMemberRepository()
	links := db.NewSharedLinkRepository()
	namespaces := db.NewNamespaceRepository()
	users := &fakeUsers{byUsername: map[string]UserRef{
		"bob": {ID: "bob-id", Username: "bob"},
	}}
	svc := New(files, mounts, members, links, namespaces, users)
	return svc, files, namespaces
}

func TestCreateLinkIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, files, _ := newTestService(t)

	f, err := files.Save(ctx, types.File{NSPath: "admin", Path: "doc.txt", Name: "doc.txt"})
	require.NoError(t, err)

	link1, err := svc.CreateLink(ctx, f.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, link1.Token)

	link2, err := svc.CreateLink(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, link1.Token, link2.Token, "a second call must return the same live link")

	found, err := svc.GetLinkByToken(ctx, link1.Token)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, f.ID, found.FileID)

	require.NoError(t, svc.RevokeLink(ctx, link1.Token))
	gone, err := svc.GetLinkByToken(ctx, link1.Token)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestAddMemberOwnerGrantsAccessAndMounts(t *testing.T) {
	ctx := context.Background()
	svc, files, namespaces := newTestService(t)

	_, err := namespaces.Save(ctx, types.Namespace{Path: "admin", OwnerID: "admin-id"})
	require.NoError(t, err)

	f, err := files.Save(ctx, types.File{NSPath: "admin", Path: "shared", Name: "shared"})
	require.NoError(t, err)

	member, err := svc.AddMember(ctx, "admin", f.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob-id", member.UserID)
	assert.Equal(t, types.EditorPermissions, member.Permissions)

	mp, err := svc.mounts.GetClosestBySource(ctx, "admin", "shared", "bob")
	require.NoError(t, err)
	require.NotNil(t, mp)
	assert.Equal(t, "shared", mp.DisplayName)
}

func TestAddMemberRejectsWithoutReshare(t *testing.T) {
	ctx := context.Background()
	svc, files, namespaces := newTestService(t)

	_, err := namespaces.Save(ctx, types.Namespace{Path: "admin", OwnerID: "admin-id"})
	require.NoError(t, err)
	f, err := files.Save(ctx, types.File{NSPath: "admin", Path: "shared", Name: "shared"})
	require.NoError(t, err)

	_, err = svc.AddMember(ctx, "carol", f.ID, "bob")
	require.Error(t, err)
	assert.True(t, shelferrors.As(err, shelferrors.CodeActionNotAllowed))
}

func TestRemoveMemberOwnerCanAlwaysRemove(t *testing.T) {
	ctx := context.Background()
	svc, files, namespaces := newTestService(t)

	_, err := namespaces.Save(ctx, types.Namespace{Path: "admin", OwnerID: "admin-id"})
	require.NoError(t, err)
	f, err := files.Save(ctx, types.File{NSPath: "admin", Path: "shared", Name: "shared"})
	require.NoError(t, err)

	_, err = svc.AddMember(ctx, "admin", f.ID, "bob")
	require.NoError(t, err)

	require.NoError(t, svc.RemoveMember(ctx, "admin", f.ID, "bob-id"))

	got, err := svc.members.Get(ctx, f.ID, "bob-id")
	require.NoError(t, err)
	assert.Nil(t, got)
}
