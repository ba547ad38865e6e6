package db

import (
	"context"
	"strings"
	"sync"

	"github.com/shelfcloud/core/pkg/types"
)

// FileMemberRepository is an in-memory types.FileMemberRepository.
type FileMemberRepository struct {
	mu      sync.RWMutex
	members map[string]map[string]types.FileMember // fileID -> lower(userID) -> member
}

// NewFileMemberRepository returns an empty repository.
func NewFileMemberRepository() *FileMemberRepository {
	return &FileMemberRepository{members: make(map[string]map[string]types.FileMember)}
}

var _ types.FileMemberRepository = (*FileMemberRepository)(nil)

func (r *FileMemberRepository) Save(ctx context.Context, fm types.FileMember) (types.FileMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byUser, ok := r.members[fm.FileID]
	if !ok {
		byUser = make(map[string]types.FileMember)
		r.members[fm.FileID] = byUser
	}
	byUser[strings.ToLower(fm.UserID)] = fm
	return fm, nil
}

func (r *FileMemberRepository) GetByFileID(ctx context.Context, fileID string) ([]types.FileMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []types.FileMember
	for _, fm := range r.members[fileID] {
		out = append(out, fm)
	}
	return out, nil
}

func (r *FileMemberRepository) Get(ctx context.Context, fileID, userID string) (*types.FileMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byUser, ok := r.members[fileID]
	if !ok {
		return nil, nil
	}
	fm, ok := byUser[strings.ToLower(userID)]
	if !ok {
		return nil, nil
	}
	cp := fm
	return &cp, nil
}

func (r *FileMemberRepository) Delete(ctx context.Context, fileID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if byUser, ok := r.members[fileID]; ok {
		delete(byUser, strings.ToLower(userID))
	}
	return nil
}
