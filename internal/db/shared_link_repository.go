package db

import (
	"context"
	"sync"

	"github.com/shelfcloud/core/pkg/types"
)

// SharedLinkRepository is an in-memory types.SharedLinkRepository. At most
// one live link per file is enforced by CreateLink in internal/sharing, not
// here — this store just persists whatever it is given.
type SharedLinkRepository struct {
	mu       sync.RWMutex
	byFileID map[string]types.SharedLink
	byToken  map[string]types.SharedLink
}

// NewSharedLinkRepository returns an empty repository.
func NewSharedLinkRepository() *SharedLinkRepository {
	return &SharedLinkRepository{
		byFileID: make(map[string]types.SharedLink),
		byToken:  make(map[string]types.SharedLink),
	}
}

var _ types.SharedLinkRepository = (*SharedLinkRepository)(nil)

func (r *SharedLinkRepository) Save(ctx context.Context, sl types.SharedLink) (types.SharedLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sl.ID == "" {
		sl.ID = newID()
	}
	r.byFileID[sl.FileID] = sl
	r.byToken[sl.Token] = sl
	return sl, nil
}

func (r *SharedLinkRepository) GetByFileID(ctx context.Context, fileID string) (*types.SharedLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sl, ok := r.byFileID[fileID]
	if !ok {
		return nil, nil
	}
	cp := sl
	return &cp, nil
}

func (r *SharedLinkRepository) GetByToken(ctx context.Context, token string) (*types.SharedLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sl, ok := r.byToken[token]
	if !ok {
		return nil, nil
	}
	cp := sl
	return &cp, nil
}

func (r *SharedLinkRepository) Delete(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sl, ok := r.byToken[token]
	if !ok {
		return nil
	}
	delete(r.byToken, token)
	delete(r.byFileID, sl.FileID)
	return nil
}
