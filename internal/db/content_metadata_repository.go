package db

import (
	"context"
	"sync"

	"github.com/shelfcloud/core/pkg/errors"
	"github.com/shelfcloud/core/pkg/types"
)

// ContentMetadataRepository is an in-memory types.ContentMetadataRepository.
type ContentMetadataRepository struct {
	mu   sync.RWMutex
	byID map[string]types.ContentMetadata
}

// NewContentMetadataRepository returns an empty repository.
func NewContentMetadataRepository() *ContentMetadataRepository {
	return &ContentMetadataRepository{byID: make(map[string]types.ContentMetadata)}
}

var _ types.ContentMetadataRepository = (*ContentMetadataRepository)(nil)

func (r *ContentMetadataRepository) Save(ctx context.Context, cm types.ContentMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[cm.FileID] = cm
	return nil
}

func (r *ContentMetadataRepository) GetByFileID(ctx context.Context, fileID string) (types.ContentMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cm, ok := r.byID[fileID]
	if !ok {
		return types.ContentMetadata{}, errors.New(errors.CodeContentMetadataNotFound, "no content metadata for file: "+fileID)
	}
	return cm, nil
}

func (r *ContentMetadataRepository) Delete(ctx context.Context, fileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, fileID)
	return nil
}
