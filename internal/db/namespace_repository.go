package db

import (
	"context"
	"strings"
	"sync"

	"github.com/shelfcloud/core/pkg/errors"
	"github.com/shelfcloud/core/pkg/types"
)

// NamespaceRepository is an in-memory types.NamespaceRepository.
type NamespaceRepository struct {
	mu       sync.RWMutex
	byPath   map[string]*types.Namespace
	byOwner  map[string]*types.Namespace
}

// NewNamespaceRepository returns an empty repository.
func NewNamespaceRepository() *NamespaceRepository {
	return &NamespaceRepository{
		byPath:  make(map[string]*types.Namespace),
		byOwner: make(map[string]*types.Namespace),
	}
}

var _ types.NamespaceRepository = (*NamespaceRepository)(nil)

func (r *NamespaceRepository) Save(ctx context.Context, ns types.Namespace) (types.Namespace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ns.ID == "" {
		ns.ID = newID()
	}
	cp := ns
	r.byPath[strings.ToLower(ns.Path)] = &cp
	r.byOwner[strings.ToLower(ns.OwnerID)] = &cp
	return cp, nil
}

func (r *NamespaceRepository) GetByPath(ctx context.Context, nsPath string) (types.Namespace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ns, ok := r.byPath[strings.ToLower(nsPath)]
	if !ok {
		return types.Namespace{}, errors.New(errors.CodeNotFound, "namespace not found: "+nsPath)
	}
	return *ns, nil
}

func (r *NamespaceRepository) GetByOwnerID(ctx context.Context, ownerID string) (types.Namespace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ns, ok := r.byOwner[strings.ToLower(ownerID)]
	if !ok {
		return types.Namespace{}, errors.New(errors.CodeNotFound, "namespace not found for owner: "+ownerID)
	}
	return *ns, nil
}
