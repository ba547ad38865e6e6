package db

import (
	"context"
	"strings"
	"sync"

	"github.com/shelfcloud/core/pkg/errors"
	"github.com/shelfcloud/core/pkg/types"
)

// AccountRepository is an in-memory types.AccountRepository, tracking each
// user's quota and the space their namespace currently occupies.
type AccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]types.Account
	used     map[string]int64
}

// NewAccountRepository returns an empty repository.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		accounts: make(map[string]types.Account),
		used:     make(map[string]int64),
	}
}

var _ types.AccountRepository = (*AccountRepository)(nil)

// Put registers or replaces an account record. Test/bootstrap helper; the
// read contract (GetByUserID/GetSpaceUsedByOwnerID) is what NamespaceUseCase
// actually depends on.
func (r *AccountRepository) Put(a types.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[strings.ToLower(a.UserID)] = a
}

// SetSpaceUsed overrides the tracked usage for ownerID. Nothing in this
// module updates it from file activity (FileCore keeps folder sizes on the
// File rows); NamespaceUseCase.AddFile reads usage from this repository via
// GetSpaceUsedByOwnerID, so callers such as tests set it explicitly.
func (r *AccountRepository) SetSpaceUsed(ownerID string, bytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.used[strings.ToLower(ownerID)] = bytes
}

func (r *AccountRepository) GetByUserID(ctx context.Context, userID string) (types.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[strings.ToLower(userID)]
	if !ok {
		return types.Account{}, errors.New(errors.CodeUserNotFound, "no account for user: "+userID)
	}
	return a, nil
}

func (r *AccountRepository) GetSpaceUsedByOwnerID(ctx context.Context, ownerID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.used[strings.ToLower(ownerID)], nil
}
