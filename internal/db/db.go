// Package db provides in-memory implementations of the repository
// contracts in pkg/types, plus an Atomic helper that gives callers the
// same "retry on serialization conflict" shape a real transactional store
// would, without requiring one for this module.
package db

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/shelfcloud/core/pkg/errors"
	"github.com/shelfcloud/core/pkg/path"
)

// conflictInjector, when set, is consulted on every Atomic call; a true
// result makes that call fail with a simulated serialization conflict, so
// retry logic (pkg/retry's CodeSerializationConflict handling) has
// something real to exercise in tests. Nil by default; tests that want
// contention set it.
var conflictInjector func() bool

// SetConflictInjector overrides when Atomic reports a simulated
// serialization conflict. Tests only.
func SetConflictInjector(f func() bool) { conflictInjector = f }

// Atomic runs fn, simulating a serialization-conflict failure when a test
// has installed a conflict injector. Production code treats this as the
// seam where a real store's transaction boundary would sit.
func Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if conflictInjector != nil && conflictInjector() {
		return errors.New(errors.CodeSerializationConflict, "simulated serialization conflict")
	}
	return fn(ctx)
}

func newID() string { return uuid.NewString() }

func key(nsPath, p string) string {
	return strings.ToLower(nsPath) + "\x00" + strings.ToLower(path.New(p).String())
}
