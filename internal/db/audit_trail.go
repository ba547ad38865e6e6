package db

import (
	"context"
	"sync"

	"github.com/shelfcloud/core/pkg/types"
)

// AuditTrailRecorder is an in-memory types.AuditTrailRecorder. Spec §1
// treats the audit trail's actual storage/reporting surface as an external
// collaborator; this implementation exists so NamespaceUseCase has
// something to call in tests and in the reference wiring, not as a
// durable audit log.
type AuditTrailRecorder struct {
	mu      sync.Mutex
	entries []types.AuditTrail
}

// NewAuditTrailRecorder returns an empty recorder.
func NewAuditTrailRecorder() *AuditTrailRecorder {
	return &AuditTrailRecorder{}
}

var _ types.AuditTrailRecorder = (*AuditTrailRecorder)(nil)

func (r *AuditTrailRecorder) Record(ctx context.Context, entry types.AuditTrail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.ID == "" {
		entry.ID = newID()
	}
	r.entries = append(r.entries, entry)
	return nil
}

// Entries returns a snapshot of everything recorded so far, oldest first.
// Test helper.
func (r *AuditTrailRecorder) Entries() []types.AuditTrail {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.AuditTrail, len(r.entries))
	copy(out, r.entries)
	return out
}
