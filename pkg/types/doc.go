// Package types defines the persisted entities and repository/store
// contracts shared across the core: Namespace, File, MountPoint,
// FileMember, SharedLink, Fingerprint, ContentMetadata,
// FilePendingDeletion, Account and AuditTrail, plus the interfaces
// (FileRepository, MountRepository, ObjectStore, Cache, Worker, ...) that
// the service layer is built against.
//
// Implementations live elsewhere (internal/db, internal/storage,
// internal/cache, internal/worker); this package only fixes the contracts
// so the service layer never depends on a concrete backend.
package types
