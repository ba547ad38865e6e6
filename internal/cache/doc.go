// Package cache implements the shared types.Cache contract used for
// thumbnail byte storage, OTP/rate-limit counters, and generation locks
// that serialize concurrent thumbnail/content-metadata work on the same
// content hash.
//
// The implementation is a single bounded LRU keyed by opaque strings; size
// and entry-count limits are configurable, and entries may carry a TTL.
// Locking and rate limiting share the same struct but keep their own
// namespaces so they are never evicted by cached payload churn.
package cache
