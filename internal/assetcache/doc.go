// Package assetcache stores generated narration and downloaded footage under
// content-derived keys so repeat requests skip external provider calls.
//
// Entries are directories under the cache root plus a JSON payload recorded
// in an index file. Production is single-flight per key: concurrent
// GetOrCreate callers share one producer invocation and observe the same
// result or the same error. Entries expire after the configured TTL (expired
// entries are treated as absent), and the least-recently-used entries are
// evicted when an insert pushes the cache past its capacity. A single entry
// larger than the whole capacity fails with ErrCapacity.
//
// Entries are immutable once written; Invalidate drops a key (used when
// assembly rejects a corrupt clip) so the next request re-produces it.
package assetcache
