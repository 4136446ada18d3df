// Package cache implements the two-tier cache service the interception
// layer stores through: a process-local tier in front of a shared
// distributed cache.
//
// # Overview
//
// Reads consult the local tier first, then the shared tier; a shared hit
// repopulates the local tier. Writes always land in the local tier and are
// pushed to the shared tier best-effort: a shared-cache failure is logged
// and swallowed, never surfaced, because the local write already keeps the
// current process consistent. The shared tier is abstracted behind the
// SharedCache interface; see internal/cacheinfra for the redis adapter.
//
// # Local tier
//
// The local tier holds namespace-qualified keys so two namespaces never
// collide inside one process. It is not expired per key: ResetLocal clears
// the whole tier once the reset window (5s by default) has elapsed, and is
// meant to be called at a natural checkpoint such as the start of a call
// context, not on every access.
//
// # Oversized values
//
// Values larger than the configured chunk size are split into fixed-size
// chunks stored under derived keys; the original key stores an index record
// listing the chunk keys in order. Gets reassemble transparently, and any
// missing chunk turns the whole lookup into a miss so a truncated value can
// never be returned.
package cache
