// Package strategies holds the concrete interception strategies: whole
// query result caching, per-kind invalidation stamping, keys-only query
// rewriting, and entity-level read/write caching.
//
// Chain position is fixed by priority. The query-level strategies sit
// outermost so a whole-result hit never reaches the entity level, the
// keys-only rewrite sits in the middle, and the entity cache sits
// innermost, closest to the backend.
package strategies
