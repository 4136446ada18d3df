// Package querycache caches whole serialized query results and owns the
// per-kind invalidation watermark that keeps them honest.
//
// A cached result is keyed by a digest of the serialized query and is valid
// only while no write has bumped its kind's reset date since the result was
// stored. Invalidation is therefore a single scalar write per kind, never
// an enumeration of cached query keys: any bump forces every older entry
// for that kind to re-validate, which is safe under concurrent writers
// because the watermark only ever moves forward in practice.
package querycache
