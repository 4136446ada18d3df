// Package storage defines the datastore-style operation model the caching
// layer intercepts: keys, entities, structured queries, and the closed set
// of request/response variants that make up the backend RPC surface.
//
// The backend itself is an external collaborator. This package only fixes
// the contract the interception pipeline sits on: a Backend exposes one
// typed method per operation, and Dispatch routes a request variant to the
// matching method. Everything that crosses a cache boundary is serialized
// with msgpack via the Marshal helpers here.
package storage
