package storage

import (
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// FilterOp enumerates the comparison operators a query filter may use.
type FilterOp string

// Supported filter operators.
const (
	FilterEqual        FilterOp = "="
	FilterLess         FilterOp = "<"
	FilterLessEqual    FilterOp = "<="
	FilterGreater      FilterOp = ">"
	FilterGreaterEqual FilterOp = ">="
)

// Filter constrains one property of a query.
type Filter struct {
	Property string   `msgpack:"property"`
	Op       FilterOp `msgpack:"op"`
	Value    any      `msgpack:"value"`
}

// Order sorts query results by one property.
type Order struct {
	Property   string `msgpack:"property"`
	Descending bool   `msgpack:"descending"`
}

// Query is a structured query over one kind.
type Query struct {
	Namespace string   `msgpack:"namespace"`
	Kind      string   `msgpack:"kind"`
	Filters   []Filter `msgpack:"filters"`
	Orders    []Order  `msgpack:"orders"`
	Limit     int      `msgpack:"limit"`
	Offset    int      `msgpack:"offset"`
	KeysOnly  bool     `msgpack:"keys_only"`
}

// Clone deep-copies the query so a rewrite never mutates the caller's value.
func (q *Query) Clone() *Query {
	out := *q
	if q.Filters != nil {
		out.Filters = append([]Filter(nil), q.Filters...)
	}
	if q.Orders != nil {
		out.Orders = append([]Order(nil), q.Orders...)
	}
	return &out
}

// Marshal returns the query's serialized form. Struct encoding is
// field-ordered, so equal queries always produce equal bytes; the query
// cache fingerprints these bytes.
func (q *Query) Marshal() ([]byte, error) {
	data, err := msgpack.Marshal(q)
	if err != nil {
		return nil, errors.Wrap(err, "storage: marshal query")
	}
	return data, nil
}

// Cursor is an opaque continuation token handed back by the backend.
type Cursor string

// QueryResult is one page of query output. A keys-only result carries
// entities whose property bags are empty.
type QueryResult struct {
	Entities    []Entity `msgpack:"entities"`
	KeysOnly    bool     `msgpack:"keys_only"`
	MoreResults bool     `msgpack:"more_results"`
	Cursor      Cursor   `msgpack:"cursor"`
}

// Keys returns the result keys in result order.
func (r *QueryResult) Keys() []Key {
	keys := make([]Key, len(r.Entities))
	for i, e := range r.Entities {
		keys[i] = e.Key
	}
	return keys
}

// Marshal serializes the result for cache storage.
func (r *QueryResult) Marshal() ([]byte, error) {
	data, err := msgpack.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "storage: marshal query result")
	}
	return data, nil
}

// UnmarshalQueryResult decodes a result previously produced by Marshal.
func UnmarshalQueryResult(data []byte) (*QueryResult, error) {
	var r QueryResult
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrap(err, "storage: unmarshal query result")
	}
	return &r, nil
}
