package storage

// Op enumerates the operations the interception pipeline understands.
// Anything else a backend might grow is simply never intercepted.
type Op string

// The closed operation set.
const (
	OpGet      Op = "Get"
	OpPut      Op = "Put"
	OpDelete   Op = "Delete"
	OpRunQuery Op = "RunQuery"
	OpNext     Op = "Next"
	OpCommit   Op = "Commit"
	OpRollback Op = "Rollback"
)

// ServiceDatastore is the service name strategy chains are registered under.
const ServiceDatastore = "datastore_v3"

// Request is one of the typed request variants. The variant set is closed:
// pattern matching in the pipeline covers every Op and nothing more.
type Request interface {
	Op() Op
	Service() string
}

// Response is one of the typed response variants.
type Response interface {
	isResponse()
}

// GetRequest is a batched point read.
type GetRequest struct {
	Keys []Key
	Tx   Tx
}

// GetResponse carries one slot per requested key, in request order.
// A nil slot means the entity does not exist.
type GetResponse struct {
	Entities []*Entity
}

// PutRequest writes a batch of entities, optionally under a transaction.
type PutRequest struct {
	Entities []Entity
	Tx       Tx
}

// PutResponse returns the assigned keys in request order.
type PutResponse struct {
	Keys []Key
}

// DeleteRequest removes a batch of keys.
type DeleteRequest struct {
	Keys []Key
	Tx   Tx
}

// DeleteResponse acknowledges a delete.
type DeleteResponse struct{}

// RunQueryRequest executes a structured query.
type RunQueryRequest struct {
	Query *Query
}

// NextRequest fetches the next page of a previously run query.
type NextRequest struct {
	Cursor Cursor
}

// CommitRequest commits the named transaction.
type CommitRequest struct {
	Tx Tx
}

// CommitResponse acknowledges a commit.
type CommitResponse struct{}

// RollbackRequest rolls back the named transaction.
type RollbackRequest struct {
	Tx Tx
}

// RollbackResponse acknowledges a rollback.
type RollbackResponse struct{}

func (*GetRequest) Op() Op      { return OpGet }
func (*PutRequest) Op() Op      { return OpPut }
func (*DeleteRequest) Op() Op   { return OpDelete }
func (*RunQueryRequest) Op() Op { return OpRunQuery }
func (*NextRequest) Op() Op     { return OpNext }
func (*CommitRequest) Op() Op   { return OpCommit }
func (*RollbackRequest) Op() Op { return OpRollback }

func (*GetRequest) Service() string      { return ServiceDatastore }
func (*PutRequest) Service() string      { return ServiceDatastore }
func (*DeleteRequest) Service() string   { return ServiceDatastore }
func (*RunQueryRequest) Service() string { return ServiceDatastore }
func (*NextRequest) Service() string     { return ServiceDatastore }
func (*CommitRequest) Service() string   { return ServiceDatastore }
func (*RollbackRequest) Service() string { return ServiceDatastore }

func (*GetResponse) isResponse()      {}
func (*PutResponse) isResponse()      {}
func (*DeleteResponse) isResponse()   {}
func (*QueryResult) isResponse()      {}
func (*CommitResponse) isResponse()   {}
func (*RollbackResponse) isResponse() {}
