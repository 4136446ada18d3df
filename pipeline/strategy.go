package pipeline

import (
	"context"

	"github.com/goliatone/go-storage-cache/storage"
)

// Verdict is a pre hook's decision. The zero value passes the call through
// untouched. A non-nil Request replaces the request for every strategy
// further in and for the backend. A non-nil Response ends the call without
// reaching either.
type Verdict struct {
	Request  storage.Request
	Response storage.Response
}

// Rewrite replaces the request for the rest of the chain.
func Rewrite(req storage.Request) Verdict {
	return Verdict{Request: req}
}

// ShortCircuit answers the call without touching the backend.
func ShortCircuit(res storage.Response) Verdict {
	return Verdict{Response: res}
}

// Strategy observes and steers storage calls. Pre hooks run outer to inner
// and return a Verdict; post hooks run inner to outer and may replace the
// response by returning non-nil. Strategies with lower Priority sit further
// out in the chain.
//
// A single Strategy instance may be shared across goroutines, so stateful
// implementations must synchronize their own bookkeeping.
type Strategy interface {
	Priority() int

	PreGet(ctx context.Context, req *storage.GetRequest) Verdict
	PostGet(ctx context.Context, req *storage.GetRequest, res *storage.GetResponse) *storage.GetResponse

	PrePut(ctx context.Context, req *storage.PutRequest) Verdict
	PostPut(ctx context.Context, req *storage.PutRequest, res *storage.PutResponse) *storage.PutResponse

	PreDelete(ctx context.Context, req *storage.DeleteRequest) Verdict
	PostDelete(ctx context.Context, req *storage.DeleteRequest, res *storage.DeleteResponse) *storage.DeleteResponse

	PreRunQuery(ctx context.Context, req *storage.RunQueryRequest) Verdict
	PostRunQuery(ctx context.Context, req *storage.RunQueryRequest, res *storage.QueryResult) *storage.QueryResult

	PreNext(ctx context.Context, req *storage.NextRequest) Verdict
	PostNext(ctx context.Context, req *storage.NextRequest, res *storage.QueryResult) *storage.QueryResult

	PreCommit(ctx context.Context, req *storage.CommitRequest) Verdict
	PostCommit(ctx context.Context, req *storage.CommitRequest, res *storage.CommitResponse) *storage.CommitResponse

	PreRollback(ctx context.Context, req *storage.RollbackRequest) Verdict
	PostRollback(ctx context.Context, req *storage.RollbackRequest, res *storage.RollbackResponse) *storage.RollbackResponse
}

// PassThrough is an embeddable base whose hooks all pass the call through.
// Concrete strategies embed it and override only the hooks they care about.
type PassThrough struct{}

func (PassThrough) PreGet(context.Context, *storage.GetRequest) Verdict { return Verdict{} }

func (PassThrough) PostGet(context.Context, *storage.GetRequest, *storage.GetResponse) *storage.GetResponse {
	return nil
}

func (PassThrough) PrePut(context.Context, *storage.PutRequest) Verdict { return Verdict{} }

func (PassThrough) PostPut(context.Context, *storage.PutRequest, *storage.PutResponse) *storage.PutResponse {
	return nil
}

func (PassThrough) PreDelete(context.Context, *storage.DeleteRequest) Verdict { return Verdict{} }

func (PassThrough) PostDelete(context.Context, *storage.DeleteRequest, *storage.DeleteResponse) *storage.DeleteResponse {
	return nil
}

func (PassThrough) PreRunQuery(context.Context, *storage.RunQueryRequest) Verdict {
	return Verdict{}
}

func (PassThrough) PostRunQuery(context.Context, *storage.RunQueryRequest, *storage.QueryResult) *storage.QueryResult {
	return nil
}

func (PassThrough) PreNext(context.Context, *storage.NextRequest) Verdict { return Verdict{} }

func (PassThrough) PostNext(context.Context, *storage.NextRequest, *storage.QueryResult) *storage.QueryResult {
	return nil
}

func (PassThrough) PreCommit(context.Context, *storage.CommitRequest) Verdict { return Verdict{} }

func (PassThrough) PostCommit(context.Context, *storage.CommitRequest, *storage.CommitResponse) *storage.CommitResponse {
	return nil
}

func (PassThrough) PreRollback(context.Context, *storage.RollbackRequest) Verdict {
	return Verdict{}
}

func (PassThrough) PostRollback(context.Context, *storage.RollbackRequest, *storage.RollbackResponse) *storage.RollbackResponse {
	return nil
}

// runPre routes the request variant to the matching pre hook.
func runPre(ctx context.Context, s Strategy, req storage.Request) Verdict {
	switch r := req.(type) {
	case *storage.GetRequest:
		return s.PreGet(ctx, r)
	case *storage.PutRequest:
		return s.PrePut(ctx, r)
	case *storage.DeleteRequest:
		return s.PreDelete(ctx, r)
	case *storage.RunQueryRequest:
		return s.PreRunQuery(ctx, r)
	case *storage.NextRequest:
		return s.PreNext(ctx, r)
	case *storage.CommitRequest:
		return s.PreCommit(ctx, r)
	case *storage.RollbackRequest:
		return s.PreRollback(ctx, r)
	}
	return Verdict{}
}

// runPost routes the request variant to the matching post hook. It returns
// the replacement response, or nil to keep the current one.
func runPost(ctx context.Context, s Strategy, req storage.Request, res storage.Response) storage.Response {
	switch r := req.(type) {
	case *storage.GetRequest:
		if out := s.PostGet(ctx, r, res.(*storage.GetResponse)); out != nil {
			return out
		}
	case *storage.PutRequest:
		if out := s.PostPut(ctx, r, res.(*storage.PutResponse)); out != nil {
			return out
		}
	case *storage.DeleteRequest:
		if out := s.PostDelete(ctx, r, res.(*storage.DeleteResponse)); out != nil {
			return out
		}
	case *storage.RunQueryRequest:
		if out := s.PostRunQuery(ctx, r, res.(*storage.QueryResult)); out != nil {
			return out
		}
	case *storage.NextRequest:
		if out := s.PostNext(ctx, r, res.(*storage.QueryResult)); out != nil {
			return out
		}
	case *storage.CommitRequest:
		if out := s.PostCommit(ctx, r, res.(*storage.CommitResponse)); out != nil {
			return out
		}
	case *storage.RollbackRequest:
		if out := s.PostRollback(ctx, r, res.(*storage.RollbackResponse)); out != nil {
			return out
		}
	}
	return nil
}
