package storage

import (
	"context"

	"github.com/pkg/errors"
)

// Backend is the storage collaborator the pipeline forwards to. Implementors
// provide real persistence; the caching layer never assumes anything beyond
// this contract.
type Backend interface {
	Get(ctx context.Context, req *GetRequest) (*GetResponse, error)
	Put(ctx context.Context, req *PutRequest) (*PutResponse, error)
	Delete(ctx context.Context, req *DeleteRequest) (*DeleteResponse, error)
	RunQuery(ctx context.Context, req *RunQueryRequest) (*QueryResult, error)
	Next(ctx context.Context, req *NextRequest) (*QueryResult, error)
	Commit(ctx context.Context, req *CommitRequest) (*CommitResponse, error)
	Rollback(ctx context.Context, req *RollbackRequest) (*RollbackResponse, error)
}

// Dispatch routes a request variant to the matching Backend method.
func Dispatch(ctx context.Context, b Backend, req Request) (Response, error) {
	switch r := req.(type) {
	case *GetRequest:
		res, err := b.Get(ctx, r)
		if err != nil {
			return nil, err
		}
		return res, nil
	case *PutRequest:
		res, err := b.Put(ctx, r)
		if err != nil {
			return nil, err
		}
		return res, nil
	case *DeleteRequest:
		res, err := b.Delete(ctx, r)
		if err != nil {
			return nil, err
		}
		return res, nil
	case *RunQueryRequest:
		res, err := b.RunQuery(ctx, r)
		if err != nil {
			return nil, err
		}
		return res, nil
	case *NextRequest:
		res, err := b.Next(ctx, r)
		if err != nil {
			return nil, err
		}
		return res, nil
	case *CommitRequest:
		res, err := b.Commit(ctx, r)
		if err != nil {
			return nil, err
		}
		return res, nil
	case *RollbackRequest:
		res, err := b.Rollback(ctx, r)
		if err != nil {
			return nil, err
		}
		return res, nil
	default:
		return nil, errors.Errorf("storage: unsupported request type %T", req)
	}
}
