package strategies

import (
	"context"
	"testing"

	"github.com/goliatone/go-storage-cache/storage"
)

func rankedQuery() *storage.Query {
	return &storage.Query{Kind: "Article", Orders: []storage.Order{{Property: "rank"}}}
}

func TestQueryRewrittenToKeysOnly(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	svc := newCacheService(t, clock)
	backend := newRecordingBackend()
	entities := seedArticles(backend, 3)

	db := intercept(backend, NewQueryKeysOnlyStrategy(svc, backend, nil))

	res, err := db.RunQuery(ctx, &storage.RunQueryRequest{Query: rankedQuery()})
	if err != nil {
		t.Fatalf("run query failed: %v", err)
	}

	sent := backend.LastRunQuery()
	if sent == nil || !sent.Query.KeysOnly {
		t.Error("backend should have seen a keys-only query")
	}

	// The caller still gets full entities, in query order.
	if res.KeysOnly {
		t.Error("result handed to the caller must not be keys-only")
	}
	if len(res.Entities) != len(entities) {
		t.Fatalf("expected %d entities, got %d", len(entities), len(res.Entities))
	}
	for i, e := range res.Entities {
		if e.Props["rank"] != int64(i) {
			t.Errorf("entity %d out of order: %+v", i, e.Props)
		}
	}
}

func TestAlreadyKeysOnlyQueriesUntouched(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	svc := newCacheService(t, clock)
	backend := newRecordingBackend()
	seedArticles(backend, 2)

	db := intercept(backend, NewQueryKeysOnlyStrategy(svc, backend, nil))

	q := rankedQuery()
	q.KeysOnly = true
	res, err := db.RunQuery(ctx, &storage.RunQueryRequest{Query: q})
	if err != nil {
		t.Fatalf("run query failed: %v", err)
	}
	if !res.KeysOnly {
		t.Error("a query that asked for keys only must stay keys only")
	}
	if backend.Calls(storage.OpGet) != 0 {
		t.Error("no entity fetch should happen for a native keys-only query")
	}
}

func TestKeysOnlyResolvesFromEntityCache(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	svc := newCacheService(t, clock)
	backend := newRecordingBackend()
	entities := seedArticles(backend, 3)

	// Two of three entities are already cached.
	warm := entityCache{cache: svc}
	warm.putAll(ctx, map[storage.Key]storage.Entity{
		entities[0].Key: entities[0],
		entities[2].Key: entities[2],
	})

	db := intercept(backend, NewQueryKeysOnlyStrategy(svc, backend, nil))

	res, err := db.RunQuery(ctx, &storage.RunQueryRequest{Query: rankedQuery()})
	if err != nil {
		t.Fatalf("run query failed: %v", err)
	}

	sent := backend.LastGet()
	if sent == nil || len(sent.Keys) != 1 || sent.Keys[0] != entities[1].Key {
		t.Errorf("backend should only fetch the uncached key, saw %+v", sent)
	}
	if len(res.Entities) != 3 {
		t.Fatalf("expected 3 entities, got %d", len(res.Entities))
	}
	for i, e := range res.Entities {
		if e.Key != entities[i].Key {
			t.Errorf("entity %d out of order: %+v", i, e.Key)
		}
	}
}

func TestKeysOnlyFullCacheHitSkipsBatchGet(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	svc := newCacheService(t, clock)
	backend := newRecordingBackend()
	entities := seedArticles(backend, 2)

	warm := entityCache{cache: svc}
	warm.putAll(ctx, map[storage.Key]storage.Entity{
		entities[0].Key: entities[0],
		entities[1].Key: entities[1],
	})

	db := intercept(backend, NewQueryKeysOnlyStrategy(svc, backend, nil))

	if _, err := db.RunQuery(ctx, &storage.RunQueryRequest{Query: rankedQuery()}); err != nil {
		t.Fatalf("run query failed: %v", err)
	}
	if backend.Calls(storage.OpGet) != 0 {
		t.Errorf("fully cached result should need no batch get, saw %d", backend.Calls(storage.OpGet))
	}
}

func TestContinuationPagesReconstructed(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	svc := newCacheService(t, clock)
	backend := newRecordingBackend()
	seedArticles(backend, 3)

	db := intercept(backend, NewQueryKeysOnlyStrategy(svc, backend, nil))

	q := rankedQuery()
	q.Limit = 1
	res, err := db.RunQuery(ctx, &storage.RunQueryRequest{Query: q})
	if err != nil {
		t.Fatalf("run query failed: %v", err)
	}
	page := 0
	for {
		if res.KeysOnly {
			t.Fatalf("page %d is keys-only", page)
		}
		for _, e := range res.Entities {
			if len(e.Props) == 0 {
				t.Fatalf("page %d entity %v has no props", page, e.Key)
			}
		}
		if !res.MoreResults {
			break
		}
		page++
		if page > 5 {
			t.Fatal("pagination did not terminate")
		}
		res, err = db.Next(ctx, &storage.NextRequest{Cursor: res.Cursor})
		if err != nil {
			t.Fatalf("next on page %d failed: %v", page, err)
		}
	}
	if page != 2 {
		t.Errorf("expected 3 pages, walked %d", page+1)
	}
}

func TestReservedKindsNotRewritten(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	svc := newCacheService(t, clock)
	backend := newRecordingBackend()
	backend.Seed(storage.Entity{Key: storage.NewKey("__meta", "1"), Props: map[string]any{"v": int64(1)}})

	db := intercept(backend, NewQueryKeysOnlyStrategy(svc, backend, nil))

	res, err := db.RunQuery(ctx, &storage.RunQueryRequest{Query: &storage.Query{Kind: "__meta"}})
	if err != nil {
		t.Fatalf("run query failed: %v", err)
	}
	if sent := backend.LastRunQuery(); sent.Query.KeysOnly {
		t.Error("reserved kind query was rewritten")
	}
	if len(res.Entities) != 1 || len(res.Entities[0].Props) == 0 {
		t.Error("reserved kind query lost its entities")
	}
}
