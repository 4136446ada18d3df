package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/goliatone/go-storage-cache/pkg/testsupport"
	"github.com/goliatone/go-storage-cache/storage"
)

// recorder collects hook invocations in order.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// scripted is a strategy whose Get hooks record themselves and defer to
// optional callbacks.
type scripted struct {
	PassThrough

	priority  int
	name      string
	rec       *recorder
	onPreGet  func(req *storage.GetRequest) Verdict
	onPostGet func(req *storage.GetRequest, res *storage.GetResponse) *storage.GetResponse
}

func (s *scripted) Priority() int { return s.priority }

func (s *scripted) PreGet(ctx context.Context, req *storage.GetRequest) Verdict {
	s.rec.add(s.name + ":pre")
	if s.onPreGet != nil {
		return s.onPreGet(req)
	}
	return Verdict{}
}

func (s *scripted) PostGet(ctx context.Context, req *storage.GetRequest, res *storage.GetResponse) *storage.GetResponse {
	s.rec.add(s.name + ":post")
	if s.onPostGet != nil {
		return s.onPostGet(req, res)
	}
	return nil
}

func fixed(s *scripted) Factory {
	return func() Strategy { return s }
}

func equalEvents(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestHooksRunInPriorityOrder(t *testing.T) {
	rec := &recorder{}
	backend := testsupport.NewMemoryBackend()

	// Registered inner-first on purpose; the chain must sort by priority.
	builder := NewBuilder().
		Add(storage.ServiceDatastore, fixed(&scripted{priority: 200, name: "inner", rec: rec})).
		Add(storage.ServiceDatastore, fixed(&scripted{priority: 100, name: "outer", rec: rec}))

	ic := New(backend, builder, nil)
	if _, err := ic.Get(context.Background(), &storage.GetRequest{Keys: []storage.Key{storage.NewKey("A", "1")}}); err != nil {
		t.Fatalf("get failed: %v", err)
	}

	want := []string{"outer:pre", "inner:pre", "inner:post", "outer:post"}
	if got := rec.list(); !equalEvents(got, want) {
		t.Errorf("hook order mismatch:\n got %v\nwant %v", got, want)
	}
	if backend.Calls(storage.OpGet) != 1 {
		t.Errorf("expected one backend call, got %d", backend.Calls(storage.OpGet))
	}
}

func TestRewriteFlowsInward(t *testing.T) {
	rec := &recorder{}
	backend := testsupport.NewMemoryBackend()
	rewrittenKey := storage.NewKey("A", "rewritten")
	backend.Seed(storage.Entity{Key: rewrittenKey, Props: map[string]any{"v": int64(1)}})

	var innerSaw, outerPostSaw []storage.Key
	outer := &scripted{priority: 100, name: "outer", rec: rec,
		onPreGet: func(req *storage.GetRequest) Verdict {
			return Rewrite(&storage.GetRequest{Keys: []storage.Key{rewrittenKey}})
		},
		onPostGet: func(req *storage.GetRequest, res *storage.GetResponse) *storage.GetResponse {
			outerPostSaw = req.Keys
			return nil
		},
	}
	inner := &scripted{priority: 200, name: "inner", rec: rec,
		onPreGet: func(req *storage.GetRequest) Verdict {
			innerSaw = req.Keys
			return Verdict{}
		},
	}

	builder := NewBuilder().
		Add(storage.ServiceDatastore, fixed(outer)).
		Add(storage.ServiceDatastore, fixed(inner))
	ic := New(backend, builder, nil)

	res, err := ic.Get(context.Background(), &storage.GetRequest{Keys: []storage.Key{storage.NewKey("A", "original")}})
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	if len(innerSaw) != 1 || innerSaw[0] != rewrittenKey {
		t.Errorf("inner strategy saw %v, want the rewritten key", innerSaw)
	}
	if len(outerPostSaw) != 1 || outerPostSaw[0] != rewrittenKey {
		t.Errorf("outer post hook saw %v, want its own rewritten request", outerPostSaw)
	}
	if len(res.Entities) != 1 || res.Entities[0] == nil {
		t.Error("backend should have served the rewritten key")
	}
}

func TestShortCircuitSkipsInnerStrategiesAndOwnPost(t *testing.T) {
	rec := &recorder{}
	backend := testsupport.NewMemoryBackend()
	canned := &storage.GetResponse{Entities: []*storage.Entity{nil}}

	builder := NewBuilder().
		Add(storage.ServiceDatastore, fixed(&scripted{priority: 50, name: "outermost", rec: rec})).
		Add(storage.ServiceDatastore, fixed(&scripted{priority: 100, name: "circuit", rec: rec,
			onPreGet: func(*storage.GetRequest) Verdict { return ShortCircuit(canned) },
		})).
		Add(storage.ServiceDatastore, fixed(&scripted{priority: 200, name: "inner", rec: rec}))
	ic := New(backend, builder, nil)

	res, err := ic.Get(context.Background(), &storage.GetRequest{Keys: []storage.Key{storage.NewKey("A", "1")}})
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if res != canned {
		t.Error("expected the synthesized response")
	}

	want := []string{"outermost:pre", "circuit:pre", "outermost:post"}
	if got := rec.list(); !equalEvents(got, want) {
		t.Errorf("hook order mismatch:\n got %v\nwant %v", got, want)
	}
	if backend.Calls(storage.OpGet) != 0 {
		t.Errorf("backend must not be called on short-circuit, got %d calls", backend.Calls(storage.OpGet))
	}
}

func TestBackendErrorSkipsPostHooks(t *testing.T) {
	rec := &recorder{}
	backend := testsupport.NewMemoryBackend()
	backend.FailWith(storage.OpGet, errors.New("backend down"))

	builder := NewBuilder().
		Add(storage.ServiceDatastore, fixed(&scripted{priority: 100, name: "outer", rec: rec})).
		Add(storage.ServiceDatastore, fixed(&scripted{priority: 200, name: "inner", rec: rec}))
	ic := New(backend, builder, nil)

	_, err := ic.Get(context.Background(), &storage.GetRequest{Keys: []storage.Key{storage.NewKey("A", "1")}})
	if err == nil {
		t.Fatal("expected backend error to propagate")
	}

	want := []string{"outer:pre", "inner:pre"}
	if got := rec.list(); !equalEvents(got, want) {
		t.Errorf("post hooks ran despite the error:\n got %v\nwant %v", got, want)
	}
}

func TestResponseRewriteInPostHook(t *testing.T) {
	rec := &recorder{}
	backend := testsupport.NewMemoryBackend()
	replacement := &storage.GetResponse{Entities: []*storage.Entity{nil, nil}}

	builder := NewBuilder().
		Add(storage.ServiceDatastore, fixed(&scripted{priority: 100, name: "outer", rec: rec,
			onPostGet: func(*storage.GetRequest, *storage.GetResponse) *storage.GetResponse {
				return replacement
			},
		}))
	ic := New(backend, builder, nil)

	res, err := ic.Get(context.Background(), &storage.GetRequest{Keys: []storage.Key{storage.NewKey("A", "1")}})
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if res != replacement {
		t.Error("post hook response replacement was dropped")
	}
}

func TestCallAsyncRunsPreHooksEagerly(t *testing.T) {
	rec := &recorder{}
	backend := testsupport.NewMemoryBackend()

	builder := NewBuilder().
		Add(storage.ServiceDatastore, fixed(&scripted{priority: 100, name: "outer", rec: rec}))
	ic := New(backend, builder, nil)

	future := ic.CallAsync(context.Background(), &storage.GetRequest{Keys: []storage.Key{storage.NewKey("A", "1")}})

	// The pre hook has already run by the time CallAsync returns.
	events := rec.list()
	if len(events) == 0 || events[0] != "outer:pre" {
		t.Fatalf("pre hook did not run eagerly: %v", events)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := future.Get(ctx)
	if err != nil {
		t.Fatalf("future resolution failed: %v", err)
	}
	if _, ok := res.(*storage.GetResponse); !ok {
		t.Fatalf("unexpected response type %T", res)
	}

	want := []string{"outer:pre", "outer:post"}
	if got := rec.list(); !equalEvents(got, want) {
		t.Errorf("hook order mismatch:\n got %v\nwant %v", got, want)
	}
}

func TestCallAsyncShortCircuitResolvesImmediately(t *testing.T) {
	rec := &recorder{}
	backend := testsupport.NewMemoryBackend()
	canned := &storage.GetResponse{}

	builder := NewBuilder().
		Add(storage.ServiceDatastore, fixed(&scripted{priority: 100, name: "circuit", rec: rec,
			onPreGet: func(*storage.GetRequest) Verdict { return ShortCircuit(canned) },
		}))
	ic := New(backend, builder, nil)

	future := ic.CallAsync(context.Background(), &storage.GetRequest{Keys: []storage.Key{storage.NewKey("A", "1")}})
	if !future.Done() {
		t.Fatal("short-circuited future should resolve without waiting")
	}
	res, err := future.Get(context.Background())
	if err != nil || res != canned {
		t.Errorf("unexpected resolution: %v, %v", res, err)
	}
	if backend.Calls(storage.OpGet) != 0 {
		t.Error("backend must not be called on short-circuit")
	}
}

func TestNewScopeMintsFreshStrategies(t *testing.T) {
	var made int
	builder := NewBuilder().Add(storage.ServiceDatastore, func() Strategy {
		made++
		return &scripted{priority: 100, name: "s", rec: &recorder{}}
	})

	ic := New(testsupport.NewMemoryBackend(), builder, nil)
	atConstruction := made

	ctx1 := ic.NewScope(context.Background())
	ctx2 := ic.NewScope(context.Background())

	if made != atConstruction+2 {
		t.Errorf("expected one instantiation per scope, got %d total", made)
	}

	pc1, ok1 := FromContext(ctx1)
	pc2, ok2 := FromContext(ctx2)
	if !ok1 || !ok2 || pc1 == pc2 {
		t.Error("scopes must carry distinct contexts")
	}
}

func TestOnNewContextCheckpoint(t *testing.T) {
	var checkpoints int
	builder := NewBuilder().OnNewContext(func() { checkpoints++ })

	ic := New(testsupport.NewMemoryBackend(), builder, nil)
	if checkpoints != 1 {
		t.Fatalf("construction should mint the shared scope, checkpoints: %d", checkpoints)
	}
	ic.NewScope(context.Background())
	if checkpoints != 2 {
		t.Errorf("expected a checkpoint per scope, got %d", checkpoints)
	}
}

func TestInstallIsIdempotent(t *testing.T) {
	backend := testsupport.NewMemoryBackend()
	builder := NewBuilder()

	first := Install(backend, builder, nil)
	second := Install(first, builder, nil)

	if first != second {
		t.Error("installing on an interceptor must return the existing one")
	}
	if Uninstall(second) != storage.Backend(backend) {
		t.Error("uninstall must return the original backend")
	}
	if Uninstall(backend) != storage.Backend(backend) {
		t.Error("uninstalling a bare backend must be a no-op")
	}
}

func TestUninterceptedServicePassesThrough(t *testing.T) {
	backend := testsupport.NewMemoryBackend()
	ic := New(backend, NewBuilder(), nil)

	if _, err := ic.Put(context.Background(), &storage.PutRequest{Entities: []storage.Entity{
		{Key: storage.NewKey("A", "1"), Props: map[string]any{"v": int64(1)}},
	}}); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if backend.Calls(storage.OpPut) != 1 {
		t.Errorf("expected direct pass-through, puts: %d", backend.Calls(storage.OpPut))
	}
}
