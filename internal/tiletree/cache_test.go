package tiletree

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valpere/tile_imagery/internal/geo"
)

type countingSupplier struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
	none    bool
}

func (s *countingSupplier) CreateTileTree(ctx context.Context, id TreeID, model Model) (*Tree, error) {
	s.calls.Add(1)
	if s.release != nil {
		<-s.release
	}
	if s.err != nil || s.none {
		return nil, s.err
	}
	return NewTree(TreeParams{
		ID:           id,
		ModelID:      model.ID(),
		Provider:     newFakeProvider(),
		MercatorToDb: geo.IdentityTransform(),
	}), nil
}

func TestCacheSingleConstruction(t *testing.T) {
	supplier := &countingSupplier{release: make(chan struct{})}
	cache := NewCache(testModel(), supplier, nil)
	id := testTreeID()

	const callers = 8
	trees := make([]*Tree, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tree, err := cache.Get(context.Background(), id)
			if err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
			trees[i] = tree
		}()
	}

	waitFor(t, func() bool { return supplier.calls.Load() == 1 })
	close(supplier.release)
	wg.Wait()

	if got := supplier.calls.Load(); got != 1 {
		t.Errorf("Expected 1 construction, got %d", got)
	}
	for i, tree := range trees {
		if tree == nil || tree != trees[0] {
			t.Errorf("Caller %d: expected the shared tree, got %p", i, tree)
		}
	}
	if cache.Status(id) != TreeLoaded {
		t.Errorf("Expected loaded, got %v", cache.Status(id))
	}
}

func TestCacheSingleProviderInitialization(t *testing.T) {
	provider := newFakeProvider()
	factory := &fakeFactory{provider: provider}
	cache := NewCache(testModel(), NewBackgroundMapSupplier(factory, nil, 2, nil), nil)
	id := testTreeID()

	var wg sync.WaitGroup
	trees := make([]*Tree, 2)
	for i := range trees {
		wg.Add(1)
		go func() {
			defer wg.Done()
			trees[i], _ = cache.Get(context.Background(), id)
		}()
	}
	wg.Wait()

	if trees[0] == nil || trees[0] != trees[1] {
		t.Fatalf("Expected identical trees, got %p and %p", trees[0], trees[1])
	}
	if provider.inits.Load() != 1 {
		t.Errorf("Expected 1 initialization, got %d", provider.inits.Load())
	}
	if factory.created != 1 {
		t.Errorf("Expected 1 provider, got %d", factory.created)
	}
}

func TestCacheSignedZeroGroundBias(t *testing.T) {
	supplier := &countingSupplier{release: make(chan struct{})}
	cache := NewCache(testModel(), supplier, nil)

	positive := testTreeID()
	positive.GroundBias = 0
	negative := positive
	negative.GroundBias = math.Copysign(0, -1)

	if CompareTreeIDs(positive, negative) != 0 || positive.Key() != negative.Key() {
		t.Fatalf("Expected equal ids to share a key, got %q and %q", positive.Key(), negative.Key())
	}

	trees := make([]*Tree, 2)
	var wg sync.WaitGroup
	for i, id := range []TreeID{positive, negative} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			trees[i], _ = cache.Get(context.Background(), id)
		}()
		if i == 0 {
			waitFor(t, func() bool { return supplier.calls.Load() == 1 })
		}
	}
	time.Sleep(20 * time.Millisecond)
	close(supplier.release)
	wg.Wait()

	if got := supplier.calls.Load(); got != 1 {
		t.Errorf("Expected 1 construction, got %d", got)
	}
	if trees[0] == nil || trees[0] != trees[1] {
		t.Errorf("Expected the shared tree, got %p and %p", trees[0], trees[1])
	}
	if cache.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", cache.Len())
	}
}

func TestCacheDistinctKeys(t *testing.T) {
	supplier := &countingSupplier{}
	cache := NewCache(testModel(), supplier, nil)

	a := testTreeID()
	b := a
	b.ForDrape = true

	ta, _ := cache.Get(context.Background(), a)
	tb, _ := cache.Get(context.Background(), b)
	if ta == tb {
		t.Error("Expected distinct trees for distinct keys")
	}
	if cache.Len() != 2 || len(cache.Trees()) != 2 {
		t.Errorf("Expected 2 entries, got %d", cache.Len())
	}
	if trees := cache.Trees(); trees[0] != ta || trees[1] != tb {
		t.Error("Expected trees in id order")
	}
}

func TestCacheMemoizesFailures(t *testing.T) {
	errInit := errors.New("metadata unavailable")

	tests := []struct {
		name     string
		supplier *countingSupplier
		wantErr  error
	}{
		{"error", &countingSupplier{err: errInit}, errInit},
		{"no tree", &countingSupplier{none: true}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewCache(testModel(), tt.supplier, nil)
			id := testTreeID()

			for i := 0; i < 3; i++ {
				tree, err := cache.Get(context.Background(), id)
				if tree != nil {
					t.Error("Expected no tree")
				}
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected error %v, got %v", tt.wantErr, err)
				}
			}
			if got := tt.supplier.calls.Load(); got != 1 {
				t.Errorf("Expected 1 construction, got %d", got)
			}
			if cache.Status(id) != TreeNotFound {
				t.Errorf("Expected not-found, got %v", cache.Status(id))
			}
		})
	}
}

func TestCacheGetCanceled(t *testing.T) {
	supplier := &countingSupplier{release: make(chan struct{})}
	cache := NewCache(testModel(), supplier, nil)
	id := testTreeID()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := cache.Get(ctx, id); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	close(supplier.release)
	tree, err := cache.Get(context.Background(), id)
	if err != nil || tree == nil {
		t.Fatalf("Expected tree after construction completes, got %v, %v", tree, err)
	}
	if got := supplier.calls.Load(); got != 1 {
		t.Errorf("Expected construction to continue once, got %d", got)
	}
}

func TestOwnerTileTreeNonBlocking(t *testing.T) {
	supplier := &countingSupplier{release: make(chan struct{})}
	cache := NewCache(testModel(), supplier, nil)
	owner := cache.Owner(testTreeID())

	if owner.Status() != TreeNotLoaded {
		t.Errorf("Expected not-loaded, got %v", owner.Status())
	}
	if owner.TileTree() != nil {
		t.Error("Expected no tree before loading")
	}

	waitFor(t, func() bool { return owner.Status() == TreeLoading })
	if owner.TileTree() != nil {
		t.Error("Expected no tree while loading")
	}

	close(supplier.release)
	waitFor(t, func() bool { return owner.TileTree() != nil })

	loaded, err := owner.Load(context.Background())
	if err != nil || loaded != owner.TileTree() {
		t.Errorf("Expected Load to return the cached tree, got %v", err)
	}
	if got := supplier.calls.Load(); got != 1 {
		t.Errorf("Expected 1 construction, got %d", got)
	}
}

func TestCacheDispose(t *testing.T) {
	provider := newFakeProvider()
	cache := NewCache(testModel(), NewBackgroundMapSupplier(&fakeFactory{provider: provider}, nil, 1, nil), nil)

	if _, err := cache.Get(context.Background(), testTreeID()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := cache.Dispose(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if provider.disposed.Load() != 1 {
		t.Errorf("Expected provider disposed once, got %d", provider.disposed.Load())
	}
	if cache.Len() != 0 {
		t.Errorf("Expected empty cache, got %d", cache.Len())
	}
}
