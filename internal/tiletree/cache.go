// internal/tiletree/cache.go - Shared tile tree cache with single-flight construction
package tiletree

import (
	"context"
	"sync"

	"github.com/google/btree"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/valpere/tile_imagery/internal/logging"
)

// TreeStatus is the load state of a cached tree
type TreeStatus int

const (
	TreeNotLoaded TreeStatus = iota
	TreeLoading
	TreeLoaded
	TreeNotFound
)

func (s TreeStatus) String() string {
	switch s {
	case TreeNotLoaded:
		return "not-loaded"
	case TreeLoading:
		return "loading"
	case TreeLoaded:
		return "loaded"
	case TreeNotFound:
		return "not-found"
	default:
		return "unknown"
	}
}

type cacheEntry struct {
	id   TreeID
	tree *Tree
	err  error
}

func (e *cacheEntry) status() TreeStatus {
	if e.tree == nil {
		return TreeNotFound
	}
	return TreeLoaded
}

// Cache owns one tree per id for a model. Concurrent requests for the same
// id share a single construction; failures are remembered.
type Cache struct {
	model    Model
	supplier Supplier
	logger   *zap.Logger

	mu      sync.Mutex
	entries *btree.BTreeG[*cacheEntry]
	loading map[string]bool
	group   singleflight.Group
}

// NewCache creates an empty cache for model
func NewCache(model Model, supplier Supplier, logger *zap.Logger) *Cache {
	return &Cache{
		model:    model,
		supplier: supplier,
		logger:   logging.OrNop(logger),
		entries: btree.NewG(8, func(a, b *cacheEntry) bool {
			return CompareTreeIDs(a.id, b.id) < 0
		}),
		loading: make(map[string]bool),
	}
}

func (c *Cache) lookup(id TreeID) (*cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Get(&cacheEntry{id: id})
}

// Get returns the tree for id, constructing it at most once. A nil tree with
// a nil error means no tree exists for the id. Construction continues when
// ctx is canceled so other callers still receive the result.
func (c *Cache) Get(ctx context.Context, id TreeID) (*Tree, error) {
	if e, ok := c.lookup(id); ok {
		return e.tree, e.err
	}

	key := id.Key()
	buildCtx := context.WithoutCancel(ctx)

	ch := c.group.DoChan(key, func() (any, error) {
		if e, ok := c.lookup(id); ok {
			return e, nil
		}

		c.setLoading(key, true)
		defer c.setLoading(key, false)

		tree, err := c.supplier.CreateTileTree(buildCtx, id, c.model)
		e := &cacheEntry{id: id, tree: tree, err: err}

		c.mu.Lock()
		c.entries.ReplaceOrInsert(e)
		c.mu.Unlock()

		if err != nil {
			c.logger.Warn("tile tree unavailable", zap.Stringer("tree", id), zap.Error(err))
		}
		return e, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		e := res.Val.(*cacheEntry)
		return e.tree, e.err
	}
}

func (c *Cache) setLoading(key string, loading bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if loading {
		c.loading[key] = true
	} else {
		delete(c.loading, key)
	}
}

// Status reports the load state of id without starting a load
func (c *Cache) Status(id TreeID) TreeStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries.Get(&cacheEntry{id: id}); ok {
		return e.status()
	}
	if c.loading[id.Key()] {
		return TreeLoading
	}
	return TreeNotLoaded
}

// Len returns the number of settled entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Trees returns the loaded trees in id order
func (c *Cache) Trees() []*Tree {
	c.mu.Lock()
	defer c.mu.Unlock()

	var trees []*Tree
	c.entries.Ascend(func(e *cacheEntry) bool {
		if e.tree != nil {
			trees = append(trees, e.tree)
		}
		return true
	})
	return trees
}

// Owner returns a non-owning handle for id
func (c *Cache) Owner(id TreeID) *Owner {
	return &Owner{cache: c, id: id}
}

// Dispose releases every tree and empties the cache
func (c *Cache) Dispose() error {
	c.mu.Lock()
	var entries []*cacheEntry
	c.entries.Ascend(func(e *cacheEntry) bool {
		entries = append(entries, e)
		return true
	})
	c.entries.Clear(false)
	c.mu.Unlock()

	var err error
	for _, e := range entries {
		if e.tree != nil {
			err = multierr.Append(err, e.tree.Dispose())
		}
	}
	return err
}

// Owner resolves an id to the cache's shared tree
type Owner struct {
	cache *Cache
	id    TreeID
}

func (o *Owner) ID() TreeID { return o.id }

// Load waits for the tree
func (o *Owner) Load(ctx context.Context) (*Tree, error) {
	return o.cache.Get(ctx, o.id)
}

// TileTree returns the tree if it is loaded; otherwise it starts loading in
// the background and returns nil
func (o *Owner) TileTree() *Tree {
	switch o.cache.Status(o.id) {
	case TreeLoaded:
		e, _ := o.cache.lookup(o.id)
		return e.tree
	case TreeNotLoaded:
		go func() {
			_, _ = o.cache.Get(context.Background(), o.id)
		}()
	}
	return nil
}

func (o *Owner) Status() TreeStatus {
	return o.cache.Status(o.id)
}
