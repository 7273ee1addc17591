// internal/tiletree/tree.go - Tile tree and tile state
package tiletree

import (
	"image"
	"sort"
	"sync"

	"github.com/golang/geo/r3"

	"github.com/valpere/tile_imagery/internal/geo"
	"github.com/valpere/tile_imagery/internal/imagery"
	"github.com/valpere/tile_imagery/internal/quad"
)

// RootExtent is the half-width of the root tile footprint in engineering units
const RootExtent = 10_000_000

// LoadStatus is the content state of a tile
type LoadStatus int

const (
	StatusUnrequested LoadStatus = iota
	StatusRequested
	StatusCanceled
	StatusReady
	StatusEmpty
)

func (s LoadStatus) String() string {
	switch s {
	case StatusUnrequested:
		return "unrequested"
	case StatusRequested:
		return "requested"
	case StatusCanceled:
		return "canceled"
	case StatusReady:
		return "ready"
	case StatusEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Priority orders content requests in the scheduler; lower runs first
type Priority int

const (
	PriorityInteractive Priority = iota
	PriorityBackground
)

// Content is the decoded, drawable content of a tile
type Content struct {
	Image   image.Image
	Texture Texture
	Graphic Graphic
}

// IsEmpty reports whether there is nothing to draw
func (c *Content) IsEmpty() bool {
	return c == nil || c.Graphic == nil
}

// Tree is a quadtree of imagery tiles placed in engineering coordinates
type Tree struct {
	id          TreeID
	modelID     string
	transientID string
	provider    imagery.Provider
	loader      *Loader

	mercatorToDb          geo.Transform
	footprint             geo.Range3d
	geoConverterAvailable bool

	root *Tile
}

// TreeParams holds everything needed to build a tree
type TreeParams struct {
	ID                    TreeID
	ModelID               string
	TransientID           string
	Provider              imagery.Provider
	Render                RenderSystem
	Concurrency           int
	MercatorToDb          geo.Transform
	GeoConverterAvailable bool
}

// NewTree creates a tree whose root covers the fixed footprint at the
// ground bias
func NewTree(p TreeParams, loaderOpts ...LoaderOption) *Tree {
	gb := p.ID.GroundBias
	t := &Tree{
		id:                    p.ID,
		modelID:               p.ModelID,
		transientID:           p.TransientID,
		provider:              p.Provider,
		mercatorToDb:          p.MercatorToDb,
		geoConverterAvailable: p.GeoConverterAvailable,
		footprint: geo.NewRange3d(
			r3.Vector{X: -RootExtent, Y: -RootExtent, Z: gb},
			r3.Vector{X: RootExtent, Y: RootExtent, Z: gb},
		),
	}
	t.loader = NewLoader(p.Provider, p.Render, p.Concurrency, loaderOpts...)
	t.root = t.newTile(nil, quad.New(0, 0, 0))
	return t
}

func (t *Tree) ID() TreeID                  { return t.id }
func (t *Tree) ModelID() string             { return t.modelID }
func (t *Tree) TransientID() string         { return t.transientID }
func (t *Tree) Provider() imagery.Provider  { return t.provider }
func (t *Tree) Loader() *Loader             { return t.loader }
func (t *Tree) Root() *Tile                 { return t.root }
func (t *Tree) Footprint() geo.Range3d      { return t.footprint }
func (t *Tree) MercatorToDb() geo.Transform { return t.mercatorToDb }
func (t *Tree) GeoConverterAvailable() bool { return t.geoConverterAvailable }
func (t *Tree) IsDrape() bool               { return t.id.ForDrape }

// Dispose releases the provider
func (t *Tree) Dispose() error {
	return t.provider.Dispose()
}

// TileCorners places the corners of q at the ground bias, ordered
// north-west, north-east, south-west, south-east
func (t *Tree) TileCorners(q quad.ID) [4]r3.Vector {
	ts := t.provider.TilingScheme()
	x0 := ts.TileXToFraction(q.Column, q.Level)
	x1 := ts.TileXToFraction(q.Column+1, q.Level)
	y0 := ts.TileYToFraction(q.Row, q.Level)
	y1 := ts.TileYToFraction(q.Row+1, q.Level)

	var corners [4]r3.Vector
	for i, f := range [4][2]float64{{x0, y0}, {x1, y0}, {x0, y1}, {x1, y1}} {
		p := t.mercatorToDb.Apply(r3.Vector{X: f[0], Y: f[1]})
		p.Z = t.id.GroundBias
		corners[i] = p
	}
	return corners
}

func (t *Tree) newTile(parent *Tile, q quad.ID) *Tile {
	return &Tile{
		tree:    t,
		parent:  parent,
		quadID:  q,
		corners: t.TileCorners(q),
	}
}

// Tile is one node of the tree
type Tile struct {
	tree    *Tree
	parent  *Tile
	quadID  quad.ID
	corners [4]r3.Vector

	mu       sync.Mutex
	status   LoadStatus
	content  *Content
	children []*Tile
}

func (t *Tile) Tree() *Tree           { return t.tree }
func (t *Tile) Parent() *Tile         { return t.parent }
func (t *Tile) QuadID() quad.ID       { return t.quadID }
func (t *Tile) ContentID() string     { return t.quadID.ContentID() }
func (t *Tile) Depth() int            { return t.quadID.Level }
func (t *Tile) Corners() [4]r3.Vector { return t.corners }
func (t *Tile) Priority() Priority    { return PriorityBackground }

// Displayable reports whether the tile lies within the provider's zoom range
func (t *Tile) Displayable() bool {
	p := t.tree.provider
	return t.quadID.Level >= p.MinZoom() && t.quadID.Level <= p.MaxZoom()
}

func (t *Tile) Status() LoadStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Content returns the loaded content, or nil
func (t *Tile) Content() *Content {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.content
}

// IsReady reports whether the tile has drawable content
func (t *Tile) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status == StatusReady
}

// Children subdivides the tile. Map quadtree children are created
// synchronously on first use.
func (t *Tile) Children() []*Tile {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.children == nil && t.quadID.Level < t.tree.provider.MaxZoom() {
		ids := t.quadID.Children()
		t.children = make([]*Tile, len(ids))
		for i, id := range ids {
			t.children[i] = t.tree.newTile(t, id)
		}
	}
	return t.children
}

// RequestChildrenAsync must never be reached for map tiles
func (t *Tile) RequestChildrenAsync() {
	panic("tiletree: map tiles create their children synchronously; RequestChildrenAsync called for " + t.quadID.ContentID())
}

// beginRequest moves an unrequested or canceled tile to requested
func (t *Tile) beginRequest() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusUnrequested && t.status != StatusCanceled {
		return false
	}
	t.status = StatusRequested
	return true
}

func (t *Tile) markCanceled() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusRequested {
		t.status = StatusCanceled
	}
}

func (t *Tile) setContent(c *Content) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.content = c
	if c.IsEmpty() {
		t.status = StatusEmpty
	} else {
		t.status = StatusReady
	}
}

// SortForDrawing orders tiles by ascending depth so coarse tiles are drawn
// before the finer tiles that overlap them
func SortForDrawing(tiles []*Tile) {
	sort.SliceStable(tiles, func(i, j int) bool {
		return tiles[i].Depth() < tiles[j].Depth()
	})
}
