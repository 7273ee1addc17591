// internal/tiletree/reference.go - Per-scene tile tree reference
package tiletree

import (
	"sync"

	"github.com/valpere/tile_imagery/internal/imagery"
	"github.com/valpere/tile_imagery/internal/quad"
)

// Reference attaches a cached tile tree to viewports. It drives tile
// selection per frame and remembers what each viewport selected for
// attribution lookup.
type Reference struct {
	owner    *Owner
	selector TileSelector

	mu       sync.Mutex
	selected map[string][]quad.ID
}

// NewReference creates a reference resolving through owner
func NewReference(owner *Owner, selector TileSelector) *Reference {
	return &Reference{
		owner:    owner,
		selector: selector,
		selected: make(map[string][]quad.ID),
	}
}

func (r *Reference) TreeOwner() *Owner { return r.owner }

// AddToScene outputs the ready tiles selected for the scene's viewport,
// coarse tiles first, and reports the rest as missing. Nothing is drawn
// until the tree has loaded.
func (r *Reference) AddToScene(sc SceneContext) {
	tree := r.owner.TileTree()
	if tree == nil {
		return
	}

	tiles := r.selector.SelectTiles(tree, sc.ViewportID())
	SortForDrawing(tiles)

	ids := make([]quad.ID, 0, len(tiles))
	for _, t := range tiles {
		ids = append(ids, t.QuadID())
		switch t.Status() {
		case StatusReady:
			sc.OutputGraphic(t.Content().Graphic)
		case StatusEmpty:
		default:
			sc.InsertMissing(t)
		}
	}

	r.mu.Lock()
	r.selected[sc.ViewportID()] = ids
	r.mu.Unlock()
}

// SelectedQuadIDs returns the tiles last selected for a viewport
func (r *Reference) SelectedQuadIDs(viewportID string) []quad.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selected[viewportID]
}

// Decorate draws the provider's logo and copyright for the viewport
func (r *Reference) Decorate(dc imagery.DecorateContext) {
	tree := r.owner.TileTree()
	if tree == nil {
		return
	}
	tree.Provider().Decorate(dc, r)
}
