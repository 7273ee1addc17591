// internal/tiletree/render.go - Render system and scene interfaces
package tiletree

import (
	"fmt"
	"image"
	"math"

	"github.com/golang/geo/r3"

	"github.com/valpere/tile_imagery/internal/geo"
)

// Texture is an uploaded tile image
type Texture interface {
	Width() int
	Height() int
}

// Graphic is drawable tile content
type Graphic interface{}

// RenderSystem turns decoded tile images into drawable content
type RenderSystem interface {
	CreateTexture(img image.Image) (Texture, error)
	// corners are north-west, north-east, south-west, south-east
	CreateTileGraphic(tex Texture, corners [4]r3.Vector) (Graphic, error)
}

// TileSelector picks the tiles of a tree to display in a viewport
type TileSelector interface {
	SelectTiles(tree *Tree, viewportID string) []*Tile
}

// SceneContext receives the drawable output of one viewport frame
type SceneContext interface {
	ViewportID() string
	OutputGraphic(g Graphic)
	InsertMissing(t *Tile)
}

// ImageTexture keeps the decoded image in memory
type ImageTexture struct {
	Image image.Image
}

func (t *ImageTexture) Width() int  { return t.Image.Bounds().Dx() }
func (t *ImageTexture) Height() int { return t.Image.Bounds().Dy() }

// TileGraphic is a textured quad in engineering coordinates
type TileGraphic struct {
	Texture *ImageTexture
	Corners [4]r3.Vector
}

// ImageRenderSystem is a RenderSystem that keeps textures as images, used
// when tiles are rendered off-screen
type ImageRenderSystem struct{}

func (ImageRenderSystem) CreateTexture(img image.Image) (Texture, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("cannot create texture from empty image")
	}
	return &ImageTexture{Image: img}, nil
}

func (ImageRenderSystem) CreateTileGraphic(tex Texture, corners [4]r3.Vector) (Graphic, error) {
	it, ok := tex.(*ImageTexture)
	if !ok {
		return nil, fmt.Errorf("unexpected texture type %T", tex)
	}
	return &TileGraphic{Texture: it, Corners: corners}, nil
}

// LevelSelector selects the tiles of one level inside an optional tile
// range, clamped to the provider's zoom limits
type LevelSelector struct {
	Level int
	Range *TileRange
}

// TileRange bounds the columns and rows selected at a level
type TileRange struct {
	MinColumn, MaxColumn int
	MinRow, MaxRow       int
}

func (s LevelSelector) SelectTiles(tree *Tree, _ string) []*Tile {
	level := s.Level
	p := tree.Provider()
	if level > p.MaxZoom() {
		level = p.MaxZoom()
	}
	if level < p.MinZoom() {
		level = p.MinZoom()
	}

	var selected []*Tile
	var walk func(t *Tile)
	walk = func(t *Tile) {
		q := t.QuadID()
		if s.Range != nil && !s.Range.overlaps(q.Column, q.Row, q.Level, level) {
			return
		}
		if q.Level == level {
			selected = append(selected, t)
			return
		}
		for _, c := range t.Children() {
			walk(c)
		}
	}
	walk(tree.Root())
	return selected
}

// overlaps reports whether a tile at level might contain tiles of target
// inside the range
func (r *TileRange) overlaps(column, row, level, target int) bool {
	shift := target - level
	minC, maxC := column<<shift, ((column+1)<<shift)-1
	minR, maxR := row<<shift, ((row+1)<<shift)-1
	return maxC >= r.MinColumn && minC <= r.MaxColumn && maxR >= r.MinRow && minR <= r.MaxRow
}

// RangeForExtents returns the tiles at level under the XY footprint of
// extents, clamped to the tile grid
func (t *Tree) RangeForExtents(extents geo.Range3d, level int) (*TileRange, error) {
	dbToMercator, err := t.mercatorToDb.Inverse()
	if err != nil {
		return nil, err
	}

	ts := t.provider.TilingScheme()
	nx, ny := ts.NumberOfXTilesAtLevel(level), ts.NumberOfYTilesAtLevel(level)
	r := &TileRange{MinColumn: nx - 1, MinRow: ny - 1}

	for _, x := range []float64{extents.Low.X, extents.High.X} {
		for _, y := range []float64{extents.Low.Y, extents.High.Y} {
			f := dbToMercator.Apply(r3.Vector{X: x, Y: y, Z: t.id.GroundBias})
			c := clampInt(int(math.Floor(f.X*float64(nx))), 0, nx-1)
			row := clampInt(int(math.Floor(f.Y*float64(ny))), 0, ny-1)
			r.MinColumn, r.MaxColumn = min(r.MinColumn, c), max(r.MaxColumn, c)
			r.MinRow, r.MaxRow = min(r.MinRow, row), max(r.MaxRow, row)
		}
	}
	return r, nil
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
