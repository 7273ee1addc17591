// internal/quad/id.go - Quadtree tile address

// Package quad addresses cells of the map quadtree.
package quad

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/valpere/tile_imagery/internal/tiling"
)

// ID is a quadtree tile address. A negative level marks an invalid id.
type ID struct {
	Level  int `json:"level"`
	Column int `json:"column"`
	Row    int `json:"row"`
}

// Invalid is returned when a content id cannot be parsed
var Invalid = ID{Level: -1}

// New creates a tile address
func New(level, column, row int) ID {
	return ID{Level: level, Column: column, Row: row}
}

// FromContentID parses "level_column_row". Anything else yields Invalid;
// callers are expected to check IsValid.
func FromContentID(contentID string) ID {
	parts := strings.Split(contentID, "_")
	if len(parts) != 3 {
		return Invalid
	}

	var values [3]int
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil {
			return Invalid
		}
		values[i] = v
	}

	return ID{Level: values[0], Column: values[1], Row: values[2]}
}

// ContentID serializes the address as "level_column_row"
func (q ID) ContentID() string {
	return fmt.Sprintf("%d_%d_%d", q.Level, q.Column, q.Row)
}

// IsValid reports whether the id addresses a real tile
func (q ID) IsValid() bool {
	return q.Level >= 0
}

func (q ID) String() string {
	return fmt.Sprintf("%d/%d/%d", q.Level, q.Column, q.Row)
}

// LatLongRange returns the geodetic box of the tile in degrees, x being
// longitude and y latitude.
func (q ID) LatLongRange(ts tiling.Scheme) orb.Bound {
	a := ts.TileXYToCartographic(q.Column, q.Row, q.Level)
	b := ts.TileXYToCartographic(q.Column+1, q.Row+1, q.Level)

	return orb.Bound{
		Min: orb.Point{a.LongitudeDegrees(), a.LatitudeDegrees()},
		Max: orb.Point{a.LongitudeDegrees(), a.LatitudeDegrees()},
	}.Extend(orb.Point{b.LongitudeDegrees(), b.LatitudeDegrees()})
}

// Tile converts the address to an orb map tile
func (q ID) Tile() maptile.Tile {
	return maptile.New(uint32(q.Column), uint32(q.Row), maptile.Zoom(q.Level))
}

// FromTile converts an orb map tile to an address
func FromTile(t maptile.Tile) ID {
	return ID{Level: int(t.Z), Column: int(t.X), Row: int(t.Y)}
}

// Children returns the four tiles one level down
func (q ID) Children() []ID {
	children := q.Tile().Children()
	ids := make([]ID, len(children))
	for i, c := range children {
		ids[i] = FromTile(c)
	}
	return ids
}

// Parent returns the tile one level up; the root is its own parent
func (q ID) Parent() ID {
	if q.Level <= 0 {
		return q
	}
	return FromTile(q.Tile().Parent())
}

// Compare orders ids by level, then row, then column
func Compare(a, b ID) int {
	if c := cmp.Compare(a.Level, b.Level); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Row, b.Row); c != 0 {
		return c
	}
	return cmp.Compare(a.Column, b.Column)
}
