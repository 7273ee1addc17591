// internal/imagery/attribution.go - Data provider attributions and coverage matching
package imagery

import (
	"github.com/paulmach/orb"

	"github.com/valpere/tile_imagery/internal/quad"
	"github.com/valpere/tile_imagery/internal/tiling"
)

// Coverage is a geographic box and zoom range for which a data provider
// supplies imagery. Angles are in degrees.
type Coverage struct {
	LowerLeftLat  float64 `json:"lower_left_lat"`
	LowerLeftLon  float64 `json:"lower_left_lon"`
	UpperRightLat float64 `json:"upper_right_lat"`
	UpperRightLon float64 `json:"upper_right_lon"`
	MinZoom       int     `json:"min_zoom"`
	MaxZoom       int     `json:"max_zoom"`
}

// Bound returns the coverage box with x as longitude and y as latitude
func (c Coverage) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{c.LowerLeftLon, c.LowerLeftLat},
		Max: orb.Point{c.UpperRightLon, c.UpperRightLat},
	}
}

// Overlaps reports whether the tile is within the zoom range and its
// geodetic box touches the coverage box
func (c Coverage) Overlaps(q quad.ID, ts tiling.Scheme) bool {
	if q.Level < c.MinZoom || q.Level > c.MaxZoom {
		return false
	}
	return q.LatLongRange(ts).Intersects(c.Bound())
}

// Attribution is the copyright of one data provider
type Attribution struct {
	CopyrightMessage string     `json:"copyright_message"`
	Coverages        []Coverage `json:"coverages"`
}

// MatchesTile reports whether any coverage overlaps the tile
func (a Attribution) MatchesTile(q quad.ID, ts tiling.Scheme) bool {
	for _, c := range a.Coverages {
		if c.Overlaps(q, ts) {
			return true
		}
	}
	return false
}

// MatchingAttributions returns the attributions that match at least one of
// the tiles. An attribution leaves the candidate pool on its first match, so
// none is returned twice.
func MatchingAttributions(attributions []Attribution, tiles []quad.ID, ts tiling.Scheme) []Attribution {
	pool := make([]Attribution, len(attributions))
	copy(pool, attributions)

	var matching []Attribution
	for _, tile := range tiles {
		for i := 0; i < len(pool); i++ {
			if pool[i].MatchesTile(tile, ts) {
				matching = append(matching, pool[i])
				pool = append(pool[:i], pool[i+1:]...)
				i--
			}
		}
		if len(pool) == 0 {
			break
		}
	}
	return matching
}
