// internal/imagery/epsg3857.go - Web mercator tile extents
package imagery

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Extent is a box in EPSG:3857 meters
type Extent struct {
	Left   float64
	Right  float64
	Bottom float64
	Top    float64
}

// EPSG3857 adds Web Mercator meter conversions to a provider
type EPSG3857 struct{}

// X converts a longitude in degrees to meters
func (EPSG3857) X(longitude float64) float64 {
	return project.Point(orb.Point{longitude, 0}, project.WGS84.ToMercator)[0]
}

// Y converts a latitude in degrees to meters
func (EPSG3857) Y(latitude float64) float64 {
	return project.Point(orb.Point{0, latitude}, project.WGS84.ToMercator)[1]
}

// Extent returns the projected box of a tile on a 256 pixel grid
func (e EPSG3857) Extent(row, column, zoom int) Extent {
	mapSize := float64(int64(256) << zoom)
	leftGrid := 256 * float64(column)
	topGrid := 256 * float64(row)

	longitudeLeft := 360 * (leftGrid/mapSize - 0.5)
	longitudeRight := 360 * ((leftGrid+256)/mapSize - 0.5)

	y0 := 0.5 - (topGrid+256)/mapSize
	latitudeBottom := 90 - 360*math.Atan(math.Exp(-y0*2*math.Pi))/math.Pi
	y1 := 0.5 - topGrid/mapSize
	latitudeTop := 90 - 360*math.Atan(math.Exp(-y1*2*math.Pi))/math.Pi

	return Extent{
		Left:   e.X(longitudeLeft),
		Right:  e.X(longitudeRight),
		Bottom: e.Y(latitudeBottom),
		Top:    e.Y(latitudeTop),
	}
}
