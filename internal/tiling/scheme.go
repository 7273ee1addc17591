// internal/tiling/scheme.go - Tiling scheme

// Package tiling maps quadtree tile addresses to geodetic positions and to a
// normalized pixel-fraction space.
package tiling

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/valpere/tile_imagery/internal/geo"
)

// MaxMercatorLatitude is the latitude, in degrees, at which the square Web
// Mercator map is cut off.
const MaxMercatorLatitude = 85.05112877980659

// Scheme describes a quadtree tiling of the globe. Fractions run from 0 to 1
// across the whole map at every level.
type Scheme interface {
	NumberOfXTilesAtLevel(level int) int
	NumberOfYTilesAtLevel(level int) int
	RowZeroAtNorthPole() bool

	TileXToFraction(x, level int) float64
	TileYToFraction(y, level int) float64
	XFractionToLongitude(xf float64) float64
	YFractionToLatitude(yf float64) float64
	LongitudeToXFraction(lon float64) float64
	LatitudeToYFraction(lat float64) float64

	TileXYToCartographic(x, y, level int) geo.Cartographic
	CartographicToFraction(c geo.Cartographic) r3.Vector
	ECEFToPixelFraction(p r3.Vector) r3.Vector
}

// WebMercator is the EPSG:3857 tiling used by Bing, MapBox and most XYZ
// servers: one tile at level zero, row zero at the north edge.
type WebMercator struct {
	levelZeroX int
	levelZeroY int
}

// NewWebMercator creates a Web Mercator tiling scheme
func NewWebMercator() *WebMercator {
	return &WebMercator{levelZeroX: 1, levelZeroY: 1}
}

func (s *WebMercator) NumberOfXTilesAtLevel(level int) int {
	if level < 0 {
		return s.levelZeroX
	}
	return s.levelZeroX << level
}

func (s *WebMercator) NumberOfYTilesAtLevel(level int) int {
	if level < 0 {
		return s.levelZeroY
	}
	return s.levelZeroY << level
}

func (s *WebMercator) RowZeroAtNorthPole() bool { return true }

func (s *WebMercator) TileXToFraction(x, level int) float64 {
	return float64(x) / float64(s.NumberOfXTilesAtLevel(level))
}

func (s *WebMercator) TileYToFraction(y, level int) float64 {
	return float64(y) / float64(s.NumberOfYTilesAtLevel(level))
}

// XFractionToLongitude returns radians
func (s *WebMercator) XFractionToLongitude(xf float64) float64 {
	return 2*math.Pi*xf - math.Pi
}

// YFractionToLatitude returns radians
func (s *WebMercator) YFractionToLatitude(yf float64) float64 {
	return math.Atan(math.Sinh(math.Pi * (1 - 2*yf)))
}

// LongitudeToXFraction takes radians
func (s *WebMercator) LongitudeToXFraction(lon float64) float64 {
	return lon/(2*math.Pi) + 0.5
}

// LatitudeToYFraction takes radians; latitudes beyond the Mercator cutoff
// are clamped.
func (s *WebMercator) LatitudeToYFraction(lat float64) float64 {
	limit := MaxMercatorLatitude * math.Pi / 180
	lat = math.Max(-limit, math.Min(limit, lat))
	return (1 - math.Asinh(math.Tan(lat))/math.Pi) / 2
}

// TileXYToCartographic returns the north-west corner of the tile at zero height
func (s *WebMercator) TileXYToCartographic(x, y, level int) geo.Cartographic {
	return geo.Cartographic{
		Longitude: s.XFractionToLongitude(s.TileXToFraction(x, level)),
		Latitude:  s.YFractionToLatitude(s.TileYToFraction(y, level)),
	}
}

// CartographicToFraction projects a geodetic position to (xf, yf, 0)
func (s *WebMercator) CartographicToFraction(c geo.Cartographic) r3.Vector {
	return r3.Vector{
		X: s.LongitudeToXFraction(c.Longitude),
		Y: s.LatitudeToYFraction(c.Latitude),
	}
}

// ECEFToPixelFraction projects an earth-centered position to (xf, yf, 0)
func (s *WebMercator) ECEFToPixelFraction(p r3.Vector) r3.Vector {
	return s.CartographicToFraction(geo.CartographicFromECEF(p))
}
