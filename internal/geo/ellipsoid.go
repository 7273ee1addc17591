// internal/geo/ellipsoid.go - WGS84 ellipsoid and ECEF conversion

// Package geo holds the geodetic and affine math used to place map tiles in
// engineering coordinates.
package geo

import (
	"math"

	"github.com/golang/geo/r3"
)

// WGS84 ellipsoid parameters
const (
	SemiMajorAxis = 6378137.0
	Flattening    = 1.0 / 298.257223563
	SemiMinorAxis = SemiMajorAxis * (1 - Flattening)

	eccentricitySquared = Flattening * (2 - Flattening)
)

// Cartographic is a geodetic position. Angles are in radians, height in meters
// above the ellipsoid.
type Cartographic struct {
	Longitude float64
	Latitude  float64
	Height    float64
}

// FromDegrees creates a cartographic position from degrees
func FromDegrees(lon, lat, height float64) Cartographic {
	return Cartographic{
		Longitude: lon * math.Pi / 180,
		Latitude:  lat * math.Pi / 180,
		Height:    height,
	}
}

// LongitudeDegrees returns the longitude in degrees
func (c Cartographic) LongitudeDegrees() float64 { return c.Longitude * 180 / math.Pi }

// LatitudeDegrees returns the latitude in degrees
func (c Cartographic) LatitudeDegrees() float64 { return c.Latitude * 180 / math.Pi }

// ToECEF converts to earth-centered earth-fixed coordinates
func (c Cartographic) ToECEF() r3.Vector {
	sinLat, cosLat := math.Sincos(c.Latitude)
	sinLon, cosLon := math.Sincos(c.Longitude)
	n := SemiMajorAxis / math.Sqrt(1-eccentricitySquared*sinLat*sinLat)

	return r3.Vector{
		X: (n + c.Height) * cosLat * cosLon,
		Y: (n + c.Height) * cosLat * sinLon,
		Z: (n*(1-eccentricitySquared) + c.Height) * sinLat,
	}
}

// CartographicFromECEF converts earth-centered earth-fixed coordinates to a
// geodetic position.
func CartographicFromECEF(p r3.Vector) Cartographic {
	lon := math.Atan2(p.Y, p.X)
	d := math.Hypot(p.X, p.Y)

	if d < 1e-9 {
		lat := math.Pi / 2
		if p.Z < 0 {
			lat = -lat
		}
		return Cartographic{Longitude: 0, Latitude: lat, Height: math.Abs(p.Z) - SemiMinorAxis}
	}

	lat := math.Atan2(p.Z, d*(1-eccentricitySquared))
	var height float64
	for i := 0; i < 8; i++ {
		sinLat := math.Sin(lat)
		n := SemiMajorAxis / math.Sqrt(1-eccentricitySquared*sinLat*sinLat)
		height = d/math.Cos(lat) - n
		lat = math.Atan2(p.Z, d*(1-eccentricitySquared*n/(n+height)))
	}

	return Cartographic{Longitude: lon, Latitude: lat, Height: height}
}

// Range3d is an axis-aligned box in engineering coordinates
type Range3d struct {
	Low  r3.Vector
	High r3.Vector
}

// NewRange3d creates a range from two corners in any order
func NewRange3d(a, b r3.Vector) Range3d {
	return Range3d{
		Low:  r3.Vector{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)},
		High: r3.Vector{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)},
	}
}

// Center returns the midpoint of the range
func (r Range3d) Center() r3.Vector {
	return r.Low.Add(r.High).Mul(0.5)
}

// Contains reports whether p lies inside the range, bounds included
func (r Range3d) Contains(p r3.Vector) bool {
	return p.X >= r.Low.X && p.X <= r.High.X &&
		p.Y >= r.Low.Y && p.Y <= r.High.Y &&
		p.Z >= r.Low.Z && p.Z <= r.High.Z
}
