// internal/tiletree/model.go - Model, geo converter and id allocator interfaces
package tiletree

import (
	"context"
	"errors"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"

	"github.com/valpere/tile_imagery/internal/geo"
)

// ErrNoEcefLocation is returned by conversions on a model that is not
// placed on the earth
var ErrNoEcefLocation = errors.New("model has no ECEF location")

// Model is the engineering model a background map is placed under
type Model interface {
	ID() string
	// EcefLocation reports false when the model is not geolocated
	EcefLocation() (geo.EcefLocation, bool)
	ProjectExtents() geo.Range3d
	// GeoConverter may be nil
	GeoConverter() GeoConverter
	IDAllocator() IDAllocator
}

// GeoConverter converts geodetic positions to engineering coordinates
type GeoConverter interface {
	CartographicToSpatial(ctx context.Context, points []geo.Cartographic) ([]r3.Vector, error)
}

// IDAllocator hands out ids for objects that exist only in memory
type IDAllocator interface {
	NextTransientID() string
}

// UUIDAllocator allocates random UUIDs
type UUIDAllocator struct{}

func (UUIDAllocator) NextTransientID() string {
	return uuid.NewString()
}

// StaticModel is a Model whose placement is fixed at construction
type StaticModel struct {
	Name      string
	Location  *geo.EcefLocation
	Extents   geo.Range3d
	Converter GeoConverter
	Allocator IDAllocator
}

// NewStaticModel creates a model anchored at origin with an east-north-up
// frame and a local converter
func NewStaticModel(name string, origin geo.Cartographic, extents geo.Range3d) *StaticModel {
	loc := geo.EcefLocationFromCartographic(origin)
	return &StaticModel{
		Name:      name,
		Location:  &loc,
		Extents:   extents,
		Converter: NewEcefConverter(loc),
		Allocator: UUIDAllocator{},
	}
}

func (m *StaticModel) ID() string { return m.Name }

func (m *StaticModel) EcefLocation() (geo.EcefLocation, bool) {
	if m.Location == nil {
		return geo.EcefLocation{}, false
	}
	return *m.Location, true
}

func (m *StaticModel) ProjectExtents() geo.Range3d { return m.Extents }

func (m *StaticModel) GeoConverter() GeoConverter {
	if m.Converter == nil {
		return nil
	}
	return m.Converter
}

func (m *StaticModel) IDAllocator() IDAllocator {
	if m.Allocator == nil {
		return UUIDAllocator{}
	}
	return m.Allocator
}

// EcefConverter converts through the inverse of an ECEF location transform
type EcefConverter struct {
	toDb geo.Transform
	err  error
}

// NewEcefConverter creates a converter for loc
func NewEcefConverter(loc geo.EcefLocation) *EcefConverter {
	inv, err := loc.Transform().Inverse()
	return &EcefConverter{toDb: inv, err: err}
}

func (c *EcefConverter) CartographicToSpatial(ctx context.Context, points []geo.Cartographic) ([]r3.Vector, error) {
	if c.err != nil {
		return nil, c.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]r3.Vector, len(points))
	for i, p := range points {
		out[i] = c.toDb.Apply(p.ToECEF())
	}
	return out, nil
}
