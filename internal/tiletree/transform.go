// internal/tiletree/transform.go - Mercator fraction to model transform
package tiletree

import (
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/valpere/tile_imagery/internal/geo"
	"github.com/valpere/tile_imagery/internal/tiling"
)

// ComputeMercatorFractionToDb returns the affine map from the scheme's pixel
// fraction space to engineering coordinates, linearized at the center of the
// project extents. Fraction-space z maps to height above groundBias.
func ComputeMercatorFractionToDb(ecef geo.EcefLocation, groundBias float64, extents geo.Range3d, ts tiling.Scheme) (geo.Transform, error) {
	center := extents.Center()
	center.Z = groundBias

	toEcef := ecef.Transform()
	mercOrigin := ts.ECEFToPixelFraction(toEcef.Apply(center))
	mercEast := ts.ECEFToPixelFraction(toEcef.Apply(center.Add(r3.Vector{X: 1})))
	mercNorth := ts.ECEFToPixelFraction(toEcef.Apply(center.Add(r3.Vector{Y: 1})))

	basis := geo.MatrixFromColumns(
		mercEast.Sub(mercOrigin),
		mercNorth.Sub(mercOrigin),
		r3.Vector{Z: 1},
	)

	dbToMercator := geo.NewPickupPutdown(basis, center, mercOrigin)
	mercatorToDb, err := dbToMercator.Inverse()
	if err != nil {
		return geo.Transform{}, fmt.Errorf("mercator transform not invertible: %w", err)
	}
	return mercatorToDb, nil
}
