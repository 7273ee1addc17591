package tiletree

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/valpere/tile_imagery/internal/geo"
	"github.com/valpere/tile_imagery/internal/tiling"
)

func TestComputeMercatorFractionToDb(t *testing.T) {
	ts := tiling.NewWebMercator()

	tests := []struct {
		name       string
		origin     geo.Cartographic
		groundBias float64
	}{
		{"philadelphia", geo.FromDegrees(-75.16, 39.95, 0), 0},
		{"equator", geo.FromDegrees(10, 0, 0), 5},
		{"southern", geo.FromDegrees(151.2, -33.86, 20), -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := geo.EcefLocationFromCartographic(tt.origin)
			extents := geo.NewRange3d(r3Vec(-200, -100, 0), r3Vec(200, 100, 30))

			mercToDb, err := ComputeMercatorFractionToDb(loc, tt.groundBias, extents, ts)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}

			center := extents.Center()
			center.Z = tt.groundBias
			toEcef := loc.Transform()

			// the extents center maps back exactly
			got := mercToDb.Apply(ts.ECEFToPixelFraction(toEcef.Apply(center)))
			if got.Sub(center).Norm() > 1e-3 {
				t.Errorf("Expected center %v, got %v", center, got)
			}

			// nearby points are linearized to within a meter
			for _, offset := range []r3.Vector{{X: 1000}, {Y: -1000}, {X: 700, Y: 700}} {
				p := center.Add(offset)
				got := mercToDb.Apply(ts.ECEFToPixelFraction(toEcef.Apply(p)))
				if math.Abs(got.X-p.X) > 1 || math.Abs(got.Y-p.Y) > 1 {
					t.Errorf("Offset %v: expected %v, got %v", offset, p, got)
				}
				if math.Abs(got.Z-tt.groundBias) > 1e-6 {
					t.Errorf("Offset %v: expected z %v, got %v", offset, tt.groundBias, got.Z)
				}
			}
		})
	}
}
