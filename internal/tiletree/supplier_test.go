package tiletree

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/valpere/tile_imagery/internal"
	"github.com/valpere/tile_imagery/internal/geo"
)

type failingConverter struct{}

func (failingConverter) CartographicToSpatial(ctx context.Context, points []geo.Cartographic) ([]r3.Vector, error) {
	return nil, errors.New("conversion service offline")
}

type fixedAllocator string

func (a fixedAllocator) NextTransientID() string { return string(a) }

func TestCreateTileTree(t *testing.T) {
	provider := newFakeProvider()
	model := testModel()
	model.Allocator = fixedAllocator("0x20000000001")
	supplier := NewBackgroundMapSupplier(&fakeFactory{provider: provider}, nil, 4, nil)

	id := testTreeID()
	id.GroundBias = -1.5
	tree, err := supplier.CreateTileTree(context.Background(), id, model)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if tree == nil {
		t.Fatal("Expected a tree")
	}

	if tree.ID() != id || tree.ModelID() != "model-1" || tree.TransientID() != "0x20000000001" {
		t.Errorf("Unexpected tree identity %v %q %q", tree.ID(), tree.ModelID(), tree.TransientID())
	}
	if !tree.GeoConverterAvailable() {
		t.Error("Expected geo converter to be available")
	}
	if provider.inits.Load() != 1 {
		t.Errorf("Expected provider initialized once, got %d", provider.inits.Load())
	}
	if fp := tree.Footprint(); fp.Low.Z != -1.5 || fp.High.X != RootExtent {
		t.Errorf("Unexpected footprint %+v", fp)
	}

	// the tree's root corners surround the model
	c := tree.Root().Corners()
	if !(c[0].X < 0 && c[0].Y > 0 && c[3].X > 0 && c[3].Y < 0) {
		t.Errorf("Expected root corners around the model origin, got %v", c)
	}
}

func TestCreateTileTreeNoTree(t *testing.T) {
	t.Run("unknown provider", func(t *testing.T) {
		factory := &fakeFactory{provider: newFakeProvider()}
		supplier := NewBackgroundMapSupplier(factory, nil, 1, nil)

		id := testTreeID()
		id.ProviderName = internal.ProviderName("AzureProvider")
		tree, err := supplier.CreateTileTree(context.Background(), id, testModel())
		if tree != nil || err != nil {
			t.Errorf("Expected nil, nil; got %v, %v", tree, err)
		}
	})

	t.Run("model not geolocated", func(t *testing.T) {
		provider := newFakeProvider()
		supplier := NewBackgroundMapSupplier(&fakeFactory{provider: provider}, nil, 1, nil)

		model := testModel()
		model.Location = nil
		tree, err := supplier.CreateTileTree(context.Background(), testTreeID(), model)
		if tree != nil || err != nil {
			t.Errorf("Expected nil, nil; got %v, %v", tree, err)
		}
		if provider.disposed.Load() != 1 {
			t.Error("Expected the unused provider to be disposed")
		}
	})
}

func TestCreateTileTreeInitError(t *testing.T) {
	provider := newFakeProvider()
	provider.initErr = internal.NewError(internal.ErrorCodeBadProvider, "metadata request failed", errors.New("403"))
	supplier := NewBackgroundMapSupplier(&fakeFactory{provider: provider}, nil, 1, nil)

	tree, err := supplier.CreateTileTree(context.Background(), testTreeID(), testModel())
	if tree != nil {
		t.Error("Expected no tree")
	}
	if !internal.HasCode(err, internal.ErrorCodeBadProvider) {
		t.Errorf("Expected bad provider error, got %v", err)
	}
}

func TestCreateTileTreeConverterProbe(t *testing.T) {
	tests := []struct {
		name      string
		converter GeoConverter
		want      bool
	}{
		{"missing", nil, false},
		{"failing", failingConverter{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := testModel()
			model.Converter = tt.converter
			supplier := NewBackgroundMapSupplier(&fakeFactory{provider: newFakeProvider()}, nil, 1, nil)

			tree, err := supplier.CreateTileTree(context.Background(), testTreeID(), model)
			if err != nil || tree == nil {
				t.Fatalf("Expected a tree, got %v, %v", tree, err)
			}
			if tree.GeoConverterAvailable() != tt.want {
				t.Errorf("Expected converter available %v, got %v", tt.want, tree.GeoConverterAvailable())
			}
		})
	}
}

func TestRangeForExtents(t *testing.T) {
	model := testModel()
	supplier := NewBackgroundMapSupplier(&fakeFactory{provider: newFakeProvider()}, nil, 1, nil)
	tree, err := supplier.CreateTileTree(context.Background(), testTreeID(), model)
	if err != nil || tree == nil {
		t.Fatalf("Expected a tree, got %v, %v", tree, err)
	}

	r, err := tree.RangeForExtents(model.ProjectExtents(), 10)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	want := TileRange{MinColumn: 298, MaxColumn: 298, MinRow: 387, MaxRow: 387}
	if *r != want {
		t.Errorf("Expected %+v, got %+v", want, *r)
	}

	r, _ = tree.RangeForExtents(model.ProjectExtents(), 0)
	if *r != (TileRange{}) {
		t.Errorf("Expected the root tile at level 0, got %+v", *r)
	}
}
