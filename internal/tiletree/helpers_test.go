package tiletree

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/geo/r3"

	"github.com/valpere/tile_imagery/internal"
	"github.com/valpere/tile_imagery/internal/geo"
	"github.com/valpere/tile_imagery/internal/imagery"
	"github.com/valpere/tile_imagery/internal/quad"
	"github.com/valpere/tile_imagery/internal/tiling"
)

type fakeProvider struct {
	name     internal.ProviderName
	minZoom  int
	maxZoom  int
	tileSize int
	initErr  error
	load     func(ctx context.Context, row, column, zoom int) (*imagery.ImageSource, error)

	inits    atomic.Int32
	disposed atomic.Int32

	mu        sync.Mutex
	decorated []quad.ID
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		name:     internal.ProviderBing,
		minZoom:  1,
		maxZoom:  3,
		tileSize: 256,
	}
}

func (p *fakeProvider) Name() internal.ProviderName { return p.name }
func (p *fakeProvider) MapType() imagery.MapType    { return imagery.MapTypeAerial }

func (p *fakeProvider) Initialize(ctx context.Context) error {
	p.inits.Add(1)
	return p.initErr
}

func (p *fakeProvider) ConstructURL(row, column, zoom int) string { return "" }

func (p *fakeProvider) LoadTile(ctx context.Context, row, column, zoom int) (*imagery.ImageSource, error) {
	if p.load == nil {
		return nil, nil
	}
	return p.load(ctx, row, column, zoom)
}

func (p *fakeProvider) MinZoom() int                        { return p.minZoom }
func (p *fakeProvider) MaxZoom() int                        { return p.maxZoom }
func (p *fakeProvider) TileWidth() int                      { return p.tileSize }
func (p *fakeProvider) TileHeight() int                     { return p.tileSize }
func (p *fakeProvider) TilingScheme() tiling.Scheme         { return tiling.NewWebMercator() }
func (p *fakeProvider) Attributions() []imagery.Attribution { return nil }

func (p *fakeProvider) MatchingAttributions(tiles []quad.ID) []imagery.Attribution { return nil }

func (p *fakeProvider) Decorate(dc imagery.DecorateContext, tiles imagery.SelectedTiles) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decorated = tiles.SelectedQuadIDs(dc.ViewportID())
}

func (p *fakeProvider) Dispose() error {
	p.disposed.Add(1)
	return nil
}

type fakeFactory struct {
	mu       sync.Mutex
	created  int
	provider *fakeProvider
}

func (f *fakeFactory) Create(name internal.ProviderName, mapType imagery.MapType) (imagery.Provider, bool) {
	if name != internal.ProviderBing {
		return nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	return f.provider, true
}

func testModel() *StaticModel {
	return NewStaticModel("model-1", geo.FromDegrees(-75.16, 39.95, 0),
		geo.NewRange3d(r3Vec(-500, -500, -10), r3Vec(500, 500, 50)))
}

func testTreeID() TreeID {
	return TreeID{ProviderName: internal.ProviderBing, MapType: imagery.MapTypeAerial}
}

func newTestTree(t *testing.T, p *fakeProvider) *Tree {
	t.Helper()
	return NewTree(TreeParams{
		ID:           testTreeID(),
		ModelID:      "model-1",
		TransientID:  "0x1",
		Provider:     p,
		Concurrency:  4,
		MercatorToDb: geo.IdentityTransform(),
	})
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for condition")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func r3Vec(x, y, z float64) r3.Vector {
	return r3.Vector{X: x, Y: y, Z: z}
}
