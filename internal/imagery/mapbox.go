// internal/imagery/mapbox.go - MapBox imagery provider
package imagery

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/valpere/tile_imagery/internal"
	"github.com/valpere/tile_imagery/internal/config"
)

// MapBoxProvider serves MapBox raster tiles
type MapBoxProvider struct {
	*base
	EPSG3857

	baseURL string
	token   string
}

// NewMapBoxProvider creates a MapBox provider; it needs no network setup
func NewMapBoxProvider(mapType MapType, cfg config.MapBoxConfig, fetcher Fetcher, logger *zap.Logger) *MapBoxProvider {
	p := &MapBoxProvider{
		base:    newBase(internal.ProviderMapBox, mapType, fetcher, logger),
		baseURL: ReplaceHTTPWithHTTPS(cfg.BaseURL),
		token:   cfg.Token,
	}
	p.minZoom = 1
	p.maxZoom = 20
	p.copyright = "(c) Mapbox, (c) OpenStreetMap contributors"
	return p
}

// MapID returns the MapBox map identifier for the map type
func (p *MapBoxProvider) MapID() string {
	switch p.mapType {
	case MapTypeStreet:
		return "mapbox.streets"
	case MapTypeAerial:
		return "mapbox.satellite"
	default:
		return "mapbox.streets-satellite"
	}
}

func (p *MapBoxProvider) Initialize(context.Context) error {
	return nil
}

func (p *MapBoxProvider) ConstructURL(row, column, zoom int) string {
	return fmt.Sprintf("%s%s/%d/%d/%d.jpg80?access_token=%s", p.baseURL, p.MapID(), zoom, column, row, p.token)
}

func (p *MapBoxProvider) LoadTile(ctx context.Context, row, column, zoom int) (*ImageSource, error) {
	return p.loadTile(ctx, p.ConstructURL(row, column, zoom))
}
