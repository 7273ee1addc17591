// internal/imagery/wms.go - Templated WMS imagery provider
package imagery

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/valpere/tile_imagery/internal"
	"github.com/valpere/tile_imagery/internal/config"
)

// WmsProvider serves tiles from a templated WMS or XYZ server. The template
// may reference {bbox} (EPSG:3857 left,bottom,right,top), {width}, {height},
// {z}, {x} and {y}.
type WmsProvider struct {
	*base
	EPSG3857

	urlTemplate string
}

// NewWmsProvider creates a provider from a URL template
func NewWmsProvider(mapType MapType, cfg config.WmsConfig, fetcher Fetcher, logger *zap.Logger) *WmsProvider {
	p := &WmsProvider{
		base:        newBase(internal.ProviderWms, mapType, fetcher, logger),
		urlTemplate: ReplaceHTTPWithHTTPS(cfg.URLTemplate),
	}
	p.minZoom = cfg.MinZoom
	p.maxZoom = cfg.MaxZoom
	if cfg.TileSize > 0 {
		p.tileWidth = cfg.TileSize
		p.tileHeight = cfg.TileSize
	}
	if cfg.Copyright != "" {
		p.copyright = cfg.Copyright
		p.attributions = []Attribution{{
			CopyrightMessage: cfg.Copyright,
			Coverages: []Coverage{{
				LowerLeftLat:  -90,
				LowerLeftLon:  -180,
				UpperRightLat: 90,
				UpperRightLon: 180,
				MinZoom:       cfg.MinZoom,
				MaxZoom:       cfg.MaxZoom,
			}},
		}}
	}
	return p
}

func (p *WmsProvider) Initialize(context.Context) error {
	return nil
}

func (p *WmsProvider) ConstructURL(row, column, zoom int) string {
	e := p.Extent(row, column, zoom)
	bbox := strings.Join([]string{
		formatMeters(e.Left),
		formatMeters(e.Bottom),
		formatMeters(e.Right),
		formatMeters(e.Top),
	}, ",")

	return strings.NewReplacer(
		"{bbox}", bbox,
		"{width}", strconv.Itoa(p.tileWidth),
		"{height}", strconv.Itoa(p.tileHeight),
		"{z}", strconv.Itoa(zoom),
		"{x}", strconv.Itoa(column),
		"{y}", strconv.Itoa(row),
	).Replace(p.urlTemplate)
}

func (p *WmsProvider) LoadTile(ctx context.Context, row, column, zoom int) (*ImageSource, error) {
	return p.loadTile(ctx, p.ConstructURL(row, column, zoom))
}

func formatMeters(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
