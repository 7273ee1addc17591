// internal/imagery/bing.go - Bing Maps imagery provider
package imagery

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/paulmach/orb/maptile"
	"go.uber.org/zap"

	"github.com/valpere/tile_imagery/internal"
	"github.com/valpere/tile_imagery/internal/config"
)

// bingMetadata mirrors the parts of the Bing imagery metadata response we use
type bingMetadata struct {
	BrandLogoURI string `json:"brandLogoUri"`
	ResourceSets []struct {
		Resources []bingResource `json:"resources"`
	} `json:"resourceSets"`
	ImageryProviders []bingImageryProvider `json:"imageryProviders"`
}

type bingResource struct {
	ImageHeight        int                   `json:"imageHeight"`
	ImageWidth         int                   `json:"imageWidth"`
	ImageURL           string                `json:"imageUrl"`
	ImageURLSubdomains []string              `json:"imageUrlSubdomains"`
	ZoomMax            int                   `json:"zoomMax"`
	ZoomMin            int                   `json:"zoomMin"`
	ImageryProviders   []bingImageryProvider `json:"imageryProviders"`
}

type bingImageryProvider struct {
	Attribution   string `json:"attribution"`
	CoverageAreas []struct {
		BBox    []float64 `json:"bbox"`
		ZoomMin int       `json:"zoomMin"`
		ZoomMax int       `json:"zoomMax"`
	} `json:"coverageAreas"`
}

// BingProvider serves Bing Maps imagery addressed by quadkeys
type BingProvider struct {
	*base
	EPSG3857

	key         string
	metadataURL string
	culture     string

	urlTemplate string
	subdomains  []string

	probeOnce sync.Once
	probeDone chan struct{}
}

// NewBingProvider creates an uninitialized Bing provider
func NewBingProvider(mapType MapType, cfg config.BingConfig, fetcher Fetcher, logger *zap.Logger) *BingProvider {
	return &BingProvider{
		base:        newBase(internal.ProviderBing, mapType, fetcher, logger),
		key:         cfg.Key,
		metadataURL: cfg.MetadataURL,
		culture:     cfg.Culture,
		probeDone:   make(chan struct{}),
	}
}

// ImagerySet returns the Bing imagery set name for the map type
func (p *BingProvider) ImagerySet() string {
	switch p.mapType {
	case MapTypeStreet:
		return "Road"
	case MapTypeAerial:
		return "Aerial"
	default:
		return "AerialWithLabels"
	}
}

// Initialize fetches the imagery metadata, then starts learning the missing
// tile fingerprint in the background without waiting for it.
func (p *BingProvider) Initialize(ctx context.Context) error {
	metaURL := strings.NewReplacer("{imagerySet}", p.ImagerySet(), "{key}", p.key).Replace(p.metadataURL)

	var meta bingMetadata
	if err := fetchJSON(ctx, p.fetcher, metaURL, &meta); err != nil {
		p.logger.Warn("bing metadata request failed", zap.Error(err))
		return badProvider("bing metadata request failed", err)
	}
	if len(meta.ResourceSets) == 0 || len(meta.ResourceSets[0].Resources) == 0 {
		return badProvider("bing metadata is missing resources", errors.New("empty resource set"))
	}

	res := meta.ResourceSets[0].Resources[0]
	if res.ImageURL == "" {
		return badProvider("bing metadata is missing the image URL", errors.New("empty imageUrl"))
	}

	p.minZoom = res.ZoomMin
	p.maxZoom = res.ZoomMax
	if res.ImageWidth > 0 {
		p.tileWidth = res.ImageWidth
	}
	if res.ImageHeight > 0 {
		p.tileHeight = res.ImageHeight
	}
	p.urlTemplate = ReplaceHTTPWithHTTPS(res.ImageURL)
	p.subdomains = res.ImageURLSubdomains
	if meta.BrandLogoURI != "" {
		p.logoURL = ReplaceHTTPWithHTTPS(meta.BrandLogoURI)
	}

	providers := res.ImageryProviders
	if len(providers) == 0 {
		providers = meta.ImageryProviders
	}
	p.attributions = bingAttributions(providers)
	p.copyright = "Bing Maps"

	p.logger.Debug("bing metadata loaded",
		zap.Int("zoom_min", p.minZoom),
		zap.Int("zoom_max", p.maxZoom),
		zap.Int("attributions", len(p.attributions)))

	probeCtx := context.WithoutCancel(ctx)
	p.probeOnce.Do(func() { go p.probeMissingTile(probeCtx) })

	return nil
}

// probeMissingTile requests a tile Bing is known not to have and keeps the
// returned placeholder as the missing tile fingerprint
func (p *BingProvider) probeMissingTile(ctx context.Context) {
	defer close(p.probeDone)

	url := p.ConstructURL(0, 0, p.maxZoom-1)
	resp, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		p.logger.Debug("missing tile probe failed", zap.String("url", url), zap.Error(err))
		return
	}
	p.setMissingTile(resp.Data)
}

func (p *BingProvider) ConstructURL(row, column, zoom int) string {
	subdomain := ""
	if n := len(p.subdomains); n > 0 {
		subdomain = p.subdomains[(row+column)%n]
	}

	return strings.NewReplacer(
		"{subdomain}", subdomain,
		"{quadkey}", QuadKey(column, row, zoom),
		"{culture}", p.culture,
	).Replace(p.urlTemplate)
}

func (p *BingProvider) LoadTile(ctx context.Context, row, column, zoom int) (*ImageSource, error) {
	return p.loadTile(ctx, p.ConstructURL(row, column, zoom))
}

// QuadKey builds the Bing quadkey of a tile: one base-4 digit per level, most
// significant first, each digit being 2*rowBit + columnBit. Level 0 is the
// root and has the empty key, as does any tile outside the level 1 to 32 grid.
func QuadKey(column, row, zoom int) string {
	if zoom <= 0 || zoom > 32 {
		return ""
	}
	if column < 0 || row < 0 || uint64(column) >= 1<<uint(zoom) || uint64(row) >= 1<<uint(zoom) {
		return ""
	}

	k := maptile.New(uint32(column), uint32(row), maptile.Zoom(zoom)).Quadkey()

	var b strings.Builder
	b.Grow(zoom)
	for i := zoom - 1; i >= 0; i-- {
		b.WriteByte('0' + byte((k>>(2*uint(i)))&3))
	}
	return b.String()
}

func bingAttributions(providers []bingImageryProvider) []Attribution {
	attributions := make([]Attribution, 0, len(providers))
	for _, ip := range providers {
		a := Attribution{CopyrightMessage: ip.Attribution}
		for _, area := range ip.CoverageAreas {
			if len(area.BBox) != 4 {
				continue
			}
			// bbox is south, west, north, east
			a.Coverages = append(a.Coverages, Coverage{
				LowerLeftLat:  area.BBox[0],
				LowerLeftLon:  area.BBox[1],
				UpperRightLat: area.BBox[2],
				UpperRightLon: area.BBox[3],
				MinZoom:       area.ZoomMin,
				MaxZoom:       area.ZoomMax,
			})
		}
		attributions = append(attributions, a)
	}
	return attributions
}
