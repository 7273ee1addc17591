// internal/imagery/provider.go - Imagery provider contract and shared tile loading
package imagery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/valpere/tile_imagery/internal"
	"github.com/valpere/tile_imagery/internal/logging"
	"github.com/valpere/tile_imagery/internal/quad"
	"github.com/valpere/tile_imagery/internal/tiling"
)

var (
	// ErrBadProvider marks a provider whose initialization failed
	ErrBadProvider = errors.New("bad imagery provider")

	// ErrUnsupportedFormat marks a tile response that is neither JPEG nor PNG
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// MapType selects the kind of background imagery
type MapType string

const (
	MapTypeAerial MapType = "aerial"
	MapTypeStreet MapType = "street"
	MapTypeHybrid MapType = "hybrid"
)

// ImageFormat is the encoding of a fetched tile
type ImageFormat int

const (
	FormatJPEG ImageFormat = iota + 1
	FormatPNG
)

func (f ImageFormat) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatPNG:
		return "png"
	default:
		return "unknown"
	}
}

// Extension returns the file extension for the format
func (f ImageFormat) Extension() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return ".png"
}

// ImageSource is the raw encoded image of one tile
type ImageSource struct {
	Data   []byte
	Format ImageFormat
}

// Provider is an imagery source addressed by quadtree tiles
type Provider interface {
	Name() internal.ProviderName
	MapType() MapType

	// Initialize performs one-time setup; configuration is immutable afterwards
	Initialize(ctx context.Context) error

	ConstructURL(row, column, zoom int) string

	// LoadTile returns nil, nil when there is nothing to draw for the tile
	LoadTile(ctx context.Context, row, column, zoom int) (*ImageSource, error)

	MinZoom() int
	MaxZoom() int
	TileWidth() int
	TileHeight() int
	TilingScheme() tiling.Scheme

	Attributions() []Attribution
	MatchingAttributions(tiles []quad.ID) []Attribution
	Decorate(dc DecorateContext, tiles SelectedTiles)
	Dispose() error
}

// base carries the state and behaviour shared by every provider
type base struct {
	name    internal.ProviderName
	mapType MapType
	fetcher Fetcher
	logger  *zap.Logger
	scheme  tiling.Scheme

	minZoom    int
	maxZoom    int
	tileWidth  int
	tileHeight int

	logoURL      string
	copyright    string
	attributions []Attribution

	missingTile atomic.Pointer[[]byte]

	mu       sync.Mutex
	elements map[string]*CopyrightElement
}

func newBase(name internal.ProviderName, mapType MapType, fetcher Fetcher, logger *zap.Logger) *base {
	return &base{
		name:       name,
		mapType:    mapType,
		fetcher:    fetcher,
		logger:     logging.OrNop(logger).With(zap.String("provider", string(name))),
		scheme:     tiling.NewWebMercator(),
		tileWidth:  256,
		tileHeight: 256,
		elements:   make(map[string]*CopyrightElement),
	}
}

func (b *base) Name() internal.ProviderName { return b.name }
func (b *base) MapType() MapType            { return b.mapType }
func (b *base) MinZoom() int                { return b.minZoom }
func (b *base) MaxZoom() int                { return b.maxZoom }
func (b *base) TileWidth() int              { return b.tileWidth }
func (b *base) TileHeight() int             { return b.tileHeight }
func (b *base) TilingScheme() tiling.Scheme { return b.scheme }

func (b *base) Attributions() []Attribution { return b.attributions }

func (b *base) MatchingAttributions(tiles []quad.ID) []Attribution {
	return MatchingAttributions(b.attributions, tiles, b.scheme)
}

// loadTile fetches url and validates the response. Transport failures and
// missing tiles yield nil, nil.
func (b *base) loadTile(ctx context.Context, url string) (*ImageSource, error) {
	resp, err := b.fetcher.Fetch(ctx, url)
	if err != nil {
		b.logger.Debug("tile fetch failed", zap.String("url", url), zap.Error(err))
		return nil, nil
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	if b.isMissingTile(resp.Data) {
		return nil, nil
	}

	format, err := FormatFromContentType(resp.ContentType)
	if err != nil {
		return nil, err
	}

	return &ImageSource{Data: resp.Data, Format: format}, nil
}

// setMissingTile records the bytes a server returns in place of absent imagery
func (b *base) setMissingTile(data []byte) {
	if len(data) == 0 {
		return
	}
	b.missingTile.Store(&data)
}

// isMissingTile compares against the recorded fingerprint at every 10th byte
func (b *base) isMissingTile(data []byte) bool {
	fp := b.missingTile.Load()
	if fp == nil {
		return false
	}
	return sampledEqual(*fp, data)
}

func sampledEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i += 10 {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Dispose tears down the per-viewport copyright elements
func (b *base) Dispose() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	for id, el := range b.elements {
		err = multierr.Append(err, el.close())
		delete(b.elements, id)
	}
	return err
}

// FormatFromContentType maps a response content type to an image format
func FormatFromContentType(contentType string) (ImageFormat, error) {
	mediaType, _, _ := strings.Cut(contentType, ";")
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "image/jpeg":
		return FormatJPEG, nil
	case "image/png":
		return FormatPNG, nil
	default:
		return 0, internal.NewError(
			internal.ErrorCodeUnsupportedFormat,
			fmt.Sprintf("unsupported tile content type %q", contentType),
			ErrUnsupportedFormat,
		)
	}
}

// ReplaceHTTPWithHTTPS rewrites an http: URL to https:
func ReplaceHTTPWithHTTPS(rawURL string) string {
	if len(rawURL) >= 5 && strings.EqualFold(rawURL[:5], "http:") {
		return "https:" + rawURL[5:]
	}
	return rawURL
}

func badProvider(message string, cause error) error {
	return internal.NewError(internal.ErrorCodeBadProvider, message, fmt.Errorf("%w: %w", ErrBadProvider, cause))
}
