// internal/tiletree/loader.go - Tile content loading pipeline
package tiletree

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/valpere/tile_imagery/internal/imagery"
	"github.com/valpere/tile_imagery/internal/logging"
)

// CancelFunc reports whether the caller no longer wants a tile's content.
// It is polled after every suspension point.
type CancelFunc func() bool

func notCanceled() bool { return false }

// Loader fetches and decodes tile content for one tree
type Loader struct {
	provider    imagery.Provider
	render      RenderSystem
	concurrency int
	logger      *zap.Logger
	decode      func(src *imagery.ImageSource) (image.Image, error)
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithLogger sets the loader's logger
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logging.OrNop(logger) }
}

// WithDecoder replaces the image decoder
func WithDecoder(decode func(src *imagery.ImageSource) (image.Image, error)) LoaderOption {
	return func(l *Loader) { l.decode = decode }
}

// NewLoader creates a loader; concurrency bounds LoadTiles
func NewLoader(provider imagery.Provider, render RenderSystem, concurrency int, opts ...LoaderOption) *Loader {
	if render == nil {
		render = ImageRenderSystem{}
	}
	if concurrency < 1 {
		concurrency = 1
	}
	l := &Loader{
		provider:    provider,
		render:      render,
		concurrency: concurrency,
		logger:      zap.NewNop(),
		decode:      DecodeImage,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Priority is always background so interactive content is serviced first
func (l *Loader) Priority() Priority {
	return PriorityBackground
}

// RequestTileContent fetches the encoded image for a tile. A nil source
// means there is nothing to draw.
func (l *Loader) RequestTileContent(ctx context.Context, tile *Tile, isCanceled CancelFunc) (*imagery.ImageSource, error) {
	if isCanceled() {
		return nil, nil
	}
	q := tile.QuadID()
	return l.provider.LoadTile(ctx, q.Row, q.Column, q.Level)
}

// LoadTileContent decodes src into drawable content. It returns nil when the
// load was canceled before or after decoding, with ctx's error when ctx is
// done; a decode failure yields empty content.
func (l *Loader) LoadTileContent(ctx context.Context, tile *Tile, src *imagery.ImageSource, isCanceled CancelFunc) (*Content, error) {
	if isCanceled() {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if src == nil {
		return &Content{}, nil
	}

	img, err := l.decode(src)

	if isCanceled() {
		return nil, nil
	}
	if err != nil {
		l.logger.Debug("tile decode failed", zap.String("tile", tile.ContentID()), zap.Error(err))
		return &Content{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img = l.normalize(img)

	tex, err := l.render.CreateTexture(img)
	if err != nil {
		l.logger.Debug("texture creation failed", zap.String("tile", tile.ContentID()), zap.Error(err))
		return &Content{}, nil
	}
	graphic, err := l.render.CreateTileGraphic(tex, tile.Corners())
	if err != nil {
		l.logger.Debug("tile graphic creation failed", zap.String("tile", tile.ContentID()), zap.Error(err))
		return &Content{}, nil
	}

	return &Content{Image: img, Texture: tex, Graphic: graphic}, nil
}

// Load drives a tile through requested to canceled, ready or empty. A
// canceled load leaves the tile's content untouched.
func (l *Loader) Load(ctx context.Context, tile *Tile, isCanceled CancelFunc) error {
	if isCanceled == nil {
		isCanceled = notCanceled
	}
	if !tile.beginRequest() {
		return nil
	}

	src, err := l.RequestTileContent(ctx, tile, isCanceled)
	// Providers report an aborted fetch as a missing tile.
	if cerr := ctx.Err(); cerr != nil {
		tile.markCanceled()
		return cerr
	}
	if err != nil {
		l.logger.Error("tile request failed", zap.String("tile", tile.ContentID()), zap.Error(err))
		tile.setContent(&Content{})
		return fmt.Errorf("tile %s: %w", tile.ContentID(), err)
	}
	if isCanceled() {
		tile.markCanceled()
		return nil
	}

	content, err := l.LoadTileContent(ctx, tile, src, isCanceled)
	if err != nil || content == nil {
		tile.markCanceled()
		return err
	}

	tile.setContent(content)
	return nil
}

// LoadTiles loads tiles concurrently and returns the combined errors
func (l *Loader) LoadTiles(ctx context.Context, tiles []*Tile, isCanceled CancelFunc) error {
	p := pool.New().WithMaxGoroutines(l.concurrency).WithErrors()
	for _, tile := range tiles {
		p.Go(func() error {
			return l.Load(ctx, tile, isCanceled)
		})
	}
	return p.Wait()
}

// normalize scales img to the provider's tile size
func (l *Loader) normalize(img image.Image) image.Image {
	w, h := l.provider.TileWidth(), l.provider.TileHeight()
	b := img.Bounds()
	if w <= 0 || h <= 0 || (b.Dx() == w && b.Dy() == h) {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// DecodeImage decodes a JPEG or PNG tile
func DecodeImage(src *imagery.ImageSource) (image.Image, error) {
	switch src.Format {
	case imagery.FormatJPEG:
		return jpeg.Decode(bytes.NewReader(src.Data))
	case imagery.FormatPNG:
		return png.Decode(bytes.NewReader(src.Data))
	default:
		return nil, fmt.Errorf("cannot decode %v image", src.Format)
	}
}
