// internal/tiletree/supplier.go - Background map tile tree supplier
package tiletree

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/valpere/tile_imagery/internal"
	"github.com/valpere/tile_imagery/internal/geo"
	"github.com/valpere/tile_imagery/internal/imagery"
	"github.com/valpere/tile_imagery/internal/logging"
)

// Supplier constructs the tile tree for an id
type Supplier interface {
	// CreateTileTree returns nil, nil when no tree can exist for the id
	CreateTileTree(ctx context.Context, id TreeID, model Model) (*Tree, error)
}

// ProviderFactory builds imagery providers by name
type ProviderFactory interface {
	Create(name internal.ProviderName, mapType imagery.MapType) (imagery.Provider, bool)
}

// BackgroundMapSupplier creates background map trees from imagery providers
type BackgroundMapSupplier struct {
	factory     ProviderFactory
	render      RenderSystem
	concurrency int
	logger      *zap.Logger
}

// NewBackgroundMapSupplier creates a supplier
func NewBackgroundMapSupplier(factory ProviderFactory, render RenderSystem, concurrency int, logger *zap.Logger) *BackgroundMapSupplier {
	return &BackgroundMapSupplier{
		factory:     factory,
		render:      render,
		concurrency: concurrency,
		logger:      logging.OrNop(logger),
	}
}

// CreateTileTree initializes the provider named by id and places its tree
// under the model. Unknown providers and models that are not geolocated
// yield no tree and no error.
func (s *BackgroundMapSupplier) CreateTileTree(ctx context.Context, id TreeID, model Model) (*Tree, error) {
	logger := s.logger.With(zap.Stringer("tree", id), zap.String("model", model.ID()))

	provider, ok := s.factory.Create(id.ProviderName, id.MapType)
	if !ok {
		logger.Debug("no provider for tile tree")
		return nil, nil
	}

	if err := provider.Initialize(ctx); err != nil {
		logger.Warn("provider initialization failed", zap.Error(err))
		return nil, multierr.Append(err, provider.Dispose())
	}

	ecef, ok := model.EcefLocation()
	if !ok {
		logger.Debug("model is not geolocated")
		return nil, provider.Dispose()
	}

	mercatorToDb, err := ComputeMercatorFractionToDb(ecef, id.GroundBias, model.ProjectExtents(), provider.TilingScheme())
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to place tile tree: %w", err), provider.Dispose())
	}

	tree := NewTree(TreeParams{
		ID:                    id,
		ModelID:               model.ID(),
		TransientID:           model.IDAllocator().NextTransientID(),
		Provider:              provider,
		Render:                s.render,
		Concurrency:           s.concurrency,
		MercatorToDb:          mercatorToDb,
		GeoConverterAvailable: geoConverterAvailable(ctx, model.GeoConverter()),
	}, WithLogger(logger))

	logger.Info("tile tree created",
		zap.String("transient_id", tree.TransientID()),
		zap.Int("min_zoom", provider.MinZoom()),
		zap.Int("max_zoom", provider.MaxZoom()))

	return tree, nil
}

// geoConverterAvailable probes the conversion service with the geodetic
// origin; any failure means unavailable
func geoConverterAvailable(ctx context.Context, conv GeoConverter) bool {
	if conv == nil {
		return false
	}
	points, err := conv.CartographicToSpatial(ctx, []geo.Cartographic{{}})
	return err == nil && len(points) == 1
}
