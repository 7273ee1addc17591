// cmd/runtime.go - Shared command services
package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/valpere/tile_imagery/internal"
	"github.com/valpere/tile_imagery/internal/config"
	"github.com/valpere/tile_imagery/internal/imagery"
	"github.com/valpere/tile_imagery/internal/logging"
	"github.com/valpere/tile_imagery/internal/store"
	"github.com/valpere/tile_imagery/internal/tiletree"
)

// runtime holds the services shared by the commands
type runtime struct {
	config  *config.Config
	logger  *zap.Logger
	store   store.Store
	factory *imagery.Factory
}

func newRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	st, err := store.Open(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to open imagery cache: %w", err)
	}

	fetcher := imagery.NewHTTPFetcher(cfg.Network, st, logger)

	return &runtime{
		config:  cfg,
		logger:  logger,
		store:   st,
		factory: imagery.NewFactory(cfg, fetcher, logger),
	}, nil
}

func (rt *runtime) Close() error {
	err := rt.store.Close()
	// Sync fails on terminals; nothing is lost.
	_ = rt.logger.Sync()
	return err
}

// treeID returns the background map selected by the configuration
func (rt *runtime) treeID() (tiletree.TreeID, error) {
	mapType, err := imagery.ParseMapType(rt.config.Provider.MapType)
	if err != nil {
		return tiletree.TreeID{}, err
	}
	return tiletree.TreeID{
		ProviderName: internal.ProviderName(rt.config.Provider.Name),
		MapType:      mapType,
		GroundBias:   rt.config.Provider.GroundBias,
		ForDrape:     rt.config.Provider.ForDrape,
	}, nil
}

// provider creates and initializes the configured provider. The caller
// disposes it.
func (rt *runtime) provider(ctx context.Context) (imagery.Provider, error) {
	id, err := rt.treeID()
	if err != nil {
		return nil, err
	}

	p, ok := rt.factory.Create(id.ProviderName, id.MapType)
	if !ok {
		return nil, internal.NewError(internal.ErrorCodeConfig, fmt.Sprintf("unknown provider %s", id.ProviderName), nil)
	}

	if err := p.Initialize(ctx); err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to initialize %s: %w", id.ProviderName, err), p.Dispose())
	}

	rt.logger.Debug("provider initialized",
		zap.String("provider", string(p.Name())),
		zap.String("map_type", string(p.MapType())),
		zap.Int("min_zoom", p.MinZoom()),
		zap.Int("max_zoom", p.MaxZoom()))

	return p, nil
}

// parseBoundingBox parses "min_lon,min_lat,max_lon,max_lat"
func parseBoundingBox(bbox string) (orb.Bound, error) {
	parts := strings.Split(bbox, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bounding box must have 4 values: min_lon,min_lat,max_lon,max_lat")
	}

	coords := make([]float64, 4)
	for i, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("invalid coordinate value: %s", part)
		}
		coords[i] = val
	}

	if coords[0] > coords[2] || coords[1] > coords[3] {
		return orb.Bound{}, fmt.Errorf("bounding box minimum exceeds maximum")
	}
	if coords[1] < -90 || coords[3] > 90 || coords[0] < -180 || coords[2] > 180 {
		return orb.Bound{}, fmt.Errorf("bounding box outside valid longitude/latitude range")
	}

	return orb.Bound{
		Min: orb.Point{coords[0], coords[1]},
		Max: orb.Point{coords[2], coords[3]},
	}, nil
}
