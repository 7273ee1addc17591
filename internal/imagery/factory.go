// internal/imagery/factory.go - Provider factory implementation
package imagery

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/valpere/tile_imagery/internal"
	"github.com/valpere/tile_imagery/internal/config"
	"github.com/valpere/tile_imagery/internal/logging"
)

// Factory creates providers from configuration
type Factory struct {
	config  *config.Config
	fetcher Fetcher
	logger  *zap.Logger
}

// NewFactory creates a new provider factory
func NewFactory(cfg *config.Config, fetcher Fetcher, logger *zap.Logger) *Factory {
	return &Factory{
		config:  cfg,
		fetcher: fetcher,
		logger:  logging.OrNop(logger),
	}
}

// Create builds an uninitialized provider. Unknown provider names report false.
func (f *Factory) Create(name internal.ProviderName, mapType MapType) (Provider, bool) {
	switch name {
	case internal.ProviderBing:
		return NewBingProvider(mapType, f.config.Bing, f.fetcher, f.logger), true
	case internal.ProviderMapBox:
		return NewMapBoxProvider(mapType, f.config.MapBox, f.fetcher, f.logger), true
	case internal.ProviderWms:
		return NewWmsProvider(mapType, f.config.Wms, f.fetcher, f.logger), true
	default:
		f.logger.Debug("unknown imagery provider", zap.String("name", string(name)))
		return nil, false
	}
}

// SupportedProviders lists the provider names Create understands
func SupportedProviders() []internal.ProviderName {
	return []internal.ProviderName{internal.ProviderBing, internal.ProviderMapBox, internal.ProviderWms}
}

// ParseMapType parses a map type name case-insensitively
func ParseMapType(s string) (MapType, error) {
	switch mt := MapType(strings.ToLower(strings.TrimSpace(s))); mt {
	case MapTypeAerial, MapTypeStreet, MapTypeHybrid:
		return mt, nil
	default:
		return "", fmt.Errorf("unsupported map type: %s", s)
	}
}
