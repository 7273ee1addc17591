// internal/config/validation.go - Configuration validation
package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate validates the configuration structure and values
func Validate(config *Config) error {
	if err := validateProvider(config); err != nil {
		return fmt.Errorf("provider configuration invalid: %w", err)
	}

	if err := validateNetwork(&config.Network); err != nil {
		return fmt.Errorf("network configuration invalid: %w", err)
	}

	if err := validateCache(&config.Cache); err != nil {
		return fmt.Errorf("cache configuration invalid: %w", err)
	}

	if config.Loader.Concurrency <= 0 {
		return fmt.Errorf("loader configuration invalid: concurrency must be positive")
	}

	if err := validateLogging(&config.Logging); err != nil {
		return fmt.Errorf("logging configuration invalid: %w", err)
	}

	return nil
}

// validateProvider checks the selected provider and its provider-specific section
func validateProvider(config *Config) error {
	validMapTypes := []string{"aerial", "street", "hybrid"}
	if !contains(validMapTypes, config.Provider.MapType) {
		return fmt.Errorf("invalid map_type: %s, must be one of %v", config.Provider.MapType, validMapTypes)
	}

	switch config.Provider.Name {
	case "BingProvider":
		if config.Bing.Key == "" {
			return fmt.Errorf("bing.key is required for BingProvider")
		}
		if !strings.Contains(config.Bing.MetadataURL, "{imagerySet}") {
			return fmt.Errorf("bing.metadata_url must contain {imagerySet}")
		}
	case "MapBoxProvider":
		if config.MapBox.Token == "" {
			return fmt.Errorf("mapbox.token is required for MapBoxProvider")
		}
		if _, err := url.Parse(config.MapBox.BaseURL); err != nil {
			return fmt.Errorf("invalid mapbox.base_url: %w", err)
		}
	case "WmsProvider":
		if config.Wms.URLTemplate == "" {
			return fmt.Errorf("wms.url_template is required for WmsProvider")
		}
		if config.Wms.MinZoom < 0 || config.Wms.MinZoom > config.Wms.MaxZoom {
			return fmt.Errorf("wms zoom range [%d,%d] is invalid", config.Wms.MinZoom, config.Wms.MaxZoom)
		}
		if config.Wms.TileSize <= 0 {
			return fmt.Errorf("wms.tile_size must be positive")
		}
	default:
		return fmt.Errorf("unsupported provider: %s", config.Provider.Name)
	}

	return nil
}

// validateNetwork validates network configuration parameters
func validateNetwork(config *NetworkConfig) error {
	if config.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if config.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}

	if config.ProxyURL != "" {
		if _, err := url.Parse(config.ProxyURL); err != nil {
			return fmt.Errorf("invalid proxy_url: %w", err)
		}
	}

	if config.MaxIdleConns < 0 {
		return fmt.Errorf("max_idle_conns must be non-negative")
	}

	if config.UserAgent == "" {
		return fmt.Errorf("user_agent cannot be empty")
	}

	if config.IdleConnTimeout < 0 {
		return fmt.Errorf("idle_conn_timeout must be non-negative")
	}

	return nil
}

// validateCache validates the imagery cache backend selection
func validateCache(config *CacheConfig) error {
	switch config.Backend {
	case CacheBackendNone:
	case CacheBackendBBolt:
		if config.Path == "" {
			return fmt.Errorf("path is required for the bbolt backend")
		}
	case CacheBackendRedis:
		if config.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid backend: %s", config.Backend)
	}

	if config.Expiration < 0 {
		return fmt.Errorf("expiration must be non-negative")
	}

	return nil
}

// validateLogging validates logging configuration parameters
func validateLogging(config *LoggingConfig) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, config.Level) {
		return fmt.Errorf("invalid log level: %s, must be one of %v", config.Level, validLevels)
	}

	validFormats := []string{"text", "json"}
	if !contains(validFormats, config.Format) {
		return fmt.Errorf("invalid log format: %s, must be one of %v", config.Format, validFormats)
	}

	if config.Output == "" {
		return fmt.Errorf("output cannot be empty")
	}

	return nil
}

// contains checks if a string slice contains a specific string (case-insensitive)
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}
