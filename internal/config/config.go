// internal/config/config.go - Configuration management
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Provider ProviderConfig `mapstructure:"provider"`
	Bing     BingConfig     `mapstructure:"bing"`
	MapBox   MapBoxConfig   `mapstructure:"mapbox"`
	Wms      WmsConfig      `mapstructure:"wms"`
	Network  NetworkConfig  `mapstructure:"network"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Loader   LoaderConfig   `mapstructure:"loader"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ProviderConfig selects the imagery provider and the background map placement
type ProviderConfig struct {
	Name       string  `mapstructure:"name"`
	MapType    string  `mapstructure:"map_type"`
	GroundBias float64 `mapstructure:"ground_bias"`
	ForDrape   bool    `mapstructure:"for_drape"`
}

// BingConfig contains Bing Maps settings
type BingConfig struct {
	Key         string `mapstructure:"key"`
	MetadataURL string `mapstructure:"metadata_url"`
	Culture     string `mapstructure:"culture"`
}

// MapBoxConfig contains MapBox settings
type MapBoxConfig struct {
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base_url"`
}

// WmsConfig contains settings for a templated WMS-style tile server
type WmsConfig struct {
	URLTemplate string `mapstructure:"url_template"`
	MinZoom     int    `mapstructure:"min_zoom"`
	MaxZoom     int    `mapstructure:"max_zoom"`
	TileSize    int    `mapstructure:"tile_size"`
	Copyright   string `mapstructure:"copyright"`
}

// NetworkConfig contains network-related configuration
type NetworkConfig struct {
	Timeout         time.Duration     `mapstructure:"timeout"`
	MaxRetries      int               `mapstructure:"max_retries"`
	UserAgent       string            `mapstructure:"user_agent"`
	MaxIdleConns    int               `mapstructure:"max_idle_conns"`
	IdleConnTimeout time.Duration     `mapstructure:"idle_conn_timeout"`
	ProxyURL        string            `mapstructure:"proxy_url"`
	Headers         map[string]string `mapstructure:"headers"`
}

// CacheConfig selects the persistent imagery byte cache
type CacheConfig struct {
	Backend    string        `mapstructure:"backend"`
	Path       string        `mapstructure:"path"`
	RedisAddr  string        `mapstructure:"redis_addr"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// LoaderConfig contains tile content loading configuration
type LoaderConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Cache backends
const (
	CacheBackendNone  = "none"
	CacheBackendBBolt = "bbolt"
	CacheBackendRedis = "redis"
)

// Load loads configuration from various sources
func Load() (*Config, error) {
	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// Default returns a configuration populated with default values only
func Default() *Config {
	v := viper.New()
	applyDefaults(v)

	var config Config
	// Defaults are all plain values, so decoding cannot fail.
	_ = v.Unmarshal(&config)
	return &config
}

// setDefaults configures default values for all configuration options
func setDefaults() {
	applyDefaults(viper.GetViper())
}

func applyDefaults(v *viper.Viper) {
	// Provider defaults
	v.SetDefault("provider.name", "BingProvider")
	v.SetDefault("provider.map_type", "hybrid")
	v.SetDefault("provider.ground_bias", 0.0)
	v.SetDefault("provider.for_drape", false)

	// Bing defaults
	v.SetDefault("bing.metadata_url", "https://dev.virtualearth.net/REST/v1/Imagery/Metadata/{imagerySet}?o=json&incl=ImageryProviders&key={key}")
	v.SetDefault("bing.culture", "en-US")

	// MapBox defaults
	v.SetDefault("mapbox.base_url", "https://api.mapbox.com/v4/")

	// WMS defaults
	v.SetDefault("wms.min_zoom", 1)
	v.SetDefault("wms.max_zoom", 19)
	v.SetDefault("wms.tile_size", 256)

	// Network defaults
	v.SetDefault("network.timeout", 30*time.Second)
	v.SetDefault("network.max_retries", 2)
	v.SetDefault("network.user_agent", "TileImagery/1.0")
	v.SetDefault("network.max_idle_conns", 100)
	v.SetDefault("network.idle_conn_timeout", 90*time.Second)

	// Cache defaults
	v.SetDefault("cache.backend", CacheBackendNone)
	v.SetDefault("cache.path", "imagery-cache.db")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.expiration", 24*time.Hour)

	// Loader defaults
	v.SetDefault("loader.concurrency", 8)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")
}
