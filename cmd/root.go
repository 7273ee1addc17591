// cmd/root.go - Root command implementation
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tile-imagery",
	Short: "Fetch and inspect background map imagery tiles",
	Long: `TileImagery drives the background map pipeline used to drape satellite and
street imagery under engineering models. It talks to Bing Maps, MapBox and
templated WMS tile servers, caches fetched imagery, and builds the quadtree
of tiles that covers a model's project extents.

Providers:
- BingProvider (requires a Bing Maps key)
- MapBoxProvider (requires a MapBox access token)
- WmsProvider (any {z}/{x}/{y} or {quadkey} URL template)

Features:
- Fetch individual tiles by level/column/row or content id
- Prefetch tile ranges into a local directory with a worker pool
- List and match data-provider attributions, as JSON or GeoJSON
- Compute the mercator to model transform and the tiles under a model

Examples:
  # Fetch one Bing aerial tile
  tile-imagery tile --bing-key KEY --map-type aerial --z 14 --x 4770 --y 6203 -o tile.jpg

  # Show the URL a MapBox tile would be fetched from
  tile-imagery tile --provider MapBoxProvider --mapbox-token TOKEN --content-id 3_2_1 --url-only

  # Prefetch a city block from a WMS server
  tile-imagery prefetch --provider WmsProvider --wms-template "https://tiles.example.com/{z}/{x}/{y}.png" \
    --min-zoom 14 --max-zoom 16 --bbox "-75.17,39.94,-75.15,39.96" --output-dir ./tiles

  # List the attributions covering a bounding box at zoom 12
  tile-imagery attribution --bing-key KEY --bbox "-75.2,39.9,-75.1,40.0" --zoom 12

  # Place a model and load the level 16 tiles under it
  tile-imagery transform --bing-key KEY --lon -75.16 --lat 39.95 --level 16`,
	Version:      "1.0.0",
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tile-imagery.yaml)")

	// Provider flags
	rootCmd.PersistentFlags().String("provider", "BingProvider", "imagery provider (BingProvider, MapBoxProvider, WmsProvider)")
	rootCmd.PersistentFlags().String("map-type", "hybrid", "map type (aerial, street, hybrid)")
	rootCmd.PersistentFlags().Float64("ground-bias", 0, "height of the background map above the model ground, in meters")
	rootCmd.PersistentFlags().Bool("drape", false, "build the tile tree for draping onto reality data")
	rootCmd.PersistentFlags().String("bing-key", "", "Bing Maps key")
	rootCmd.PersistentFlags().String("mapbox-token", "", "MapBox access token")
	rootCmd.PersistentFlags().String("wms-template", "", "WMS tile URL template with {z}/{x}/{y} or {quadkey}")

	// Cache flags
	rootCmd.PersistentFlags().String("cache", "none", "imagery cache backend (none, bbolt, redis)")
	rootCmd.PersistentFlags().String("cache-path", "imagery-cache.db", "bbolt cache file")
	rootCmd.PersistentFlags().String("redis-addr", "localhost:6379", "redis cache address")

	// Logging flags
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	// Processing flags
	rootCmd.PersistentFlags().Int("concurrency", 8, "number of concurrent tile loads")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "HTTP request timeout")
	rootCmd.PersistentFlags().Int("retries", 2, "number of retry attempts")

	// Bind flags to viper
	viper.BindPFlag("provider.name", rootCmd.PersistentFlags().Lookup("provider"))
	viper.BindPFlag("provider.map_type", rootCmd.PersistentFlags().Lookup("map-type"))
	viper.BindPFlag("provider.ground_bias", rootCmd.PersistentFlags().Lookup("ground-bias"))
	viper.BindPFlag("provider.for_drape", rootCmd.PersistentFlags().Lookup("drape"))
	viper.BindPFlag("bing.key", rootCmd.PersistentFlags().Lookup("bing-key"))
	viper.BindPFlag("mapbox.token", rootCmd.PersistentFlags().Lookup("mapbox-token"))
	viper.BindPFlag("wms.url_template", rootCmd.PersistentFlags().Lookup("wms-template"))
	viper.BindPFlag("cache.backend", rootCmd.PersistentFlags().Lookup("cache"))
	viper.BindPFlag("cache.path", rootCmd.PersistentFlags().Lookup("cache-path"))
	viper.BindPFlag("cache.redis_addr", rootCmd.PersistentFlags().Lookup("redis-addr"))
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("loader.concurrency", rootCmd.PersistentFlags().Lookup("concurrency"))
	viper.BindPFlag("network.timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("network.max_retries", rootCmd.PersistentFlags().Lookup("retries"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".tile-imagery" (without extension)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tile-imagery")
	}

	// Environment variables, e.g. TILE_IMAGERY_BING_KEY
	viper.SetEnvPrefix("TILE_IMAGERY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil {
		if viper.GetString("logging.level") == "debug" {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
