// cmd/attribution.go - Data provider attribution command
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/valpere/tile_imagery/internal/batch"
	"github.com/valpere/tile_imagery/internal/imagery"
	"github.com/valpere/tile_imagery/internal/output"
	"github.com/valpere/tile_imagery/internal/quad"
)

// maxAttributionTiles bounds the tiles matched for one bounding box
const maxAttributionTiles = 1 << 16

// attributionCmd represents the attribution command
var attributionCmd = &cobra.Command{
	Use:   "attribution",
	Short: "List the data providers credited by the imagery",
	Long: `List the data-provider attributions of the configured imagery provider.

Without --bbox every attribution the provider reported is listed. With --bbox
and --zoom only the attributions whose coverage areas overlap the tiles under
the bounding box at that zoom are listed, each once.

Output is GeoJSON (one polygon feature per coverage area) or plain JSON.

Examples:
  # All Bing attributions as GeoJSON
  tile-imagery attribution --bing-key KEY --output attributions.geojson

  # Attributions credited for a city at zoom 12
  tile-imagery attribution --bing-key KEY --bbox "-75.2,39.9,-75.1,40.0" --zoom 12 --format json`,
	RunE: runAttribution,
}

func init() {
	rootCmd.AddCommand(attributionCmd)

	attributionCmd.Flags().String("bbox", "", "bounding box: 'min_lon,min_lat,max_lon,max_lat'")
	attributionCmd.Flags().Int("zoom", 0, "zoom level of the tiles matched against the bounding box")

	attributionCmd.Flags().StringP("format", "f", "geojson", "output format (geojson, json)")
	attributionCmd.Flags().Bool("pretty", true, "pretty print JSON output")
	attributionCmd.Flags().StringP("output", "o", "", "output file path (default: stdout)")

	attributionCmd.MarkFlagsRequiredTogether("bbox", "zoom")
}

func runAttribution(cmd *cobra.Command, args []string) error {
	bboxStr, _ := cmd.Flags().GetString("bbox")
	zoom, _ := cmd.Flags().GetInt("zoom")
	formatStr, _ := cmd.Flags().GetString("format")
	pretty, _ := cmd.Flags().GetBool("pretty")
	outputPath, _ := cmd.Flags().GetString("output")

	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return err
	}
	formatter, err := output.NewFormatter(&output.FormatterConfig{Format: format, Pretty: pretty})
	if err != nil {
		return fmt.Errorf("failed to create formatter: %w", err)
	}

	var tiles []quad.ID
	if bboxStr != "" {
		bound, err := parseBoundingBox(bboxStr)
		if err != nil {
			return fmt.Errorf("failed to parse bounding box: %w", err)
		}
		if tiles, err = rangeTiles(batch.NewQuadRange(bound, zoom)); err != nil {
			return err
		}
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	provider, err := rt.provider(cmd.Context())
	if err != nil {
		return err
	}
	defer provider.Dispose()

	attributions := provider.Attributions()
	if tiles != nil {
		attributions = provider.MatchingAttributions(tiles)
	}

	rt.logger.Debug("attributions resolved",
		zap.Int("tiles", len(tiles)),
		zap.Int("attributions", len(attributions)))

	data, err := formatter.Format(attributions)
	if err != nil {
		return fmt.Errorf("failed to format attributions: %w", err)
	}
	return writeOutput(outputPath, append(data, '\n'))
}

// rangeTiles lists the tiles of r
func rangeTiles(r batch.QuadRange) ([]quad.ID, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.Count() > maxAttributionTiles {
		return nil, fmt.Errorf("bounding box covers %d tiles at zoom %d, limit is %d", r.Count(), r.Zoom, maxAttributionTiles)
	}

	tiles := make([]quad.ID, 0, r.Count())
	for row := r.MinRow; row <= r.MaxRow; row++ {
		for column := r.MinColumn; column <= r.MaxColumn; column++ {
			tiles = append(tiles, quad.New(r.Zoom, column, row))
		}
	}
	return tiles, nil
}

// writeOutput writes data to path, or to stdout when path is empty or "-"
func writeOutput(path string, data []byte) error {
	dest, err := output.NewDestination(path)
	if err != nil {
		return err
	}
	_, err = dest.Write(data)
	return multierr.Append(err, dest.Close())
}

// attributionSummary is the plain form of an attribution used in reports
func attributionSummary(attributions []imagery.Attribution) []string {
	messages := make([]string, 0, len(attributions))
	for _, a := range attributions {
		messages = append(messages, a.CopyrightMessage)
	}
	return messages
}
