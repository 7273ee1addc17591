// cmd/tile.go - Single tile fetch command
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valpere/tile_imagery/internal"
	"github.com/valpere/tile_imagery/internal/output"
	"github.com/valpere/tile_imagery/internal/quad"
)

// tileCmd represents the tile command
var tileCmd = &cobra.Command{
	Use:   "tile",
	Short: "Fetch a single imagery tile",
	Long: `Fetch a single imagery tile from the configured provider and write the
encoded image to a file or stdout.

The tile is addressed either by --z/--x/--y or by a content id of the form
"level_column_row". Tiles the provider has no imagery for (Bing's "no
imagery" placeholder, HTTP 204/404) are reported as not found.

Examples:
  # Fetch a tile by coordinates
  tile-imagery tile --bing-key KEY --z 14 --x 4770 --y 6203 --output tile.jpg

  # Fetch a tile by content id to stdout
  tile-imagery tile --provider WmsProvider --wms-template "https://t.example.com/{z}/{x}/{y}.png" --content-id 10_298_387 > tile.png

  # Print the tile URL without fetching it
  tile-imagery tile --bing-key KEY --content-id 3_2_1 --url-only`,
	RunE: runTile,
}

func init() {
	rootCmd.AddCommand(tileCmd)

	// Tile address flags
	tileCmd.Flags().Int("z", 0, "tile zoom level")
	tileCmd.Flags().Int("x", 0, "tile column")
	tileCmd.Flags().Int("y", 0, "tile row")
	tileCmd.Flags().String("content-id", "", "tile content id: level_column_row")

	// Output flags
	tileCmd.Flags().StringP("output", "o", "", "output file path (default: stdout)")
	tileCmd.Flags().Bool("url-only", false, "print the tile URL instead of fetching it")

	tileCmd.MarkFlagsRequiredTogether("z", "x", "y")
	tileCmd.MarkFlagsMutuallyExclusive("content-id", "z")
	tileCmd.MarkFlagsOneRequired("content-id", "z")
}

func runTile(cmd *cobra.Command, args []string) error {
	z, _ := cmd.Flags().GetInt("z")
	x, _ := cmd.Flags().GetInt("x")
	y, _ := cmd.Flags().GetInt("y")
	contentID, _ := cmd.Flags().GetString("content-id")
	outputPath, _ := cmd.Flags().GetString("output")
	urlOnly, _ := cmd.Flags().GetBool("url-only")

	q := quad.New(z, x, y)
	if contentID != "" {
		q = quad.FromContentID(contentID)
	}
	if !q.IsValid() {
		return internal.NewError(internal.ErrorCodeValidation, fmt.Sprintf("invalid tile address %q", contentID), nil)
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()
	provider, err := rt.provider(ctx)
	if err != nil {
		return err
	}
	defer provider.Dispose()

	if q.Level < provider.MinZoom() || q.Level > provider.MaxZoom() {
		return internal.NewError(internal.ErrorCodeValidation,
			fmt.Sprintf("zoom %d outside provider range %d-%d", q.Level, provider.MinZoom(), provider.MaxZoom()), nil)
	}
	n := 1 << uint(q.Level)
	if q.Column < 0 || q.Column >= n || q.Row < 0 || q.Row >= n {
		return internal.NewError(internal.ErrorCodeValidation, fmt.Sprintf("tile %s outside the grid", q), nil)
	}

	if urlOnly {
		fmt.Fprintln(cmd.OutOrStdout(), provider.ConstructURL(q.Row, q.Column, q.Level))
		return nil
	}

	src, err := provider.LoadTile(ctx, q.Row, q.Column, q.Level)
	if err != nil {
		return fmt.Errorf("failed to load tile %s: %w", q, err)
	}
	if src == nil {
		return internal.NewError(internal.ErrorCodeNotFound, fmt.Sprintf("no imagery for tile %s", q), nil)
	}

	writer, err := output.NewFileTileWriter(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create writer: %w", err)
	}

	written, err := writer.WriteTile(q, src)
	if cerr := writer.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write tile: %w", err)
	}

	rt.logger.Info("tile written",
		zap.Stringer("tile", q),
		zap.String("format", src.Format.String()),
		zap.Int64("bytes", written),
		zap.String("output", writer.Name()))

	return nil
}
