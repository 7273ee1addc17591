// cmd/transform.go - Background map placement command
package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/valpere/tile_imagery/internal"
	"github.com/valpere/tile_imagery/internal/geo"
	"github.com/valpere/tile_imagery/internal/imagery"
	"github.com/valpere/tile_imagery/internal/tiletree"
)

const cliViewport = "cli"

// transformCmd represents the transform command
var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Place a background map under a model and report its tiles",
	Long: `Build the background map tile tree for a model anchored at a longitude,
latitude and height, and print the mercator-fraction to model transform and
the model coordinates of the root tile corners as JSON.

With --level the tiles of that level under the model extents are selected,
loaded through the tile loader, and reported together with the attributions
the copyright notice would list for them.

Examples:
  # Transform for a model in Philadelphia
  tile-imagery transform --bing-key KEY --lon -75.16 --lat 39.95

  # Load the level 17 tiles under a 2 km site
  tile-imagery transform --bing-key KEY --lon -75.16 --lat 39.95 --extent 1000 --level 17`,
	RunE: runTransform,
}

func init() {
	rootCmd.AddCommand(transformCmd)

	transformCmd.Flags().Float64("lon", 0, "model origin longitude in degrees")
	transformCmd.Flags().Float64("lat", 0, "model origin latitude in degrees")
	transformCmd.Flags().Float64("height", 0, "model origin ellipsoid height in meters")
	transformCmd.Flags().Float64("extent", 500, "half size of the model project extents in meters")
	transformCmd.Flags().Int("level", -1, "select and load the tiles of this level under the model")
	transformCmd.Flags().StringP("output", "o", "", "output file path (default: stdout)")

	transformCmd.MarkFlagsRequiredTogether("lon", "lat")
	transformCmd.MarkFlagRequired("lon")
}

// transformReport is the JSON output of the transform command
type transformReport struct {
	Tree                  tiletree.TreeID `json:"tree"`
	TransientID           string          `json:"transient_id"`
	GeoConverterAvailable bool            `json:"geo_converter_available"`
	MercatorToDb          geo.Transform   `json:"mercator_to_db"`
	RootCorners           [4]r3.Vector    `json:"root_corners"`
	Tiles                 *levelReport    `json:"tiles,omitempty"`
}

type levelReport struct {
	Level        int                `json:"level"`
	Range        tiletree.TileRange `json:"range"`
	Selected     []string           `json:"selected"`
	Drawn        int                `json:"drawn"`
	Empty        int                `json:"empty"`
	Copyright    string             `json:"copyright"`
	Logo         string             `json:"logo,omitempty"`
	Attributions []string           `json:"attributions"`
	Notice       string             `json:"notice,omitempty"`
}

func runTransform(cmd *cobra.Command, args []string) error {
	lon, _ := cmd.Flags().GetFloat64("lon")
	lat, _ := cmd.Flags().GetFloat64("lat")
	height, _ := cmd.Flags().GetFloat64("height")
	extent, _ := cmd.Flags().GetFloat64("extent")
	level, _ := cmd.Flags().GetInt("level")
	outputPath, _ := cmd.Flags().GetString("output")

	if extent <= 0 {
		return internal.NewError(internal.ErrorCodeValidation, "extent must be positive", nil)
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	id, err := rt.treeID()
	if err != nil {
		return err
	}

	model := tiletree.NewStaticModel("cli-model",
		geo.FromDegrees(lon, lat, height),
		geo.NewRange3d(r3.Vector{X: -extent, Y: -extent, Z: -extent}, r3.Vector{X: extent, Y: extent, Z: extent}))

	supplier := tiletree.NewBackgroundMapSupplier(rt.factory, tiletree.ImageRenderSystem{}, rt.config.Loader.Concurrency, rt.logger)
	cache := tiletree.NewCache(model, supplier, rt.logger)
	owner := cache.Owner(id)

	report, err := buildTransformReport(cmd, owner, model, level)
	if derr := cache.Dispose(); derr != nil {
		rt.logger.Warn("failed to dispose tile trees", zap.Error(derr))
	}
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return writeOutput(outputPath, append(data, '\n'))
}

func buildTransformReport(cmd *cobra.Command, owner *tiletree.Owner, model tiletree.Model, level int) (*transformReport, error) {
	ctx := cmd.Context()

	tree, err := owner.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create tile tree %s: %w", owner.ID(), err)
	}
	if tree == nil {
		return nil, internal.NewError(internal.ErrorCodeNotFound, fmt.Sprintf("no tile tree for %s", owner.ID()), nil)
	}

	report := &transformReport{
		Tree:                  tree.ID(),
		TransientID:           tree.TransientID(),
		GeoConverterAvailable: tree.GeoConverterAvailable(),
		MercatorToDb:          tree.MercatorToDb(),
		RootCorners:           tree.Root().Corners(),
	}
	if level < 0 {
		return report, nil
	}

	provider := tree.Provider()
	level = min(max(level, provider.MinZoom()), provider.MaxZoom())

	tileRange, err := tree.RangeForExtents(model.ProjectExtents(), level)
	if err != nil {
		return nil, fmt.Errorf("failed to compute tile range: %w", err)
	}

	ref := tiletree.NewReference(owner, tiletree.LevelSelector{Level: level, Range: tileRange})

	first := &collectingScene{}
	ref.AddToScene(first)
	if err := tree.Loader().LoadTiles(ctx, first.missing, nil); err != nil {
		// Failed tiles are marked empty and drawn as such.
		cmd.PrintErrln("some tiles failed to load:", multierr.Errors(err))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scene := &collectingScene{}
	ref.AddToScene(scene)

	dc := &collectingDecorateContext{}
	ref.Decorate(dc)
	if dc.element != nil {
		dc.element.Click()
	}

	selected := ref.SelectedQuadIDs(cliViewport)
	tiles := &levelReport{
		Level:        level,
		Range:        *tileRange,
		Selected:     make([]string, 0, len(selected)),
		Drawn:        len(scene.graphics),
		Empty:        len(selected) - len(scene.graphics) - len(scene.missing),
		Attributions: attributionSummary(dc.attributions),
		Notice:       dc.notice,
	}
	for _, q := range selected {
		tiles.Selected = append(tiles.Selected, q.ContentID())
	}
	if dc.element != nil {
		tiles.Copyright = dc.element.Text
	}
	tiles.Logo = dc.logo
	report.Tiles = tiles

	return report, nil
}

// collectingScene records one frame of the command's viewport
type collectingScene struct {
	graphics []tiletree.Graphic
	missing  []*tiletree.Tile
}

func (s *collectingScene) ViewportID() string               { return cliViewport }
func (s *collectingScene) OutputGraphic(g tiletree.Graphic) { s.graphics = append(s.graphics, g) }
func (s *collectingScene) InsertMissing(t *tiletree.Tile)   { s.missing = append(s.missing, t) }

// collectingDecorateContext keeps the copyright element and what clicking it shows
type collectingDecorateContext struct {
	logo         string
	element      *imagery.CopyrightElement
	attributions []imagery.Attribution
	notice       string
}

func (d *collectingDecorateContext) ViewportID() string                     { return cliViewport }
func (d *collectingDecorateContext) DrawImage(url string, _ imagery.Corner) { d.logo = url }
func (d *collectingDecorateContext) Notifier() imagery.Notifier             { return d }

func (d *collectingDecorateContext) PlaceElement(el *imagery.CopyrightElement, _ imagery.Corner) {
	d.element = el
}

func (d *collectingDecorateContext) ShowAttributions(_ string, attributions []imagery.Attribution) {
	d.attributions = attributions
}

func (d *collectingDecorateContext) ShowNotice(message string) {
	d.notice = message
}
