// cmd/prefetch.go - Tile range prefetch command
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valpere/tile_imagery/internal/batch"
	"github.com/valpere/tile_imagery/internal/output"
)

// maxPrefetchTiles bounds the tiles of one prefetch job
const maxPrefetchTiles = 1 << 22

// prefetchCmd represents the prefetch command
var prefetchCmd = &cobra.Command{
	Use:   "prefetch",
	Short: "Prefetch imagery tiles for a range of zoom levels",
	Long: `Prefetch every imagery tile covering a bounding box (or the whole world)
over one or more zoom levels, writing the encoded images to a directory.

Tiles are fetched concurrently in chunks. Tiles without imagery are counted
as empty and not written. With a bbolt or redis cache configured, fetched
bytes are also kept in the cache for later runs.

Output pattern placeholders: {z}, {x}, {y}, {quadkey}, {ext}.

Examples:
  # Prefetch zoom 14 to 16 around a site
  tile-imagery prefetch --bing-key KEY --min-zoom 14 --max-zoom 16 --bbox "-75.17,39.94,-75.15,39.96" --output-dir ./tiles

  # Prefetch a whole zoom level in Bing quadkey layout
  tile-imagery prefetch --bing-key KEY --zoom 3 --pattern "{quadkey}{ext}" --output-dir ./bing

  # Warm a redis cache, stopping on the first failure
  tile-imagery prefetch --cache redis --zoom 12 --bbox "-75.2,39.9,-75.1,40.0" --fail-on-error`,
	RunE: runPrefetch,
}

func init() {
	rootCmd.AddCommand(prefetchCmd)

	// Tile range flags
	prefetchCmd.Flags().Int("zoom", -1, "single zoom level to prefetch")
	prefetchCmd.Flags().Int("min-zoom", -1, "minimum zoom level")
	prefetchCmd.Flags().Int("max-zoom", -1, "maximum zoom level")
	prefetchCmd.Flags().String("bbox", "", "bounding box: 'min_lon,min_lat,max_lon,max_lat'")

	// Output flags
	prefetchCmd.Flags().String("output-dir", "./tiles", "output directory for tiles")
	prefetchCmd.Flags().String("pattern", output.DefaultPattern, "tile path pattern under the output directory")

	// Processing flags
	prefetchCmd.Flags().Int("chunk-size", 100, "number of tiles per processing chunk")
	prefetchCmd.Flags().Bool("fail-on-error", false, "stop processing on first error")
	prefetchCmd.Flags().Duration("job-timeout", 30*time.Minute, "maximum duration of the prefetch job")

	// Progress flags
	prefetchCmd.Flags().Bool("progress", true, "show progress indicator")

	prefetchCmd.MarkFlagsMutuallyExclusive("zoom", "min-zoom")
	prefetchCmd.MarkFlagsMutuallyExclusive("zoom", "max-zoom")
}

func runPrefetch(cmd *cobra.Command, args []string) error {
	zoom, _ := cmd.Flags().GetInt("zoom")
	minZoom, _ := cmd.Flags().GetInt("min-zoom")
	maxZoom, _ := cmd.Flags().GetInt("max-zoom")
	bboxStr, _ := cmd.Flags().GetString("bbox")
	outputDir, _ := cmd.Flags().GetString("output-dir")
	pattern, _ := cmd.Flags().GetString("pattern")
	chunkSize, _ := cmd.Flags().GetInt("chunk-size")
	failOnError, _ := cmd.Flags().GetBool("fail-on-error")
	jobTimeout, _ := cmd.Flags().GetDuration("job-timeout")
	showProgress, _ := cmd.Flags().GetBool("progress")

	if zoom >= 0 {
		minZoom, maxZoom = zoom, zoom
	}
	if minZoom < 0 && maxZoom < 0 {
		return fmt.Errorf("zoom level(s) must be specified")
	}
	if minZoom < 0 {
		minZoom = maxZoom
	}
	if maxZoom < 0 {
		maxZoom = minZoom
	}
	if minZoom > maxZoom {
		return fmt.Errorf("min-zoom %d exceeds max-zoom %d", minZoom, maxZoom)
	}

	ranges, err := prefetchRanges(minZoom, maxZoom, bboxStr)
	if err != nil {
		return err
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), jobTimeout)
	defer cancel()

	provider, err := rt.provider(ctx)
	if err != nil {
		return err
	}
	defer provider.Dispose()

	writer, err := output.NewTileWriter(outputDir, true, pattern)
	if err != nil {
		return fmt.Errorf("failed to create writer: %w", err)
	}
	defer writer.Close()

	var reporter batch.ProgressReporter
	if showProgress {
		reporter = NewConsoleProgressReporter()
	}

	jobConfig := &batch.JobConfig{
		Concurrency: rt.config.Loader.Concurrency,
		ChunkSize:   chunkSize,
		Timeout:     jobTimeout,
		FailOnError: failOnError,
	}
	job := batch.NewJob(generateJobID(), ranges, jobConfig)

	var total int64
	for _, r := range ranges {
		total += r.Count()
	}
	rt.logger.Info("starting prefetch job",
		zap.String("job", job.ID),
		zap.Int64("tiles", total),
		zap.Int("ranges", len(ranges)),
		zap.String("output_dir", outputDir))

	processor := batch.NewPrefetchProcessor(provider, writer, reporter, rt.logger)
	if err := processor.Process(ctx, job); err != nil {
		return fmt.Errorf("prefetch failed: %w", err)
	}

	if showProgress {
		elapsed := time.Since(job.Progress.StartTime)
		fmt.Fprintf(os.Stderr, "\nPrefetch completed successfully!\n")
		fmt.Fprintf(os.Stderr, "Processed: %d tiles\n", job.Progress.ProcessedTiles)
		fmt.Fprintf(os.Stderr, "Written: %d, Empty: %d, Failed: %d\n", job.Progress.SuccessTiles, job.Progress.EmptyTiles, job.Progress.FailedTiles)
		fmt.Fprintf(os.Stderr, "Bytes: %d\n", job.Progress.BytesWritten)
		fmt.Fprintf(os.Stderr, "Duration: %v\n", elapsed)
		fmt.Fprintf(os.Stderr, "Throughput: %.2f tiles/second\n", job.Progress.Throughput)
	}

	return nil
}

// prefetchRanges creates one tile range per zoom level, over the bounding box
// when given and the whole world otherwise
func prefetchRanges(minZoom, maxZoom int, bboxStr string) ([]batch.QuadRange, error) {
	var ranges []batch.QuadRange
	var total int64
	for z := minZoom; z <= maxZoom; z++ {
		r := batch.FullQuadRange(z)
		if bboxStr != "" {
			bound, err := parseBoundingBox(bboxStr)
			if err != nil {
				return nil, fmt.Errorf("failed to parse bounding box: %w", err)
			}
			r = batch.NewQuadRange(bound, z)
		}
		if err := r.Validate(); err != nil {
			return nil, err
		}
		total += r.Count()
		if total > maxPrefetchTiles {
			return nil, fmt.Errorf("zoom %d to %d covers more than %d tiles, narrow the bounding box or zoom range", minZoom, maxZoom, maxPrefetchTiles)
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

// generateJobID creates a unique job ID
func generateJobID() string {
	return "prefetch-" + uuid.NewString()
}

// ConsoleProgressReporter implements progress reporting to console
type ConsoleProgressReporter struct {
	lastUpdate time.Time
}

// NewConsoleProgressReporter creates a new console progress reporter
func NewConsoleProgressReporter() *ConsoleProgressReporter {
	return &ConsoleProgressReporter{}
}

// ReportProgress reports job progress to console
func (r *ConsoleProgressReporter) ReportProgress(job *batch.Job) error {
	if time.Since(r.lastUpdate) < time.Second {
		return nil
	}

	progress := job.Progress.CalculateProgress()
	fmt.Fprintf(os.Stderr, "\rProgress: %.1f%% (%d/%d tiles, %d empty, %.2f tiles/sec)",
		progress, job.Progress.ProcessedTiles, job.Progress.TotalTiles, job.Progress.EmptyTiles, job.Progress.Throughput)

	r.lastUpdate = time.Now()
	return nil
}

// ReportChunkComplete reports chunk completion
func (r *ConsoleProgressReporter) ReportChunkComplete(job *batch.Job, chunk *batch.ChunkResult) error {
	return r.ReportProgress(job)
}

// ReportJobComplete reports job completion
func (r *ConsoleProgressReporter) ReportJobComplete(job *batch.Job) error {
	fmt.Fprintf(os.Stderr, "\rCompleted: 100%% (%d tiles processed)\n", job.Progress.ProcessedTiles)
	return nil
}

// ReportJobFailed reports job failure
func (r *ConsoleProgressReporter) ReportJobFailed(job *batch.Job, err error) error {
	fmt.Fprintf(os.Stderr, "\rFailed: %s\n", err.Error())
	return nil
}
