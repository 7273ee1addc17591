// internal/batch/processor.go - Prefetch processing implementation
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/valpere/tile_imagery/internal/imagery"
	"github.com/valpere/tile_imagery/internal/logging"
	"github.com/valpere/tile_imagery/internal/output"
	"github.com/valpere/tile_imagery/internal/quad"
)

// PrefetchProcessor fetches every tile of a job from an imagery provider and
// stores the images through a TileWriter
type PrefetchProcessor struct {
	provider    imagery.Provider
	writer      output.TileWriter
	reporter    ProgressReporter
	logger      *zap.Logger
	concurrency int
	mutex       sync.RWMutex
}

// NewPrefetchProcessor creates a processor; the provider must be initialized
func NewPrefetchProcessor(provider imagery.Provider, writer output.TileWriter, reporter ProgressReporter, logger *zap.Logger) *PrefetchProcessor {
	return &PrefetchProcessor{
		provider:    provider,
		writer:      writer,
		reporter:    reporter,
		logger:      logging.OrNop(logger),
		concurrency: NewJobConfig().Concurrency,
	}
}

// Process executes a complete prefetch job
func (bp *PrefetchProcessor) Process(ctx context.Context, job *Job) error {
	bp.mutex.Lock()
	job.Status = JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	job.Progress.StartTime = now
	if job.Config.Concurrency > 0 {
		bp.concurrency = job.Config.Concurrency
	}
	bp.mutex.Unlock()

	bp.report(func(r ProgressReporter) error { return r.ReportProgress(job) })

	workItems, err := bp.generateWorkItems(job.Ranges)
	if err != nil {
		err = fmt.Errorf("failed to generate work items: %w", err)
		bp.completeJobWithError(job, err)
		return err
	}

	chunkSize := job.Config.ChunkSize
	if chunkSize <= 0 {
		chunkSize = NewJobConfig().ChunkSize
	}

	bp.mutex.Lock()
	job.Progress.TotalTiles = int64(len(workItems))
	job.Progress.TotalChunks = (len(workItems) + chunkSize - 1) / chunkSize
	bp.mutex.Unlock()

	bp.logger.Info("prefetch started",
		zap.String("job", job.ID),
		zap.Int("tiles", len(workItems)),
		zap.Int("chunks", job.Progress.TotalChunks))

	for chunkID, chunkStart := 0, 0; chunkStart < len(workItems); chunkID, chunkStart = chunkID+1, chunkStart+chunkSize {
		if err := ctx.Err(); err != nil {
			bp.completeJobWithError(job, err)
			return err
		}

		chunk := workItems[chunkStart:min(chunkStart+chunkSize, len(workItems))]
		for _, item := range chunk {
			item.ChunkID = chunkID
		}

		bp.mutex.Lock()
		job.Progress.CurrentChunk = chunkID + 1
		bp.mutex.Unlock()

		chunkResult, err := bp.ProcessChunk(ctx, chunk)
		bp.updateJobProgress(job, chunkResult)
		bp.report(func(r ProgressReporter) error { return r.ReportChunkComplete(job, chunkResult) })

		if err != nil {
			if job.Config.FailOnError {
				err = fmt.Errorf("chunk %d failed: %w", chunkID, err)
				bp.completeJobWithError(job, err)
				return err
			}
			bp.logger.Warn("chunk failed", zap.Int("chunk", chunkID), zap.Error(err))
		}
	}

	bp.completeJobSuccessfully(job)
	bp.report(func(r ProgressReporter) error { return r.ReportJobComplete(job) })

	return nil
}

// ProcessChunk fetches a chunk of tiles concurrently, then writes them
func (bp *PrefetchProcessor) ProcessChunk(ctx context.Context, workItems []*WorkItem) (*ChunkResult, error) {
	start := time.Now()
	chunkID := 0
	if len(workItems) > 0 {
		chunkID = workItems[0].ChunkID
	}

	bp.mutex.RLock()
	concurrency := min(len(workItems), bp.concurrency)
	bp.mutex.RUnlock()

	results := make([]*WorkResult, len(workItems))
	sources := make([]*imagery.ImageSource, len(workItems))

	p := pool.New().WithMaxGoroutines(max(concurrency, 1))
	for i, item := range workItems {
		p.Go(func() {
			results[i], sources[i] = bp.fetchWorkItem(ctx, item)
		})
	}
	p.Wait()

	chunk := &ChunkResult{ChunkID: chunkID, Results: results}
	var failures int

	for i, result := range results {
		if result.Error == nil && sources[i] != nil {
			n, err := bp.writer.WriteTile(result.Item.Quad, sources[i])
			result.Bytes = n
			result.Error = err
		}

		switch {
		case result.Error != nil:
			chunk.FailureCount++
			failures++
			bp.logger.Debug("tile prefetch failed", zap.Stringer("tile", result.Item.Quad), zap.Error(result.Error))
		case result.Empty:
			chunk.EmptyCount++
		default:
			chunk.SuccessCount++
		}
	}
	chunk.Duration = time.Since(start)

	if failures > 0 {
		return chunk, fmt.Errorf("%d of %d tiles failed", failures, len(workItems))
	}
	return chunk, nil
}

// fetchWorkItem loads one tile; a tile with no imagery is empty, not failed
func (bp *PrefetchProcessor) fetchWorkItem(ctx context.Context, item *WorkItem) (*WorkResult, *imagery.ImageSource) {
	start := time.Now()
	result := &WorkResult{Item: item}

	if err := ctx.Err(); err != nil {
		result.Error = err
		return result, nil
	}

	q := item.Quad
	src, err := bp.provider.LoadTile(ctx, q.Row, q.Column, q.Level)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = fmt.Errorf("load tile %s: %w", q, err)
		return result, nil
	}
	if src == nil {
		result.Empty = true
	}
	return result, src
}

// generateWorkItems enumerates the tiles of every range
func (bp *PrefetchProcessor) generateWorkItems(ranges []QuadRange) ([]*WorkItem, error) {
	var workItems []*WorkItem
	itemID := 0

	for _, r := range ranges {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if r.Zoom < bp.provider.MinZoom() || r.Zoom > bp.provider.MaxZoom() {
			return nil, fmt.Errorf("zoom %d outside provider range %d-%d", r.Zoom, bp.provider.MinZoom(), bp.provider.MaxZoom())
		}

		for row := r.MinRow; row <= r.MaxRow; row++ {
			for column := r.MinColumn; column <= r.MaxColumn; column++ {
				workItems = append(workItems, &WorkItem{
					Quad:   quad.New(r.Zoom, column, row),
					ItemID: itemID,
				})
				itemID++
			}
		}
	}

	return workItems, nil
}

// updateJobProgress updates job progress based on chunk results
func (bp *PrefetchProcessor) updateJobProgress(job *Job, chunk *ChunkResult) {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	job.Progress.ProcessedTiles += int64(len(chunk.Results))
	job.Progress.SuccessTiles += int64(chunk.SuccessCount)
	job.Progress.FailedTiles += int64(chunk.FailureCount)
	job.Progress.EmptyTiles += int64(chunk.EmptyCount)
	for _, r := range chunk.Results {
		job.Progress.BytesWritten += r.Bytes
	}
	job.Progress.UpdateThroughput()

	estimatedEnd := job.Progress.EstimateCompletion()
	job.Progress.EstimatedEnd = &estimatedEnd
}

// completeJobSuccessfully marks the job as completed
func (bp *PrefetchProcessor) completeJobSuccessfully(job *Job) {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	job.Status = JobStatusCompleted
	now := time.Now()
	job.CompletedAt = &now

	bp.logger.Info("prefetch completed",
		zap.String("job", job.ID),
		zap.Int64("success", job.Progress.SuccessTiles),
		zap.Int64("empty", job.Progress.EmptyTiles),
		zap.Int64("failed", job.Progress.FailedTiles))
}

// completeJobWithError marks the job as failed or canceled
func (bp *PrefetchProcessor) completeJobWithError(job *Job, err error) {
	bp.mutex.Lock()
	job.Status = JobStatusFailed
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		job.Status = JobStatusCanceled
	}
	job.Error = err
	now := time.Now()
	job.CompletedAt = &now
	bp.mutex.Unlock()

	bp.logger.Error("prefetch failed", zap.String("job", job.ID), zap.Error(err))
	bp.report(func(r ProgressReporter) error { return r.ReportJobFailed(job, err) })
}

func (bp *PrefetchProcessor) report(fn func(ProgressReporter) error) {
	if bp.reporter == nil {
		return
	}
	if err := fn(bp.reporter); err != nil {
		bp.logger.Debug("progress report failed", zap.Error(err))
	}
}
