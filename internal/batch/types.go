// internal/batch/types.go - Prefetch job types
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/valpere/tile_imagery/internal/quad"
)

// Job represents a prefetch job over one or more tile ranges
type Job struct {
	ID          string       `json:"id"`
	Ranges      []QuadRange  `json:"ranges"`
	Config      *JobConfig   `json:"config"`
	Status      JobStatus    `json:"status"`
	Progress    *JobProgress `json:"progress"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Error       error        `json:"-"`
}

// JobConfig contains configuration for a prefetch job
type JobConfig struct {
	Concurrency int           `json:"concurrency"`
	ChunkSize   int           `json:"chunk_size"`
	Timeout     time.Duration `json:"timeout"`
	FailOnError bool          `json:"fail_on_error"`
}

// JobStatus represents the current status of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// JobProgress tracks the progress of a job
type JobProgress struct {
	TotalTiles     int64      `json:"total_tiles"`
	ProcessedTiles int64      `json:"processed_tiles"`
	FailedTiles    int64      `json:"failed_tiles"`
	SuccessTiles   int64      `json:"success_tiles"`
	EmptyTiles     int64      `json:"empty_tiles"`
	CurrentChunk   int        `json:"current_chunk"`
	TotalChunks    int        `json:"total_chunks"`
	StartTime      time.Time  `json:"start_time"`
	EstimatedEnd   *time.Time `json:"estimated_end,omitempty"`
	Throughput     float64    `json:"throughput"`
	BytesWritten   int64      `json:"bytes_written"`
}

// QuadRange is an inclusive block of tiles at one zoom level
type QuadRange struct {
	Zoom      int `json:"zoom"`
	MinColumn int `json:"min_column"`
	MaxColumn int `json:"max_column"`
	MinRow    int `json:"min_row"`
	MaxRow    int `json:"max_row"`
}

// WorkItem represents a single tile to fetch
type WorkItem struct {
	Quad    quad.ID `json:"quad"`
	ChunkID int     `json:"chunk_id"`
	ItemID  int     `json:"item_id"`
}

// WorkResult represents the result of fetching one tile
type WorkResult struct {
	Item     *WorkItem     `json:"item"`
	Bytes    int64         `json:"bytes"`
	Empty    bool          `json:"empty"`
	Error    error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// ChunkResult represents the result of processing a chunk of work items
type ChunkResult struct {
	ChunkID      int           `json:"chunk_id"`
	Results      []*WorkResult `json:"results"`
	Duration     time.Duration `json:"duration"`
	SuccessCount int           `json:"success_count"`
	FailureCount int           `json:"failure_count"`
	EmptyCount   int           `json:"empty_count"`
}

// Processor defines the interface for executing jobs
type Processor interface {
	Process(ctx context.Context, job *Job) error
	ProcessChunk(ctx context.Context, workItems []*WorkItem) (*ChunkResult, error)
}

// ProgressReporter defines the interface for reporting job progress
type ProgressReporter interface {
	ReportProgress(job *Job) error
	ReportChunkComplete(job *Job, chunk *ChunkResult) error
	ReportJobComplete(job *Job) error
	ReportJobFailed(job *Job, err error) error
}

// NewJob creates a new prefetch job
func NewJob(id string, ranges []QuadRange, config *JobConfig) *Job {
	return &Job{
		ID:        id,
		Ranges:    ranges,
		Config:    config,
		Status:    JobStatusPending,
		Progress:  NewJobProgress(),
		CreatedAt: time.Now(),
	}
}

// NewJobConfig creates a new job configuration with default values
func NewJobConfig() *JobConfig {
	return &JobConfig{
		Concurrency: 8,
		ChunkSize:   100,
		Timeout:     30 * time.Minute,
		FailOnError: false,
	}
}

// NewJobProgress creates a new job progress tracker
func NewJobProgress() *JobProgress {
	return &JobProgress{StartTime: time.Now()}
}

// NewQuadRange returns the tiles at zoom covering bound (x=lon, y=lat,
// degrees). Latitudes beyond the Mercator limit snap to the edge rows.
func NewQuadRange(bound orb.Bound, zoom int) QuadRange {
	z := maptile.Zoom(zoom)
	nw := maptile.At(orb.Point{bound.Min[0], bound.Max[1]}, z)
	se := maptile.At(orb.Point{bound.Max[0], bound.Min[1]}, z)

	return FullQuadRange(zoom).clamp(QuadRange{
		Zoom:      zoom,
		MinColumn: int(nw.X),
		MaxColumn: int(se.X),
		MinRow:    int(nw.Y),
		MaxRow:    int(se.Y),
	})
}

// FullQuadRange covers every tile at zoom
func FullQuadRange(zoom int) QuadRange {
	last := (1 << uint(zoom)) - 1
	return QuadRange{Zoom: zoom, MaxColumn: last, MaxRow: last}
}

func (r QuadRange) clamp(o QuadRange) QuadRange {
	o.MinColumn = max(o.MinColumn, r.MinColumn)
	o.MaxColumn = min(o.MaxColumn, r.MaxColumn)
	o.MinRow = max(o.MinRow, r.MinRow)
	o.MaxRow = min(o.MaxRow, r.MaxRow)
	return o
}

// Count returns the number of tiles in the range
func (r QuadRange) Count() int64 {
	if r.MaxColumn < r.MinColumn || r.MaxRow < r.MinRow {
		return 0
	}
	return int64(r.MaxColumn-r.MinColumn+1) * int64(r.MaxRow-r.MinRow+1)
}

// Validate checks the range against the tile grid
func (r QuadRange) Validate() error {
	if r.Zoom < 0 || r.Zoom > 30 {
		return fmt.Errorf("zoom %d out of range", r.Zoom)
	}
	full := FullQuadRange(r.Zoom)
	if r.MinColumn < 0 || r.MinRow < 0 || r.MaxColumn > full.MaxColumn || r.MaxRow > full.MaxRow {
		return fmt.Errorf("tile range %d/[%d-%d]/[%d-%d] outside the grid", r.Zoom, r.MinColumn, r.MaxColumn, r.MinRow, r.MaxRow)
	}
	if r.Count() == 0 {
		return fmt.Errorf("tile range at zoom %d is empty", r.Zoom)
	}
	return nil
}

// IsComplete returns true if the job has finished (successfully or with error)
func (j *Job) IsComplete() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed || j.Status == JobStatusCanceled
}

// IsRunning returns true if the job is currently being processed
func (j *Job) IsRunning() bool {
	return j.Status == JobStatusRunning
}

// EstimateCompletion estimates when the job will complete based on current progress
func (p *JobProgress) EstimateCompletion() time.Time {
	if p.Throughput == 0 || p.ProcessedTiles == 0 {
		return time.Now().Add(time.Hour)
	}

	remaining := p.TotalTiles - p.ProcessedTiles
	if remaining <= 0 {
		return time.Now()
	}

	secondsRemaining := float64(remaining) / p.Throughput
	return time.Now().Add(time.Duration(secondsRemaining * float64(time.Second)))
}

// CalculateProgress calculates the completion percentage
func (p *JobProgress) CalculateProgress() float64 {
	if p.TotalTiles == 0 {
		return 0
	}
	return float64(p.ProcessedTiles) / float64(p.TotalTiles) * 100
}

// UpdateThroughput updates the processing throughput based on elapsed time
func (p *JobProgress) UpdateThroughput() {
	elapsed := time.Since(p.StartTime)
	if elapsed.Seconds() > 0 && p.ProcessedTiles > 0 {
		p.Throughput = float64(p.ProcessedTiles) / elapsed.Seconds()
	}
}

// String returns a string representation of the job status
func (s JobStatus) String() string {
	return string(s)
}
