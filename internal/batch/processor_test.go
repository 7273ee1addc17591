package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/paulmach/orb"

	"github.com/valpere/tile_imagery/internal"
	"github.com/valpere/tile_imagery/internal/imagery"
	"github.com/valpere/tile_imagery/internal/output"
	"github.com/valpere/tile_imagery/internal/quad"
	"github.com/valpere/tile_imagery/internal/tiling"
)

// stubProvider serves a jpeg for every tile except those in absent
type stubProvider struct {
	absent  map[quad.ID]bool
	broken  map[quad.ID]bool
	onLoad  func()
	maxZoom int
}

func (p *stubProvider) Name() internal.ProviderName               { return internal.ProviderWms }
func (p *stubProvider) MapType() imagery.MapType                  { return imagery.MapTypeAerial }
func (p *stubProvider) Initialize(context.Context) error          { return nil }
func (p *stubProvider) ConstructURL(row, column, zoom int) string { return "" }
func (p *stubProvider) MinZoom() int                              { return 1 }
func (p *stubProvider) MaxZoom() int                              { return p.maxZoom }
func (p *stubProvider) TileWidth() int                            { return 256 }
func (p *stubProvider) TileHeight() int                           { return 256 }
func (p *stubProvider) TilingScheme() tiling.Scheme               { return tiling.NewWebMercator() }
func (p *stubProvider) Attributions() []imagery.Attribution       { return nil }
func (p *stubProvider) Dispose() error                            { return nil }

func (p *stubProvider) MatchingAttributions([]quad.ID) []imagery.Attribution { return nil }

func (p *stubProvider) Decorate(imagery.DecorateContext, imagery.SelectedTiles) {}

func (p *stubProvider) LoadTile(ctx context.Context, row, column, zoom int) (*imagery.ImageSource, error) {
	if p.onLoad != nil {
		p.onLoad()
	}
	q := quad.New(zoom, column, row)
	if p.absent[q] {
		return nil, nil
	}
	if p.broken[q] {
		return nil, imagery.ErrUnsupportedFormat
	}
	return &imagery.ImageSource{Data: []byte{0xFF, 0xD8, byte(zoom), byte(column), byte(row)}, Format: imagery.FormatJPEG}, nil
}

type recordingReporter struct {
	mu       sync.Mutex
	chunks   int
	complete bool
	failed   error
}

func (r *recordingReporter) ReportProgress(*Job) error { return nil }

func (r *recordingReporter) ReportChunkComplete(*Job, *ChunkResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks++
	return nil
}

func (r *recordingReporter) ReportJobComplete(*Job) error {
	r.complete = true
	return nil
}

func (r *recordingReporter) ReportJobFailed(_ *Job, err error) error {
	r.failed = err
	return nil
}

func TestProcess(t *testing.T) {
	dir := t.TempDir()
	writer, err := output.NewDirTileWriter(dir, "")
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	provider := &stubProvider{
		maxZoom: 5,
		absent:  map[quad.ID]bool{quad.New(2, 0, 0): true},
	}
	reporter := &recordingReporter{}
	processor := NewPrefetchProcessor(provider, writer, reporter, nil)

	config := NewJobConfig()
	config.ChunkSize = 3
	job := NewJob("job-1", []QuadRange{FullQuadRange(2)}, config)

	if err := processor.Process(context.Background(), job); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	p := job.Progress
	if job.Status != JobStatusCompleted {
		t.Errorf("Expected completed, got %s", job.Status)
	}
	if p.TotalTiles != 16 || p.ProcessedTiles != 16 {
		t.Errorf("Expected 16 tiles processed, got %d/%d", p.ProcessedTiles, p.TotalTiles)
	}
	if p.SuccessTiles != 15 || p.EmptyTiles != 1 || p.FailedTiles != 0 {
		t.Errorf("Unexpected counts: success %d, empty %d, failed %d", p.SuccessTiles, p.EmptyTiles, p.FailedTiles)
	}
	if p.TotalChunks != 6 || reporter.chunks != 6 {
		t.Errorf("Expected 6 chunks, got %d (reported %d)", p.TotalChunks, reporter.chunks)
	}
	if p.BytesWritten != 15*5 {
		t.Errorf("Expected %d bytes written, got %d", 15*5, p.BytesWritten)
	}
	if !reporter.complete {
		t.Error("Expected job completion to be reported")
	}

	if _, err := os.Stat(filepath.Join(dir, "2", "3", "1.jpg")); err != nil {
		t.Errorf("Expected tile file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "2", "0", "0.jpg")); !os.IsNotExist(err) {
		t.Error("Expected no file for an absent tile")
	}
}

func TestProcessFailures(t *testing.T) {
	broken := map[quad.ID]bool{quad.New(1, 1, 0): true}

	t.Run("continue", func(t *testing.T) {
		writer, _ := output.NewDirTileWriter(t.TempDir(), "")
		processor := NewPrefetchProcessor(&stubProvider{maxZoom: 3, broken: broken}, writer, nil, nil)
		job := NewJob("job-2", []QuadRange{FullQuadRange(1)}, NewJobConfig())

		if err := processor.Process(context.Background(), job); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if job.Progress.FailedTiles != 1 || job.Progress.SuccessTiles != 3 {
			t.Errorf("Unexpected counts: failed %d, success %d", job.Progress.FailedTiles, job.Progress.SuccessTiles)
		}
	})

	t.Run("fail on error", func(t *testing.T) {
		writer, _ := output.NewDirTileWriter(t.TempDir(), "")
		reporter := &recordingReporter{}
		processor := NewPrefetchProcessor(&stubProvider{maxZoom: 3, broken: broken}, writer, reporter, nil)
		config := NewJobConfig()
		config.FailOnError = true
		job := NewJob("job-3", []QuadRange{FullQuadRange(1)}, config)

		if err := processor.Process(context.Background(), job); err == nil {
			t.Fatal("Expected error")
		}
		if job.Status != JobStatusFailed || reporter.failed == nil {
			t.Errorf("Expected failed job, got %s", job.Status)
		}
	})
}

func TestProcessCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	writer, _ := output.NewDirTileWriter(t.TempDir(), "")
	provider := &stubProvider{maxZoom: 3, onLoad: cancel}
	processor := NewPrefetchProcessor(provider, writer, nil, nil)

	config := NewJobConfig()
	config.ChunkSize = 1
	config.Concurrency = 1
	job := NewJob("job-4", []QuadRange{FullQuadRange(2)}, config)

	err := processor.Process(ctx, job)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if job.Status != JobStatusCanceled {
		t.Errorf("Expected canceled, got %s", job.Status)
	}
	if job.Progress.ProcessedTiles != 1 {
		t.Errorf("Expected processing to stop after the first chunk, got %d", job.Progress.ProcessedTiles)
	}
}

func TestProcessZoomOutsideProvider(t *testing.T) {
	writer, _ := output.NewDirTileWriter(t.TempDir(), "")
	processor := NewPrefetchProcessor(&stubProvider{maxZoom: 3}, writer, nil, nil)
	job := NewJob("job-5", []QuadRange{FullQuadRange(4)}, NewJobConfig())

	if err := processor.Process(context.Background(), job); err == nil {
		t.Error("Expected error for zoom above the provider maximum")
	}
}

func TestNewQuadRange(t *testing.T) {
	tests := []struct {
		name  string
		bound orb.Bound
		zoom  int
		want  QuadRange
	}{
		{
			name:  "world",
			bound: orb.Bound{Min: orb.Point{-180, -85}, Max: orb.Point{179.999, 85}},
			zoom:  2,
			want:  QuadRange{Zoom: 2, MinColumn: 0, MaxColumn: 3, MinRow: 0, MaxRow: 3},
		},
		{
			name:  "north east quadrant",
			bound: orb.Bound{Min: orb.Point{10, 10}, Max: orb.Point{20, 20}},
			zoom:  1,
			want:  QuadRange{Zoom: 1, MinColumn: 1, MaxColumn: 1, MinRow: 0, MaxRow: 0},
		},
		{
			name:  "philadelphia",
			bound: orb.Bound{Min: orb.Point{-75.2, 40.0}, Max: orb.Point{-75.1, 40.1}},
			zoom:  10,
			want:  QuadRange{Zoom: 10, MinColumn: 298, MaxColumn: 298, MinRow: 387, MaxRow: 387},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewQuadRange(tt.bound, tt.zoom)
			if got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
			if err := got.Validate(); err != nil {
				t.Errorf("Expected valid range, got %v", err)
			}
		})
	}
}

func TestQuadRangeValidate(t *testing.T) {
	tests := []struct {
		name    string
		r       QuadRange
		wantErr bool
	}{
		{"full", FullQuadRange(3), false},
		{"negative zoom", QuadRange{Zoom: -1}, true},
		{"outside grid", QuadRange{Zoom: 1, MaxColumn: 2, MaxRow: 1}, true},
		{"empty", QuadRange{Zoom: 2, MinColumn: 2, MaxColumn: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.r.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if c := FullQuadRange(3).Count(); c != 64 {
		t.Errorf("Expected 64 tiles, got %d", c)
	}
}
