// internal/output/writer.go - Tile image writers
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/valpere/tile_imagery/internal/imagery"
	"github.com/valpere/tile_imagery/internal/quad"
)

// DefaultPattern lays tiles out as zoom/column/row
const DefaultPattern = "{z}/{x}/{y}{ext}"

// FileTileWriter writes tiles to a single destination, typically for one tile
type FileTileWriter struct {
	destination Destination
}

// NewFileTileWriter creates a writer for path; "" or "-" writes to stdout
func NewFileTileWriter(path string) (*FileTileWriter, error) {
	dest, err := NewDestination(path)
	if err != nil {
		return nil, err
	}
	return &FileTileWriter{destination: dest}, nil
}

// NewDestination opens path for writing; "" or "-" is stdout
func NewDestination(path string) (Destination, error) {
	if path == "" || path == "-" {
		return stdoutDestination{}, nil
	}

	dest, err := newFileDestination(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file destination: %w", err)
	}
	return dest, nil
}

// WriteTile writes the encoded image as is
func (w *FileTileWriter) WriteTile(q quad.ID, src *imagery.ImageSource) (int64, error) {
	n, err := w.destination.Write(src.Data)
	if err != nil {
		return int64(n), fmt.Errorf("write tile %s failed: %w", q, err)
	}
	return int64(n), nil
}

// Name returns the destination name
func (w *FileTileWriter) Name() string {
	return w.destination.Name()
}

// Close closes the underlying destination
func (w *FileTileWriter) Close() error {
	return w.destination.Close()
}

// DirTileWriter writes each tile to its own file under a base directory
type DirTileWriter struct {
	baseDir string
	pattern string
}

// NewDirTileWriter creates a writer; pattern placeholders are {z}, {x}, {y},
// {quadkey} and {ext}
func NewDirTileWriter(baseDir, pattern string) (*DirTileWriter, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &DirTileWriter{
		baseDir: baseDir,
		pattern: pattern,
	}, nil
}

// WriteTile writes one tile to its own file
func (w *DirTileWriter) WriteTile(q quad.ID, src *imagery.ImageSource) (int64, error) {
	path := filepath.Join(w.baseDir, w.Filename(q, src.Format))

	dest, err := newFileDestination(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file destination: %w", err)
	}

	n, err := dest.Write(src.Data)
	if err != nil {
		dest.Close()
		return int64(n), fmt.Errorf("write tile %s failed: %w", q, err)
	}
	return int64(n), dest.Close()
}

// Filename expands the pattern for a tile
func (w *DirTileWriter) Filename(q quad.ID, format imagery.ImageFormat) string {
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(q.Level),
		"{x}", strconv.Itoa(q.Column),
		"{y}", strconv.Itoa(q.Row),
		"{quadkey}", imagery.QuadKey(q.Column, q.Row, q.Level),
		"{ext}", format.Extension(),
	)
	return filepath.FromSlash(r.Replace(w.pattern))
}

// Close is a no-op for the directory writer
func (w *DirTileWriter) Close() error {
	return nil
}

// fileDestination implements the Destination interface for file output
type fileDestination struct {
	file *os.File
	name string
	size int64
}

// newFileDestination creates the file and its parent directory
func newFileDestination(path string) (*fileDestination, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	return &fileDestination{file: file, name: path}, nil
}

// Write implements io.Writer
func (d *fileDestination) Write(p []byte) (n int, err error) {
	n, err = d.file.Write(p)
	d.size += int64(n)
	return n, err
}

// Close implements io.Closer
func (d *fileDestination) Close() error {
	return d.file.Close()
}

// Name returns the destination file path
func (d *fileDestination) Name() string {
	return d.name
}

// Size returns the number of bytes written
func (d *fileDestination) Size() int64 {
	return d.size
}

type stdoutDestination struct{}

func (stdoutDestination) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdoutDestination) Close() error                { return nil }
func (stdoutDestination) Name() string                { return "stdout" }
func (stdoutDestination) Size() int64                 { return 0 }

// NewTileWriter creates a directory writer when dir is set, otherwise a
// single-file writer
func NewTileWriter(destination string, dir bool, pattern string) (TileWriter, error) {
	if dir {
		return NewDirTileWriter(destination, pattern)
	}
	return NewFileTileWriter(destination)
}
