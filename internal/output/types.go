// internal/output/types.go - Output handling types
package output

import (
	"fmt"
	"io"

	"github.com/valpere/tile_imagery/internal/imagery"
	"github.com/valpere/tile_imagery/internal/quad"
)

// Format represents the attribution output formats
type Format string

const (
	FormatGeoJSON Format = "geojson"
	FormatJSON    Format = "json"
)

// TileWriter stores fetched tile images
type TileWriter interface {
	// WriteTile returns the number of bytes written
	WriteTile(q quad.ID, src *imagery.ImageSource) (int64, error)
	Close() error
}

// Formatter renders provider attributions
type Formatter interface {
	Format(attributions []imagery.Attribution) ([]byte, error)
	ContentType() string
}

// Destination represents an output destination (file, stdout, etc.)
type Destination interface {
	io.WriteCloser
	Name() string
	Size() int64
}

// FormatterConfig contains configuration for creating formatters
type FormatterConfig struct {
	Format Format
	Pretty bool
}

// String returns a string representation of the format
func (f Format) String() string {
	return string(f)
}

// IsValid checks if the format is supported
func (f Format) IsValid() bool {
	switch f {
	case FormatGeoJSON, FormatJSON:
		return true
	default:
		return false
	}
}

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	f := Format(s)
	if !f.IsValid() {
		return "", fmt.Errorf("invalid output format: %s", s)
	}
	return f, nil
}
