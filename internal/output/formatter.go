// internal/output/formatter.go - Attribution formatting implementation
package output

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb/geojson"

	"github.com/valpere/tile_imagery/internal/imagery"
)

// GeoJSONFormatter renders each coverage area as a polygon feature
type GeoJSONFormatter struct {
	pretty bool
}

// NewGeoJSONFormatter creates a new GeoJSON formatter
func NewGeoJSONFormatter(pretty bool) *GeoJSONFormatter {
	return &GeoJSONFormatter{pretty: pretty}
}

// Format builds a FeatureCollection; attributions without coverage areas
// produce no features
func (f *GeoJSONFormatter) Format(attributions []imagery.Attribution) ([]byte, error) {
	fc := geojson.NewFeatureCollection()

	for i, a := range attributions {
		for _, c := range a.Coverages {
			feature := geojson.NewFeature(c.Bound().ToPolygon())
			feature.Properties["copyright"] = a.CopyrightMessage
			feature.Properties["attribution"] = i
			feature.Properties["min_zoom"] = c.MinZoom
			feature.Properties["max_zoom"] = c.MaxZoom
			fc.Append(feature)
		}
	}

	if f.pretty {
		return json.MarshalIndent(fc, "", "  ")
	}
	return json.Marshal(fc)
}

// ContentType returns the MIME type for GeoJSON
func (f *GeoJSONFormatter) ContentType() string {
	return "application/geo+json"
}

// JSONFormatter renders attributions as a JSON document
type JSONFormatter struct {
	pretty bool
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(pretty bool) *JSONFormatter {
	return &JSONFormatter{pretty: pretty}
}

// Format wraps the attributions with their count
func (f *JSONFormatter) Format(attributions []imagery.Attribution) ([]byte, error) {
	if attributions == nil {
		attributions = []imagery.Attribution{}
	}
	result := map[string]interface{}{
		"attributions": attributions,
		"count":        len(attributions),
	}

	if f.pretty {
		return json.MarshalIndent(result, "", "  ")
	}
	return json.Marshal(result)
}

// ContentType returns the MIME type for JSON
func (f *JSONFormatter) ContentType() string {
	return "application/json"
}

// NewFormatter creates a formatter based on the specified configuration
func NewFormatter(config *FormatterConfig) (Formatter, error) {
	switch config.Format {
	case FormatGeoJSON:
		return NewGeoJSONFormatter(config.Pretty), nil
	case FormatJSON:
		return NewJSONFormatter(config.Pretty), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", config.Format)
	}
}
