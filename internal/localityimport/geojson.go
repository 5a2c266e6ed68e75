package localityimport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/landtitle/titling-backend/internal/locality"
)

// GeoJSONOptions tells ParseGeoJSON which feature properties carry the
// locality name and type.
type GeoJSONOptions struct {
	NameProperty string
	// TypeProperty may be empty, in which case DefaultType applies to every feature.
	TypeProperty string
	DefaultType  locality.LocalityType
}

type featureCollection struct {
	Type     string `json:"type"`
	Features []struct {
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

func ParseGeoJSON(path string, opts GeoJSONOptions) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadGeoJSON(f, path, opts)
}

// ReadGeoJSON extracts one record per feature of a FeatureCollection, such as
// an administrative-boundary export. Geometry is ignored.
func ReadGeoJSON(in io.Reader, source string, opts GeoJSONOptions) ([]Record, error) {
	if opts.NameProperty == "" {
		return nil, errors.New("geojson import needs a name property")
	}

	var fc featureCollection
	if err := json.NewDecoder(in).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	if !strings.EqualFold(fc.Type, "FeatureCollection") {
		return nil, fmt.Errorf("expected a FeatureCollection, got %q", fc.Type)
	}

	out := make([]Record, 0, len(fc.Features))
	for i, feat := range fc.Features {
		t := opts.DefaultType
		if opts.TypeProperty != "" {
			if raw := propString(feat.Properties, opts.TypeProperty); raw != "" {
				t = resolveType(raw)
			}
		}
		out = append(out, Record{
			Type:   t,
			Name:   propString(feat.Properties, opts.NameProperty),
			Source: source,
			Line:   i + 1,
		})
	}
	return out, nil
}

func propString(props map[string]any, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
