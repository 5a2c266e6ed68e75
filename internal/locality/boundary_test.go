package locality_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landtitle/titling-backend/internal/locality"
)

// squareWithHole is a 10x10 square at the origin with a 2x2 hole in its middle.
const squareWithHole = `{
  "type": "FeatureCollection",
  "features": [{
    "type": "Feature",
    "properties": {"name": "test"},
    "geometry": {
      "type": "Polygon",
      "coordinates": [
        [[0,0],[10,0],[10,10],[0,10],[0,0]],
        [[4,4],[6,4],[6,6],[4,6],[4,4]]
      ]
    }
  }]
}`

func loadBoundary(t *testing.T, doc string) *locality.PolygonBoundary {
	t.Helper()
	b, err := locality.LoadPolygonBoundary(strings.NewReader(doc))
	require.NoError(t, err)
	return b
}

func TestIsWithinBoundary(t *testing.T) {
	checker := locality.NewBoundaryChecker(loadBoundary(t, squareWithHole))

	cases := []struct {
		name     string
		lon, lat float64
		want     bool
	}{
		{"interior", 2, 2, true},
		{"outside", 11, 5, false},
		{"vertex", 0, 0, true},
		{"edge", 10, 5, true},
		{"inside hole", 5, 5, false},
		{"hole edge", 4, 5, true},
		{"far away", -170, -80, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := checker.IsWithinBoundary(context.Background(), tc.lon, tc.lat)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestIsWithinBoundary_InvalidCoordinates(t *testing.T) {
	checker := locality.NewBoundaryChecker(loadBoundary(t, squareWithHole))

	for _, c := range [][2]float64{{200, 10}, {10, 91}, {-180.5, 0}, {math.NaN(), 0}, {0, math.Inf(1)}} {
		_, err := checker.IsWithinBoundary(context.Background(), c[0], c[1])
		var ve *locality.ValidationError
		assert.ErrorAs(t, err, &ve, "%v", c)
	}
}

func TestIsWithinBoundary_Unavailable(t *testing.T) {
	checker := locality.NewBoundaryChecker(locality.NewPolygonBoundary())

	within, err := checker.IsWithinBoundary(context.Background(), 11.5, 3.8)
	assert.ErrorIs(t, err, locality.ErrBoundaryUnavailable)
	assert.False(t, within)
}

type brokenBoundary struct{ err error }

func (b brokenBoundary) Covers(context.Context, float64, float64) (bool, error) {
	return false, b.err
}

func TestIsWithinBoundary_StoreFailure(t *testing.T) {
	down := errors.New("connection reset")
	checker := locality.NewBoundaryChecker(brokenBoundary{err: down})

	_, err := checker.IsWithinBoundary(context.Background(), 11.5, 3.8)
	var se *locality.StoreError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, down)
}

func TestLoadPolygonBoundary_MultiPolygon(t *testing.T) {
	b := loadBoundary(t, `{
		"type": "MultiPolygon",
		"coordinates": [
			[[[0,0],[1,0],[1,1],[0,1],[0,0]]],
			[[[5,5],[6,5],[6,6],[5,6],[5,5]]]
		]
	}`)
	assert.Equal(t, 2, b.Polygons())

	checker := locality.NewBoundaryChecker(b)
	in, err := checker.IsWithinBoundary(context.Background(), 5.5, 5.5)
	require.NoError(t, err)
	assert.True(t, in)
	in, err = checker.IsWithinBoundary(context.Background(), 3, 3)
	require.NoError(t, err)
	assert.False(t, in)

	raw, err := b.MultiPolygonGeoJSON()
	require.NoError(t, err)
	again := loadBoundary(t, string(raw))
	assert.Equal(t, 2, again.Polygons())
}

func TestLoadPolygonBoundary_Rejects(t *testing.T) {
	for name, doc := range map[string]string{
		"not json":       `{`,
		"point only":     `{"type":"Point","coordinates":[1,2]}`,
		"short ring":     `{"type":"Polygon","coordinates":[[[0,0],[1,0],[0,0]]]}`,
		"out of range":   `{"type":"Polygon","coordinates":[[[0,0],[190,0],[190,1],[0,0]]]}`,
		"empty features": `{"type":"FeatureCollection","features":[]}`,
	} {
		_, err := locality.LoadPolygonBoundary(strings.NewReader(doc))
		assert.Error(t, err, name)
	}
}
