package localityimport_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landtitle/titling-backend/internal/locality"
	"github.com/landtitle/titling-backend/internal/localityimport"
)

const districtsCSV = "\ufefftype,name,region\n" +
	"arrondissement,Soa,Centre\n" +
	"district,  Obala ,Centre\n" +
	"departement,Lekie,Centre\n" +
	"province,Nowhere,?\n" +
	"arrondissement,,Centre\n" +
	",,\n"

func TestReadCSV(t *testing.T) {
	recs, err := localityimport.ReadCSV(strings.NewReader(districtsCSV), "districts.csv")
	require.NoError(t, err)
	require.Len(t, recs, 5)

	assert.Equal(t, locality.District, recs[0].Type)
	assert.Equal(t, "Soa", recs[0].Name)
	assert.Equal(t, locality.District, recs[1].Type)
	assert.Equal(t, "Obala", recs[1].Name)
	assert.Equal(t, locality.Department, recs[2].Type)
	assert.Equal(t, locality.LocalityType("province"), recs[3].Type)
	assert.Equal(t, 2, recs[0].Line)
}

func TestReadCSV_MissingColumn(t *testing.T) {
	_, err := localityimport.ReadCSV(strings.NewReader("kind,name\nx,y\n"), "bad.csv")
	assert.ErrorContains(t, err, "missing required column: type")
}

const districtsGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"ADM3_FR": "Soa", "level": "arrondissement"}, "geometry": null},
    {"type": "Feature", "properties": {"ADM3_FR": "Sotuba"}, "geometry": null},
    {"type": "Feature", "properties": {"ADM3_FR": "Mfoundi", "level": "department"}, "geometry": null}
  ]
}`

func TestReadGeoJSON(t *testing.T) {
	recs, err := localityimport.ReadGeoJSON(strings.NewReader(districtsGeoJSON), "adm3.geojson", localityimport.GeoJSONOptions{
		NameProperty: "ADM3_FR",
		TypeProperty: "level",
		DefaultType:  locality.District,
	})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, locality.District, recs[1].Type)
	assert.Equal(t, locality.Department, recs[2].Type)
	assert.Equal(t, "Mfoundi", recs[2].Name)
}

func TestRun_ImportTwiceIsNoOp(t *testing.T) {
	ctx := context.Background()
	cat := locality.NewCatalogue(locality.NewMemoryStore())

	recs, err := localityimport.ReadCSV(strings.NewReader(districtsCSV), "districts.csv")
	require.NoError(t, err)

	first, err := localityimport.Run(ctx, cat, recs)
	require.NoError(t, err)
	assert.Equal(t, 5, first.Read)
	assert.Equal(t, 2, first.Invalid)
	assert.EqualValues(t, 3, first.Added)

	second, err := localityimport.Run(ctx, cat, recs)
	require.NoError(t, err)
	assert.Zero(t, second.Added)
	assert.Equal(t, first.After, second.After)
}

func TestRun_SourcesCollapse(t *testing.T) {
	ctx := context.Background()
	cat := locality.NewCatalogue(locality.NewMemoryStore())

	fromCSV, err := localityimport.ReadCSV(strings.NewReader(districtsCSV), "districts.csv")
	require.NoError(t, err)
	fromGeo, err := localityimport.ReadGeoJSON(strings.NewReader(districtsGeoJSON), "adm3.geojson", localityimport.GeoJSONOptions{
		NameProperty: "ADM3_FR",
		TypeProperty: "level",
		DefaultType:  locality.District,
	})
	require.NoError(t, err)

	st, err := localityimport.Run(ctx, cat, append(fromCSV, fromGeo...))
	require.NoError(t, err)
	// Soa, Obala, Lekie from CSV; Sotuba and Mfoundi are new from GeoJSON.
	assert.EqualValues(t, 5, st.Added)
}
