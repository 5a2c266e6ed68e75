package locality_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landtitle/titling-backend/internal/locality"
)

func TestNormalizeBatch_ConvertsOnce(t *testing.T) {
	ctx := context.Background()
	src := locality.NewMemorySource("titles.land_titles.locality", map[string]string{
		"1": "Soa",
		"2": `{"type":"departement","value":"Mfoundi"}`,
		"3": "",
	})
	n, err := locality.NewNormalizer([]locality.RecordSource{src})
	require.NoError(t, err)

	res, err := n.NormalizeBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Scanned)
	assert.Equal(t, 1, res.Converted)
	assert.Equal(t, 2, res.Skipped)
	assert.NoError(t, res.Err())

	v, _ := src.Get("1")
	assert.Equal(t, `{"type":"arrondissement","value":"Soa"}`, v)
	v, _ = src.Get("2")
	assert.Equal(t, `{"type":"departement","value":"Mfoundi"}`, v)

	again, err := n.NormalizeBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Converted)
	assert.Equal(t, 1, src.Writes())
}

func TestNormalizeBatch_DefaultTypeOption(t *testing.T) {
	src := locality.NewMemorySource("users.locality", map[string]string{"u1": "Lekie"})
	n, err := locality.NewNormalizer([]locality.RecordSource{src}, locality.WithDefaultType(locality.Department))
	require.NoError(t, err)

	_, err = n.NormalizeBatch(context.Background())
	require.NoError(t, err)
	v, _ := src.Get("u1")
	assert.Equal(t, `{"type":"departement","value":"Lekie"}`, v)

	_, err = locality.NewNormalizer(nil, locality.WithDefaultType("canton"))
	assert.True(t, locality.IsValidation(err))
}

func TestNormalizeBatch_PartialFailure(t *testing.T) {
	src := locality.NewMemorySource("titles", map[string]string{
		"a": "Soa",
		"b": "Obala",
		"c": "Mbankomo",
	})
	src.FailOn("b", errors.New("row locked"))
	n, err := locality.NewNormalizer([]locality.RecordSource{src})
	require.NoError(t, err)

	res, err := n.NormalizeBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Converted)
	assert.Equal(t, []string{"b"}, res.FailedIDs())

	var pbf *locality.PartialBatchFailure
	require.ErrorAs(t, res.Err(), &pbf)
	assert.Equal(t, []string{"b"}, pbf.IDs())
	assert.Equal(t, "row locked", pbf.Failures[0].Reason)

	v, _ := src.Get("c")
	assert.Equal(t, `{"type":"arrondissement","value":"Mbankomo"}`, v)
}

func TestNormalizeBatch_DryRun(t *testing.T) {
	src := locality.NewMemorySource("titles", map[string]string{"a": "Soa"})
	n, err := locality.NewNormalizer([]locality.RecordSource{src}, locality.WithDryRun(true))
	require.NoError(t, err)

	res, err := n.NormalizeBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, 1, res.Converted)
	v, _ := src.Get("a")
	assert.Equal(t, "Soa", v)
}

func TestNormalizeBatch_MultipleSources(t *testing.T) {
	titles := locality.NewMemorySource("titles", map[string]string{"t1": "Soa"})
	users := locality.NewMemorySource("users", map[string]string{"u1": "Obala", "u2": "null"})
	n, err := locality.NewNormalizer([]locality.RecordSource{titles, users})
	require.NoError(t, err)

	res, err := n.NormalizeBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Scanned)
	assert.Equal(t, 2, res.Converted)
}

func TestNormalizeBatch_SingleFlight(t *testing.T) {
	lock := &locality.LocalLocker{}
	src := locality.NewMemorySource("titles", map[string]string{"a": "Soa"})
	n, err := locality.NewNormalizer([]locality.RecordSource{src}, locality.WithLocker(lock))
	require.NoError(t, err)

	unlock, err := lock.TryLock(context.Background())
	require.NoError(t, err)

	_, err = n.NormalizeBatch(context.Background())
	assert.ErrorIs(t, err, locality.ErrNormalizationInProgress)
	v, _ := src.Get("a")
	assert.Equal(t, "Soa", v)

	unlock()
	res, err := n.NormalizeBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Converted)
}

func TestNormalizeBatch_Cancelled(t *testing.T) {
	src := locality.NewMemorySource("titles", map[string]string{"a": "Soa"})
	n, err := locality.NewNormalizer([]locality.RecordSource{src})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = n.NormalizeBatch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemorySource_CompareAndSet(t *testing.T) {
	src := locality.NewMemorySource("titles", map[string]string{"a": "Soa"})
	err := src.WriteLocalityField(context.Background(), "a", "Obala", `{"type":"arrondissement","value":"Obala"}`)
	assert.ErrorIs(t, err, locality.ErrRecordChanged)
}
