package inventory

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateProjectedCorrections(t *testing.T) {
	b := squareBoundary(t)
	c := NewCorrector(b)

	points := []SurveyPoint{
		{RowNumber: 7, X: 1102, Y: 1050}, // 2 m east of the east edge
		{RowNumber: 9, X: 1050, Y: 1105}, // 5 m north of the north edge
	}
	corrections, stats := c.Generate(points)
	require.Len(t, corrections, 2)

	assert.Equal(t, 7, corrections[0].RowNumber)
	assert.InDelta(t, 1100, corrections[0].Corrected.X, 1e-9)
	assert.InDelta(t, 1050, corrections[0].Corrected.Y, 1e-9)
	assert.InDelta(t, 2.0, corrections[0].DistanceMovedM, 1e-9)

	assert.Equal(t, 9, corrections[1].RowNumber)
	assert.InDelta(t, 1050, corrections[1].Corrected.X, 1e-9)
	assert.InDelta(t, 1100, corrections[1].Corrected.Y, 1e-9)
	assert.InDelta(t, 5.0, corrections[1].DistanceMovedM, 1e-9)

	// Corrected points lie on the ring, so they count as inside.
	for _, corr := range corrections {
		assert.True(t, b.Contains(corr.Corrected.X, corr.Corrected.Y))
		assert.GreaterOrEqual(t, corr.DistanceMovedM, 0.0)
	}

	assert.Equal(t, 2, stats.Count)
	assert.InDelta(t, 2.0, stats.MinM, 1e-9)
	assert.InDelta(t, 5.0, stats.MaxM, 1e-9)
	assert.InDelta(t, 3.5, stats.AvgM, 1e-9)
}

func TestGenerateGeographicCorrections(t *testing.T) {
	// A small lon/lat square near the region's south; at latitude 27 one
	// degree of longitude spans roughly 99 km.
	poly := orb.Polygon{{
		{84.0, 27.0}, {84.1, 27.0}, {84.1, 27.1}, {84.0, 27.1}, {84.0, 27.0},
	}}
	b, err := NewBoundary(poly, FrameGeographic)
	require.NoError(t, err)
	c := NewCorrector(b)

	points := []SurveyPoint{{RowNumber: 1, X: 84.1001, Y: 27.05}}
	corrections, stats := c.Generate(points)
	require.Len(t, corrections, 1)

	// 0.0001 degrees of longitude at lat 27: ~9.9 m great-circle.
	assert.InDelta(t, 9.9, corrections[0].DistanceMovedM, 0.2)
	assert.InDelta(t, 84.1, corrections[0].Corrected.X, 1e-9)
	assert.Equal(t, 1, stats.Count)
}

func TestGenerateEmpty(t *testing.T) {
	c := NewCorrector(squareBoundary(t))
	corrections, stats := c.Generate(nil)
	assert.Empty(t, corrections)
	assert.Equal(t, 0, stats.Count)
	assert.Zero(t, stats.AvgM)
}

func TestLargeCorrections(t *testing.T) {
	corrections := []Correction{
		{RowNumber: 1, DistanceMovedM: 2},
		{RowNumber: 2, DistanceMovedM: 51},
		{RowNumber: 3, DistanceMovedM: 50},
		{RowNumber: 4, DistanceMovedM: 120},
	}
	large := LargeCorrections(corrections, 50)
	require.Len(t, large, 2)
	assert.Equal(t, 2, large[0].RowNumber)
	assert.Equal(t, 4, large[1].RowNumber)

	assert.Empty(t, LargeCorrections(nil, 50))
}

func TestCorrectionLedger(t *testing.T) {
	ledger := NewCorrectionLedger()
	id := uuid.New()

	set := []Correction{{RowNumber: 3, DistanceMovedM: 1.5}}
	require.NoError(t, ledger.Record(id, set))

	// A second set for the same upload is refused, even an empty one.
	err := ledger.Record(id, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorrectionsExist))

	got, ok := ledger.Get(id)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].RowNumber)

	// Get hands out a copy; mutating it must not touch the ledger.
	got[0].RowNumber = 99
	again, _ := ledger.Get(id)
	assert.Equal(t, 3, again[0].RowNumber)

	_, ok = ledger.Get(uuid.New())
	assert.False(t, ok)
}

func TestGreatCircleDistance(t *testing.T) {
	// Same point.
	assert.Zero(t, greatCircleM(orb.Point{84, 27}, orb.Point{84, 27}))

	// One degree of latitude is ~111.2 km everywhere.
	d := greatCircleM(orb.Point{84, 27}, orb.Point{84, 28})
	assert.InDelta(t, 111200, d, 300)

	// Symmetric.
	assert.Equal(t, d, greatCircleM(orb.Point{84, 28}, orb.Point{84, 27}))
}
