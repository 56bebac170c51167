package inventory

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clusterTrees builds 200 eligible trees in four tight clusters, one per
// cell of a 2x2 grid at 20 m spacing.
func clusterTrees() []Tree {
	centers := [][2]float64{{5, 5}, {35, 5}, {5, 35}, {35, 35}}
	trees := make([]Tree, 0, 200)
	id := 1
	for _, c := range centers {
		for i := 0; i < 50; i++ {
			trees = append(trees, Tree{
				TreeID:     id,
				RowNumber:  id,
				X:          c[0] + float64(i%10)*0.4,
				Y:          c[1] + float64(i/10)*0.4,
				DiameterCM: 15 + float64(i%20),
			})
			id++
		}
	}
	return trees
}

func TestSelectMotherTreesClusters(t *testing.T) {
	trees := clusterTrees()
	result, err := SelectMotherTrees(trees, 20, 10)
	require.NoError(t, err)

	// Four occupied cells, one retained tree each.
	assert.Equal(t, 2, result.GridCols)
	assert.Equal(t, 2, result.GridRows)
	require.Len(t, result.OccupiedCells, 4)
	require.Len(t, result.Assignments, 4)

	retained := 0
	for _, d := range result.Dispositions {
		switch d {
		case DispositionRetained:
			retained++
		case DispositionRemovalCandidate:
		default:
			t.Fatalf("unexpected disposition %q", d)
		}
	}
	assert.Equal(t, 4, retained)
	assert.Len(t, result.Dispositions, 200)

	// Each retained tree is the nearest to its cell centroid.
	byCell := make(map[int][]Tree)
	for _, tree := range trees {
		for _, cell := range result.OccupiedCells {
			if tree.X >= cell.MinX && tree.X < cell.MinX+20 &&
				tree.Y >= cell.MinY && tree.Y < cell.MinY+20 {
				byCell[cell.ID] = append(byCell[cell.ID], tree)
			}
		}
	}
	for i, a := range result.Assignments {
		cell := result.OccupiedCells[i]
		require.Equal(t, cell.ID, a.CellID)
		var winner Tree
		for _, tree := range byCell[cell.ID] {
			if tree.TreeID == a.TreeID {
				winner = tree
			}
		}
		require.NotZero(t, winner.TreeID, "assignment names a tree outside its cell")
		winnerDist := centroidDistance(winner, cell)
		for _, tree := range byCell[cell.ID] {
			assert.LessOrEqual(t, winnerDist, centroidDistance(tree, cell))
		}
	}
}

func TestSelectMotherTreesTieBreak(t *testing.T) {
	// One cell anchored at (0,0) with centroid (10,10). Trees 9 and 4 sit
	// 4 m from the centroid on opposite sides.
	trees := []Tree{
		{TreeID: 1, RowNumber: 1, X: 0, Y: 0, DiameterCM: 30},
		{TreeID: 2, RowNumber: 2, X: 19, Y: 19, DiameterCM: 30},
		{TreeID: 9, RowNumber: 9, X: 6, Y: 10, DiameterCM: 30},
		{TreeID: 4, RowNumber: 4, X: 14, Y: 10, DiameterCM: 30},
	}
	result, err := SelectMotherTrees(trees, 20, 10)
	require.NoError(t, err)
	require.Len(t, result.Assignments, 1)
	assert.Equal(t, 4, result.Assignments[0].TreeID, "exact tie breaks on the lower row ordinal")

	// A tree exactly on the centroid wins outright.
	trees = append(trees, Tree{TreeID: 7, RowNumber: 7, X: 10, Y: 10, DiameterCM: 30})
	result, err = SelectMotherTrees(trees, 20, 10)
	require.NoError(t, err)
	require.Len(t, result.Assignments, 1)
	assert.Equal(t, 7, result.Assignments[0].TreeID)
}

func TestSelectMotherTreesSeedlingsExcluded(t *testing.T) {
	trees := []Tree{
		{TreeID: 1, RowNumber: 1, X: 0, Y: 0, DiameterCM: 9.9},
		{TreeID: 2, RowNumber: 2, X: 1, Y: 1, DiameterCM: 10},
		{TreeID: 3, RowNumber: 3, X: 2, Y: 2, DiameterCM: 4},
	}
	result, err := SelectMotherTrees(trees, 20, 10)
	require.NoError(t, err)

	assert.Equal(t, DispositionSeedling, result.Dispositions[1])
	assert.Equal(t, DispositionRetained, result.Dispositions[2])
	assert.Equal(t, DispositionSeedling, result.Dispositions[3])
	require.Len(t, result.Assignments, 1)
	assert.Equal(t, 2, result.Assignments[0].TreeID)
}

func TestSelectMotherTreesAllSeedlings(t *testing.T) {
	trees := []Tree{
		{TreeID: 1, RowNumber: 1, X: 0, Y: 0, DiameterCM: 2},
		{TreeID: 2, RowNumber: 2, X: 5, Y: 5, DiameterCM: 3},
	}
	result, err := SelectMotherTrees(trees, 20, 10)
	require.NoError(t, err)
	assert.Empty(t, result.Assignments)
	assert.Empty(t, result.OccupiedCells)
	assert.Equal(t, DispositionSeedling, result.Dispositions[1])
	assert.Equal(t, DispositionSeedling, result.Dispositions[2])
}

func TestSelectMotherTreesInvalidSpacing(t *testing.T) {
	_, err := SelectMotherTrees(clusterTrees(), 0, 10)
	assert.Error(t, err)

	_, err = SelectMotherTrees(clusterTrees(), -5, 10)
	assert.Error(t, err)
}

func TestSelectMotherTreesDeterministic(t *testing.T) {
	trees := clusterTrees()
	first, err := SelectMotherTrees(trees, 20, 10)
	require.NoError(t, err)
	second, err := SelectMotherTrees(trees, 20, 10)
	require.NoError(t, err)
	assert.True(t, reflect.DeepEqual(first, second), "same input must select the same trees")
}

func TestRetentionTreesFromRows(t *testing.T) {
	rows := []ValidatedRow{
		{RawRow: RawRow{RowNumber: 1, X: 10, Y: 10}, DiameterCM: 25, InBoundary: true},
		{RawRow: RawRow{RowNumber: 2, X: 500, Y: 500}, DiameterCM: 30, InBoundary: false},
		{RawRow: RawRow{RowNumber: 3, X: 12, Y: 12}, DiameterCM: 5, InBoundary: true},
	}
	trees := RetentionTreesFromRows(rows)
	require.Len(t, trees, 2)
	assert.Equal(t, 1, trees[0].TreeID)
	assert.Equal(t, 3, trees[1].TreeID)
	assert.Equal(t, 25.0, trees[0].DiameterCM)
}

func TestApplyDispositions(t *testing.T) {
	rows := []ValidatedRow{
		{RawRow: RawRow{RowNumber: 1, X: 10, Y: 10}, DiameterCM: 25, InBoundary: true},
		{RawRow: RawRow{RowNumber: 2, X: 500, Y: 500}, DiameterCM: 30, InBoundary: false},
		{RawRow: RawRow{RowNumber: 3, X: 12, Y: 12}, DiameterCM: 5, InBoundary: true},
	}
	result, err := SelectMotherTrees(RetentionTreesFromRows(rows), 20, 10)
	require.NoError(t, err)

	ApplyDispositions(rows, result)
	assert.Equal(t, DispositionRetained, rows[0].Disposition)
	assert.Equal(t, TreeDisposition(""), rows[1].Disposition, "out-of-boundary row never reached the selector")
	assert.Equal(t, DispositionSeedling, rows[2].Disposition)
}
