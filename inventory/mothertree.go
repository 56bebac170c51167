package inventory

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Tree is one validated, georeferenced tree offered to the retention
// selector. Coordinates must be in a projected (metric) frame.
type Tree struct {
	TreeID     int     `json:"treeId"`
	RowNumber  int     `json:"rowNumber"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	DiameterCM float64 `json:"diameterCM"`
}

// GridCell is one axis-aligned square of the retention grid. IDs are
// stable row-major scan order from the grid's min corner.
type GridCell struct {
	ID        int     `json:"id"`
	Col       int     `json:"col"`
	Row       int     `json:"row"`
	MinX      float64 `json:"minX"`
	MinY      float64 `json:"minY"`
	CentroidX float64 `json:"centroidX"`
	CentroidY float64 `json:"centroidY"`
}

// MotherTreeAssignment retains one tree for one occupied grid cell.
type MotherTreeAssignment struct {
	TreeID int `json:"treeId"`
	CellID int `json:"cellId"`
}

// RetentionResult is the full outcome of one selection run: the per-cell
// assignments plus a terminal disposition for every input tree.
type RetentionResult struct {
	Assignments   []MotherTreeAssignment  `json:"assignments"`
	Dispositions  map[int]TreeDisposition `json:"dispositions"` // keyed by TreeID
	OccupiedCells []GridCell              `json:"occupiedCells"`
	GridCols      int                     `json:"gridCols"`
	GridRows      int                     `json:"gridRows"`
}

// SelectMotherTrees partitions the eligible trees into a regular square
// grid and retains, per occupied cell, the tree nearest the cell's
// centroid. Exact centroid-distance ties break on the lowest row ordinal,
// so the selection is fully deterministic. Trees below eligibleDiameterCM
// are classified as seedlings by value alone and are excluded from
// gridding entirely; non-selected eligible trees become removal
// candidates. This is an approximate maximal-coverage strategy favoring
// determinism and O(cells x points-per-cell) cost over global optimality.
func SelectMotherTrees(trees []Tree, spacingM, eligibleDiameterCM float64) (RetentionResult, error) {
	if spacingM <= 0 {
		return RetentionResult{}, fmt.Errorf("grid spacing must be positive, got %.2f", spacingM)
	}

	result := RetentionResult{
		Assignments:  []MotherTreeAssignment{},
		Dispositions: make(map[int]TreeDisposition, len(trees)),
	}

	var eligible []Tree
	for _, t := range trees {
		if t.DiameterCM < eligibleDiameterCM {
			result.Dispositions[t.TreeID] = DispositionSeedling
			continue
		}
		result.Dispositions[t.TreeID] = DispositionRemovalCandidate
		eligible = append(eligible, t)
	}
	if len(eligible) == 0 {
		return result, nil
	}

	// Grid over the bounding box of eligible trees.
	points := make(orb.MultiPoint, len(eligible))
	for i, t := range eligible {
		points[i] = orb.Point{t.X, t.Y}
	}
	bound := points.Bound()

	cols := int(math.Floor((bound.Max[0]-bound.Min[0])/spacingM)) + 1
	rows := int(math.Floor((bound.Max[1]-bound.Min[1])/spacingM)) + 1
	result.GridCols = cols
	result.GridRows = rows

	// Bucket trees by cell. Points on the max edge clamp into the last
	// cell so every eligible tree lands in exactly one cell.
	buckets := make(map[int][]Tree)
	for _, t := range eligible {
		col := int(math.Floor((t.X - bound.Min[0]) / spacingM))
		row := int(math.Floor((t.Y - bound.Min[1]) / spacingM))
		if col >= cols {
			col = cols - 1
		}
		if row >= rows {
			row = rows - 1
		}
		cellID := row*cols + col
		buckets[cellID] = append(buckets[cellID], t)
	}

	// Scan cells in id order so output ordering is stable.
	for cellID := 0; cellID < cols*rows; cellID++ {
		occupants, ok := buckets[cellID]
		if !ok {
			continue
		}

		col := cellID % cols
		row := cellID / cols
		cell := GridCell{
			ID:        cellID,
			Col:       col,
			Row:       row,
			MinX:      bound.Min[0] + float64(col)*spacingM,
			MinY:      bound.Min[1] + float64(row)*spacingM,
			CentroidX: bound.Min[0] + (float64(col)+0.5)*spacingM,
			CentroidY: bound.Min[1] + (float64(row)+0.5)*spacingM,
		}
		result.OccupiedCells = append(result.OccupiedCells, cell)

		best := occupants[0]
		bestDist := centroidDistance(best, cell)
		for _, t := range occupants[1:] {
			d := centroidDistance(t, cell)
			if d < bestDist || (d == bestDist && t.RowNumber < best.RowNumber) {
				best = t
				bestDist = d
			}
		}

		result.Assignments = append(result.Assignments, MotherTreeAssignment{
			TreeID: best.TreeID,
			CellID: cellID,
		})
		result.Dispositions[best.TreeID] = DispositionRetained
	}

	return result, nil
}

func centroidDistance(t Tree, cell GridCell) float64 {
	return math.Hypot(t.X-cell.CentroidX, t.Y-cell.CentroidY)
}

// RetentionTreesFromRows adapts validated rows into selector input,
// keeping only boundary-valid rows. Grid occupancy is computed only over
// eligible, boundary-valid points; out-of-boundary rows never reach the
// grid. TreeID is the row ordinal, which is unique within an upload.
func RetentionTreesFromRows(rows []ValidatedRow) []Tree {
	trees := make([]Tree, 0, len(rows))
	for _, r := range rows {
		if !r.InBoundary {
			continue
		}
		trees = append(trees, Tree{
			TreeID:     r.RowNumber,
			RowNumber:  r.RowNumber,
			X:          r.X,
			Y:          r.Y,
			DiameterCM: r.DiameterCM,
		})
	}
	return trees
}

// ApplyDispositions writes selector outcomes back onto validated rows.
// Rows the selector never saw keep their zero disposition.
func ApplyDispositions(rows []ValidatedRow, result RetentionResult) {
	for i := range rows {
		if d, ok := result.Dispositions[rows[i].RowNumber]; ok {
			rows[i].Disposition = d
		}
	}
}
