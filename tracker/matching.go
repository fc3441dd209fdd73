package tracker

import (
	"math"
	"sort"

	"github.com/arthurkushman/go-hungarian"
	"gonum.org/v1/gonum/mat"
)

// Edge is one assignment of a detection row to a track column.
type Edge struct {
	Detection int
	Track     int
}

// Matcher solves the bipartite assignment over a cost matrix of shape
// [detections x tracks], where entries are negative similarities (lower is
// better) and unknown pairings are +Inf. Each index appears in at most one
// returned edge.
type Matcher interface {
	Match(cost *mat.Dense) []Edge
}

// GreedyMatcher repeatedly picks the cheapest remaining cell and discards
// every other cell in its row and column. Ties are broken by original
// (row, column) enumeration order. Non-finite cells are never selected.
type GreedyMatcher struct{}

type costCell struct {
	row  int
	col  int
	cost float64
}

// Match implements Matcher.
func (GreedyMatcher) Match(cost *mat.Dense) []Edge {
	rows, cols := cost.Dims()

	cells := make([]costCell, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			c := cost.At(i, j)
			if math.IsInf(c, 0) || math.IsNaN(c) {
				continue
			}
			cells = append(cells, costCell{row: i, col: j, cost: c})
		}
	}
	sort.SliceStable(cells, func(a, b int) bool {
		return cells[a].cost < cells[b].cost
	})

	usedRows := make(map[int]struct{}, rows)
	usedCols := make(map[int]struct{}, cols)
	edges := make([]Edge, 0, min(rows, cols))
	for _, cell := range cells {
		if _, ok := usedRows[cell.row]; ok {
			continue
		}
		if _, ok := usedCols[cell.col]; ok {
			continue
		}
		usedRows[cell.row] = struct{}{}
		usedCols[cell.col] = struct{}{}
		edges = append(edges, Edge{Detection: cell.row, Track: cell.col})
	}
	return edges
}

// HungarianMatcher solves the rectangular linear assignment problem for the
// minimum total cost.
//
// Any +Inf cost is replaced with 0 before solving. This makes impossible
// pairings look free instead of excluding them, so the solver can be forced
// into a bad-but-legal match rather than leaving a detection unmatched.
// Downstream behavior depends on this normalization; do not change it to
// exclusion.
type HungarianMatcher struct{}

// Match implements Matcher.
func (HungarianMatcher) Match(cost *mat.Dense) []Edge {
	rows, cols := cost.Dims()
	if rows == 0 || cols == 0 {
		return nil
	}

	// Convert to a profit matrix: zero out non-finite costs, negate, then
	// shift so the minimum profit is zero. The shift is uniform over real
	// cells and does not change the optimal assignment.
	minProfit := math.Inf(1)
	profit := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		profit[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			c := cost.At(i, j)
			if math.IsInf(c, 0) || math.IsNaN(c) {
				c = 0
			}
			p := -c
			profit[i][j] = p
			if p < minProfit {
				minProfit = p
			}
		}
	}

	// Pad to a square matrix. Padded cells hold the worst value so a dummy
	// row or column absorbs whatever real index is left over.
	size := max(rows, cols)
	padded := make([][]float64, size)
	for i := 0; i < size; i++ {
		padded[i] = make([]float64, size)
		for j := 0; j < size; j++ {
			if i < rows && j < cols {
				padded[i][j] = profit[i][j] - minProfit
			}
		}
	}

	assignments := hungarian.SolveMax(padded)
	edges := make([]Edge, 0, min(rows, cols))
	for row, colMap := range assignments {
		for col := range colMap {
			if row < rows && col < cols {
				edges = append(edges, Edge{Detection: row, Track: col})
			}
			break
		}
	}
	sort.Slice(edges, func(a, b int) bool {
		return edges[a].Detection < edges[b].Detection
	})
	return edges
}
