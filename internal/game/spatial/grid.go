// Package spatial provides the broad-phase structures used by the tick loop.
//
// Structures store integer indices (not pointers) into a caller-owned slice
// and reuse their backing arrays between ticks.
package spatial

import (
	"math"
	"sort"
)

// SpatialGrid buckets points into fixed-size square cells.
//
// The arena uses it for projectile-vs-player hit tests: players are inserted
// once per tick, then each projectile queries the cells overlapping its hit
// radius. Cell size should be at least the query radius so a query touches
// at most 3x3 cells.
//
// Cells are stored in row-major order (cells[row*cols+col]).
type SpatialGrid struct {
	cellSize    float64
	invCellSize float64
	cols, rows  int
	cells       [][]uint32
	scratch     []uint32
	count       int
}

// NewSpatialGrid creates a grid covering a width x height world.
// maxEntities sizes the per-cell preallocation.
func NewSpatialGrid(width, height, cellSize float64, maxEntities int) *SpatialGrid {
	if cellSize <= 0 {
		cellSize = 64
	}
	cols := int(math.Ceil(width / cellSize))
	rows := int(math.Ceil(height / cellSize))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	perCell := maxEntities / (cols * rows)
	if perCell < 2 {
		perCell = 2
	}
	cells := make([][]uint32, cols*rows)
	for i := range cells {
		cells[i] = make([]uint32, 0, perCell)
	}

	return &SpatialGrid{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       cells,
		scratch:     make([]uint32, 0, 32),
	}
}

// Clear empties every cell, keeping capacity.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
	g.count = 0
}

// Insert adds index at (x, y). Points outside the world land in the
// nearest edge cell.
func (g *SpatialGrid) Insert(index uint32, x, y float64) {
	col := g.clampCol(int(math.Floor(x * g.invCellSize)))
	row := g.clampRow(int(math.Floor(y * g.invCellSize)))
	i := row*g.cols + col
	g.cells[i] = append(g.cells[i], index)
	g.count++
}

// QueryRadius returns the indices in every cell overlapping the square
// around (cx, cy) with half-extent radius, in ascending order. Candidates
// may lie outside the radius; the caller does the exact test.
//
// The returned slice is reused by the next call.
func (g *SpatialGrid) QueryRadius(cx, cy, radius float64) []uint32 {
	g.scratch = g.scratch[:0]

	minCol := g.clampCol(int(math.Floor((cx - radius) * g.invCellSize)))
	maxCol := g.clampCol(int(math.Floor((cx + radius) * g.invCellSize)))
	minRow := g.clampRow(int(math.Floor((cy - radius) * g.invCellSize)))
	maxRow := g.clampRow(int(math.Floor((cy + radius) * g.invCellSize)))

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			g.scratch = append(g.scratch, g.cells[row*g.cols+col]...)
		}
	}

	sort.Slice(g.scratch, func(i, j int) bool { return g.scratch[i] < g.scratch[j] })
	return g.scratch
}

// Len returns the number of inserted points since the last Clear.
func (g *SpatialGrid) Len() int {
	return g.count
}

// Dimensions returns the grid dimensions.
func (g *SpatialGrid) Dimensions() (cols, rows int, cellSize float64) {
	return g.cols, g.rows, g.cellSize
}

func (g *SpatialGrid) clampCol(c int) int {
	if c < 0 {
		return 0
	}
	if c >= g.cols {
		return g.cols - 1
	}
	return c
}

func (g *SpatialGrid) clampRow(r int) int {
	if r < 0 {
		return 0
	}
	if r >= g.rows {
		return g.rows - 1
	}
	return r
}
