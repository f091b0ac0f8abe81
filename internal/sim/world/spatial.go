package world

import (
	"math"
	"sort"
)

// spatialGrid is a uniform-cell index over agent positions. It stores ids and
// entry coordinates only — never agent references — so agent lifetime is owned
// solely by the World's flat collection and removal is a single-point
// operation. Callers must Update after any position mutation before querying.
type spatialGrid struct {
	cellSize   float64
	cols, rows int
	cells      [][]string
	loc        map[string]int
	pos        map[string][2]float64
}

func newSpatialGrid(width, height, cellSize float64) *spatialGrid {
	cols := int(math.Ceil(width / cellSize))
	rows := int(math.Ceil(height / cellSize))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return &spatialGrid{
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		cells:    make([][]string, cols*rows),
		loc:      make(map[string]int),
		pos:      make(map[string][2]float64),
	}
}

func (g *spatialGrid) cellIndex(x, y float64) int {
	col := int(x / g.cellSize)
	row := int(y / g.cellSize)
	col = clampInt(col, 0, g.cols-1)
	row = clampInt(row, 0, g.rows-1)
	return row*g.cols + col
}

func (g *spatialGrid) Add(id string, x, y float64) {
	if _, ok := g.loc[id]; ok {
		g.Update(id, x, y)
		return
	}
	idx := g.cellIndex(x, y)
	g.cells[idx] = append(g.cells[idx], id)
	g.loc[id] = idx
	g.pos[id] = [2]float64{x, y}
}

func (g *spatialGrid) Remove(id string) bool {
	idx, ok := g.loc[id]
	if !ok {
		return false
	}
	g.cells[idx] = removeID(g.cells[idx], id)
	delete(g.loc, id)
	delete(g.pos, id)
	return true
}

// Update relocates the entry when the agent crossed a cell boundary and
// always refreshes the stored coordinates.
func (g *spatialGrid) Update(id string, x, y float64) {
	old, ok := g.loc[id]
	if !ok {
		g.Add(id, x, y)
		return
	}
	idx := g.cellIndex(x, y)
	if idx != old {
		g.cells[old] = removeID(g.cells[old], id)
		g.cells[idx] = append(g.cells[idx], id)
		g.loc[id] = idx
	}
	g.pos[id] = [2]float64{x, y}
}

func (g *spatialGrid) Len() int { return len(g.loc) }

func (g *spatialGrid) Contains(id string) bool {
	_, ok := g.loc[id]
	return ok
}

// QueryRadius returns the ids of all entries within radius of the point, in
// ascending id order. Zero or negative radius yields an empty result.
func (g *spatialGrid) QueryRadius(x, y, radius float64) []string {
	if radius <= 0 {
		return nil
	}
	var out []string
	rSq := radius * radius
	g.scanCells(x, y, radius, func(id string, px, py float64) {
		dx := px - x
		dy := py - y
		if dx*dx+dy*dy <= rSq {
			out = append(out, id)
		}
	})
	sort.Strings(out)
	return out
}

// Nearest returns the closest entry to the point within maxDist that passes
// the filter. Ties are broken by ascending id so results never depend on
// incidental iteration order.
func (g *spatialGrid) Nearest(x, y, maxDist float64, ok func(id string) bool) (string, float64, bool) {
	if maxDist <= 0 {
		return "", 0, false
	}
	bestID := ""
	bestSq := maxDist * maxDist
	found := false
	g.scanCells(x, y, maxDist, func(id string, px, py float64) {
		if ok != nil && !ok(id) {
			return
		}
		dx := px - x
		dy := py - y
		dSq := dx*dx + dy*dy
		if dSq > bestSq {
			return
		}
		if !found || dSq < bestSq || (dSq == bestSq && id < bestID) {
			bestID = id
			bestSq = dSq
			found = true
		}
	})
	if !found {
		return "", 0, false
	}
	return bestID, math.Sqrt(bestSq), true
}

func (g *spatialGrid) scanCells(x, y, radius float64, visit func(id string, px, py float64)) {
	cr := int(math.Ceil(radius/g.cellSize)) + 1
	centerCol := clampInt(int(x/g.cellSize), 0, g.cols-1)
	centerRow := clampInt(int(y/g.cellSize), 0, g.rows-1)
	for dr := -cr; dr <= cr; dr++ {
		row := centerRow + dr
		if row < 0 || row >= g.rows {
			continue
		}
		for dc := -cr; dc <= cr; dc++ {
			col := centerCol + dc
			if col < 0 || col >= g.cols {
				continue
			}
			for _, id := range g.cells[row*g.cols+col] {
				p := g.pos[id]
				visit(id, p[0], p[1])
			}
		}
	}
}

func removeID(s []string, id string) []string {
	for i, v := range s {
		if v == id {
			s[i] = s[len(s)-1]
			return s[:len(s)-1]
		}
	}
	return s
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
