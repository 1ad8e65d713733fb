package maze

import "math"

// squareRatio is the aspect ratio below which the 4x4 virtual grid is used.
const squareRatio = 1.25

type edge int

const (
	edgeTop edge = iota
	edgeBottom
	edgeLeft
	edgeRight
)

// place picks start and end on opposite edges of a virtual coarse grid and
// snaps each to a random block center inside the chosen virtual block.
func (g *Generator) place(m *Maze) {
	cols, rows := virtualGrid(m.Width, m.Height)

	var e edge
	switch {
	case cols == rows:
		e = edge(g.rng.IntN(4))
	case cols < rows:
		e = edgeTop + edge(g.rng.IntN(2))
	default:
		e = edgeLeft + edge(g.rng.IntN(2))
	}

	var startBlock, endBlock Position
	switch e {
	case edgeTop:
		startBlock = Position{X: g.rng.IntN(cols), Y: 0}
		endBlock = Position{X: g.rng.IntN(cols), Y: rows - 1}
	case edgeBottom:
		startBlock = Position{X: g.rng.IntN(cols), Y: rows - 1}
		endBlock = Position{X: g.rng.IntN(cols), Y: 0}
	case edgeLeft:
		startBlock = Position{X: 0, Y: g.rng.IntN(rows)}
		endBlock = Position{X: cols - 1, Y: g.rng.IntN(rows)}
	case edgeRight:
		startBlock = Position{X: cols - 1, Y: g.rng.IntN(rows)}
		endBlock = Position{X: 0, Y: g.rng.IntN(rows)}
	}

	blockW := float64(m.Width) / float64(cols)
	blockH := float64(m.Height) / float64(rows)

	start, okStart := g.centerIn(m, startBlock, blockW, blockH)
	end, okEnd := g.centerIn(m, endBlock, blockW, blockH)
	if okStart && okEnd {
		m.Start, m.End = start, end
		return
	}

	m.Start, m.End = m.fallback()
}

// virtualGrid returns the coarse partition, oriented along the longer axis
// when the maze is markedly rectangular.
func virtualGrid(width, height int) (cols, rows int) {
	long, short := math.Max(float64(width), float64(height)), math.Min(float64(width), float64(height))
	if long/short < squareRatio {
		return 4, 4
	}
	if width < height {
		return 4, 8
	}
	return 8, 4
}

func (g *Generator) centerIn(m *Maze, block Position, blockW, blockH float64) (Position, bool) {
	startX := int(math.Floor(float64(block.X) * blockW))
	startY := int(math.Floor(float64(block.Y) * blockH))
	endX := int(math.Floor(float64(startX) + blockW))
	endY := int(math.Floor(float64(startY) + blockH))

	var candidates []Position
	for y := startY; y < endY && y < m.Height; y++ {
		for x := startX; x < endX && x < m.Width; x++ {
			p := Position{X: x, Y: y}
			if m.IsCenter(p) {
				candidates = append(candidates, p)
			}
		}
	}
	if len(candidates) == 0 {
		return Position{}, false
	}
	return candidates[g.rng.IntN(len(candidates))], true
}

// fallback uses the first and last open cells in raster order.
func (m *Maze) fallback() (Position, Position) {
	first, last := Position{X: -1}, Position{X: -1}
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Grid[y][x] != Path {
				continue
			}
			p := Position{X: x, Y: y}
			if first.X < 0 {
				first = p
			}
			last = p
		}
	}

	if first.X < 0 {
		return Position{X: CenterOffset, Y: CenterOffset},
			Position{X: m.Width - 1 - CenterOffset, Y: m.Height - 1 - CenterOffset}
	}
	if first == last {
		return first, Position{X: m.Width - 1 - CenterOffset, Y: m.Height - 1 - CenterOffset}
	}
	return first, last
}
