package maze

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// Layout constants. The grid repeats with period Step: a PathSize-wide
// corridor block followed by a WallSize-thick wall.
const (
	PathSize     = 5
	WallSize     = 1
	Step         = PathSize + WallSize
	CenterOffset = WallSize + PathSize/2

	Wall = 1
	Path = 0

	DefaultPlacementAttempts = 10
)

var ErrInvalidDimensions = errors.New("maze dimensions must be positive")

// Position is a grid coordinate.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Maze is a generated grid plus the shared start and end cells.
type Maze struct {
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Grid   [][]int  `json:"grid"`
	Start  Position `json:"startPos"`
	End    Position `json:"endPos"`
}

// Generator builds mazes from its own random source. It is not safe for
// concurrent use.
type Generator struct {
	rng      *rand.Rand
	attempts int
}

// NewGenerator returns a generator drawing from src. attempts bounds how many
// start/end placements are tried before one is accepted unverified.
func NewGenerator(src rand.Source, attempts int) *Generator {
	if attempts < 1 {
		attempts = DefaultPlacementAttempts
	}
	return &Generator{rng: rand.New(src), attempts: attempts}
}

// Generate builds a maze with a freshly seeded generator.
func Generate(width, height int) (*Maze, error) {
	g := NewGenerator(rand.NewPCG(rand.Uint64(), rand.Uint64()), DefaultPlacementAttempts)
	return g.Generate(width, height)
}

// Generate carves a width x height maze and places start and end.
func (g *Generator) Generate(width, height int) (*Maze, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}

	m := &Maze{Width: width, Height: height}
	g.carve(m)

	for attempt := 1; ; attempt++ {
		g.place(m)
		if m.Start != m.End && m.Solvable() {
			break
		}
		if attempt >= g.attempts {
			break
		}
	}
	return m, nil
}

// carve runs the randomized backtracker over the meta-grid.
func (g *Generator) carve(m *Maze) {
	metaW := (m.Width - WallSize) / Step
	metaH := (m.Height - WallSize) / Step

	if metaW <= 0 || metaH <= 0 {
		m.Grid = newGrid(m.Width, m.Height, Path)
		return
	}
	m.Grid = newGrid(m.Width, m.Height, Wall)

	visited := make([][]bool, metaH)
	for i := range visited {
		visited[i] = make([]bool, metaW)
	}

	first := Position{X: g.rng.IntN(metaW), Y: g.rng.IntN(metaH)}
	visited[first.Y][first.X] = true
	m.openBlock(first)

	stack := []Position{first}
	neighbors := make([]Position, 0, 4)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]

		neighbors = neighbors[:0]
		for _, d := range directions {
			n := Position{X: cur.X + d.X, Y: cur.Y + d.Y}
			if n.X >= 0 && n.X < metaW && n.Y >= 0 && n.Y < metaH && !visited[n.Y][n.X] {
				neighbors = append(neighbors, n)
			}
		}

		if len(neighbors) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}

		next := neighbors[g.rng.IntN(len(neighbors))]
		m.openWall(cur, next)
		m.openBlock(next)
		visited[next.Y][next.X] = true
		stack = append(stack, next)
	}
}

// N, S, W, E in meta-grid units.
var directions = []Position{{X: 0, Y: -1}, {X: 0, Y: 1}, {X: -1, Y: 0}, {X: 1, Y: 0}}

func newGrid(width, height, fill int) [][]int {
	grid := make([][]int, height)
	for y := range grid {
		row := make([]int, width)
		if fill != 0 {
			for x := range row {
				row[x] = fill
			}
		}
		grid[y] = row
	}
	return grid
}

// openBlock clears the PathSize x PathSize block of a meta cell.
func (m *Maze) openBlock(cell Position) {
	ox, oy := WallSize+cell.X*Step, WallSize+cell.Y*Step
	for r := 0; r < PathSize; r++ {
		for c := 0; c < PathSize; c++ {
			m.set(ox+c, oy+r, Path)
		}
	}
}

// openWall clears the wall strip between two adjacent meta cells.
func (m *Maze) openWall(from, to Position) {
	ox, oy := WallSize+from.X*Step, WallSize+from.Y*Step
	dx, dy := to.X-from.X, to.Y-from.Y

	for i := 0; i < WallSize; i++ {
		for j := 0; j < PathSize; j++ {
			switch {
			case dy < 0:
				m.set(ox+j, oy-1-i, Path)
			case dy > 0:
				m.set(ox+j, oy+PathSize+i, Path)
			case dx < 0:
				m.set(ox-1-i, oy+j, Path)
			case dx > 0:
				m.set(ox+PathSize+i, oy+j, Path)
			}
		}
	}
}

func (m *Maze) set(x, y, v int) {
	if m.InBounds(Position{X: x, Y: y}) {
		m.Grid[y][x] = v
	}
}

// InBounds reports whether p lies on the grid.
func (m *Maze) InBounds(p Position) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < m.Width && p.Y < m.Height
}

// IsPath reports whether p is an open cell.
func (m *Maze) IsPath(p Position) bool {
	return m.InBounds(p) && m.Grid[p.Y][p.X] == Path
}

// IsCenter reports whether p is the open center of a path block.
func (m *Maze) IsCenter(p Position) bool {
	return isCenterCoord(p.X) && isCenterCoord(p.Y) && m.IsPath(p)
}

func isCenterCoord(v int) bool {
	return (v-CenterOffset)%Step == 0
}

// Centers returns every open block center in raster order.
func (m *Maze) Centers() []Position {
	var out []Position
	for y := CenterOffset; y < m.Height; y += Step {
		for x := CenterOffset; x < m.Width; x += Step {
			p := Position{X: x, Y: y}
			if m.IsPath(p) {
				out = append(out, p)
			}
		}
	}
	return out
}

// Size renders the dimensions the way the results screen shows them.
func (m *Maze) Size() string {
	return fmt.Sprintf("%d x %d", m.Width, m.Height)
}
