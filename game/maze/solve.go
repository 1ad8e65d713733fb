package maze

// Solvable reports whether End can be reached from Start. When both ends sit
// on block centers the search moves block to block, the way players move;
// otherwise it falls back to a cell-by-cell search.
func (m *Maze) Solvable() bool {
	if m.IsCenter(m.Start) && m.IsCenter(m.End) {
		return m.reachable(m.Start, m.End, Step, true)
	}
	return m.reachable(m.Start, m.End, 1, false)
}

// Reachable reports whether to can be reached from from through open cells
// using 4-directional single-cell moves.
func (m *Maze) Reachable(from, to Position) bool {
	return m.reachable(from, to, 1, false)
}

// ReachableCenters returns the set of block centers reachable from the
// center origin by block moves.
func (m *Maze) ReachableCenters(origin Position) map[Position]bool {
	seen := map[Position]bool{}
	if !m.IsCenter(origin) {
		return seen
	}
	m.walk(origin, Step, true, seen, func(Position) bool { return false })
	return seen
}

func (m *Maze) reachable(from, to Position, stride int, viaWall bool) bool {
	if !m.IsPath(from) || !m.IsPath(to) {
		return false
	}
	found := false
	m.walk(from, stride, viaWall, map[Position]bool{}, func(p Position) bool {
		found = p == to
		return found
	})
	return found
}

// walk runs a breadth-first search and stops early once stop returns true.
func (m *Maze) walk(origin Position, stride int, viaWall bool, seen map[Position]bool, stop func(Position) bool) {
	queue := []Position{origin}
	seen[origin] = true

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if stop(cur) {
			return
		}

		for _, d := range directions {
			next := Position{X: cur.X + d.X*stride, Y: cur.Y + d.Y*stride}
			if seen[next] || !m.IsPath(next) {
				continue
			}
			if viaWall {
				gap := Position{X: cur.X + d.X*CenterOffset, Y: cur.Y + d.Y*CenterOffset}
				if !m.IsPath(gap) {
					continue
				}
			}
			seen[next] = true
			queue = append(queue, next)
		}
	}
}
