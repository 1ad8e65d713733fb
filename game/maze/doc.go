// Package maze generates the race mazes.
//
// The grid is carved on a coarse meta-grid of blocks: each block is a
// PathSize square of open cells, separated from its neighbours by WallSize
// walls, and a randomized depth-first backtracker knocks out the wall between
// visited blocks. Start and end are then placed on block centers at opposite
// corners of a virtual grid and checked for solvability.
package maze
