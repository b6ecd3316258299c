// Package hexgrid provides axial coordinates for an unbounded pointy-top
// hex grid. The third cube coordinate s is derived: s = -q - r.
package hexgrid

import (
	"fmt"
	"strconv"
	"strings"
)

// Coord is a position on the hex grid in axial coordinates.
type Coord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// NeighborDirections defines the six neighbor offsets in axial coordinates,
// starting east and winding counterclockwise.
var NeighborDirections = [6]Coord{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

// S returns the implicit third cube coordinate.
func (c Coord) S() int {
	return -c.Q - c.R
}

// Neighbors returns the six adjacent coordinates.
func (c Coord) Neighbors() [6]Coord {
	var result [6]Coord
	for i, dir := range NeighborDirections {
		result[i] = Coord{Q: c.Q + dir.Q, R: c.R + dir.R}
	}
	return result
}

// Key encodes the coordinate as "q:r" for use as a hash field or set member.
func (c Coord) Key() string {
	return fmt.Sprintf("%d:%d", c.Q, c.R)
}

func (c Coord) String() string {
	return c.Key()
}

// ParseKey decodes a "q:r" key back into a coordinate.
func ParseKey(key string) (Coord, error) {
	qs, rs, ok := strings.Cut(key, ":")
	if !ok {
		return Coord{}, fmt.Errorf("invalid hex key %q", key)
	}

	q, err := strconv.Atoi(qs)
	if err != nil {
		return Coord{}, fmt.Errorf("invalid hex key %q: %w", key, err)
	}

	r, err := strconv.Atoi(rs)
	if err != nil {
		return Coord{}, fmt.Errorf("invalid hex key %q: %w", key, err)
	}

	return Coord{Q: q, R: r}, nil
}

// Distance returns the hex distance between two coordinates, measured as
// the maximum absolute difference across the three cube axes.
func Distance(a, b Coord) int {
	dq := abs(a.Q - b.Q)
	dr := abs(a.R - b.R)
	ds := abs(a.S() - b.S())

	max := dq
	if dr > max {
		max = dr
	}
	if ds > max {
		max = ds
	}
	return max
}

// Adjacent reports whether two coordinates share an edge.
func Adjacent(a, b Coord) bool {
	return Distance(a, b) == 1
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
