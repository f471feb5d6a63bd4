package grid

import (
	"container/heap"
	"errors"
)

// ErrNoPath is returned when no route exists between two tiles.
var ErrNoPath = errors.New("no path")

// Step costs are counted in half AP so that diagonals cost 1.5x an
// orthogonal step without floating point.
const (
	orthogonalHalfAP = 2
	diagonalHalfAP   = 3
)

// Path is a route excluding its start tile.
type Path struct {
	Steps []Coord
	// StepHalfAP holds the cumulative half-AP cost after each step.
	StepHalfAP []int
}

// HalfAP returns the total cost in half AP.
func (p Path) HalfAP() int {
	if len(p.StepHalfAP) == 0 {
		return 0
	}
	return p.StepHalfAP[len(p.StepHalfAP)-1]
}

// AP returns the whole-AP cost of the path, rounding up.
func (p Path) AP() int { return (p.HalfAP() + 1) / 2 }

// APThrough returns the whole-AP cost of the first n steps.
func (p Path) APThrough(n int) int {
	if n <= 0 {
		return 0
	}
	return (p.StepHalfAP[n-1] + 1) / 2
}

// StepCost returns the half-AP cost of moving from a onto the adjacent tile b.
func (g *Grid) StepCost(a, b Coord) int {
	base := orthogonalHalfAP
	if a.X != b.X && a.Y != b.Y {
		base = diagonalHalfAP
	}
	return base * g.tile(b).MoveCost
}

// canStep reports whether a unit may move from a onto the adjacent tile b.
// Diagonal moves may not squeeze between two unwalkable corners.
func (g *Grid) canStep(a, b Coord) bool {
	if !g.IsPassable(b) {
		return false
	}
	if a.X != b.X && a.Y != b.Y {
		c1, c2 := Coord{a.X, b.Y}, Coord{b.X, a.Y}
		if !g.tile(c1).Walkable || !g.tile(c2).Walkable {
			return false
		}
	}
	return true
}

// ValidatePath checks that steps form a legal walk from start and returns it
// costed. Each step must be adjacent to the previous one and passable.
func (g *Grid) ValidatePath(start Coord, steps []Coord) (Path, error) {
	p := Path{Steps: make([]Coord, 0, len(steps)), StepHalfAP: make([]int, 0, len(steps))}
	cur, total := start, 0
	for _, s := range steps {
		if !g.InBounds(s) {
			return Path{}, ErrInvalidCoordinate
		}
		if Chebyshev(cur, s) != 1 || !g.canStep(cur, s) {
			return Path{}, ErrNoPath
		}
		total += g.StepCost(cur, s)
		p.Steps = append(p.Steps, s)
		p.StepHalfAP = append(p.StepHalfAP, total)
		cur = s
	}
	return p, nil
}

// FindPath runs A* over eight directions from start to goal.
//
// Postcondition: the returned path ends on goal and every step is passable at
// call time, or the error is ErrNoPath / ErrInvalidCoordinate.
func (g *Grid) FindPath(start, goal Coord) (Path, error) {
	if !g.InBounds(start) || !g.InBounds(goal) {
		return Path{}, ErrInvalidCoordinate
	}
	if start == goal {
		return Path{}, nil
	}
	if !g.IsPassable(goal) {
		return Path{}, ErrNoPath
	}

	idx := func(c Coord) int { return c.Y*g.width + c.X }
	gScore := map[int]int{idx(start): 0}
	from := map[int]Coord{}
	closed := map[int]bool{}

	open := &nodeHeap{}
	heap.Push(open, node{c: start, f: octile(start, goal)})
	for open.Len() > 0 {
		cur := heap.Pop(open).(node)
		ci := idx(cur.c)
		if closed[ci] {
			continue
		}
		if cur.c == goal {
			return g.reconstruct(start, goal, from)
		}
		closed[ci] = true
		for _, d := range Directions {
			n := cur.c.Add(d.Delta())
			if !g.InBounds(n) || closed[idx(n)] || !g.canStep(cur.c, n) {
				continue
			}
			tentative := gScore[ci] + g.StepCost(cur.c, n)
			ni := idx(n)
			if old, ok := gScore[ni]; ok && tentative >= old {
				continue
			}
			gScore[ni] = tentative
			from[ni] = cur.c
			heap.Push(open, node{c: n, g: tentative, f: tentative + octile(n, goal)})
		}
	}
	return Path{}, ErrNoPath
}

func (g *Grid) reconstruct(start, goal Coord, from map[int]Coord) (Path, error) {
	var rev []Coord
	for c := goal; c != start; c = from[c.Y*g.width+c.X] {
		rev = append(rev, c)
	}
	steps := make([]Coord, len(rev))
	for i, c := range rev {
		steps[len(rev)-1-i] = c
	}
	return g.ValidatePath(start, steps)
}

// octile is the admissible heuristic for 2/3 step costs with MoveCost >= 1.
func octile(a, b Coord) int {
	dx, dy := abs(a.X-b.X), abs(a.Y-b.Y)
	lo, hi := min(dx, dy), max(dx, dy)
	return diagonalHalfAP*lo + orthogonalHalfAP*(hi-lo)
}

type node struct {
	c Coord
	g int
	f int
}

type nodeHeap []node

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f < h[j].f
	}
	return h[i].g > h[j].g
}
func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x any)   { *h = append(*h, x.(node)) }
func (h *nodeHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}
