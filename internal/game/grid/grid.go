// Package grid models the battle map: tiles, occupancy, line of sight and
// pathfinding.
package grid

import (
	"errors"
	"fmt"
)

// ErrInvalidCoordinate is returned for coordinates outside the map.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// SmokeSightBlock is the obstruction smoke adds to a tile.
const SmokeSightBlock = 50

// Tile is a single map cell.
type Tile struct {
	Coord   Coord
	Terrain string
	// Walkable is false for walls and void.
	Walkable bool
	// MoveCost is the AP multiplier for entering the tile, >= 1.
	MoveCost int
	// CoverValue is the protection the tile gives a unit sheltering behind it, 0..100.
	CoverValue int
	// SightBlock is the sight obstruction of the tile, 0..100; 100 is opaque.
	SightBlock int
	// VisionPenalty is subtracted from the sight range of a unit standing here.
	VisionPenalty int
	Smoke         bool
	// Occupant is the id of the unit on the tile, or "".
	Occupant string
	// Object is the id of a destructible object on the tile, or "".
	Object string
	Props  map[string]string
}

// Obstruction returns the sight obstruction including smoke, capped at 100.
func (t *Tile) Obstruction() int {
	o := t.SightBlock
	if t.Smoke {
		o += SmokeSightBlock
	}
	return min(o, 100)
}

// Grid is a rectangular map of tiles stored row-major.
//
// Invariant: at most one unit occupies a tile.
type Grid struct {
	id     string
	width  int
	height int
	tiles  []Tile
}

// New creates a width x height map of open, walkable floor.
//
// Precondition: width > 0 and height > 0.
func New(id string, width, height int) *Grid {
	if width <= 0 || height <= 0 {
		panic(fmt.Sprintf("grid: New precondition violated: size %dx%d", width, height))
	}
	g := &Grid{id: id, width: width, height: height, tiles: make([]Tile, width*height)}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g.tiles[y*width+x] = Tile{Coord: Coord{x, y}, Terrain: "floor", Walkable: true, MoveCost: 1}
		}
	}
	return g
}

func (g *Grid) ID() string  { return g.id }
func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

// InBounds reports whether c lies on the map.
func (g *Grid) InBounds(c Coord) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.width && c.Y < g.height
}

// TileAt returns the tile at c.
//
// Postcondition: returns ErrInvalidCoordinate (wrapped) when c is off the map.
func (g *Grid) TileAt(c Coord) (*Tile, error) {
	if !g.InBounds(c) {
		return nil, fmt.Errorf("%w: %v outside %dx%d", ErrInvalidCoordinate, c, g.width, g.height)
	}
	return &g.tiles[c.Y*g.width+c.X], nil
}

func (g *Grid) tile(c Coord) *Tile { return &g.tiles[c.Y*g.width+c.X] }

// IsPassable reports whether a unit could step onto c: in bounds, walkable and unoccupied.
func (g *Grid) IsPassable(c Coord) bool {
	if !g.InBounds(c) {
		return false
	}
	t := g.tile(c)
	return t.Walkable && t.Occupant == ""
}

// Neighbors returns the in-bounds tiles adjacent to c in Directions order.
func (g *Grid) Neighbors(c Coord) []*Tile {
	out := make([]*Tile, 0, 8)
	for _, d := range Directions {
		n := c.Add(d.Delta())
		if g.InBounds(n) {
			out = append(out, g.tile(n))
		}
	}
	return out
}

// Tiles calls fn for every tile in row-major order.
func (g *Grid) Tiles(fn func(*Tile)) {
	for i := range g.tiles {
		fn(&g.tiles[i])
	}
}

// Place puts unit id on c.
//
// Precondition: c is in bounds, walkable and unoccupied; violating it is a bug.
func (g *Grid) Place(id string, c Coord) {
	if !g.InBounds(c) {
		panic(fmt.Sprintf("grid: Place %s at %v out of bounds", id, c))
	}
	t := g.tile(c)
	if t.Occupant != "" && t.Occupant != id {
		panic(fmt.Sprintf("grid: Place %s at %v already occupied by %s", id, c, t.Occupant))
	}
	if !t.Walkable {
		panic(fmt.Sprintf("grid: Place %s at %v on unwalkable tile", id, c))
	}
	t.Occupant = id
}

// Vacate clears the occupant of c, if any.
func (g *Grid) Vacate(c Coord) {
	if g.InBounds(c) {
		g.tile(c).Occupant = ""
	}
}

// Move relocates unit id between tiles.
//
// Precondition: id occupies from and to is passable.
func (g *Grid) Move(id string, from, to Coord) {
	if !g.InBounds(from) || g.tile(from).Occupant != id {
		panic(fmt.Sprintf("grid: Move %s from %v which it does not occupy", id, from))
	}
	g.Place(id, to)
	g.tile(from).Occupant = ""
}

// SetSmoke sets or clears smoke on every tile within Chebyshev radius of
// centre and returns the affected coordinates.
func (g *Grid) SetSmoke(centre Coord, radius int, on bool) []Coord {
	var out []Coord
	for y := centre.Y - radius; y <= centre.Y+radius; y++ {
		for x := centre.X - radius; x <= centre.X+radius; x++ {
			c := Coord{x, y}
			if !g.InBounds(c) {
				continue
			}
			g.tile(c).Smoke = on
			out = append(out, c)
		}
	}
	return out
}
