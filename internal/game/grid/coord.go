package grid

import (
	"fmt"
	"math"
)

// Coord is a tile position. X grows east, Y grows south.
type Coord struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

func (c Coord) String() string { return fmt.Sprintf("(%d,%d)", c.X, c.Y) }

// Add returns c offset by d.
func (c Coord) Add(d Coord) Coord { return Coord{X: c.X + d.X, Y: c.Y + d.Y} }

// Distance returns the euclidean distance between a and b.
func Distance(a, b Coord) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}

// Chebyshev returns the king-move distance between a and b.
func Chebyshev(a, b Coord) int {
	return max(abs(a.X-b.X), abs(a.Y-b.Y))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Direction is one of the eight compass directions.
type Direction int

const (
	North Direction = iota
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest
)

var directionNames = [...]string{"n", "ne", "e", "se", "s", "sw", "w", "nw"}

var directionDeltas = [...]Coord{
	{0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1},
}

// Directions lists all eight directions in neighbour order.
var Directions = []Direction{North, NorthEast, East, SouthEast, South, SouthWest, West, NorthWest}

func (d Direction) String() string {
	if d < North || d > NorthWest {
		return fmt.Sprintf("direction(%d)", int(d))
	}
	return directionNames[d]
}

// Delta returns the unit offset of d.
func (d Direction) Delta() Coord { return directionDeltas[d] }

// Diagonal reports whether d moves on both axes.
func (d Direction) Diagonal() bool { return d%2 == 1 }

// Degrees returns the compass bearing of d, north = 0, clockwise.
func (d Direction) Degrees() float64 { return float64(d) * 45 }

// ParseDirection accepts the short compass names ("n", "se", ...).
func ParseDirection(s string) (Direction, error) {
	for i, n := range directionNames {
		if n == s {
			return Direction(i), nil
		}
	}
	return North, fmt.Errorf("grid: unknown direction %q", s)
}

// DirectionTo returns the compass direction closest to the bearing from a to b.
// Equal points face north.
func DirectionTo(a, b Coord) Direction {
	if a == b {
		return North
	}
	oct := int(math.Round(Bearing(a, b)/45)) % 8
	return Direction(oct)
}

// Bearing returns the compass bearing in degrees [0, 360) from a to b.
func Bearing(a, b Coord) float64 {
	deg := math.Atan2(float64(b.X-a.X), float64(a.Y-b.Y)) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}

// WithinArc reports whether target lies inside the cone of width arc degrees
// centred on facing as seen from origin. The origin tile itself is inside.
func WithinArc(origin Coord, facing Direction, arc float64, target Coord) bool {
	if origin == target {
		return true
	}
	diff := math.Abs(Bearing(origin, target) - facing.Degrees())
	if diff > 180 {
		diff = 360 - diff
	}
	return diff <= arc/2
}
