package grid

// Line returns the Bresenham line from a to b inclusive of both endpoints.
func Line(a, b Coord) []Coord {
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	errAcc := dx + dy
	pts := make([]Coord, 0, max(dx, -dy)+1)
	c := a
	for {
		pts = append(pts, c)
		if c == b {
			return pts
		}
		e2 := 2 * errAcc
		if e2 >= dy {
			errAcc += dy
			c.X += sx
		}
		if e2 <= dx {
			errAcc += dx
			c.Y += sy
		}
	}
}

// LineOfSight casts a ray from a to b and returns the visibility fraction:
// 1 for a clear line, 0 for a fully blocked one, in between when smoke or
// partial obstacles lie on the ray. Obstruction of the endpoints is ignored,
// so a wall tile itself can be seen. Units never block sight.
//
// Postcondition: returns ErrInvalidCoordinate (wrapped) if either end is off the map.
func (g *Grid) LineOfSight(a, b Coord) (float64, error) {
	if _, err := g.TileAt(a); err != nil {
		return 0, err
	}
	if _, err := g.TileAt(b); err != nil {
		return 0, err
	}
	pts := Line(a, b)
	blocked := 0
	for i := 1; i < len(pts)-1; i++ {
		blocked += g.tile(pts[i]).Obstruction()
		if blocked >= 100 {
			return 0, nil
		}
	}
	return 1 - float64(blocked)/100, nil
}
