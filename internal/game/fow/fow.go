// Package fow tracks what each side can see of the battle map.
package fow

import (
	"fmt"
	"math"
	"sort"

	"github.com/alienfall/tactics/internal/config"
	"github.com/alienfall/tactics/internal/game/grid"
	"github.com/alienfall/tactics/internal/game/unit"
)

// Level is how well a side sees a tile.
type Level int

const (
	Hidden Level = iota
	Partial
	Visible
)

func (l Level) String() string {
	switch l {
	case Hidden:
		return "hidden"
	case Partial:
		return "partial"
	case Visible:
		return "visible"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// LevelFor maps a line-of-sight fraction to a visibility level.
func LevelFor(frac float64) Level {
	switch {
	case frac >= 1:
		return Visible
	case frac > 0:
		return Partial
	}
	return Hidden
}

// Change records one tile's visibility moving between levels for a side.
type Change struct {
	Side  unit.Side
	Coord grid.Coord
	From  Level
	To    Level
}

// Engine owns the per-side visibility maps. Other components read them;
// only Recompute writes them.
type Engine struct {
	g        *grid.Grid
	crouched float64
	prone    float64
	maps     map[unit.Side][]Level
}

// New creates an engine with every tile hidden for every side.
func New(g *grid.Grid, cfg config.BattleConfig) *Engine {
	return &Engine{g: g, crouched: cfg.CrouchedVision, prone: cfg.ProneVision, maps: map[unit.Side][]Level{}}
}

// SightRange is the unit's vision radius in tiles after stance and terrain.
func (e *Engine) SightRange(u *unit.Unit) float64 {
	r := float64(u.EffectiveStats().Sight)
	switch u.Stance {
	case unit.Crouched:
		r *= e.crouched
	case unit.Prone:
		r *= e.prone
	}
	if t, err := e.g.TileAt(u.Pos); err == nil {
		r -= float64(t.VisionPenalty)
	}
	return math.Max(r, 1)
}

// LevelFrom returns the raw level a single observer has of target.
func (e *Engine) LevelFrom(u *unit.Unit, target grid.Coord) Level {
	if u.Pos == target {
		return Visible
	}
	if grid.Distance(u.Pos, target) > e.SightRange(u) {
		return Hidden
	}
	frac, err := e.g.LineOfSight(u.Pos, target)
	if err != nil {
		return Hidden
	}
	return LevelFor(frac)
}

// Observe returns the raw per-tile levels of one observer, row-major.
func (e *Engine) Observe(u *unit.Unit) []Level {
	w, h := e.g.Width(), e.g.Height()
	out := make([]Level, w*h)
	r := e.SightRange(u)
	ri := int(math.Ceil(r))
	for y := max(0, u.Pos.Y-ri); y <= min(h-1, u.Pos.Y+ri); y++ {
		for x := max(0, u.Pos.X-ri); x <= min(w-1, u.Pos.X+ri); x++ {
			out[y*w+x] = e.LevelFrom(u, grid.Coord{X: x, Y: y})
		}
	}
	return out
}

// Recompute rebuilds side's map from its live units and returns every tile
// whose level changed, in row-major order. A tile's level is the best level
// any one unit has of it.
func (e *Engine) Recompute(side unit.Side, units []*unit.Unit) []Change {
	w := e.g.Width()
	next := make([]Level, w*e.g.Height())
	for _, u := range units {
		if u.Side != side || !u.Alive() {
			continue
		}
		for i, l := range e.Observe(u) {
			if l > next[i] {
				next[i] = l
			}
		}
	}
	prev := e.maps[side]
	var changes []Change
	for i, l := range next {
		old := Hidden
		if prev != nil {
			old = prev[i]
		}
		if old != l {
			changes = append(changes, Change{Side: side, Coord: grid.Coord{X: i % w, Y: i / w}, From: old, To: l})
		}
	}
	e.maps[side] = next
	return changes
}

// RecomputeAll refreshes every side present in units, in unit.Sides order.
func (e *Engine) RecomputeAll(units []*unit.Unit) []Change {
	present := map[unit.Side]bool{}
	for _, u := range units {
		present[u.Side] = true
	}
	var all []Change
	for _, s := range unit.Sides {
		if present[s] || e.maps[s] != nil {
			all = append(all, e.Recompute(s, units)...)
		}
	}
	return all
}

// VisibilityOf returns side's level for c; unknown sides and off-map tiles are hidden.
func (e *Engine) VisibilityOf(side unit.Side, c grid.Coord) Level {
	m := e.maps[side]
	if m == nil || !e.g.InBounds(c) {
		return Hidden
	}
	return m[c.Y*e.g.Width()+c.X]
}

// UnitsVisibleTo returns the units of other sides still on the field, active
// or unconscious, standing on tiles side does not see as hidden, sorted by id.
func (e *Engine) UnitsVisibleTo(side unit.Side, units []*unit.Unit) []*unit.Unit {
	var out []*unit.Unit
	for _, u := range units {
		if u.Side == side || !u.OnField() {
			continue
		}
		if e.VisibilityOf(side, u.Pos) != Hidden {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
