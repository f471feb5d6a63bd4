package fow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/alienfall/tactics/internal/config"
	"github.com/alienfall/tactics/internal/game/fow"
	"github.com/alienfall/tactics/internal/game/grid"
	"github.com/alienfall/tactics/internal/game/unit"
)

func soldier(id string, side unit.Side, pos grid.Coord, sight int) *unit.Unit {
	return unit.New(unit.Spec{ID: id, Side: side, Pos: pos,
		Base: unit.Stats{Health: 30, ActionPoints: 4, Sight: sight}})
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, fow.Visible, fow.LevelFor(1))
	assert.Equal(t, fow.Partial, fow.LevelFor(0.3))
	assert.Equal(t, fow.Hidden, fow.LevelFor(0))
	assert.Equal(t, "partial", fow.Partial.String())
}

func TestRecompute_RangeAndWall(t *testing.T) {
	g := grid.New("m", 12, 3)
	wall, _ := g.TileAt(grid.Coord{X: 6, Y: 0})
	wall.SightBlock, wall.Walkable = 100, false

	e := fow.New(g, config.Defaults().Battle)
	s := soldier("s", unit.SideXCOM, grid.Coord{X: 0, Y: 0}, 8)
	changes := e.Recompute(unit.SideXCOM, []*unit.Unit{s})
	assert.NotEmpty(t, changes)

	assert.Equal(t, fow.Visible, e.VisibilityOf(unit.SideXCOM, grid.Coord{X: 5, Y: 0}))
	assert.Equal(t, fow.Visible, e.VisibilityOf(unit.SideXCOM, grid.Coord{X: 6, Y: 0}), "wall face is seen")
	assert.Equal(t, fow.Hidden, e.VisibilityOf(unit.SideXCOM, grid.Coord{X: 7, Y: 0}), "behind the wall")
	assert.Equal(t, fow.Hidden, e.VisibilityOf(unit.SideXCOM, grid.Coord{X: 10, Y: 1}), "out of range")
	assert.Equal(t, fow.Hidden, e.VisibilityOf(unit.SideAlien, grid.Coord{X: 0, Y: 0}), "unknown side")
	assert.Equal(t, fow.Hidden, e.VisibilityOf(unit.SideXCOM, grid.Coord{X: -1, Y: 0}))
}

func TestRecompute_SmokeGivesPartial(t *testing.T) {
	g := grid.New("m", 8, 1)
	g.SetSmoke(grid.Coord{X: 3}, 0, true)
	e := fow.New(g, config.Defaults().Battle)
	e.Recompute(unit.SideXCOM, []*unit.Unit{soldier("s", unit.SideXCOM, grid.Coord{}, 8)})

	assert.Equal(t, fow.Visible, e.VisibilityOf(unit.SideXCOM, grid.Coord{X: 3}))
	assert.Equal(t, fow.Partial, e.VisibilityOf(unit.SideXCOM, grid.Coord{X: 5}))
}

func TestRecompute_ReportsFallBackToHidden(t *testing.T) {
	g := grid.New("m", 10, 1)
	e := fow.New(g, config.Defaults().Battle)
	s := soldier("s", unit.SideXCOM, grid.Coord{}, 3)
	e.Recompute(unit.SideXCOM, []*unit.Unit{s})
	require.Equal(t, fow.Visible, e.VisibilityOf(unit.SideXCOM, grid.Coord{X: 3}))

	s.Pos = grid.Coord{X: 9}
	changes := e.Recompute(unit.SideXCOM, []*unit.Unit{s})

	var lost []grid.Coord
	for _, c := range changes {
		if c.To == fow.Hidden {
			assert.Equal(t, fow.Visible, c.From)
			lost = append(lost, c.Coord)
		}
	}
	assert.Equal(t, []grid.Coord{{X: 0}, {X: 1}, {X: 2}, {X: 3}}, lost)
	assert.Empty(t, e.Recompute(unit.SideXCOM, []*unit.Unit{s}), "no change when nothing moved")
}

func TestStanceReducesRange(t *testing.T) {
	g := grid.New("m", 20, 1)
	e := fow.New(g, config.Defaults().Battle)
	s := soldier("s", unit.SideXCOM, grid.Coord{}, 12)
	assert.Equal(t, 12.0, e.SightRange(s))
	s.Stance = unit.Crouched
	assert.Equal(t, 9.0, e.SightRange(s))
	s.Stance = unit.Prone
	assert.Equal(t, 6.0, e.SightRange(s))

	tile, _ := g.TileAt(grid.Coord{})
	tile.VisionPenalty = 10
	assert.Equal(t, 1.0, e.SightRange(s), "never below one tile")
}

func TestUnitsVisibleTo(t *testing.T) {
	g := grid.New("m", 10, 10)
	e := fow.New(g, config.Defaults().Battle)
	x := soldier("x", unit.SideXCOM, grid.Coord{X: 0, Y: 0}, 5)
	near := soldier("near", unit.SideAlien, grid.Coord{X: 3, Y: 0}, 5)
	far := soldier("far", unit.SideAlien, grid.Coord{X: 9, Y: 9}, 5)
	dead := soldier("dead", unit.SideAlien, grid.Coord{X: 1, Y: 1}, 5)
	dead.Kill()
	all := []*unit.Unit{x, near, far, dead}

	e.RecomputeAll(all)
	seen := e.UnitsVisibleTo(unit.SideXCOM, all)
	require.Len(t, seen, 1)
	assert.Equal(t, "near", seen[0].ID)
	assert.Equal(t, []*unit.Unit{x}, e.UnitsVisibleTo(unit.SideAlien, all))
}

func TestUnitsVisibleTo_UnconsciousUnits(t *testing.T) {
	g := grid.New("m", 10, 10)
	e := fow.New(g, config.Defaults().Battle)
	x := soldier("x", unit.SideXCOM, grid.Coord{X: 0, Y: 0}, 5)
	down := soldier("down", unit.SideAlien, grid.Coord{X: 2, Y: 0}, 5)
	down.KnockOut()
	all := []*unit.Unit{x, down}

	e.RecomputeAll(all)
	assert.Equal(t, []*unit.Unit{down}, e.UnitsVisibleTo(unit.SideXCOM, all), "a downed enemy is still seen")
	assert.Empty(t, e.UnitsVisibleTo(unit.SideAlien, all), "an unconscious unit sees nothing")
}

func TestProperty_TileLevelIsMaxOfObservers(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		g := grid.New("m", 8, 8)
		n := rapid.IntRange(0, 8).Draw(rt, "obstacles")
		for i := 0; i < n; i++ {
			tile, _ := g.TileAt(grid.Coord{X: rapid.IntRange(0, 7).Draw(rt, "ox"), Y: rapid.IntRange(0, 7).Draw(rt, "oy")})
			tile.SightBlock = rapid.SampledFrom([]int{30, 60, 100}).Draw(rt, "block")
		}
		e := fow.New(g, config.Defaults().Battle)
		var units []*unit.Unit
		k := rapid.IntRange(1, 3).Draw(rt, "units")
		for i := 0; i < k; i++ {
			pos := grid.Coord{X: rapid.IntRange(0, 7).Draw(rt, "ux"), Y: rapid.IntRange(0, 7).Draw(rt, "uy")}
			units = append(units, soldier(string(rune('a'+i)), unit.SideXCOM, pos, rapid.IntRange(1, 10).Draw(rt, "sight")))
		}
		e.Recompute(unit.SideXCOM, units)

		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				c := grid.Coord{X: x, Y: y}
				best := fow.Hidden
				for _, u := range units {
					best = max(best, e.LevelFrom(u, c))
				}
				got := e.VisibilityOf(unit.SideXCOM, c)
				assert.Equal(rt, best, got, "tile %v", c)
				for _, u := range units {
					assert.GreaterOrEqual(rt, got, e.LevelFrom(u, c), "adding observers never lowers a level")
				}
			}
		}
	})
}
