package battle_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alienfall/tactics/internal/config"
	"github.com/alienfall/tactics/internal/game/battle"
	"github.com/alienfall/tactics/internal/game/dice"
	"github.com/alienfall/tactics/internal/game/effect"
	"github.com/alienfall/tactics/internal/game/grid"
	"github.com/alienfall/tactics/internal/game/ruleset"
	"github.com/alienfall/tactics/internal/game/unit"
	"github.com/alienfall/tactics/internal/scripting"
)

func TestNew_Preconditions(t *testing.T) {
	cfg := config.Defaults()
	_, err := battle.New(battle.Options{Units: []*unit.Unit{soldier("a", unit.SideXCOM, grid.Coord{})}, Rules: cfg.Battle, Damage: cfg.Damage})
	assert.Error(t, err, "grid required")

	_, err = battle.New(options(grid.New("m", 5, 5), hit))
	assert.Error(t, err, "units required")

	_, err = battle.New(options(grid.New("m", 5, 5), hit,
		soldier("a", unit.SideXCOM, grid.Coord{}), soldier("a", unit.SideAlien, grid.Coord{X: 1})))
	assert.Error(t, err, "duplicate ids")

	_, err = battle.New(options(grid.New("m", 5, 5), hit, soldier("a", unit.SideXCOM, grid.Coord{X: 9})))
	assert.Error(t, err, "off map")

	bad := options(grid.New("m", 5, 5), hit, soldier("a", unit.SideXCOM, grid.Coord{}))
	bad.Rules.CrouchAP = -1
	_, err = battle.New(bad)
	assert.Error(t, err, "invalid rules")
}

func TestNew_StartsFirstSideInTurnOrder(t *testing.T) {
	b := newBattle(t, hit, soldier("x", unit.SideAlien, grid.Coord{X: 9, Y: 9}), soldier("s", unit.SideXCOM, grid.Coord{}))
	assert.Equal(t, unit.SideXCOM, b.Side())
	assert.Equal(t, 1, b.Turn())
	assert.Equal(t, battle.Ledger{Side: unit.SideXCOM, Turn: 1, Granted: 6}, b.Ledger())

	tile, err := b.Grid().TileAt(grid.Coord{})
	require.NoError(t, err)
	assert.Equal(t, "s", tile.Occupant)

	units := b.Units()
	require.Len(t, units, 2)
	assert.Equal(t, "s", units[0].ID, "units are kept sorted by id")
}

func TestEndTurn_AlternatesSides(t *testing.T) {
	s := soldier("s", unit.SideXCOM, grid.Coord{})
	x := soldier("x", unit.SideAlien, grid.Coord{X: 9, Y: 9})
	b := newBattle(t, hit, s, x)

	res := b.EndTurn()
	require.True(t, res.Accepted)
	assert.Equal(t, unit.SideAlien, b.Side())
	assert.Equal(t, 2, b.Turn())
	assert.NotEmpty(t, eventsOf(res, battle.EventTurnStart))

	r := b.Submit(battle.Action{Kind: battle.KindCrouch, Actor: "s"})
	assert.False(t, r.Accepted)
	assert.Equal(t, battle.ReasonUnitUnavailable, r.Reason, "not xcom's turn")

	require.True(t, b.EndTurn().Accepted)
	assert.Equal(t, unit.SideXCOM, b.Side())
	assert.Equal(t, 3, b.Turn())
}

func TestEndTurn_SkipsSidesWithoutLiveUnits(t *testing.T) {
	civ := soldier("c", unit.SideCivilian, grid.Coord{X: 5})
	dead := soldier("d", unit.SideAllied, grid.Coord{X: 6})
	dead.Kill()
	b := newBattle(t, hit, soldier("s", unit.SideXCOM, grid.Coord{}), dead, civ,
		soldier("x", unit.SideAlien, grid.Coord{X: 9, Y: 9}))
	b.EndTurn()
	assert.Equal(t, unit.SideAlien, b.Side(), "allied has no live units")
	b.EndTurn()
	assert.Equal(t, unit.SideCivilian, b.Side())
	b.EndTurn()
	assert.Equal(t, unit.SideXCOM, b.Side())
}

func TestStartTurn_RefillsAPAndClearsOverwatch(t *testing.T) {
	s := soldier("s", unit.SideXCOM, grid.Coord{}, rifle)
	b := newBattle(t, miss, s, soldier("x", unit.SideAlien, grid.Coord{X: 11, Y: 11}))

	require.True(t, b.Submit(battle.Action{Kind: battle.KindOverwatch, Actor: "s", Facing: "se"}).Accepted)
	assert.True(t, s.Overwatch)
	assert.Equal(t, 4, s.AP)
	b.EndTurn()
	assert.True(t, s.Overwatch, "overwatch lasts through the enemy turn")
	b.EndTurn()
	assert.False(t, s.Overwatch)
	assert.Zero(t, s.ReservedAP)
	assert.Equal(t, 6, s.AP)
}

func TestStartTurn_BleedingTicksAndExpires(t *testing.T) {
	s := soldier("s", unit.SideXCOM, grid.Coord{})
	bleed, _ := effect.DefaultRegistry().Get(effect.Bleeding)
	require.NoError(t, s.Effects.Apply(bleed, 1, 2))
	b := newBattle(t, hit, s, soldier("x", unit.SideAlien, grid.Coord{X: 9, Y: 9}))
	assert.Equal(t, 38, s.HP, "first tick at battle start")

	b.EndTurn()
	b.EndTurn()
	assert.Equal(t, 36, s.HP)
	res := b.EndTurn()
	assert.False(t, s.Effects.Has(effect.Bleeding))
	assert.Len(t, eventsOf(res, battle.EventExpired), 1)
}

func TestStartTurn_PanicPenalisesAP(t *testing.T) {
	s := soldier("s", unit.SideXCOM, grid.Coord{}, rifle)
	panicked, _ := effect.DefaultRegistry().Get(effect.Panicked)
	require.NoError(t, s.Effects.Apply(panicked, 1, 0))
	b := newBattle(t, hit, s, soldier("x", unit.SideAlien, grid.Coord{X: 5}))
	assert.Equal(t, 5, s.AP)

	res := b.Submit(battle.Action{Kind: battle.KindUseItem, Actor: "s", TargetUnit: "x"})
	assert.False(t, res.Accepted)
	assert.Equal(t, battle.ReasonActionRestricted, res.Reason)
}

func TestStartTurn_LowMoralePenalisesAP(t *testing.T) {
	s := soldier("s", unit.SideXCOM, grid.Coord{})
	s.Morale = 1
	steady := soldier("steady", unit.SideXCOM, grid.Coord{X: 1})
	steady.Morale = 3
	newBattle(t, hit, s, steady, soldier("x", unit.SideAlien, grid.Coord{X: 9, Y: 9}))

	assert.Equal(t, 2, s.Morale)
	assert.Equal(t, 4, s.AP, "two AP lost at morale 2")
	assert.Equal(t, 4, steady.Morale)
	assert.Equal(t, 6, steady.AP)
}

func TestStartTurn_EffectStunKnocksOut(t *testing.T) {
	s := soldier("s", unit.SideXCOM, grid.Coord{})
	bleed, _ := effect.DefaultRegistry().Get(effect.Bleeding)
	require.NoError(t, s.Effects.Apply(bleed, 1, 2))
	s.ApplyPoolDamage(30)
	s.Stun = 12
	x := soldier("x", unit.SideAlien, grid.Coord{X: 9, Y: 9})
	b := newBattle(t, hit, s, soldier("s2", unit.SideXCOM, grid.Coord{X: 1}), x)

	assert.Equal(t, unit.Unconscious, s.Status)
	assert.Zero(t, s.AP)
	assert.Equal(t, 6, b.Ledger().Granted, "only s2 is granted AP")
	assert.Equal(t, battle.ReasonUnitUnavailable, b.Submit(battle.Action{Kind: battle.KindRest, Actor: "s"}).Reason)
}

func TestStartTurn_LuaTickHook(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "burn.lua"), []byte(`
		function burn(u, effect, stacks)
			return -5 * stacks
		end
	`), 0644))
	logger := zap.NewNop()
	scripts := scripting.NewManager(dice.NewRoller(dice.NewSeeded(1), logger), logger)
	t.Cleanup(scripts.Close)
	require.NoError(t, scripts.LoadScope("test", dir, 0))

	reg := effect.DefaultRegistry()
	burning := &effect.Def{ID: "burning", Name: "Burning", DurationType: effect.DurationTurns, Duration: 2, MaxStacks: 2, LuaOnTick: "burn"}
	reg.Register(burning)
	s := soldier("s", unit.SideXCOM, grid.Coord{})
	require.NoError(t, s.Effects.Apply(burning, 2, 0))

	opts := options(grid.New("m", 10, 10), hit, s, soldier("x", unit.SideAlien, grid.Coord{X: 9, Y: 9}))
	opts.Effects = reg
	opts.Scripts = scripts
	opts.ScriptScope = "test"
	_, err := battle.New(opts)
	require.NoError(t, err)
	assert.Equal(t, 30, s.HP)
}

func TestSurrender_EndsBattle(t *testing.T) {
	b := newBattle(t, hit, soldier("s", unit.SideXCOM, grid.Coord{}), soldier("x", unit.SideAlien, grid.Coord{X: 9, Y: 9}))

	res := b.Surrender("x")
	require.True(t, res.Accepted)
	out := b.Outcome()
	assert.True(t, out.Over)
	assert.Equal(t, unit.SideXCOM, out.Winner)
	assert.Equal(t, []unit.Side{unit.SideXCOM}, out.Remaining)

	x, _ := b.Unit("x")
	assert.Equal(t, unit.Surrendered, x.Status)
	tile, _ := b.Grid().TileAt(grid.Coord{X: 9, Y: 9})
	assert.Empty(t, tile.Occupant)

	res = b.Submit(battle.Action{Kind: battle.KindCrouch, Actor: "s"})
	assert.False(t, res.Accepted, "no actions after the battle is decided")
	assert.False(t, b.Surrender("nobody").Accepted)
}

func TestOutcome_NonHostileSidesEndTheBattle(t *testing.T) {
	rel := ruleset.NewRelations(map[string]*ruleset.SideDef{"civilian": {ID: "civilian", HostileTo: []string{"xcom"}}})
	opts := options(grid.New("m", 10, 10), hit,
		soldier("s", unit.SideXCOM, grid.Coord{}),
		soldier("c", unit.SideCivilian, grid.Coord{X: 9}),
		soldier("x", unit.SideAlien, grid.Coord{X: 9, Y: 9}))
	opts.Relations = &rel
	b, err := battle.New(opts)
	require.NoError(t, err)

	b.Surrender("x")
	assert.False(t, b.Outcome().Over, "civilians listed xcom as hostile")
	b.Surrender("c")
	assert.True(t, b.Outcome().Over)
}

func TestPhaseMachine(t *testing.T) {
	s := soldier("s", unit.SideXCOM, grid.Coord{})
	b := newBattle(t, hit, s, soldier("x", unit.SideAlien, grid.Coord{X: 9, Y: 9}))
	assert.Equal(t, battle.PhaseIdle, b.Phase("s"))

	b.Submit(battle.Action{Kind: battle.KindCover, Actor: "s"})
	assert.Equal(t, battle.PhaseRejected, b.Phase("s"))
	b.Submit(battle.Action{Kind: battle.KindCrouch, Actor: "s"})
	assert.Equal(t, battle.PhaseResolved, b.Phase("s"))

	b.EndTurn()
	b.EndTurn()
	assert.Equal(t, battle.PhaseIdle, b.Phase("s"))
}

func TestEngine(t *testing.T) {
	e := battle.NewEngine()
	opts := options(grid.New("m", 5, 5), hit, soldier("s", unit.SideXCOM, grid.Coord{}), soldier("x", unit.SideAlien, grid.Coord{X: 4}))
	opts.ID = ""
	b, err := e.Start(opts)
	require.NoError(t, err)
	assert.Len(t, b.ID(), 36, "uuid assigned")

	got, ok := e.Get(b.ID())
	require.True(t, ok)
	assert.Same(t, b, got)

	opts2 := options(grid.New("m", 5, 5), hit, soldier("s", unit.SideXCOM, grid.Coord{}), soldier("x", unit.SideAlien, grid.Coord{X: 4}))
	opts2.ID = b.ID()
	_, err = e.Start(opts2)
	assert.Error(t, err)

	assert.Equal(t, []string{b.ID()}, e.IDs())
	e.End(b.ID())
	_, ok = e.Get(b.ID())
	assert.False(t, ok)
	assert.Empty(t, e.IDs())
}
