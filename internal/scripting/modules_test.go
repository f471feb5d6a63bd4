package scripting_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"pgregory.net/rapid"

	"github.com/alienfall/tactics/internal/scripting"
)

func runScript(t *testing.T, mgr *scripting.Manager, luaSrc, hook string, args ...lua.LValue) lua.LValue {
	t.Helper()
	scope := "modtest_" + t.Name()
	require.NoError(t, mgr.LoadScope(scope, writeTempLua(t, "test.lua", luaSrc), 0))
	ret, err := mgr.CallHook(scope, hook, args...)
	require.NoError(t, err)
	return ret
}

func TestEngineLog_AllLevels(t *testing.T) {
	mgr, logs := newTestManager(t)
	runScript(t, mgr, `
		function narrate()
			engine.log.debug("burning ticks")
			engine.log.info("unit catches fire")
			engine.log.warn("unit is panicking")
			engine.log.error("unit lost")
		end
	`, "narrate")

	for _, lvl := range []zapcore.Level{zap.DebugLevel, zap.InfoLevel, zap.WarnLevel, zap.ErrorLevel} {
		entries := logs.FilterLevelExact(lvl).FilterField(zap.String("source", "lua")).All()
		assert.Len(t, entries, 1, "level %s", lvl)
	}
}

func TestEngineDice_Roll_ReturnsTable(t *testing.T) {
	mgr, _ := newTestManager(t)
	ret := runScript(t, mgr, `
		function flame_damage()
			local r = engine.dice.roll("1d6")
			if type(r.dice) ~= "number" then error("roll has no dice sum") end
			return r.total
		end
	`, "flame_damage")
	n, ok := ret.(lua.LNumber)
	require.True(t, ok, "expected LNumber, got %T", ret)
	assert.GreaterOrEqual(t, int(n), 1)
	assert.LessOrEqual(t, int(n), 6)
}

func TestEngineDice_BadExpressionRaises(t *testing.T) {
	mgr, _ := newTestManager(t)
	scope := "baddice"
	require.NoError(t, mgr.LoadScope(scope, writeTempLua(t, "d.lua", `
		function misroll() return engine.dice.roll("d6d6") end
	`), 0))
	_, err := mgr.CallHook(scope, "misroll")
	assert.Error(t, err)
}

func TestProperty_DiceRoll_TotalEqualsDicePlusModifier(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadScope("inv", writeTempLua(t, "inv.lua", `
		function roll_adds_up(expr)
			local r = engine.dice.roll(expr)
			return r.total == r.dice + r.modifier
		end
	`), 0))
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 4).Draw(rt, "n")
		sides := rapid.SampledFrom([]int{4, 6, 8, 10}).Draw(rt, "sides")
		mod := rapid.IntRange(-3, 5).Draw(rt, "mod")
		expr := fmt.Sprintf("%dd%d%+d", n, sides, mod)
		ret, err := mgr.CallHook("inv", "roll_adds_up", lua.LString(expr))
		require.NoError(rt, err)
		assert.Equal(rt, lua.LTrue, ret, "total must equal dice + modifier for %s", expr)
	})
}

func TestEngineUnit_Get(t *testing.T) {
	mgr, _ := newTestManager(t)
	src := `
		function describe(id)
			local u = engine.unit.get(id)
			if u == nil then return "none" end
			return u.name .. ":" .. u.hp .. "/" .. u.max_hp .. ":" .. u.stance .. ":" .. #u.effects .. ":" .. u.effects[1]
		end
	`
	assert.Equal(t, lua.LString("none"), runScript(t, mgr, src, "describe", lua.LString("u1")))

	mgr.GetUnit = func(id string) *scripting.UnitInfo {
		if id != "u1" {
			return nil
		}
		return &scripting.UnitInfo{ID: id, Name: "Alice", HP: 12, MaxHP: 40, Stance: "crouched", Effects: []string{"bleeding"}}
	}
	ret, err := mgr.CallHook("modtest_"+t.Name(), "describe", lua.LString("u1"))
	require.NoError(t, err)
	assert.Equal(t, lua.LString("Alice:12/40:crouched:1:bleeding"), ret)

	ret, err = mgr.CallHook("modtest_"+t.Name(), "describe", lua.LString("ghost"))
	require.NoError(t, err)
	assert.Equal(t, lua.LString("none"), ret)
}
