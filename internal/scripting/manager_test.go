package scripting_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/alienfall/tactics/internal/game/dice"
	"github.com/alienfall/tactics/internal/scripting"
)

func newTestManager(t testing.TB) (*scripting.Manager, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	mgr := scripting.NewManager(dice.NewRoller(dice.NewSeeded(7), logger), logger)
	t.Cleanup(mgr.Close)
	return mgr, logs
}

func writeTempLua(t testing.TB, filename, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(src), 0644))
	return dir
}

func TestManager_LoadScope_CallsHook(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "cover.lua", `
		function cover_bonus(cover, crouched)
			if crouched then return cover + 10 end
			return cover
		end
	`)
	require.NoError(t, mgr.LoadScope("b1", dir, 0))
	ret, err := mgr.CallHook("b1", "cover_bonus", lua.LNumber(25), lua.LTrue)
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(35), ret)
}

func TestManager_CallHook_MissingHookOrScope(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadScope("b1", writeTempLua(t, "empty.lua", `-- nothing`), 0))

	ret, err := mgr.CallHook("b1", "nonexistent_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)

	ret, err = mgr.CallHook("no_such_scope", "some_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestManager_CallHook_RuntimeErrorIsReturnedAndLogged(t *testing.T) {
	mgr, logs := newTestManager(t)
	require.NoError(t, mgr.LoadScope("b1", writeTempLua(t, "acid.lua", `
		function acid_tick(u)
			return u.hp - nil
		end
	`), 0))
	ret, err := mgr.CallHook("b1", "acid_tick", lua.LNil)
	assert.Error(t, err)
	assert.Equal(t, lua.LNil, ret)
	assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())
}

func TestManager_InstructionBudgetIsPerCall(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadScope("b1", writeTempLua(t, "loop.lua", `
		function spin(n)
			local x = 0
			for i = 1, n do x = x + i end
			return x
		end
	`), 200))
	for i := 0; i < 20; i++ {
		ret, err := mgr.CallHook("b1", "spin", lua.LNumber(10))
		require.NoError(t, err, "call %d", i)
		assert.Equal(t, lua.LNumber(55), ret)
	}
	_, err := mgr.CallHook("b1", "spin", lua.LNumber(100000))
	assert.Error(t, err)
}

func TestManager_LoadGlobal_Fallback(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadGlobal(writeTempLua(t, "effects.lua", `
		function poison_tick() return -2 end
	`), 0))
	ret, err := mgr.CallHook("battle-7", "poison_tick")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(-2), ret)
}

func TestManager_LoadScope_Errors(t *testing.T) {
	mgr, _ := newTestManager(t)
	assert.Error(t, mgr.LoadScope("bad", writeTempLua(t, "bad.lua", `this is not valid lua @@@@`), 0))
	assert.Error(t, mgr.LoadScope("missing", filepath.Join(t.TempDir(), "nope"), 0))
}

func TestManager_LoadScope_FilesRunInNameOrder(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "00_constants.lua"), []byte(`BURN_BASE = 3`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "10_burning.lua"), []byte(`function burn_base() return BURN_BASE end`), 0644))
	require.NoError(t, mgr.LoadScope("ordered", dir, 0))
	ret, err := mgr.CallHook("ordered", "burn_base")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(3), ret)
}

func TestManager_EffectTick(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadScope("b1", writeTempLua(t, "effects.lua", `
		function burn(u, effect, stacks)
			if u.hp > 10 then return -3 * stacks end
			return -1
		end
		function regen(u) return 2 end
		function silent(u) end
		function wrong(u) return "oops" end
	`), 0))

	d, err := mgr.EffectTick("b1", "burn", scripting.UnitInfo{ID: "u", HP: 30}, "burning", 2)
	require.NoError(t, err)
	assert.Equal(t, -6, d)

	d, err = mgr.EffectTick("b1", "burn", scripting.UnitInfo{ID: "u", HP: 5}, "burning", 2)
	require.NoError(t, err)
	assert.Equal(t, -1, d)

	d, err = mgr.EffectTick("b1", "regen", scripting.UnitInfo{ID: "u"}, "regen", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, d)

	d, err = mgr.EffectTick("b1", "silent", scripting.UnitInfo{ID: "u"}, "x", 1)
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = mgr.EffectTick("b1", "wrong", scripting.UnitInfo{ID: "u"}, "x", 1)
	assert.Error(t, err)

	d, err = mgr.EffectTick("nowhere", "burn", scripting.UnitInfo{ID: "u"}, "x", 1)
	require.NoError(t, err)
	assert.Zero(t, d)
}

func TestNewManager_Preconditions(t *testing.T) {
	logger := zap.NewNop()
	assert.Panics(t, func() { scripting.NewManager(nil, logger) })
	assert.Panics(t, func() { scripting.NewManager(dice.NewRoller(dice.NewSeeded(1), logger), nil) })
}

func TestManager_Close_ReleasesScopes(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadScope("b1", writeTempLua(t, "effects.lua", `function stun_tick() return 0 end`), 0))
	mgr.Close()
	ret, err := mgr.CallHook("b1", "stun_tick")
	assert.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestManager_ConcurrentCallsSameScope(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadScope("b1", writeTempLua(t, "armor.lua", `
		function absorb(dmg, armor) return math.max(dmg - armor, 0) end
	`), 0))

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 5 {
				ret, err := mgr.CallHook("b1", "absorb", lua.LNumber(10+i), lua.LNumber(4))
				assert.NoError(t, err)
				assert.Equal(t, lua.LNumber(6+i), ret)
			}
		}()
	}
	wg.Wait()
}

func TestProperty_CallHookUnknownScopeNeverPanics(t *testing.T) {
	mgr, _ := newTestManager(t)
	rapid.Check(t, func(rt *rapid.T) {
		scope := rapid.StringMatching(`[a-z]{1,10}`).Draw(rt, "scope")
		hook := rapid.StringMatching(`[a-z]{1,10}`).Draw(rt, "hook")
		ret, err := mgr.CallHook(scope, hook)
		assert.NoError(rt, err)
		assert.Equal(rt, lua.LNil, ret)
	})
}
