package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// RegisterModules installs the engine.log, engine.dice and engine.unit tables.
//
// Precondition: L must come from NewSandboxedState.
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()
	L.SetField(engine, "log", m.logModule(L))
	L.SetField(engine, "dice", m.diceModule(L))
	L.SetField(engine, "unit", m.unitModule(L))
	L.SetGlobal("engine", engine)
}

func (m *Manager) logModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	levels := map[string]func(string, ...zap.Field){
		"debug": m.logger.Debug,
		"info":  m.logger.Info,
		"warn":  m.logger.Warn,
		"error": m.logger.Error,
	}
	for name, fn := range levels {
		L.SetField(mod, name, L.NewFunction(func(L *lua.LState) int {
			fn(L.CheckString(1), zap.String("source", "lua"))
			return 0
		}))
	}
	return mod
}

// diceModule exposes engine.dice.roll(expr) returning {total, dice, modifier},
// where dice is the sum of the rolled dice.
func (m *Manager) diceModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	L.SetField(mod, "roll", L.NewFunction(func(L *lua.LState) int {
		res, err := m.currentRoller().RollExpr(L.CheckString(1))
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		sum := 0
		for _, d := range res.Dice {
			sum += d
		}
		t := L.NewTable()
		L.SetField(t, "total", lua.LNumber(res.Total()))
		L.SetField(t, "dice", lua.LNumber(sum))
		L.SetField(t, "modifier", lua.LNumber(res.Modifier))
		L.Push(t)
		return 1
	}))
	return mod
}

func (m *Manager) unitModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	L.SetField(mod, "get", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		if m.GetUnit == nil {
			L.Push(lua.LNil)
			return 1
		}
		u := m.GetUnit(id)
		if u == nil {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(unitTable(L, u))
		return 1
	}))
	return mod
}

func unitTable(L *lua.LState, u *UnitInfo) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "id", lua.LString(u.ID))
	L.SetField(t, "name", lua.LString(u.Name))
	L.SetField(t, "side", lua.LString(u.Side))
	L.SetField(t, "hp", lua.LNumber(u.HP))
	L.SetField(t, "max_hp", lua.LNumber(u.MaxHP))
	L.SetField(t, "ap", lua.LNumber(u.AP))
	L.SetField(t, "stance", lua.LString(u.Stance))
	effects := L.NewTable()
	for _, e := range u.Effects {
		effects.Append(lua.LString(e))
	}
	L.SetField(t, "effects", effects)
	return t
}
