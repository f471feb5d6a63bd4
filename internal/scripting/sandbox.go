// Package scripting runs sandboxed GopherLua hooks for battle effects.
// Game state reaches Lua only through snapshot tables and Manager callbacks,
// and every random draw comes from the battle's dice stream so a hook behaves
// the same way when a journal is replayed.
package scripting

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit caps the opcodes one hook call may execute when no
// override is configured.
const DefaultInstructionLimit = 100_000

// removedGlobals are loaders, the GC hook and stdout; hooks log through engine.log.
var removedGlobals = []string{"dofile", "loadfile", "load", "loadstring", "collectgarbage", "require", "module", "print"}

// opcodeBudget cancels itself once Done has been polled limit times.
// GopherLua polls Done once per opcode.
type opcodeBudget struct {
	context.Context
	cancel context.CancelFunc
	left   atomic.Int64
}

// newOpcodeBudget returns a budget of limit opcodes.
//
// Precondition: limit > 0.
func newOpcodeBudget(limit int) *opcodeBudget {
	ctx, cancel := context.WithCancel(context.Background())
	b := &opcodeBudget{Context: ctx, cancel: cancel}
	b.left.Store(int64(limit))
	return b
}

func (b *opcodeBudget) Done() <-chan struct{} {
	if b.left.Add(-1) <= 0 {
		b.cancel()
	}
	return b.Context.Done()
}

// NewSandboxedState creates an LState with only the base, table, string and
// math libraries and an opcode budget of instLimit (0 uses
// DefaultInstructionLimit). math.random draws from intn; with a nil intn it
// is removed. math.randomseed is always removed.
//
// Postcondition: the caller owns the LState and must call cancel then L.Close.
func NewSandboxedState(instLimit int, intn func(n int) int) (*lua.LState, context.CancelFunc) {
	if instLimit <= 0 {
		instLimit = DefaultInstructionLimit
	}
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range removedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	if math, ok := L.GetGlobal("math").(*lua.LTable); ok {
		L.SetField(math, "randomseed", lua.LNil)
		if intn != nil {
			L.SetField(math, "random", L.NewFunction(seededRandom(intn)))
		} else {
			L.SetField(math, "random", lua.LNil)
		}
	}
	b := newOpcodeBudget(instLimit)
	L.SetContext(b)
	return L, b.cancel
}

// seededRandom mirrors Lua's math.random: no arguments gives [0,1), (m)
// gives 1..m and (m, n) gives m..n.
func seededRandom(intn func(n int) int) lua.LGFunction {
	const scale = 1 << 30
	return func(L *lua.LState) int {
		switch L.GetTop() {
		case 0:
			L.Push(lua.LNumber(float64(intn(scale)) / scale))
		case 1:
			hi := L.CheckInt(1)
			if hi < 1 {
				L.ArgError(1, "interval is empty")
			}
			L.Push(lua.LNumber(1 + intn(hi)))
		default:
			lo, hi := L.CheckInt(1), L.CheckInt(2)
			if hi < lo {
				L.ArgError(2, "interval is empty")
			}
			L.Push(lua.LNumber(lo + intn(hi-lo+1)))
		}
		return 1
	}
}
