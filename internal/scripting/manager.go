package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/alienfall/tactics/internal/game/dice"
)

// globalScope is the VM CallHook falls back to when a scope has none.
const globalScope = "__global__"

// UnitInfo is the snapshot of a unit handed to Lua.
type UnitInfo struct {
	ID      string
	Name    string
	Side    string
	HP      int
	MaxHP   int
	AP      int
	Stance  string
	Effects []string
}

type vm struct {
	mu    sync.Mutex
	L     *lua.LState
	limit int
}

// Manager owns one sandboxed VM per scope and dispatches hooks into them.
// Calls into the same VM are serialised; different scopes run concurrently.
type Manager struct {
	mu     sync.RWMutex
	vms    map[string]*vm
	roller *dice.Roller
	logger *zap.Logger

	// GetUnit backs engine.unit.get; nil makes it return nil.
	GetUnit func(id string) *UnitInfo
}

// NewManager creates a Manager.
//
// Precondition: roller and logger must be non-nil.
func NewManager(roller *dice.Roller, logger *zap.Logger) *Manager {
	if roller == nil || logger == nil {
		panic("scripting: NewManager requires a roller and a logger")
	}
	return &Manager{vms: make(map[string]*vm), roller: roller, logger: logger}
}

// SetRoller replaces the roller engine.dice draws from, so scripted rolls
// share a battle's seeded stream.
func (m *Manager) SetRoller(r *dice.Roller) {
	m.mu.Lock()
	m.roller = r
	m.mu.Unlock()
}

func (m *Manager) currentRoller() *dice.Roller {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.roller
}

// intn backs math.random inside every VM.
func (m *Manager) intn(n int) int {
	return m.currentRoller().Source().Intn(n)
}

// LoadScope creates a VM for scope and runs every *.lua file in dir in
// lexical order. An existing VM for scope is replaced.
func (m *Manager) LoadScope(scope, dir string, instLimit int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", dir, scope, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	if instLimit <= 0 {
		instLimit = DefaultInstructionLimit
	}
	L, cancel := NewSandboxedState(instLimit, m.intn)
	m.RegisterModules(L)
	for _, path := range files {
		if err := L.DoFile(path); err != nil {
			cancel()
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, scope, err)
		}
	}
	cancel()

	m.mu.Lock()
	if old, ok := m.vms[scope]; ok {
		old.L.Close()
	}
	m.vms[scope] = &vm{L: L, limit: instLimit}
	m.mu.Unlock()
	m.logger.Debug("scripts loaded", zap.String("scope", scope), zap.Int("files", len(files)))
	return nil
}

// LoadGlobal loads the fallback VM shared by every scope.
func (m *Manager) LoadGlobal(dir string, instLimit int) error {
	return m.LoadScope(globalScope, dir, instLimit)
}

// CallHook calls the Lua global hook in scope's VM, falling back to the
// global VM. It returns (LNil, nil) when neither VM exists or the hook is
// undefined. Runtime errors and exhausted budgets are returned.
func (m *Manager) CallHook(scope, hook string, args ...lua.LValue) (lua.LValue, error) {
	m.mu.RLock()
	v, ok := m.vms[scope]
	if !ok {
		v = m.vms[globalScope]
	}
	m.mu.RUnlock()
	if v == nil {
		m.logger.Debug("no script VM", zap.String("scope", scope), zap.String("hook", hook))
		return lua.LNil, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	fn := v.L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, nil
	}
	budget := newOpcodeBudget(v.limit)
	defer budget.cancel()
	v.L.SetContext(budget)
	defer v.L.RemoveContext()

	if err := v.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
		m.logger.Warn("lua hook failed", zap.String("scope", scope), zap.String("hook", hook), zap.Error(err))
		return lua.LNil, fmt.Errorf("scripting: %s.%s: %w", scope, hook, err)
	}
	ret := v.L.Get(-1)
	v.L.Pop(1)
	return ret, nil
}

// EffectTick calls fn(unit, effect_id, stacks) for a per-turn effect and
// returns the HP change it reports. A hook returning nothing changes nothing.
func (m *Manager) EffectTick(scope, fn string, u UnitInfo, effectID string, stacks int) (int, error) {
	m.mu.RLock()
	v, ok := m.vms[scope]
	if !ok {
		v = m.vms[globalScope]
	}
	m.mu.RUnlock()
	if v == nil {
		return 0, nil
	}
	v.mu.Lock()
	tbl := unitTable(v.L, &u)
	v.mu.Unlock()

	ret, err := m.CallHook(scope, fn, tbl, lua.LString(effectID), lua.LNumber(stacks))
	if err != nil {
		return 0, err
	}
	switch r := ret.(type) {
	case lua.LNumber:
		return int(r), nil
	case *lua.LNilType:
		return 0, nil
	}
	return 0, fmt.Errorf("scripting: %s returned %s, want number", fn, ret.Type())
}

// Close releases every VM.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for scope, v := range m.vms {
		v.L.Close()
		delete(m.vms, scope)
	}
}
