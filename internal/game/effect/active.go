package effect

import (
	"fmt"
	"sort"
)

// Active tracks one applied effect on a unit.
type Active struct {
	Def       *Def
	Stacks    int
	TurnsLeft int // -1 = permanent
}

// ActiveSet tracks all effects currently applied to one unit.
// It is not safe for concurrent use; the battle serialises access.
type ActiveSet struct {
	effects map[string]*Active
}

// NewActiveSet creates an empty ActiveSet.
func NewActiveSet() *ActiveSet {
	return &ActiveSet{effects: make(map[string]*Active)}
}

// Apply adds def or stacks it onto an existing entry. turns <= 0 uses
// def.Duration; permanent effects ignore turns.
//
// Postcondition: Has(def.ID); Stacks(def.ID) <= max(1, def.MaxStacks);
// the remaining duration never shrinks on re-apply.
func (s *ActiveSet) Apply(def *Def, stacks, turns int) error {
	if def == nil {
		return fmt.Errorf("effect: Apply: def must not be nil")
	}
	if stacks < 1 {
		stacks = 1
	}
	if turns <= 0 {
		turns = def.Duration
	}
	if def.DurationType == DurationPermanent {
		turns = -1
	}
	limit := max(1, def.MaxStacks)

	if a, ok := s.effects[def.ID]; ok {
		a.Stacks = min(a.Stacks+stacks, limit)
		if a.TurnsLeft >= 0 && (turns < 0 || turns > a.TurnsLeft) {
			a.TurnsLeft = turns
		}
		return nil
	}
	s.effects[def.ID] = &Active{Def: def, Stacks: min(stacks, limit), TurnsLeft: turns}
	return nil
}

// Remove deletes the effect; no-op when absent.
func (s *ActiveSet) Remove(id string) {
	delete(s.effects, id)
}

// Tick decrements every timed effect and removes those that run out.
// Returns the expired ids in sorted order.
func (s *ActiveSet) Tick() []string {
	var expired []string
	for id, a := range s.effects {
		if a.TurnsLeft < 0 {
			continue
		}
		a.TurnsLeft--
		if a.TurnsLeft <= 0 {
			expired = append(expired, id)
			delete(s.effects, id)
		}
	}
	sort.Strings(expired)
	return expired
}

// Has reports whether id is active.
func (s *ActiveSet) Has(id string) bool {
	_, ok := s.effects[id]
	return ok
}

// Stacks returns the stack count for id, or 0.
func (s *ActiveSet) Stacks(id string) int {
	if a, ok := s.effects[id]; ok {
		return a.Stacks
	}
	return 0
}

// All returns the active effects sorted by ID. The pointed-to values are
// shared; callers must not modify them.
func (s *ActiveSet) All() []*Active {
	out := make([]*Active, 0, len(s.effects))
	for _, a := range s.effects {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Def.ID < out[j].Def.ID })
	return out
}

// IDs returns the active effect ids in sorted order.
func (s *ActiveSet) IDs() []string {
	ids := make([]string, 0, len(s.effects))
	for id := range s.effects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
