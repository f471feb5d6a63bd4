package unit

import (
	"fmt"
	"math"

	"github.com/alienfall/tactics/internal/game/effect"
	"github.com/alienfall/tactics/internal/game/grid"
	"github.com/alienfall/tactics/internal/game/inventory"
)

// Spec describes a unit to create.
type Spec struct {
	ID        string
	Name      string
	Side      Side
	RaceID    string
	Pos       grid.Coord
	Facing    grid.Direction
	Stance    Stance
	Base      Stats
	SkillMods map[string]int
	// NaturalArmor is added to every body part's armor rating.
	NaturalArmor int
	ImmunePanic  bool
	ImmuneBleed  bool
	CanKneel     bool
	Inventory    *inventory.Manager
}

// MaxMorale is the morale every unit starts a battle with.
const MaxMorale = 10

// Unit is a combatant's mutable battle state.
//
// Invariants: AP, ReservedAP, HP and every part HP are never negative;
// 0 <= Stun <= MaxHP; 0 <= Morale <= MaxMorale.
type Unit struct {
	ID     string
	Name   string
	Side   Side
	RaceID string

	Pos    grid.Coord
	Facing grid.Direction
	Stance Stance

	Base      Stats
	SkillMods map[string]int

	AP         int
	ReservedAP int

	HP        int
	MaxHP     int
	PartHP    map[BodyPart]int
	PartMaxHP map[BodyPart]int
	Energy    int
	// Stun is non-lethal damage; the unit passes out once it reaches HP.
	Stun   int
	Morale int

	Effects   *effect.ActiveSet
	Inventory *inventory.Manager

	Overwatch   bool
	CoverBonus  int
	Suppression int
	Rested      bool

	NaturalArmor int
	ImmunePanic  bool
	ImmuneBleed  bool
	CanKneel     bool

	Status Status
}

// New builds a unit at full health.
//
// Precondition: spec.ID is non-empty and spec.Base.Health > 0.
func New(spec Spec) *Unit {
	if spec.ID == "" || spec.Base.Health <= 0 {
		panic(fmt.Sprintf("unit: New precondition violated: id=%q health=%d", spec.ID, spec.Base.Health))
	}
	inv := spec.Inventory
	if inv == nil {
		inv = inventory.NewManager()
	}
	u := &Unit{
		ID:           spec.ID,
		Name:         spec.Name,
		Side:         spec.Side,
		RaceID:       spec.RaceID,
		Pos:          spec.Pos,
		Facing:       spec.Facing,
		Stance:       spec.Stance,
		Base:         spec.Base,
		SkillMods:    spec.SkillMods,
		Effects:      effect.NewActiveSet(),
		Inventory:    inv,
		NaturalArmor: spec.NaturalArmor,
		ImmunePanic:  spec.ImmunePanic,
		ImmuneBleed:  spec.ImmuneBleed,
		CanKneel:     spec.CanKneel,
		PartHP:       make(map[BodyPart]int, len(BodyParts)),
		PartMaxHP:    make(map[BodyPart]int, len(BodyParts)),
	}
	if u.Name == "" {
		u.Name = u.ID
	}
	st := u.EffectiveStats()
	u.MaxHP = max(1, st.Health)
	u.HP = u.MaxHP
	for _, p := range BodyParts {
		hp := int(math.Ceil(float64(u.MaxHP) * partRatio[p]))
		u.PartMaxHP[p] = hp
		u.PartHP[p] = hp
	}
	u.Energy = max(0, st.Energy)
	u.AP = max(0, st.ActionPoints)
	u.Morale = MaxMorale
	return u
}

// EffectiveStats returns base stats with skill and equipment modifiers applied.
func (u *Unit) EffectiveStats() Stats {
	return u.Base.Add(u.SkillMods).Add(u.Inventory.StatModifiers())
}

// MaxAP is the per-turn AP grant before penalties.
func (u *Unit) MaxAP() int { return max(0, u.EffectiveStats().ActionPoints) }

// Alive reports whether the unit can still act.
func (u *Unit) Alive() bool { return u.Status == Active }

// OnField reports whether the unit still occupies its tile and can be hit:
// active or unconscious.
func (u *Unit) OnField() bool { return u.Status == Active || u.Status == Unconscious }

// Spend deducts ap.
//
// Precondition: 0 <= ap <= u.AP; violating it is a bug in the caller.
func (u *Unit) Spend(ap int) {
	if ap < 0 || ap > u.AP {
		panic(fmt.Sprintf("unit: %s spends %d AP with %d available", u.ID, ap, u.AP))
	}
	u.AP -= ap
}

// Reserve moves ap from the current pool into the reaction reserve.
func (u *Unit) Reserve(ap int) {
	u.Spend(ap)
	u.ReservedAP += ap
}

// ClearReaction ends overwatch and drops the reserve.
func (u *Unit) ClearReaction() {
	u.Overwatch = false
	u.ReservedAP = 0
}

// ArmorRating returns equipped plus natural armor for a part.
func (u *Unit) ArmorRating(p BodyPart) int {
	return u.Inventory.ArmorRating(string(p)) + u.NaturalArmor
}

// Crippled reports whether a part has no HP left.
func (u *Unit) Crippled(p BodyPart) bool { return u.PartHP[p] == 0 }

// LegCrippled reports whether either leg is disabled.
func (u *Unit) LegCrippled() bool {
	for _, p := range BodyParts {
		if p.IsLeg() && u.Crippled(p) {
			return true
		}
	}
	return false
}

// ApplyPartDamage removes n HP from part p and returns the overflow beyond
// what the part had left.
func (u *Unit) ApplyPartDamage(p BodyPart, n int) int {
	if n <= 0 {
		return 0
	}
	cur := u.PartHP[p]
	if n <= cur {
		u.PartHP[p] = cur - n
		return 0
	}
	u.PartHP[p] = 0
	return n - cur
}

// ApplyPoolDamage removes n from the overall HP pool, flooring at zero.
func (u *Unit) ApplyPoolDamage(n int) {
	if n > 0 {
		u.HP = max(0, u.HP-n)
	}
}

// Heal restores up to n HP to part p and the same amount to the pool.
// Returns the HP actually restored to the part.
func (u *Unit) Heal(p BodyPart, n int) int {
	healed := min(n, u.PartMaxHP[p]-u.PartHP[p])
	if healed <= 0 {
		return 0
	}
	u.PartHP[p] += healed
	u.HP = min(u.MaxHP, u.HP+healed)
	return healed
}

// MostWounded returns the part with the largest HP deficit, head first on ties.
func (u *Unit) MostWounded() BodyPart {
	best, deficit := Head, -1
	for _, p := range BodyParts {
		if d := u.PartMaxHP[p] - u.PartHP[p]; d > deficit {
			best, deficit = p, d
		}
	}
	return best
}

// ShouldDie reports whether a vital part or the pool is exhausted.
func (u *Unit) ShouldDie() bool {
	return u.HP == 0 || u.PartHP[Head] == 0 || u.PartHP[Torso] == 0
}

// ApplyStun adds n to the stun pool, capped at MaxHP.
func (u *Unit) ApplyStun(n int) {
	if n > 0 {
		u.Stun = min(u.MaxHP, u.Stun+n)
	}
}

// RecoverStun removes up to n stun and returns the amount removed.
func (u *Unit) RecoverStun(n int) int {
	got := min(max(0, n), u.Stun)
	u.Stun -= got
	return got
}

// Overwhelmed reports whether an active unit's stun has caught up with its HP.
func (u *Unit) Overwhelmed() bool {
	return u.Status == Active && u.HP > 0 && u.Stun >= u.HP
}

// KnockOut leaves the unit unconscious and prone on its tile.
func (u *Unit) KnockOut() {
	u.Status = Unconscious
	u.Stance = Prone
	u.ClearReaction()
	u.AP = 0
}

// Wake returns an unconscious unit to play once its stun is below its HP.
// It reports whether the unit woke.
func (u *Unit) Wake() bool {
	if u.Status != Unconscious || u.HP == 0 || u.Stun >= u.HP {
		return false
	}
	u.Status = Active
	return true
}

// LoseMorale removes up to n morale and returns the amount lost.
func (u *Unit) LoseMorale(n int) int {
	got := min(max(0, n), u.Morale)
	u.Morale -= got
	return got
}

// RecoverMorale restores up to n morale and returns the amount restored.
func (u *Unit) RecoverMorale(n int) int {
	got := min(max(0, n), MaxMorale-u.Morale)
	u.Morale += got
	return got
}

// MoralePenalty is the AP lost to low morale: one AP per point at or below
// threshold.
func (u *Unit) MoralePenalty(threshold int) int {
	if u.Morale > threshold {
		return 0
	}
	return threshold + 1 - u.Morale
}

// Kill marks the unit dead and ends any reaction stance.
func (u *Unit) Kill() {
	u.Status = Dead
	u.ClearReaction()
	u.AP = 0
}

// Surrender removes the unit from play without killing it.
func (u *Unit) Surrender() {
	u.Status = Surrendered
	u.ClearReaction()
	u.AP = 0
}
