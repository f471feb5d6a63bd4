// Package damage resolves hits into body-part, HP, stun and morale loss.
package damage

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/alienfall/tactics/internal/config"
	"github.com/alienfall/tactics/internal/game/effect"
	"github.com/alienfall/tactics/internal/game/unit"
)

// Event is one incoming hit.
type Event struct {
	// Source is the attacking unit id, or the item id for explosions.
	Source      string
	TargetID    string
	Part        unit.BodyPart
	BaseDamage  int
	Penetration int
	DamageType  string
	// Range is the distance in tiles between source and target.
	Range     int
	CritBonus int
	Explosion bool
}

// Draw carries the random input Compute consumes.
type Draw struct {
	// Crit is uniform in 0..99.
	Crit int
}

// Target is the read-only view of a unit Compute works on.
type Target struct {
	ID          string
	HP          int
	MaxHP       int
	PartHP      map[unit.BodyPart]int
	PartMaxHP   map[unit.BodyPart]int
	Armor       map[unit.BodyPart]int
	Resistances map[string]float64
	Blocks      []string
	Stance      unit.Stance
	ImmuneBleed bool
	ImmunePanic bool
	Stun        int
	Unconscious bool
	Morale      int
	Bravery     int
}

// Snapshot copies the parts of u that affect damage.
func Snapshot(u *unit.Unit) Target {
	armor := make(map[unit.BodyPart]int, len(unit.BodyParts))
	for _, p := range unit.BodyParts {
		armor[p] = u.ArmorRating(p)
	}
	return Target{
		ID:          u.ID,
		HP:          u.HP,
		MaxHP:       u.MaxHP,
		PartHP:      maps.Clone(u.PartHP),
		PartMaxHP:   maps.Clone(u.PartMaxHP),
		Armor:       armor,
		Resistances: u.Inventory.Resistances(),
		Blocks:      u.Inventory.BlockedTypes(),
		Stance:      u.Stance,
		ImmuneBleed: u.ImmuneBleed,
		ImmunePanic: u.ImmunePanic,
		Stun:        u.Stun,
		Unconscious: u.Status == unit.Unconscious,
		Morale:      u.Morale,
		Bravery:     u.EffectiveStats().Bravery,
	}
}

func (t Target) resistance(dtype string) float64 {
	if r, ok := t.Resistances[dtype]; ok {
		return r
	}
	return 1
}

// Result is the outcome of one hit.
type Result struct {
	TargetID   string
	Part       unit.BodyPart
	Blocked    bool
	Penetrated bool
	Crit       bool
	CritChance int
	// Damage is what reached the body part after armor, resistance, crit
	// and the stun split.
	Damage      int
	PartHPAfter int
	Overflow    int
	// PoolDamage is the HP removed from the overall pool.
	PoolDamage int
	HPAfter    int
	// StunDamage is the share of the hit that went to the stun pool.
	StunDamage int
	StunAfter  int
	KnockedOut bool
	MoraleLoss int
	// MoraleAfter is only meaningful when the target survives.
	MoraleAfter int
	Crippled    bool
	Killed      bool
	// Effects lists effect ids the hit inflicts, in application order.
	Effects []string
}

func (r Result) String() string {
	switch {
	case r.Blocked:
		return fmt.Sprintf("%s %s: blocked", r.TargetID, r.Part)
	case r.Killed:
		return fmt.Sprintf("%s %s: %d damage, killed", r.TargetID, r.Part, r.Damage)
	case r.KnockedOut:
		return fmt.Sprintf("%s %s: %d damage, %d stun, unconscious", r.TargetID, r.Part, r.Damage, r.StunDamage)
	case r.StunDamage > 0:
		return fmt.Sprintf("%s %s: %d damage, %d stun, hp %d", r.TargetID, r.Part, r.Damage, r.StunDamage, r.HPAfter)
	}
	return fmt.Sprintf("%s %s: %d damage, hp %d", r.TargetID, r.Part, r.Damage, r.HPAfter)
}

// Model applies the configured damage rules.
type Model struct {
	cfg     config.DamageConfig
	effects *effect.Registry
}

// NewModel creates a Model.
//
// Precondition: effects must hold the Bleeding and Panicked definitions.
func NewModel(cfg config.DamageConfig, effects *effect.Registry) *Model {
	return &Model{cfg: cfg, effects: effects}
}

// CritChance returns the critical-hit chance in percent for ev against stance.
//
// Postcondition: 0 <= result <= 100.
func (m *Model) CritChance(ev Event, stance unit.Stance) int {
	if ev.Explosion {
		return 0
	}
	c := m.cfg.CritBase + ev.CritBonus
	switch stance {
	case unit.Crouched:
		c -= m.cfg.CritCrouched
	case unit.Prone:
		c -= m.cfg.CritProne
	}
	if ev.Range <= m.cfg.CritCloseRange {
		c += m.cfg.CritCloseBonus
	}
	c -= ev.Range * m.cfg.CritRangeFalloff
	return min(100, max(0, c))
}

// Compute works out the result of ev against t without touching any state.
// The same inputs always yield the same Result.
func (m *Model) Compute(ev Event, t Target, draw Draw) Result {
	r := Result{TargetID: t.ID, Part: ev.Part, HPAfter: t.HP, PartHPAfter: t.PartHP[ev.Part],
		StunAfter: t.Stun, MoraleAfter: t.Morale}
	if slices.Contains(t.Blocks, ev.DamageType) || ev.BaseDamage <= 0 {
		r.Blocked = true
		return r
	}

	dmg := ev.BaseDamage
	if ev.Penetration-t.Armor[ev.Part] > 0 {
		r.Penetrated = true
	} else {
		dmg = max(1, int(math.Floor(float64(dmg)*m.cfg.Deflection)))
	}
	dmg = max(1, int(math.Floor(float64(dmg)*t.resistance(ev.DamageType))))

	r.CritChance = m.CritChance(ev, t.Stance)
	if draw.Crit < r.CritChance {
		r.Crit = true
		dmg = int(math.Floor(float64(dmg) * m.cfg.CritMultiplier))
	}
	r.StunDamage = int(math.Floor(float64(dmg) * m.cfg.StunRatios[ev.DamageType]))
	r.StunAfter = min(t.MaxHP, t.Stun+r.StunDamage)
	dmg -= r.StunDamage
	r.Damage = dmg

	cur := t.PartHP[ev.Part]
	absorbed := min(dmg, cur)
	r.PartHPAfter = cur - absorbed
	r.Overflow = dmg - absorbed
	r.PoolDamage = absorbed + int(math.Ceil(float64(r.Overflow)*m.cfg.SpilloverRatio))
	r.HPAfter = max(0, t.HP-r.PoolDamage)
	r.Crippled = r.PartHPAfter == 0

	if r.HPAfter == 0 || (ev.Part.IsVital() && r.PartHPAfter == 0) {
		r.Killed = true
		return r
	}
	r.KnockedOut = !t.Unconscious && r.StunAfter >= r.HPAfter
	if r.Penetrated && !t.ImmuneBleed && slices.Contains(m.cfg.BleedTypes, ev.DamageType) &&
		r.PartHPAfter*2 < t.PartMaxHP[ev.Part] {
		r.Effects = append(r.Effects, effect.Bleeding)
	}

	shock := m.moraleShock(r, t)
	r.MoraleLoss = min(shock, t.Morale)
	r.MoraleAfter = t.Morale - r.MoraleLoss
	if shock > 0 && r.MoraleAfter == 0 && !r.KnockedOut && !t.Unconscious {
		r.Effects = append(r.Effects, effect.Panicked)
	}
	return r
}

// moraleShock is the morale a surviving target loses to r: MoraleShock per
// max HP of pool damage, plus a full MoraleShock when HP falls below the
// panic threshold, both scaled by the target's fear (100 - bravery).
func (m *Model) moraleShock(r Result, t Target) int {
	if t.ImmunePanic || t.MaxHP <= 0 {
		return 0
	}
	fear := 100 - min(100, max(0, t.Bravery))
	shock := ceilDiv(m.cfg.MoraleShock*r.PoolDamage*fear, t.MaxHP*100)
	if float64(r.HPAfter) < m.cfg.PanicThreshold*float64(t.MaxHP) {
		shock += ceilDiv(m.cfg.MoraleShock*fear, 100)
	}
	return shock
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

// Apply writes r onto u.
//
// Precondition: r was computed from a snapshot of u's current state.
func (m *Model) Apply(r Result, u *unit.Unit) error {
	if r.Blocked {
		return nil
	}
	u.ApplyPartDamage(r.Part, r.Damage)
	u.ApplyPoolDamage(r.PoolDamage)
	if u.ShouldDie() {
		u.Kill()
		return nil
	}
	u.ApplyStun(r.StunDamage)
	u.LoseMorale(r.MoraleLoss)
	if r.KnockedOut {
		u.KnockOut()
	}
	for _, id := range r.Effects {
		def, ok := m.effects.Get(id)
		if !ok {
			return fmt.Errorf("damage: effect %q not registered", id)
		}
		if err := u.Effects.Apply(def, 1, 0); err != nil {
			return err
		}
	}
	return nil
}

// Resolve computes ev against u's current state and applies it.
func (m *Model) Resolve(ev Event, u *unit.Unit, draw Draw) (Result, error) {
	r := m.Compute(ev, Snapshot(u), draw)
	return r, m.Apply(r, u)
}
