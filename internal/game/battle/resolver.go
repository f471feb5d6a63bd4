package battle

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/alienfall/tactics/internal/game/damage"
	"github.com/alienfall/tactics/internal/game/effect"
	"github.com/alienfall/tactics/internal/game/fow"
	"github.com/alienfall/tactics/internal/game/grid"
	"github.com/alienfall/tactics/internal/game/inventory"
	"github.com/alienfall/tactics/internal/game/unit"
)

// Every handler below validates completely before its first mutation.

func (b *Battle) move(u *unit.Unit, a Action, res *ActionResult) *ValidationError {
	if u.Stance == unit.Prone {
		return reject(ReasonActionRestricted, "%s is prone; crouch first", u.ID)
	}
	var (
		path grid.Path
		err  error
	)
	switch {
	case len(a.Path) > 0:
		path, err = b.grid.ValidatePath(u.Pos, a.Path)
	case a.Target != nil:
		if *a.Target == u.Pos {
			return reject(ReasonInvalidTarget, "%s is already at %v", u.ID, u.Pos)
		}
		path, err = b.grid.FindPath(u.Pos, *a.Target)
	default:
		return reject(ReasonInvalidTarget, "move needs a target or a path")
	}
	switch {
	case errors.Is(err, grid.ErrInvalidCoordinate):
		return reject(ReasonInvalidTarget, "destination is off the map")
	case err != nil:
		return reject(ReasonBlockedPath, "no route for %s: %v", u.ID, err)
	}

	extra := 0
	if u.LegCrippled() {
		extra = b.rules.CrippledMoveAP
	}
	steps := len(path.Steps)
	cost := path.AP() + extra*steps
	if cost > u.AP {
		return reject(ReasonInsufficientAP, "%s needs %d AP to move %d tiles, has %d", u.ID, cost, steps, u.AP)
	}
	if u.Energy < steps {
		return reject(ReasonExhausted, "%s has %d energy for %d steps", u.ID, u.Energy, steps)
	}

	prev := u.Pos
	for i, step := range path.Steps {
		b.spend(u, path.APThrough(i+1)-path.APThrough(i)+extra)
		u.Energy--
		b.grid.Move(u.ID, prev, step)
		u.Pos = step
		u.Facing = grid.DirectionTo(prev, step)
		u.CoverBonus = 0
		res.Events = append(res.Events, Event{Kind: EventMove, Actor: u.ID, At: step,
			Narrative: fmt.Sprintf("%s moves to %v.", u.Name, step)})
		res.Visibility = append(res.Visibility, b.vision.RecomputeAll(b.units)...)
		prev = step

		res.Events = append(res.Events, b.reactionCheck(u, res)...)
		if !u.Alive() {
			b.logger.Debug("mover stopped", zap.String("unit", u.ID), zap.Int("step", i+1), zap.Int("of", steps))
			break
		}
	}
	return nil
}

func (b *Battle) crouch(u *unit.Unit, res *ActionResult) *ValidationError {
	to := unit.Crouched
	switch u.Stance {
	case unit.Standing:
		if !u.CanKneel {
			return reject(ReasonActionRestricted, "%s cannot kneel", u.ID)
		}
	case unit.Crouched:
		to = unit.Standing
	}
	if b.rules.CrouchAP > u.AP {
		return reject(ReasonInsufficientAP, "%s needs %d AP to change stance, has %d", u.ID, b.rules.CrouchAP, u.AP)
	}
	b.spend(u, b.rules.CrouchAP)
	u.Stance = to
	res.Events = append(res.Events, Event{Kind: EventStance, Actor: u.ID, At: u.Pos,
		Narrative: fmt.Sprintf("%s is now %s.", u.Name, to)})
	res.Visibility = append(res.Visibility, b.vision.RecomputeAll(b.units)...)
	return nil
}

func (b *Battle) cover(u *unit.Unit, res *ActionResult) *ValidationError {
	var best *grid.Tile
	for _, t := range b.grid.Neighbors(u.Pos) {
		if t.CoverValue > 0 && (best == nil || t.CoverValue > best.CoverValue) {
			best = t
		}
	}
	if best == nil {
		return reject(ReasonInvalidTarget, "no cover next to %s at %v", u.ID, u.Pos)
	}
	if b.rules.CoverAP > u.AP {
		return reject(ReasonInsufficientAP, "%s needs %d AP to take cover, has %d", u.ID, b.rules.CoverAP, u.AP)
	}
	b.spend(u, b.rules.CoverAP)
	u.CoverBonus = best.CoverValue
	u.Facing = grid.DirectionTo(u.Pos, best.Coord)
	res.Events = append(res.Events, Event{Kind: EventCover, Actor: u.ID, At: best.Coord, Amount: best.CoverValue,
		Narrative: fmt.Sprintf("%s takes cover behind %s.", u.Name, best.Terrain)})
	return nil
}

func (b *Battle) useItem(u *unit.Unit, a Action, res *ActionResult) *ValidationError {
	slot := a.Slot
	if slot == "" {
		slot = inventory.SlotWeapon
	}
	item := u.Inventory.ItemAt(slot)
	switch {
	case item == nil:
		return reject(ReasonMissingItem, "%s has nothing in %s", u.ID, slot)
	case item.Def.Weapon != nil:
		return b.shoot(u, item, a.TargetUnit, res)
	case item.Def.Heal > 0:
		return b.heal(u, slot, item, a.TargetUnit, res)
	}
	return reject(ReasonMissingItem, "%s cannot be used", item.Def.Name)
}

// targetInSight resolves a target unit that must be visible from u within rng.
func (b *Battle) targetInSight(u *unit.Unit, id string, rng int) (*unit.Unit, float64, *ValidationError) {
	t, ok := b.byID[id]
	if !ok || !t.OnField() || t.ID == u.ID {
		return nil, 0, reject(ReasonInvalidTarget, "%q is not a valid target", id)
	}
	frac, err := b.grid.LineOfSight(u.Pos, t.Pos)
	if err != nil || frac <= 0 {
		return nil, 0, reject(ReasonNoLineOfSight, "%s cannot see %s", u.ID, t.ID)
	}
	if grid.Distance(u.Pos, t.Pos) > float64(rng) {
		return nil, 0, reject(ReasonInvalidTarget, "%s is out of range (%d)", t.ID, rng)
	}
	return t, frac, nil
}

func (b *Battle) shoot(u *unit.Unit, item *inventory.Item, targetID string, res *ActionResult) *ValidationError {
	w := item.Def.Weapon
	t, frac, verr := b.targetInSight(u, targetID, w.Range)
	if verr != nil {
		return verr
	}
	if w.APCost > u.AP {
		return reject(ReasonInsufficientAP, "%s needs %d AP to fire, has %d", u.ID, w.APCost, u.AP)
	}
	b.spend(u, w.APCost)
	u.Facing = grid.DirectionTo(u.Pos, t.Pos)
	res.Events = append(res.Events, b.fire(u, t, item.Def, frac, false, res)...)
	return nil
}

// hitChance returns the clamped percent chance of shooter hitting target
// with weapon through a line with visibility frac.
func (b *Battle) hitChance(shooter, target *unit.Unit, w *inventory.WeaponStats, frac float64, reaction bool) int {
	c := shooter.EffectiveStats().Aim + w.Accuracy
	c -= target.CoverBonus
	c -= shooter.Suppression * b.rules.SuppressionAccuracy
	c -= effect.AccuracyPenalty(shooter.Effects)
	c -= int(grid.Distance(shooter.Pos, target.Pos)) * b.rules.RangeAccuracy
	if shooter.Stance != unit.Standing {
		c += b.rules.CrouchedAccuracy
	}
	if fow.LevelFor(frac) == fow.Partial {
		c += b.rules.PartialSightAccuracy
	}
	if reaction {
		c += b.rules.ReactionAccuracy
	}
	return min(b.rules.MaxHitChance, max(b.rules.MinHitChance, c))
}

// fire resolves one shot. Rolls are drawn in a fixed order: hit, then on a
// hit damage dice, location and crit.
func (b *Battle) fire(shooter, target *unit.Unit, def *inventory.ItemDef, frac float64, reaction bool, res *ActionResult) []Event {
	w := def.Weapon
	kind := EventShot
	if reaction {
		kind = EventReaction
	}
	chance := b.hitChance(shooter, target, w, frac, reaction)
	roll := b.roller.Percent("hit " + shooter.ID + ">" + target.ID)
	ev := Event{Kind: kind, Actor: shooter.ID, Target: target.ID, At: target.Pos, Chance: chance, Roll: roll, Hit: roll < chance}
	if !ev.Hit {
		ev.Narrative = fmt.Sprintf("%s fires %s at %s and misses.", shooter.Name, def.Name, target.Name)
		return []Event{ev}
	}
	ev.Narrative = fmt.Sprintf("%s fires %s at %s and hits.", shooter.Name, def.Name, target.Name)
	dmg, err := b.roller.RollExpr(w.Damage)
	if err != nil {
		violate("weapon %s has unparsable damage %q", def.ID, w.Damage)
	}
	events := []Event{ev}
	return append(events, b.applyHit(damage.Event{
		Source:      shooter.ID,
		TargetID:    target.ID,
		Part:        damage.HitLocation(target.Stance, b.roller.Percent("location "+target.ID)),
		BaseDamage:  dmg.Total(),
		Penetration: w.Penetration,
		DamageType:  w.DamageType,
		Range:       int(grid.Distance(shooter.Pos, target.Pos)),
		CritBonus:   w.CritBonus,
	}, target, res)...)
}

// applyHit runs ev through the damage model and reports the consequences.
func (b *Battle) applyHit(ev damage.Event, target *unit.Unit, res *ActionResult) []Event {
	draw := damage.Draw{Crit: b.roller.Percent("crit " + target.ID)}
	r, err := b.damage.Resolve(ev, target, draw)
	if err != nil {
		b.logger.Error("damage effects not applied", zap.String("target", target.ID), zap.Error(err))
	}
	events := []Event{{Kind: EventDamage, Actor: ev.Source, Target: target.ID, At: target.Pos,
		Amount: r.PoolDamage, Damage: &r, Narrative: r.String()}}
	for _, id := range r.Effects {
		events = append(events, Event{Kind: EventEffect, Actor: ev.Source, Target: target.ID, At: target.Pos,
			Narrative: fmt.Sprintf("%s is %s.", target.Name, id)})
	}
	switch {
	case r.Killed:
		events = append(events, b.kill(target)...)
		res.Visibility = append(res.Visibility, b.vision.RecomputeAll(b.units)...)
	case r.KnockedOut:
		events = append(events, b.knockOut(target)...)
		res.Visibility = append(res.Visibility, b.vision.RecomputeAll(b.units)...)
	}
	return events
}

func (b *Battle) heal(u *unit.Unit, slot string, item *inventory.Item, targetID string, res *ActionResult) *ValidationError {
	t := u
	if targetID != "" && targetID != u.ID {
		var ok bool
		t, ok = b.byID[targetID]
		if !ok || !t.OnField() || b.relations.Hostile(u.Side, t.Side) || grid.Chebyshev(u.Pos, t.Pos) > 1 {
			return reject(ReasonInvalidTarget, "%q is not an adjacent ally", targetID)
		}
	}
	if b.rules.HealAP > u.AP {
		return reject(ReasonInsufficientAP, "%s needs %d AP to heal, has %d", u.ID, b.rules.HealAP, u.AP)
	}
	b.spend(u, b.rules.HealAP)
	part := t.MostWounded()
	healed := t.Heal(part, item.Def.Heal)
	t.Effects.Remove(effect.Bleeding)
	if item.Def.Consumable {
		u.Inventory.Consume(slot)
	}
	res.Events = append(res.Events, Event{Kind: EventHeal, Actor: u.ID, Target: t.ID, At: t.Pos, Amount: healed,
		Narrative: fmt.Sprintf("%s treats %s's %s for %d.", u.Name, t.Name, part, healed)})
	return nil
}

// throwRange is how far u can throw, in tiles.
func (b *Battle) throwRange(u *unit.Unit) int {
	return u.EffectiveStats().Strength/2 + b.rules.ThrowRange
}

func (b *Battle) throw(u *unit.Unit, a Action, res *ActionResult) *ValidationError {
	slot, item := a.Slot, (*inventory.Item)(nil)
	if slot != "" {
		item = u.Inventory.ItemAt(slot)
	} else {
		slot, item = u.Inventory.Find(func(it *inventory.Item) bool { return it.Def.Throwable() })
	}
	if item == nil || !item.Def.Throwable() {
		return reject(ReasonMissingItem, "%s has nothing to throw", u.ID)
	}
	if a.Target == nil || !b.grid.InBounds(*a.Target) {
		return reject(ReasonInvalidTarget, "throw needs a tile on the map")
	}
	at := *a.Target
	if rng := b.throwRange(u); grid.Distance(u.Pos, at) > float64(rng) {
		return reject(ReasonInvalidTarget, "%v is beyond %s's throw range %d", at, u.ID, rng)
	}
	if frac, err := b.grid.LineOfSight(u.Pos, at); err != nil || frac <= 0 {
		return reject(ReasonNoLineOfSight, "%s cannot see %v", u.ID, at)
	}
	if b.rules.ThrowAP > u.AP {
		return reject(ReasonInsufficientAP, "%s needs %d AP to throw, has %d", u.ID, b.rules.ThrowAP, u.AP)
	}

	b.spend(u, b.rules.ThrowAP)
	u.Facing = grid.DirectionTo(u.Pos, at)
	u.Inventory.Consume(slot)
	ts := item.Def.Throw
	res.Events = append(res.Events, Event{Kind: EventThrow, Actor: u.ID, At: at,
		Narrative: fmt.Sprintf("%s throws %s at %v.", u.Name, item.Def.Name, at)})

	if ts.Smoke {
		b.grid.SetSmoke(at, ts.BlastRadius, true)
		b.smoke = append(b.smoke, smokeCloud{side: u.Side, centre: at, radius: ts.BlastRadius})
		res.Events = append(res.Events, Event{Kind: EventSmoke, Actor: u.ID, At: at, Amount: ts.BlastRadius,
			Narrative: "Smoke fills the area."})
		res.Visibility = append(res.Visibility, b.vision.RecomputeAll(b.units)...)
		return nil
	}

	roll, err := b.roller.RollExpr(ts.Damage)
	if err != nil {
		violate("throwable %s has unparsable damage %q", item.Def.ID, ts.Damage)
	}
	for _, t := range b.units {
		if !t.OnField() {
			continue
		}
		d := grid.Chebyshev(at, t.Pos)
		if d > ts.BlastRadius {
			continue
		}
		base := roll.Total() - ts.BlastDropoff*d
		if base <= 0 {
			continue
		}
		res.Events = append(res.Events, b.applyHit(damage.Event{
			Source:      item.Def.ID,
			TargetID:    t.ID,
			Part:        damage.HitLocation(t.Stance, b.roller.Percent("location "+t.ID)),
			BaseDamage:  base,
			Penetration: ts.Penetration,
			DamageType:  ts.DamageType,
			Range:       d,
			Explosion:   true,
		}, t, res)...)
	}
	return nil
}

func (b *Battle) overwatch(u *unit.Unit, a Action, res *ActionResult) *ValidationError {
	if u.Inventory.Weapon() == nil || u.Inventory.Weapon().Def.Weapon == nil {
		return reject(ReasonMissingItem, "%s has no weapon to overwatch with", u.ID)
	}
	if u.Suppression > 0 {
		return reject(ReasonActionRestricted, "%s is suppressed", u.ID)
	}
	if u.Overwatch {
		return reject(ReasonInvalidTarget, "%s is already on overwatch", u.ID)
	}
	facing := u.Facing
	switch {
	case a.Facing != "":
		d, err := grid.ParseDirection(a.Facing)
		if err != nil {
			return reject(ReasonInvalidTarget, "%v", err)
		}
		facing = d
	case a.Target != nil:
		facing = grid.DirectionTo(u.Pos, *a.Target)
	}
	if b.rules.OverwatchAP > u.AP {
		return reject(ReasonInsufficientAP, "%s needs %d AP for overwatch, has %d", u.ID, b.rules.OverwatchAP, u.AP)
	}
	b.reserve(u, b.rules.OverwatchAP)
	u.Overwatch = true
	u.Facing = facing
	res.Events = append(res.Events, Event{Kind: EventOverwatch, Actor: u.ID, At: u.Pos, Amount: u.ReservedAP,
		Narrative: fmt.Sprintf("%s watches %s.", u.Name, facing)})
	return nil
}

func (b *Battle) suppress(u *unit.Unit, a Action, res *ActionResult) *ValidationError {
	item := u.Inventory.Weapon()
	if item == nil || item.Def.Weapon == nil {
		return reject(ReasonMissingItem, "%s has no weapon to suppress with", u.ID)
	}
	t, _, verr := b.targetInSight(u, a.TargetUnit, item.Def.Weapon.Range)
	if verr != nil {
		return verr
	}
	if !b.relations.Hostile(u.Side, t.Side) {
		return reject(ReasonInvalidTarget, "%s is not hostile to %s", t.ID, u.ID)
	}
	if !t.Alive() {
		return reject(ReasonInvalidTarget, "%s is %s", t.ID, t.Status)
	}
	if b.rules.SuppressAP > u.AP {
		return reject(ReasonInsufficientAP, "%s needs %d AP to suppress, has %d", u.ID, b.rules.SuppressAP, u.AP)
	}
	b.spend(u, b.rules.SuppressAP)
	u.Facing = grid.DirectionTo(u.Pos, t.Pos)
	t.Suppression += b.rules.SuppressionAmount
	t.ClearReaction()
	if def, ok := b.effects.Get(effect.Suppressed); ok {
		if err := t.Effects.Apply(def, 1, 0); err != nil {
			b.logger.Error("suppressed effect not applied", zap.String("unit", t.ID), zap.Error(err))
		}
	}
	res.Events = append(res.Events, Event{Kind: EventSuppress, Actor: u.ID, Target: t.ID, At: t.Pos, Amount: t.Suppression,
		Narrative: fmt.Sprintf("%s pins %s under fire.", u.Name, t.Name)})
	return nil
}

func (b *Battle) rest(u *unit.Unit, res *ActionResult) {
	maxEnergy := u.EffectiveStats().Energy
	before := u.Energy
	u.Energy = min(maxEnergy, u.Energy+b.rules.RestEnergy)
	stun := u.RecoverStun(b.rules.RestStun)
	morale := u.RecoverMorale(b.rules.RestMorale)
	u.Rested = true
	b.done[u.ID] = true
	b.logger.Debug("unit rested", zap.String("unit", u.ID), zap.Int("energy", u.Energy-before),
		zap.Int("stun", stun), zap.Int("morale", morale))
	res.Events = append(res.Events, Event{Kind: EventRest, Actor: u.ID, At: u.Pos, Amount: u.Energy - before,
		Narrative: fmt.Sprintf("%s rests.", u.Name)})
}
