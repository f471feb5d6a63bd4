package battle

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/alienfall/tactics/internal/game/effect"
	"github.com/alienfall/tactics/internal/game/unit"
)

// Ledger tracks AP for the side whose turn it is.
//
// Invariant: Spent <= Granted.
type Ledger struct {
	Side    unit.Side
	Turn    int
	Granted int
	Spent   int
}

// spend charges ap to u and records it.
func (b *Battle) spend(u *unit.Unit, ap int) {
	b.charge(u, ap)
	u.Spend(ap)
}

// reserve moves ap from u's pool into its reaction reserve and records it.
func (b *Battle) reserve(u *unit.Unit, ap int) {
	b.charge(u, ap)
	u.Reserve(ap)
}

func (b *Battle) charge(u *unit.Unit, ap int) {
	if u.Side != b.ledger.Side {
		violate("%s spends %d AP on %s's turn", u.ID, ap, b.ledger.Side)
	}
	b.ledger.Spent += ap
	if b.ledger.Spent > b.ledger.Granted {
		violate("%s turn %d spent %d AP of %d granted", b.ledger.Side, b.ledger.Turn, b.ledger.Spent, b.ledger.Granted)
	}
}

// nextSide returns the first side after from, in turn order and wrapping,
// that still has live units. from == "" starts at the beginning.
func (b *Battle) nextSide(from unit.Side) (unit.Side, bool) {
	start := 0
	if i := slices.Index(unit.Sides, from); i >= 0 {
		start = i + 1
	}
	for k := 0; k < len(unit.Sides); k++ {
		s := unit.Sides[(start+k)%len(unit.Sides)]
		if b.hasLive(s) {
			return s, true
		}
	}
	return "", false
}

func (b *Battle) endTurn() ActionResult {
	var res ActionResult
	res.Events = append(res.Events, Event{Kind: EventTurnEnd, Narrative: fmt.Sprintf("%s ends turn %d.", b.side, b.turn)})
	for _, u := range b.units {
		if u.Side != b.side || !u.OnField() {
			continue
		}
		for _, id := range u.Effects.Tick() {
			res.Events = append(res.Events, Event{Kind: EventExpired, Actor: u.ID, Narrative: fmt.Sprintf("%s is no longer %s.", u.Name, id)})
		}
	}
	next, ok := b.nextSide(b.side)
	if !ok {
		res.Accepted = true
		b.checkOutcome(&res)
		return res
	}
	res.Events = append(res.Events, b.startTurn(next)...)
	res.Visibility = b.vision.RecomputeAll(b.units)
	res.Accepted = true
	b.checkOutcome(&res)
	return res
}

// startTurn hands the turn to side: smoke from side's last turn clears, then
// each unit still on the field rolls against pinning, takes its per-turn
// effect damage, recovers stun and morale and, if it was conscious all along,
// receives its AP grant.
func (b *Battle) startTurn(side unit.Side) []Event {
	b.turn++
	b.side = side
	b.ledger = Ledger{Side: side, Turn: b.turn}
	events := []Event{{Kind: EventTurnStart, Narrative: fmt.Sprintf("Turn %d: %s.", b.turn, side)}}
	events = append(events, b.clearSmoke(side)...)

	for _, u := range b.units {
		if u.Side != side {
			continue
		}
		delete(b.done, u.ID)
		b.phase[u.ID] = PhaseIdle
		if !u.OnField() {
			continue
		}
		u.ClearReaction()
		pinPenalty := 0
		if u.Alive() {
			var ev []Event
			pinPenalty, ev = b.pinRoll(u)
			events = append(events, ev...)
		}
		events = append(events, b.tickEffects(u)...)
		if !u.OnField() {
			continue
		}
		wasDown := u.Status == unit.Unconscious
		events = append(events, b.recuperate(u)...)
		if wasDown || !u.Alive() {
			continue
		}

		grant := u.MaxAP() - effect.APPenalty(u.Effects) - pinPenalty - u.MoralePenalty(b.rules.LowMorale)
		if u.Rested {
			grant += b.rules.RestAPBonus
			u.Rested = false
		}
		grant = max(0, grant)
		u.AP = grant
		b.ledger.Granted += grant
	}
	b.logger.Debug("turn started", zap.Int("turn", b.turn), zap.String("side", string(side)),
		zap.Int("ap_granted", b.ledger.Granted))
	return events
}

// recuperate restores stun and morale at the start of u's turn and wakes an
// unconscious unit whose stun has dropped below its HP.
func (b *Battle) recuperate(u *unit.Unit) []Event {
	u.RecoverStun(b.rules.StunRecovery)
	u.RecoverMorale(b.rules.MoraleRecovery)
	if !u.Wake() {
		return nil
	}
	return []Event{{Kind: EventWake, Actor: u.ID, At: u.Pos, Amount: u.Stun,
		Narrative: fmt.Sprintf("%s comes round.", u.Name)}}
}

// pinRoll resolves suppression at the start of u's turn and decays the counter.
func (b *Battle) pinRoll(u *unit.Unit) (int, []Event) {
	if u.Suppression <= 0 {
		return 0, nil
	}
	var events []Event
	penalty := 0
	chance := min(100, u.Suppression*b.rules.PinChance)
	roll := b.roller.Percent("pin " + u.ID)
	if roll < chance {
		u.Stance = unit.Prone
		u.CoverBonus = 0
		penalty = b.rules.PinAPPenalty
		events = append(events, Event{Kind: EventPinned, Actor: u.ID, At: u.Pos, Chance: chance, Roll: roll, Hit: true,
			Amount: penalty, Narrative: fmt.Sprintf("%s is pinned down.", u.Name)})
	}
	u.Suppression = max(0, u.Suppression-b.rules.SuppressionDecay)
	if u.Suppression == 0 {
		u.Effects.Remove(effect.Suppressed)
	}
	return penalty, events
}

// tickEffects applies per-turn HP changes from u's effects, including any
// scripted lua_on_tick hooks.
func (b *Battle) tickEffects(u *unit.Unit) []Event {
	delta := effect.HPPerTurn(u.Effects)
	if b.scripts != nil {
		for _, a := range u.Effects.All() {
			if a.Def.LuaOnTick == "" {
				continue
			}
			d, err := b.scripts.EffectTick(b.scope, a.Def.LuaOnTick, toUnitInfo(u), a.Def.ID, a.Stacks)
			if err != nil {
				b.logger.Warn("effect hook failed", zap.String("unit", u.ID), zap.String("effect", a.Def.ID), zap.Error(err))
				continue
			}
			delta += d
		}
	}
	switch {
	case delta < 0:
		u.ApplyPoolDamage(-delta)
	case delta > 0:
		u.HP = min(u.MaxHP, u.HP+delta)
	default:
		return nil
	}
	events := []Event{{Kind: EventEffect, Actor: u.ID, At: u.Pos, Amount: delta,
		Narrative: fmt.Sprintf("%s's condition changes HP by %d.", u.Name, delta)}}
	switch {
	case u.ShouldDie():
		events = append(events, b.kill(u)...)
	case u.Overwhelmed():
		events = append(events, b.knockOut(u)...)
	}
	return events
}

// kill removes a unit that has run out of HP.
func (b *Battle) kill(u *unit.Unit) []Event {
	if u.Status != unit.Dead {
		u.Kill()
	}
	b.grid.Vacate(u.Pos)
	return []Event{{Kind: EventDeath, Actor: u.ID, At: u.Pos, Narrative: fmt.Sprintf("%s is killed.", u.Name)}}
}

// knockOut leaves a unit whose stun has caught up with its HP unconscious on
// its tile.
func (b *Battle) knockOut(u *unit.Unit) []Event {
	if u.Status != unit.Unconscious {
		u.KnockOut()
	}
	return []Event{{Kind: EventKnockOut, Actor: u.ID, At: u.Pos, Amount: u.Stun,
		Narrative: fmt.Sprintf("%s is knocked out.", u.Name)}}
}

func (b *Battle) clearSmoke(side unit.Side) []Event {
	var keep []smokeCloud
	var events []Event
	for _, c := range b.smoke {
		if c.side == side {
			b.grid.SetSmoke(c.centre, c.radius, false)
			events = append(events, Event{Kind: EventSmoke, At: c.centre, Amount: c.radius, Narrative: "Smoke clears."})
			continue
		}
		keep = append(keep, c)
	}
	for _, c := range keep {
		b.grid.SetSmoke(c.centre, c.radius, true)
	}
	b.smoke = keep
	return events
}
