package battle

import (
	"sort"

	"go.uber.org/zap"

	"github.com/alienfall/tactics/internal/game/grid"
	"github.com/alienfall/tactics/internal/game/unit"
)

// reactor is an overwatcher eligible to fire at an exposed unit.
type reactor struct {
	u        *unit.Unit
	reaction int
	frac     float64
}

// reactors lists the units that may interrupt exposed, highest Reaction
// first and ties broken by id.
func (b *Battle) reactors(exposed *unit.Unit) []reactor {
	var out []reactor
	for _, w := range b.units {
		if w.ID == exposed.ID || !w.Alive() || !w.Overwatch || w.ReservedAP < b.rules.ReactionAP {
			continue
		}
		if w.Suppression > 0 || !b.relations.Hostile(w.Side, exposed.Side) {
			continue
		}
		item := w.Inventory.Weapon()
		if item == nil || item.Def.Weapon == nil {
			continue
		}
		if !grid.WithinArc(w.Pos, w.Facing, b.rules.OverwatchArc, exposed.Pos) {
			continue
		}
		if grid.Distance(w.Pos, exposed.Pos) > float64(item.Def.Weapon.Range) {
			continue
		}
		frac, err := b.grid.LineOfSight(w.Pos, exposed.Pos)
		if err != nil || frac <= 0 {
			continue
		}
		out = append(out, reactor{u: w, reaction: w.EffectiveStats().Reaction, frac: frac})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].reaction != out[j].reaction {
			return out[i].reaction > out[j].reaction
		}
		return out[i].u.ID < out[j].u.ID
	})
	return out
}

// reactionCheck lets every eligible overwatcher take one shot at exposed.
// Each shot consumes the shooter's reservation; the pass stops once exposed
// is down.
func (b *Battle) reactionCheck(exposed *unit.Unit, res *ActionResult) []Event {
	var events []Event
	for _, r := range b.reactors(exposed) {
		if !exposed.Alive() {
			break
		}
		w := r.u
		b.logger.Debug("reaction fire", zap.String("shooter", w.ID), zap.String("target", exposed.ID),
			zap.Int("reaction", r.reaction))
		w.ClearReaction()
		w.Facing = grid.DirectionTo(w.Pos, exposed.Pos)
		events = append(events, b.fire(w, exposed, w.Inventory.Weapon().Def, r.frac, true, res)...)
	}
	return events
}
